package itemsessions

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

type fixture struct {
	svc     Service
	db      *gorm.DB
	coat    models.PriceListItem
	fur     models.PriceListItem
	metrics *prometheus.Registry
}

func newFixture(t *testing.T, cfg config.SessionsConfig) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	conn := client.DB()

	mods := []models.Modifier{
		{Code: "DELICATE", Name: "Delicate", Type: enums.ModifierTypePercentage, Value: decimal.NewFromInt(20), Active: true},
		{Code: "BUTTONS", Name: "Buttons", Type: enums.ModifierTypeFixedAmount, Value: decimal.NewFromInt(150), Active: true},
		{Code: "FUR_CARE", Name: "Fur care", Type: enums.ModifierTypePercentage, Value: decimal.NewFromInt(30), CategoryScope: []string{"FUR"}, Active: true},
	}
	for i := range mods {
		require.NoError(t, conn.Create(&mods[i]).Error)
	}
	coat := models.PriceListItem{CategoryCode: "CLOTHING", Name: "Coat", UnitPrice: 1000, Unit: "piece", Active: true}
	fur := models.PriceListItem{CategoryCode: "FUR", Name: "Fur coat", UnitPrice: 5000, Unit: "piece", Active: true}
	require.NoError(t, conn.Create(&coat).Error)
	require.NoError(t, conn.Create(&fur).Error)

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	events := outbox.NewEmitter(outbox.NewRepository(conn), logg, nil)
	reg := prometheus.NewRegistry()

	svc, err := NewService(NewRepository(conn), client, catalogSvc, events, cfg, metrics.NewSessionMetrics(reg), logg)
	require.NoError(t, err)
	return &fixture{svc: svc, db: conn, coat: coat, fur: fur, metrics: reg}
}

func (f *fixture) coatInput(qty string, mods ...pricing.AppliedModifier) ItemInput {
	return ItemInput{
		PriceListItemID:  f.coat.ID,
		Quantity:         decimal.RequireFromString(qty),
		Characteristics:  map[string]string{"color": "black"},
		AppliedModifiers: mods,
	}
}

func (f *fixture) eventCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func assertAggregates(t *testing.T, s *SessionDTO) {
	t.Helper()
	var total int64
	for _, item := range s.Items {
		total += item.TotalPrice
	}
	assert.Equal(t, len(s.Items), s.ItemCount, "item count")
	assert.Equal(t, total, s.TotalAmount, "total amount")
	assert.Equal(t, s.WizardMode.IsActive(), s.State == enums.SessionStateWizardActive, "wizard/state coupling")
}

func addCoat(t *testing.T, f *fixture, s *SessionDTO, qty string, mods ...pricing.AppliedModifier) *SessionDTO {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	s, err = f.svc.AddItem(ctx, s.ID, s.Version, f.coatInput(qty, mods...))
	require.NoError(t, err)
	assertAggregates(t, s)
	return s
}

func TestInitializeIsIdempotentPerOrder(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{DefaultCurrency: "EUR"})
	ctx := context.Background()
	orderID := uuid.New()

	first, err := f.svc.Initialize(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateItemsManager, first.State)
	assert.Equal(t, enums.WizardModeInactive, first.WizardMode)
	assert.Equal(t, int64(1), first.Version)
	assert.Equal(t, "EUR", first.Currency)
	assert.Empty(t, first.Items)
	assertAggregates(t, first)

	second, err := f.svc.Initialize(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventItemSessionStarted))

	_, err = f.svc.Initialize(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemPricesAndReturnsWizardToInactive(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateWizardActive, s.State)
	assert.Equal(t, enums.WizardModeCreate, s.WizardMode)
	assert.Equal(t, int64(2), s.Version)

	s, err = f.svc.AddItem(ctx, s.ID, s.Version, f.coatInput("2", pricing.AppliedModifier{ModifierCode: "DELICATE"}))
	require.NoError(t, err)
	assertAggregates(t, s)
	assert.Equal(t, enums.SessionStateItemsManager, s.State)
	assert.Equal(t, enums.WizardModeInactive, s.WizardMode)
	assert.Nil(t, s.EditingItemID)
	assert.Equal(t, int64(3), s.Version)
	require.Len(t, s.Items, 1)
	assert.Equal(t, int64(2400), s.Items[0].TotalPrice)
	assert.Equal(t, int64(400), s.Items[0].ModifiersTotal)
	assert.Equal(t, "CLOTHING", s.Items[0].CategoryCode)
	assert.Equal(t, "black", s.Items[0].Characteristics["color"])
	assert.False(t, s.CanProceed)

	reloaded, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.TotalAmount, reloaded.TotalAmount)
	assert.True(t, reloaded.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestAddItemRequiresCreateMode(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, s.ID, 0, f.coatInput("1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	after, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Version, after.Version)
	assert.Empty(t, after.Items)
}

func TestStartEditWhileCreatingIsRejected(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	itemID := s.Items[0].ID

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)

	_, err = f.svc.StartEditWizard(ctx, s.ID, itemID, s.Version)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	after, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.WizardModeCreate, after.WizardMode)
	assert.Nil(t, after.EditingItemID)
	assert.Equal(t, s.Version, after.Version)
}

func TestUpdateItemOnlyForEditedItem(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	s = addCoat(t, f, s, "1")
	first, second := s.Items[0].ID, s.Items[1].ID

	s, err = f.svc.StartEditWizard(ctx, s.ID, first, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.WizardModeEdit, s.WizardMode)
	require.NotNil(t, s.EditingItemID)
	assert.Equal(t, first, *s.EditingItemID)

	_, err = f.svc.UpdateItem(ctx, s.ID, second, s.Version, f.coatInput("3"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	s, err = f.svc.UpdateItem(ctx, s.ID, first, s.Version, f.coatInput("3", pricing.AppliedModifier{ModifierCode: "BUTTONS", SelectedValue: decimal.NewFromInt(2)}))
	require.NoError(t, err)
	assertAggregates(t, s)
	assert.Equal(t, enums.WizardModeInactive, s.WizardMode)
	assert.Equal(t, first, s.Items[0].ID)
	assert.Equal(t, int64(3300), s.Items[0].TotalPrice)
	assert.Equal(t, int64(4300), s.TotalAmount)
}

func TestDeleteItemRequiresInactiveWizard(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	s = addCoat(t, f, s, "2")
	target := s.Items[0].ID

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	_, err = f.svc.DeleteItem(ctx, s.ID, target, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	s, err = f.svc.CloseWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	s, err = f.svc.DeleteItem(ctx, s.ID, target, s.Version)
	require.NoError(t, err)
	assertAggregates(t, s)
	assert.Equal(t, 1, s.ItemCount)
	assert.Equal(t, int64(2000), s.TotalAmount)

	_, err = f.svc.DeleteItem(ctx, s.ID, target, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStaleVersionIsRejected(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)

	_, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)

	_, err = f.svc.CloseWizard(ctx, s.ID, s.Version)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	closed, err := f.svc.CloseWizard(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, enums.WizardModeInactive, closed.WizardMode)
}

func TestAddItemRejectsInvalidDefectsAndScope(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)

	input := f.coatInput("1")
	input.Defects = validation.ItemDefects{DetectedStains: []string{"Ink"}, Defects: []string{"worn_fabric"}}
	_, err = f.svc.AddItem(ctx, s.ID, s.Version, input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string][]string)
	require.True(t, ok)
	assert.Contains(t, details, "defects.client_acknowledgment")
	assert.Contains(t, details, "defects.no_guarantee_explanation")

	input.Defects.ClientAcknowledgment = true
	input.Defects.NoGuaranteeExplanation = "fabric is thin"
	s, err = f.svc.AddItem(ctx, s.ID, s.Version, input)
	require.NoError(t, err)
	defects := s.Items[0].Defects
	assert.True(t, defects.HasStains)
	assert.True(t, defects.HasNoGuarantee)
	assert.Equal(t, []string{"ink"}, defects.DetectedStains)
	assert.ElementsMatch(t, []string{validation.RiskHighRiskStain, validation.RiskNoGuarantee, validation.RiskExistingDamage}, defects.RiskFlags)

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, s.ID, s.Version, f.coatInput("1", pricing.AppliedModifier{ModifierCode: "FUR_CARE"}))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.AddItem(ctx, s.ID, s.Version, ItemInput{PriceListItemID: uuid.New(), Quantity: decimal.NewFromInt(1)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.AddItem(ctx, s.ID, s.Version, f.coatInput("0"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestItemLimit(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{MaxItems: 1})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, s.ID, s.Version, f.coatInput("1"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReadinessAndCompletion(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)

	readiness, err := f.svc.CheckReadiness(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, readiness.Ready)
	assert.Contains(t, readiness.Validation.Errors, "items")

	_, err = f.svc.CompleteStage(ctx, s.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	s = addCoat(t, f, s, "2", pricing.AppliedModifier{ModifierCode: "DELICATE"})
	readiness, err = f.svc.CheckReadiness(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, readiness.Ready)
	assert.Equal(t, enums.SessionStateReadyToProceed, readiness.Session.State)
	assert.True(t, readiness.Session.CanProceed)

	s, err = f.svc.CompleteStage(ctx, s.ID, readiness.Session.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateCompleted, s.State)
	assert.NotNil(t, s.CompletedAt)
	assert.True(t, s.CanProceed)
	assert.Equal(t, int64(2400), s.TotalAmount)
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventItemSessionCompleted))

	_, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = f.svc.DeleteItem(ctx, s.ID, s.Items[0].ID, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	assert.Equal(t, float64(1), counterValue(t, f.metrics, "complete_stage", "ok"))
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "start_wizard", "state_conflict"))
}

func TestResetReopensCompletedSession(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	readiness, err := f.svc.CheckReadiness(ctx, s.ID)
	require.NoError(t, err)
	s, err = f.svc.CompleteStage(ctx, s.ID, readiness.Session.Version)
	require.NoError(t, err)
	require.Equal(t, enums.SessionStateCompleted, s.State)

	s, err = f.svc.Reset(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateItemsManager, s.State)
	assert.Equal(t, enums.WizardModeInactive, s.WizardMode)
	assert.Equal(t, 0, s.ItemCount)
	assert.Equal(t, int64(0), s.TotalAmount)
	assert.False(t, s.CanProceed)
	assert.Nil(t, s.CompletedAt)
	assertAggregates(t, s)

	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateWizardActive, s.State)
	assert.Equal(t, float64(1), counterValue(t, f.metrics, "reset", "ok"))
}

func TestMutationAfterReadinessReturnsToManager(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")

	readiness, err := f.svc.CheckReadiness(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, readiness.Ready)

	s, err = f.svc.StartWizard(ctx, s.ID, readiness.Session.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateWizardActive, s.State)
	assert.False(t, s.CanProceed)

	s, err = f.svc.CloseWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateItemsManager, s.State)

	_, err = f.svc.CompleteStage(ctx, s.ID, s.Version)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestValidateFlagsOpenWizard(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")

	res, err := f.svc.Validate(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, res.IsValid)

	_, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	res, err = f.svc.Validate(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "wizard")
}

func TestResetClearsItems(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	s = addCoat(t, f, s, "3")
	s, err = f.svc.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)

	s, err = f.svc.Reset(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateItemsManager, s.State)
	assert.Equal(t, enums.WizardModeInactive, s.WizardMode)
	assert.Equal(t, 0, s.ItemCount)
	assert.Equal(t, int64(0), s.TotalAmount)
	assert.False(t, s.CanProceed)
	assert.Empty(t, s.Items)
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventItemSessionReset))

	var rows int64
	require.NoError(t, f.db.Model(&models.SessionItem{}).Where("session_id = ?", s.ID).Count(&rows).Error)
	assert.Zero(t, rows)
}

func TestTerminateDeletesSession(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")

	require.NoError(t, f.svc.Terminate(ctx, s.ID))
	_, err = f.svc.Get(ctx, s.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, int64(1), f.eventCount(t, enums.EventItemSessionTerminated))

	var rows int64
	require.NoError(t, f.db.Model(&models.SessionItem{}).Where("session_id = ?", s.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	err = f.svc.Terminate(ctx, s.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = f.svc.Get(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSessionNotInitialized))
}

func TestSynchronizeRepairsDrift(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")

	require.NoError(t, f.db.Model(&models.ItemSession{}).Where("id = ?", s.ID).
		Updates(map[string]any{"item_count": 7, "total_amount_cents": 1}).Error)

	synced, err := f.svc.Synchronize(ctx, s.ID)
	require.NoError(t, err)
	assertAggregates(t, synced)
	assert.Equal(t, s.Version+1, synced.Version)

	again, err := f.svc.Synchronize(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, synced.Version, again.Version)
}

func TestPreviewPriceUsesPersistedTotals(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "2", pricing.AppliedModifier{ModifierCode: "DELICATE"})

	res, err := f.svc.PreviewPrice(ctx, s.ID, pricing.Options{
		Expedited:       true,
		ExpeditePercent: decimal.NewFromInt(50),
		DiscountPercent: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.BasePrice)
	assert.Equal(t, int64(400), res.ModifiersTotal)
	assert.Equal(t, int64(1000), res.UrgencyAmount)
	assert.Equal(t, int64(200), res.DiscountAmount)
	assert.Equal(t, int64(3200), res.FinalPrice)
}

func sumImpacts(impacts []pricing.ModifierImpact) int64 {
	var sum int64
	for _, impact := range impacts {
		sum += impact.Amount
	}
	return sum
}

func TestPreviewPriceCarriesModifierBreakdown(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "1")
	s = addCoat(t, f, s, "2", pricing.AppliedModifier{ModifierCode: "DELICATE"}, pricing.AppliedModifier{ModifierCode: "BUTTONS", SelectedValue: decimal.NewFromInt(2)})
	require.Len(t, s.Items[1].ModifiersImpact, 2)

	opts := pricing.Options{Expedited: true, ExpeditePercent: decimal.NewFromInt(50), DiscountPercent: decimal.NewFromInt(10)}
	res, err := f.svc.PreviewPrice(ctx, s.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(700), res.ModifiersTotal)
	require.Len(t, res.ModifiersImpact, 2)
	assert.Equal(t, res.ModifiersTotal, sumImpacts(res.ModifiersImpact))
	assert.Equal(t, "DELICATE", res.ModifiersImpact[0].ModifierCode)
	assert.Equal(t, int64(400), res.ModifiersImpact[0].Amount)
	assert.Equal(t, int64(300), res.ModifiersImpact[1].Amount)
	for _, impact := range res.ModifiersImpact {
		assert.Equal(t, 1, impact.LineIndex)
	}
	assert.Empty(t, res.Lines[0].ModifiersImpact)

	// rows priced before the breakdown was stored are repriced from the catalog
	require.NoError(t, f.db.Exec("UPDATE session_items SET modifiers_impact = NULL WHERE session_id = ?", s.ID).Error)
	rebuilt, err := f.svc.PreviewPrice(ctx, s.ID, opts)
	require.NoError(t, err)
	require.Len(t, rebuilt.ModifiersImpact, 2)
	for i, impact := range rebuilt.ModifiersImpact {
		assert.Equal(t, res.ModifiersImpact[i].ModifierCode, impact.ModifierCode)
		assert.Equal(t, res.ModifiersImpact[i].Amount, impact.Amount)
		assert.Equal(t, 1, impact.LineIndex)
	}
	assert.Equal(t, res.FinalPrice, rebuilt.FinalPrice)
}

func TestPreviewPriceKeepsStoredTotalsWhenCatalogChanged(t *testing.T) {
	f := newFixture(t, config.SessionsConfig{})
	ctx := context.Background()
	s, err := f.svc.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	s = addCoat(t, f, s, "2", pricing.AppliedModifier{ModifierCode: "DELICATE"})

	require.NoError(t, f.db.Exec("UPDATE session_items SET modifiers_impact = NULL WHERE session_id = ?", s.ID).Error)
	require.NoError(t, f.db.Model(&models.Modifier{}).Where("code = ?", "DELICATE").Update("value", decimal.NewFromInt(50)).Error)

	res, err := f.svc.PreviewPrice(ctx, s.ID, pricing.Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(2400), res.FinalPrice)
	assert.Equal(t, int64(400), res.ModifiersTotal)
	assert.Empty(t, res.ModifiersImpact)
}

func counterValue(t *testing.T, reg *prometheus.Registry, op, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "orderflow_session_operations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == op && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
