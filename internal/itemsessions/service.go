package itemsessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/internal/validation"
	"github.com/angelmondragon/orderflow-backend/internal/wizard"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	dbpkg "github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox/payloads"
)

const serviceName = "item-sessions"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	GetPriceListItem(ctx context.Context, id uuid.UUID) (*catalog.PriceListItemDTO, error)
	ModifierCatalog(ctx context.Context, categoryCode string) (pricing.Catalog, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.Event) error
}

// Service is the authoritative store for item collection sessions. Mutations
// take the caller's last seen version; zero skips the check.
type Service interface {
	Initialize(ctx context.Context, orderID uuid.UUID) (*SessionDTO, error)
	Get(ctx context.Context, sessionID uuid.UUID) (*SessionDTO, error)
	Synchronize(ctx context.Context, sessionID uuid.UUID) (*SessionDTO, error)
	AddItem(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, input ItemInput) (*SessionDTO, error)
	UpdateItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64, input ItemInput) (*SessionDTO, error)
	DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	StartWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	StartEditWizard(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	CloseWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	Reset(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	Terminate(ctx context.Context, sessionID uuid.UUID) error
	Validate(ctx context.Context, sessionID uuid.UUID) (*validation.Result, error)
	CheckReadiness(ctx context.Context, sessionID uuid.UUID) (*ReadinessDTO, error)
	CompleteStage(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (*SessionDTO, error)
	PreviewPrice(ctx context.Context, sessionID uuid.UUID, opts pricing.Options) (*pricing.OrderResult, error)
}

type service struct {
	repo    SessionRepository
	tx      txRunner
	catalog catalogReader
	events  eventEmitter
	cfg     config.SessionsConfig
	metrics *metrics.SessionMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the session service backed by the provided stack.
func NewService(repo SessionRepository, tx txRunner, catalog catalogReader, events eventEmitter, cfg config.SessionsConfig, m *metrics.SessionMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "UAH"
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalog,
		events:  events,
		cfg:     cfg,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Initialize returns the order's session, creating it on first use.
func (s *service) Initialize(ctx context.Context, orderID uuid.UUID) (dto *SessionDTO, err error) {
	defer s.observe("initialize", time.Now(), &err)
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	existing, err := s.repo.FindByOrderID(ctx, orderID)
	if err == nil {
		return FromModel(existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item session")
	}

	session := &models.ItemSession{
		OrderID:    orderID,
		State:      enums.SessionStateItemsManager,
		WizardMode: enums.WizardModeInactive,
		Currency:   s.cfg.DefaultCurrency,
		Version:    1,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, session); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, s.event(ctx, enums.EventItemSessionStarted, session, payloads.ItemSessionStartedEvent{
			SessionID: session.ID,
			OrderID:   session.OrderID,
			StartedAt: s.now(),
		}))
	})
	if err != nil {
		if isOrderSessionRace(err) {
			existing, findErr := s.repo.FindByOrderID(ctx, orderID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load item session")
			}
			return FromModel(existing), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create item session")
	}
	session.Items = nil
	s.info(ctx, session, "item session created")
	return FromModel(session), nil
}

func (s *service) Get(ctx context.Context, sessionID uuid.UUID) (dto *SessionDTO, err error) {
	defer s.observe("get", time.Now(), &err)
	session, err := s.load(ctx, s.repo, sessionID, false)
	if err != nil {
		return nil, err
	}
	return FromModel(session), nil
}

// Synchronize repairs aggregate drift and returns the authoritative record.
func (s *service) Synchronize(ctx context.Context, sessionID uuid.UUID) (dto *SessionDTO, err error) {
	defer s.observe("synchronize", time.Now(), &err)
	var out *models.ItemSession
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, sessionID, true)
		if err != nil {
			return err
		}
		before := *session
		recompute(session)
		if before.ItemCount != session.ItemCount || before.TotalAmount != session.TotalAmount || before.CanProceed != session.CanProceed {
			session.Version++
			if err := repo.Save(ctx, session); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item session")
			}
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

func (s *service) AddItem(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, input ItemInput) (dto *SessionDTO, err error) {
	defer s.observe("add_item", time.Now(), &err)
	priced, err := s.priceItem(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, expectedVersion, func(repo SessionRepository, session *models.ItemSession) error {
		state := wizard.FromSession(session.WizardMode, session.EditingItemID)
		next, err := state.CommitCreate()
		if err != nil {
			return wizardError(err)
		}
		if s.cfg.MaxItems > 0 && len(session.Items) >= s.cfg.MaxItems {
			return pkgerrors.New(pkgerrors.CodeValidation, "session item limit reached").
				WithDetails(map[string]any{"max_items": s.cfg.MaxItems})
		}
		priced.SessionID = session.ID
		priced.Position = nextPosition(session.Items)
		if err := repo.CreateItem(ctx, priced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session item")
		}
		session.Items = append(session.Items, *priced)
		applyWizard(session, next)
		return nil
	})
}

func (s *service) UpdateItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64, input ItemInput) (dto *SessionDTO, err error) {
	defer s.observe("update_item", time.Now(), &err)
	priced, err := s.priceItem(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, expectedVersion, func(repo SessionRepository, session *models.ItemSession) error {
		state := wizard.FromSession(session.WizardMode, session.EditingItemID)
		next, err := state.CommitEdit(itemID)
		if err != nil {
			return wizardError(err)
		}
		idx := indexOfItem(session.Items, itemID)
		if idx < 0 {
			return itemNotFound(itemID)
		}
		current := session.Items[idx]
		priced.ID = current.ID
		priced.SessionID = current.SessionID
		priced.Position = current.Position
		priced.CreatedAt = current.CreatedAt
		if err := repo.SaveItem(ctx, priced); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session item")
		}
		session.Items[idx] = *priced
		applyWizard(session, next)
		return nil
	})
}

func (s *service) DeleteItem(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("delete_item", time.Now(), &err)
	return s.mutate(ctx, sessionID, expectedVersion, func(repo SessionRepository, session *models.ItemSession) error {
		if wizard.FromSession(session.WizardMode, session.EditingItemID).Active() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "close the item wizard before deleting items")
		}
		idx := indexOfItem(session.Items, itemID)
		if idx < 0 {
			return itemNotFound(itemID)
		}
		if err := repo.DeleteItem(ctx, session.ID, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return itemNotFound(itemID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete session item")
		}
		session.Items = append(session.Items[:idx], session.Items[idx+1:]...)
		return nil
	})
}

func (s *service) StartWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("start_wizard", time.Now(), &err)
	return s.mutate(ctx, sessionID, expectedVersion, func(_ SessionRepository, session *models.ItemSession) error {
		next, err := wizard.FromSession(session.WizardMode, session.EditingItemID).StartNew()
		if err != nil {
			return wizardError(err)
		}
		applyWizard(session, next)
		return nil
	})
}

func (s *service) StartEditWizard(ctx context.Context, sessionID, itemID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("start_edit_wizard", time.Now(), &err)
	return s.mutate(ctx, sessionID, expectedVersion, func(_ SessionRepository, session *models.ItemSession) error {
		if indexOfItem(session.Items, itemID) < 0 {
			return itemNotFound(itemID)
		}
		next, err := wizard.FromSession(session.WizardMode, session.EditingItemID).StartEdit(itemID)
		if err != nil {
			return wizardError(err)
		}
		applyWizard(session, next)
		return nil
	})
}

func (s *service) CloseWizard(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("close_wizard", time.Now(), &err)
	return s.mutate(ctx, sessionID, expectedVersion, func(_ SessionRepository, session *models.ItemSession) error {
		applyWizard(session, wizard.FromSession(session.WizardMode, session.EditingItemID).Close())
		return nil
	})
}

// Reset discards every item and returns the session to an empty manager
// screen. It also reopens a completed session.
func (s *service) Reset(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("reset", time.Now(), &err)
	return s.transition(ctx, sessionID, expectedVersion, enums.SessionState.AcceptsReset, func(tx *gorm.DB, repo SessionRepository, session *models.ItemSession) error {
		discarded := len(session.Items)
		if err := repo.DeleteItems(ctx, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete session items")
		}
		session.Items = nil
		applyWizard(session, wizard.Inactive())
		session.State = enums.SessionStateItemsManager
		session.CompletedAt = nil
		return s.events.Emit(ctx, tx, s.event(ctx, enums.EventItemSessionReset, session, payloads.ItemSessionResetEvent{
			SessionID:      session.ID,
			OrderID:        session.OrderID,
			DiscardedItems: discarded,
		}))
	})
}

// Terminate releases the session irrevocably.
func (s *service) Terminate(ctx context.Context, sessionID uuid.UUID) (err error) {
	defer s.observe("terminate", time.Now(), &err)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, sessionID, true)
		if err != nil {
			return err
		}
		if err := s.events.Emit(ctx, tx, s.event(ctx, enums.EventItemSessionTerminated, session, payloads.ItemSessionTerminatedEvent{
			SessionID:    session.ID,
			OrderID:      session.OrderID,
			TerminatedAt: s.now(),
		})); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit terminated event")
		}
		if err := repo.Delete(ctx, session.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete item session")
		}
		s.info(ctx, session, "item session terminated")
		return nil
	})
}

// Validate runs the item stage checks without changing the session.
func (s *service) Validate(ctx context.Context, sessionID uuid.UUID) (res *validation.Result, err error) {
	defer s.observe("validate", time.Now(), &err)
	session, err := s.load(ctx, s.repo, sessionID, false)
	if err != nil {
		return nil, err
	}
	out := validateSession(session)
	return &out, nil
}

// CheckReadiness moves a valid session to READY_TO_PROCEED and an invalid
// ready session back to the manager screen.
func (s *service) CheckReadiness(ctx context.Context, sessionID uuid.UUID) (dto *ReadinessDTO, err error) {
	defer s.observe("check_readiness", time.Now(), &err)
	var out ReadinessDTO
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, sessionID, true)
		if err != nil {
			return err
		}
		out.Validation = validateSession(session)
		out.Ready = out.Validation.IsValid

		changed := false
		switch {
		case session.State == enums.SessionStateCompleted:
			out.Ready = true
		case out.Ready && session.State == enums.SessionStateItemsManager:
			session.State = enums.SessionStateReadyToProceed
			changed = true
		case !out.Ready && session.State == enums.SessionStateReadyToProceed:
			session.State = enums.SessionStateItemsManager
			changed = true
		}
		if changed {
			recompute(session)
			session.Version++
			if err := repo.Save(ctx, session); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item session")
			}
		}
		out.Session = FromModel(session)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteStage finalizes a ready session and queues the completion event in
// the same transaction.
func (s *service) CompleteStage(ctx context.Context, sessionID uuid.UUID, expectedVersion int64) (dto *SessionDTO, err error) {
	defer s.observe("complete_stage", time.Now(), &err)
	var out *models.ItemSession
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, sessionID, true)
		if err != nil {
			return err
		}
		if err := checkVersion(session, expectedVersion); err != nil {
			return err
		}
		if session.State != enums.SessionStateReadyToProceed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "session is not ready to proceed").
				WithDetails(map[string]any{"state": session.State})
		}
		if res := validateSession(session); !res.IsValid {
			return pkgerrors.New(pkgerrors.CodeValidation, "item session is invalid").WithDetails(res.Errors)
		}

		completedAt := s.now()
		session.State = enums.SessionStateCompleted
		session.CompletedAt = &completedAt
		recompute(session)
		session.Version++
		if err := repo.Save(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item session")
		}
		if err := s.events.Emit(ctx, tx, s.event(ctx, enums.EventItemSessionCompleted, session, payloads.ItemSessionCompletedEvent{
			SessionID:   session.ID,
			OrderID:     session.OrderID,
			ItemCount:   session.ItemCount,
			TotalAmount: session.TotalAmount,
			Currency:    session.Currency,
			Version:     session.Version,
			CompletedAt: completedAt,
		})); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit completed event")
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.info(ctx, out, "item session completed")
	return FromModel(out), nil
}

// PreviewPrice applies order-level overlays to the persisted item totals and
// their modifier breakdown.
func (s *service) PreviewPrice(ctx context.Context, sessionID uuid.UUID, opts pricing.Options) (res *pricing.OrderResult, err error) {
	defer s.observe("preview_price", time.Now(), &err)
	session, err := s.load(ctx, s.repo, sessionID, false)
	if err != nil {
		return nil, err
	}
	catalogs := map[string]pricing.Catalog{}
	lines := make([]pricing.LineResult, 0, len(session.Items))
	for idx, item := range session.Items {
		line := FromItemModel(item).PricedLine(idx)
		if len(line.ModifiersImpact) == 0 && len(item.AppliedModifiers) > 0 {
			line = s.rebuildBreakdown(ctx, idx, item, line, catalogs)
		}
		lines = append(lines, line)
	}
	out := pricing.Summarize(lines, opts)
	return &out, nil
}

// rebuildBreakdown reprices an item stored without its modifier breakdown.
// Persisted totals stay authoritative: the rebuilt impacts are used only when
// they reproduce the stored item total.
func (s *service) rebuildBreakdown(ctx context.Context, idx int, item models.SessionItem, stored pricing.LineResult, catalogs map[string]pricing.Catalog) pricing.LineResult {
	logCtx := s.logg.WithFields(ctx, map[string]any{"item_id": item.ID.String(), "category_code": item.CategoryCode})
	mods, ok := catalogs[item.CategoryCode]
	if !ok {
		loaded, err := s.catalog.ModifierCatalog(ctx, item.CategoryCode)
		if err != nil {
			s.logg.Warn(logCtx, fmt.Sprintf("modifier catalog unavailable for price preview: %v", err))
			return stored
		}
		catalogs[item.CategoryCode] = loaded
		mods = loaded
	}
	rebuilt, err := pricing.ComputeLine(FromItemModel(item).Line(), mods)
	if err != nil || rebuilt.Total != stored.Total {
		s.logg.Warn(logCtx, "modifier catalog changed since the item was priced; breakdown omitted")
		return stored
	}
	for i := range rebuilt.ModifiersImpact {
		rebuilt.ModifiersImpact[i].LineIndex = idx
	}
	return rebuilt
}

type mutation func(repo SessionRepository, session *models.ItemSession) error

type txMutation func(tx *gorm.DB, repo SessionRepository, session *models.ItemSession) error

func (s *service) mutate(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, fn mutation) (*SessionDTO, error) {
	return s.mutateWithTx(ctx, sessionID, expectedVersion, func(_ *gorm.DB, repo SessionRepository, session *models.ItemSession) error {
		return fn(repo, session)
	})
}

// mutateWithTx locks the session, enforces the version and lifecycle guards,
// applies fn and persists the recomputed aggregates with a bumped version.
func (s *service) mutateWithTx(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, fn txMutation) (*SessionDTO, error) {
	return s.transition(ctx, sessionID, expectedVersion, enums.SessionState.AcceptsMutations, fn)
}

func (s *service) transition(ctx context.Context, sessionID uuid.UUID, expectedVersion int64, accepts func(enums.SessionState) bool, fn txMutation) (*SessionDTO, error) {
	var out *models.ItemSession
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		session, err := s.load(ctx, repo, sessionID, true)
		if err != nil {
			return err
		}
		if err := checkVersion(session, expectedVersion); err != nil {
			return err
		}
		if !accepts(session.State) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "session no longer accepts changes").
				WithDetails(map[string]any{"state": session.State})
		}
		if err := fn(tx, repo, session); err != nil {
			return err
		}
		if session.State == enums.SessionStateReadyToProceed {
			session.State = enums.SessionStateItemsManager
		}
		if session.WizardMode.IsActive() {
			session.State = enums.SessionStateWizardActive
		} else if session.State == enums.SessionStateWizardActive {
			session.State = enums.SessionStateItemsManager
		}
		recompute(session)
		session.Version++
		if err := repo.Save(ctx, session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save item session")
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return FromModel(out), nil
}

func (s *service) load(ctx context.Context, repo SessionRepository, sessionID uuid.UUID, lock bool) (*models.ItemSession, error) {
	if sessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeSessionNotInitialized, "session id is required")
	}
	var (
		session *models.ItemSession
		err     error
	)
	if lock {
		session, err = repo.FindByIDForUpdate(ctx, sessionID)
	} else {
		session, err = repo.FindByID(ctx, sessionID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item session not found").
				WithDetails(map[string]any{"session_id": sessionID.String()})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item session")
	}
	return session, nil
}

// priceItem resolves the price list entry, derives and validates the defect
// section and prices the line against the modifier catalog.
func (s *service) priceItem(ctx context.Context, input ItemInput) (*models.SessionItem, error) {
	if input.PriceListItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string][]string{"price_list_item_id": {"is required"}})
	}
	if !input.Quantity.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string][]string{"quantity": {"must be greater than 0"}})
	}

	defects := validation.DeriveItemDefects(input.Defects)
	if res := validation.ValidateItemDefects(defects); !res.IsValid {
		details := validation.Valid()
		details.Merge("defects", res)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item defects are invalid").WithDetails(details.Errors)
	}

	entry, err := s.catalog.GetPriceListItem(ctx, input.PriceListItemID)
	if err != nil {
		return nil, err
	}
	modifiers, err := s.catalog.ModifierCatalog(ctx, entry.CategoryCode)
	if err != nil {
		return nil, err
	}

	applied := make([]pricing.AppliedModifier, len(input.AppliedModifiers))
	copy(applied, input.AppliedModifiers)
	line, err := pricing.ComputeLine(pricing.Line{
		CategoryCode: entry.CategoryCode,
		UnitPrice:    entry.UnitPrice,
		Quantity:     input.Quantity,
		Modifiers:    applied,
	}, modifiers)
	if err != nil {
		return nil, pricingError(err)
	}

	item := &models.SessionItem{
		PriceListItemID:  entry.ID,
		CategoryCode:     entry.CategoryCode,
		Name:             entry.Name,
		Quantity:         input.Quantity,
		UnitPrice:        entry.UnitPrice,
		Characteristics:  input.Characteristics.Clone(),
		AppliedModifiers: toAppliedModifiers(applied),
		ModifiersImpact:  toModifierImpacts(line.ModifiersImpact),
		ModifiersTotal:   line.ModifiersTotal,
		TotalPrice:       line.Total,
	}
	applyDefects(item, defects)
	return item, nil
}

func (s *service) event(ctx context.Context, eventType enums.OutboxEventType, session *models.ItemSession, data any) outbox.Event {
	orderID := session.OrderID
	return outbox.Event{
		Type:        eventType,
		Aggregate:   enums.AggregateItemSession,
		AggregateID: session.ID,
		Source: &outbox.Source{
			Service:   serviceName,
			RequestID: logger.RequestIDFromContext(ctx),
			OrderID:   &orderID,
		},
		Data:       data,
		OccurredAt: s.now(),
	}
}

func (s *service) observe(op string, started time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	s.metrics.Observe(op, started, e)
}

func (s *service) info(ctx context.Context, session *models.ItemSession, msg string) {
	if s.logg == nil || session == nil {
		return
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id": session.ID.String(),
		"order_id":   session.OrderID.String(),
		"version":    session.Version,
		"item_count": session.ItemCount,
	})
	s.logg.Info(logCtx, msg)
}

// recompute keeps the aggregate columns consistent with the item rows.
func recompute(session *models.ItemSession) {
	var total int64
	for _, item := range session.Items {
		total += item.TotalPrice
	}
	session.ItemCount = len(session.Items)
	session.TotalAmount = total
	session.CanProceed = session.State == enums.SessionStateReadyToProceed || session.State == enums.SessionStateCompleted
}

func validateSession(session *models.ItemSession) validation.Result {
	snapshots := make([]validation.ItemSnapshot, 0, len(session.Items))
	for _, item := range session.Items {
		snapshots = append(snapshots, FromItemModel(item).Snapshot())
	}
	res := validation.ValidateItems(snapshots)
	if session.WizardMode.IsActive() {
		res.Add("wizard", "item wizard must be closed")
	}
	return res
}

func checkVersion(session *models.ItemSession, expected int64) error {
	if expected == 0 || expected == session.Version {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "item session was modified concurrently").
		WithDetails(map[string]any{"expected_version": expected, "current_version": session.Version})
}

func applyWizard(session *models.ItemSession, state wizard.State) {
	session.WizardMode = state.Mode
	session.EditingItemID = nil
	if state.EditingItemID != nil {
		id := *state.EditingItemID
		session.EditingItemID = &id
	}
}

func indexOfItem(items []models.SessionItem, id uuid.UUID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func nextPosition(items []models.SessionItem) int {
	highest := 0
	for _, item := range items {
		if item.Position > highest {
			highest = item.Position
		}
	}
	return highest + 1
}

func itemNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "session item not found").
		WithDetails(map[string]any{"item_id": id.String()})
}

func wizardError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error())
}

func pricingError(err error) error {
	switch {
	case errors.Is(err, pricing.ErrUnknownModifier),
		errors.Is(err, pricing.ErrModifierScope),
		errors.Is(err, pricing.ErrInvalidQuantity),
		errors.Is(err, pricing.ErrNegativeUnitPrice):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "item cannot be priced").
			WithDetails(map[string][]string{"applied_modifiers": {err.Error()}})
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "price item")
	}
}

func isOrderSessionRace(err error) bool {
	return dbpkg.IsUniqueViolation(err, "ux_item_sessions_order") ||
		dbpkg.IsUniqueViolation(err, "item_sessions.order_id")
}
