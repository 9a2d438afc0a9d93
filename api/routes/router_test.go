package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/internal/catalog"
	"github.com/angelmondragon/orderflow-backend/internal/itemsessions"
	"github.com/angelmondragon/orderflow-backend/internal/pricing"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/sessionclient"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key], _ = value.(string)
	return nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string { return scope + ":" + id }

type harness struct {
	server *httptest.Server
	client *sessionclient.Client
	coat   models.PriceListItem
	store  *memoryIdempotency
}

func newHarness(t *testing.T, requireIfMatch bool, redisErr error) *harness {
	t.Helper()
	dbClient := dbtest.Client(t)
	conn := dbClient.DB()

	require.NoError(t, conn.Create(&models.Modifier{Code: "DELICATE", Name: "Delicate", Type: enums.ModifierTypePercentage, Value: decimal.NewFromInt(20), Active: true}).Error)
	coat := models.PriceListItem{CategoryCode: "CLOTHING", Name: "Coat", UnitPrice: 1000, Unit: "piece", Active: true}
	require.NoError(t, conn.Create(&coat).Error)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	sessions, err := itemsessions.NewService(
		itemsessions.NewRepository(conn),
		dbClient,
		catalogSvc,
		outbox.NewEmitter(outbox.NewRepository(conn), logg, nil),
		config.SessionsConfig{MaxItems: 10, DefaultCurrency: "UAH"},
		metrics.NewSessionMetrics(reg),
		logg,
	)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.CORSOrigins = []string{"http://localhost:3000"}
	cfg.FeatureFlags.RequireIfMatch = requireIfMatch

	store := &memoryIdempotency{data: map[string]string{}}
	handler := NewRouter(cfg, logg, Deps{
		DB:               stubPinger{},
		Redis:            stubPinger{err: redisErr},
		IdempotencyStore: store,
		Sessions:         sessions,
		Catalog:          catalogSvc,
		Metrics:          metrics.NewHTTPMetrics(reg),
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := sessionclient.NewClient(srv.URL+"/api/v1", sessionclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return &harness{server: srv, client: client, coat: coat, store: store}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload.Error.Code
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()

	s, err := h.client.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateItemsManager, s.State)

	s, err = h.client.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.WizardModeCreate, s.WizardMode)

	s, err = h.client.AddItem(ctx, s.ID, s.Version, itemsessions.ItemInput{
		PriceListItemID:  h.coat.ID,
		Quantity:         decimal.NewFromInt(2),
		AppliedModifiers: []pricing.AppliedModifier{{ModifierCode: "DELICATE"}},
	})
	require.NoError(t, err)
	require.Len(t, s.Items, 1)
	assert.Equal(t, int64(2400), s.TotalAmount)

	ready, err := h.client.CheckReadiness(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, ready.Ready)
	require.NotNil(t, ready.Session)

	done, err := h.client.CompleteStage(ctx, s.ID, ready.Session.Version)
	require.NoError(t, err)
	assert.Equal(t, enums.SessionStateCompleted, done.State)
	assert.NotNil(t, done.CompletedAt)

	_, err = h.client.StartWizard(ctx, s.ID, done.Version)
	require.Error(t, err)
	se, ok := sessionclient.ServerErrorOf(err)
	require.True(t, ok)
	assert.Equal(t, pkgerrors.CodeStateConflict, se.Code)

	require.NoError(t, h.client.Terminate(ctx, s.ID))
	_, err = h.client.Get(ctx, s.ID)
	se, ok = sessionclient.ServerErrorOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestStaleVersionIsConflict(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx := context.Background()

	s, err := h.client.Initialize(ctx, uuid.New())
	require.NoError(t, err)
	_, err = h.client.StartWizard(ctx, s.ID, s.Version)
	require.NoError(t, err)

	_, err = h.client.CloseWizard(ctx, s.ID, s.Version)
	se, ok := sessionclient.ServerErrorOf(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, se.Status)
	assert.Equal(t, pkgerrors.CodeConflict, se.Code)
}

func TestSessionResponsesCarryETag(t *testing.T) {
	h := newHarness(t, false, nil)
	resp := h.do(t, http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/item-session", "", map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestRequireIfMatch(t *testing.T) {
	h := newHarness(t, true, nil)
	s, err := h.client.Initialize(context.Background(), uuid.New())
	require.NoError(t, err)

	resp := h.do(t, http.MethodPost, "/api/v1/item-sessions/"+s.ID.String()+"/wizard", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, resp))

	resp = h.do(t, http.MethodPost, "/api/v1/item-sessions/"+s.ID.String()+"/wizard", "", map[string]string{"If-Match": `"1"`})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))
}

func TestInvalidPathParams(t *testing.T) {
	h := newHarness(t, false, nil)
	resp := h.do(t, http.MethodGet, "/api/v1/item-sessions/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/api/v1/item-sessions/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInitializeReplaysIdempotencyKey(t *testing.T) {
	h := newHarness(t, false, nil)
	path := "/api/v1/orders/" + uuid.NewString() + "/item-session"

	first := h.do(t, http.MethodPost, path, "", map[string]string{"Idempotency-Key": "same"})
	require.Equal(t, http.StatusOK, first.StatusCode)
	firstBody, err := io.ReadAll(first.Body)
	require.NoError(t, err)

	second := h.do(t, http.MethodPost, path, "", map[string]string{"Idempotency-Key": "same"})
	require.Equal(t, http.StatusOK, second.StatusCode)
	secondBody, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstBody), string(secondBody))
	assert.Empty(t, first.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, first.Header.Get("ETag"), second.Header.Get("ETag"))
	assert.Len(t, h.store.data, 1)

	missing := h.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestCatalogAndQuote(t *testing.T) {
	h := newHarness(t, false, nil)

	resp := h.do(t, http.MethodGet, "/api/v1/catalog/price-list?category=CLOTHING", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Data []catalog.PriceListItemDTO `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)

	resp = h.do(t, http.MethodGet, "/api/v1/catalog/modifiers?category=CLOTHING", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"lines":[{"price_list_item_id":"` + h.coat.ID.String() + `","quantity":"2","applied_modifiers":[{"modifier_code":"DELICATE","selected_value":"0"}]}],"discount_percent":"10"}`
	resp = h.do(t, http.MethodPost, "/api/v1/pricing/quote", body, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quote struct {
		Data pricing.OrderResult `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&quote))
	assert.Equal(t, int64(2400), quote.Data.ItemsTotal)
	assert.Equal(t, int64(2000), quote.Data.BasePrice)
	assert.Equal(t, int64(200), quote.Data.DiscountAmount)
	assert.Equal(t, int64(2200), quote.Data.FinalPrice)

	bad := `{"lines":[{"price_list_item_id":"` + h.coat.ID.String() + `","quantity":"1","applied_modifiers":[{"modifier_code":"NOPE"}]}]}`
	resp = h.do(t, http.MethodPost, "/api/v1/pricing/quote", bad, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/api/v1/pricing/quote", `{"lines":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t, false, nil)
	resp := h.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "orderflow_http_request_duration_seconds")

	down := newHarness(t, false, errors.New("redis down"))
	resp = down.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, string(pkgerrors.CodeDependency), errorCode(t, resp))
}
