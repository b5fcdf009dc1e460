package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxidispatch/config"
	"taxidispatch/pkg/logger"
	"taxidispatch/pkg/metrics"
	"taxidispatch/pkg/models"
	"taxidispatch/service"
	"taxidispatch/storage/memory"
)

const adminToken = "secret"

type inlineRunner struct{}

func (inlineRunner) Go(_ string, fn func(ctx context.Context) error) {
	_ = fn(context.Background())
}

type apiFixture struct {
	router *gin.Engine
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := config.Config{AdminAPIToken: adminToken}
	svc := service.New(service.Options{
		Storage:  memory.New(),
		Settings: config.NewSettings(cfg),
		Tasks:    inlineRunner{},
		Metrics:  metrics.New(reg),
		Log:      logger.NewNop(),
	})
	return &apiFixture{router: NewRouter(cfg, svc, reg, logger.NewNop())}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(headerAdminToken, adminToken)
		req.Header.Set(headerAdminID, "42")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["detail"]
}

func initData(id int64, name string) string {
	user, _ := json.Marshal(map[string]any{"id": id, "first_name": name})
	return url.Values{"user": {string(user)}, "auth_date": {"1700000000"}}.Encode()
}

// registerDriver creates a driver through the join flow and finishes
// registration with an administrative patch.
func (f *apiFixture) registerDriver(t *testing.T, svc service.IServiceManager, telegramID int64) *models.Driver {
	t.Helper()
	d, err := svc.Driver().OnJoin(context.Background(), models.Profile{TelegramID: telegramID, FirstName: "Ivan"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPatch, "/api/admin/drivers/"+d.ID, map[string]string{
		"car_brand": "Kia", "car_model": "Rio", "car_color": "Black", "car_plate": "x777xx",
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[*models.Driver](t, rec)
}

func TestRoot(t *testing.T) {
	f := newAPI(t)
	rec := f.do(t, http.MethodGet, "/api/", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Taxi Service API", decode[map[string]string](t, rec)["message"])
}

func TestClientOrderFlow(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/client/auth", map[string]string{"init_data": initData(900, "Anna")}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	client := decode[models.Client](t, rec)
	assert.Equal(t, int64(900), client.TelegramID)
	assert.Equal(t, "Anna", client.FirstName)

	order := map[string]string{"address_from": "Lenina 1", "address_to": "Airport"}
	rec = f.do(t, http.MethodPost, "/api/client/order?telegram_id=900", order, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrPhoneRequired.Error(), detail(t, rec))

	rec = f.do(t, http.MethodPost, "/api/client/update-phone", map[string]any{"telegram_id": "900", "phone": "79001234567"}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "+79001234567", decode[models.Client](t, rec).Phone)

	rec = f.do(t, http.MethodPost, "/api/client/order?telegram_id=900", order, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[models.Order](t, rec)
	assert.Equal(t, models.OrderStatusNew, created.Status)

	rec = f.do(t, http.MethodPost, "/api/client/order?telegram_id=900", order, false)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/client/order/active?telegram_id=900", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decode[models.Order](t, rec).ID)

	rec = f.do(t, http.MethodPost, "/api/client/order/"+created.ID+"/cancel?telegram_id=901", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/client/order/"+created.ID+"/cancel?telegram_id=900", nil, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/client/order/"+created.ID+"/cancel?telegram_id=900", nil, false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/client/order/active?telegram_id=900", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/client/orders/history?telegram_id=900", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]models.Order](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusCancelled, history[0].Status)
}

func TestClientRequestValidation(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"missing telegram id", http.MethodGet, "/api/client/order/active", nil},
		{"non numeric telegram id", http.MethodGet, "/api/client/orders/history?telegram_id=abc", nil},
		{"bad init data", http.MethodPost, "/api/client/auth", map[string]string{"init_data": "user=%7Bbroken"}},
		{"missing init data", http.MethodPost, "/api/client/auth", map[string]string{}},
		{"empty phone", http.MethodPost, "/api/client/update-phone", map[string]any{"telegram_id": 900, "phone": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body, false)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, detail(t, rec))
		})
	}
}

func TestAdminTokenRequired(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/admin/stats", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/stats", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[service.Stats](t, rec)
	assert.Zero(t, stats.Orders.Total)
}

func TestAdminRejectsUnknownEnums(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/api/admin/orders?status=TAKEN", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/drivers?status=BUSY", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/orders?limit=-1", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/admin/drivers/unknown", map[string]string{"status": "SLEEPING"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/api/admin/drivers/unknown", map[string]string{"status": "blocked"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminAssignAndComplete(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.Config{AdminAPIToken: adminToken}
	svc := service.New(service.Options{
		Storage:  memory.New(),
		Settings: config.NewSettings(cfg),
		Tasks:    inlineRunner{},
		Metrics:  metrics.New(reg),
		Log:      logger.NewNop(),
	})
	f := &apiFixture{router: NewRouter(cfg, svc, reg, logger.NewNop())}

	ivan := f.registerDriver(t, svc, 501)
	petr := f.registerDriver(t, svc, 502)
	assert.True(t, ivan.IsRegistered)
	assert.Equal(t, "X777XX", ivan.CarPlate)

	_, err := svc.Client().UpdatePhone(context.Background(), 900, "+79001234567")
	require.NoError(t, err)
	order, err := svc.Order().Create(context.Background(), 900, service.CreateOrderRequest{AddressFrom: "A", AddressTo: "B"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/assign", map[string]string{}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/assign", map[string]string{"driver_id": "nobody"}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/assign", map[string]string{"driver_id": ivan.ID}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusAssigned, decode[models.Order](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/assign", map[string]string{"driver_id": petr.ID}, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, service.ErrOrderTaken.Error(), detail(t, rec))

	rec = f.do(t, http.MethodGet, "/api/admin/drivers?busy=true", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	busy := decode[[]models.Driver](t, rec)
	require.Len(t, busy, 1)
	assert.Equal(t, ivan.ID, busy[0].ID)

	rec = f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/complete", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.OrderStatusCompleted, decode[models.Order](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/api/admin/orders/"+order.ID+"/cancel", nil, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/logs?limit=1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]models.ActionLog](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionOrderCompleted, logs[0].Action)
	assert.Equal(t, "42", logs[0].AdminID)

	rec = f.do(t, http.MethodPost, "/api/admin/reconcile", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.ReconcileReport{}, decode[service.ReconcileReport](t, rec))
}

func TestAdminCannotClearCarOfRegisteredDriver(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.Config{AdminAPIToken: adminToken}
	svc := service.New(service.Options{Storage: memory.New(), Settings: config.NewSettings(cfg), Tasks: inlineRunner{}})
	f := &apiFixture{router: NewRouter(cfg, svc, reg, logger.NewNop())}
	d := f.registerDriver(t, svc, 501)

	rec := f.do(t, http.MethodPatch, "/api/admin/drivers/"+d.ID, map[string]string{"car_plate": ""}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrCarFieldRequired.Error(), detail(t, rec))
}

func TestSettings(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodPost, "/api/admin/settings/drivers-chat", map[string]string{"chat_id": "-100777"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/settings", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[service.SettingsView](t, rec)
	assert.Equal(t, int64(-100777), view.DriversChatID)
	assert.False(t, view.BotConfigured)

	rec = f.do(t, http.MethodPost, "/api/admin/settings/drivers-chat", map[string]string{"chat_id": "general"}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "taxidispatch_claim_duration_seconds")
}

func TestCORSPreflight(t *testing.T) {
	f := newAPI(t)

	rec := f.do(t, http.MethodOptions, "/api/admin/orders", nil, false)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParseInitData(t *testing.T) {
	p, err := parseInitData(initData(77, "Oleg"))
	require.NoError(t, err)
	assert.Equal(t, models.Profile{TelegramID: 77, FirstName: "Oleg"}, p)

	_, err = parseInitData("auth_date=1")
	assert.Error(t, err)
}
