package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/delivery-relay/internal/catalog"
	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/dedup"
	"github.com/ignite/delivery-relay/internal/delivery"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/history"
	"github.com/ignite/delivery-relay/internal/repository/memory"
)

// recordingGateway counts sends; api tests care about flow, not transport.
type recordingGateway struct {
	mu    sync.Mutex
	texts int
	files int
}

func (g *recordingGateway) SendText(context.Context, string, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.texts++
	return nil
}

func (g *recordingGateway) SendFile(context.Context, string, domain.FileRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files++
	return nil
}

func (g *recordingGateway) counts() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.texts, g.files
}

type testEnv struct {
	handler http.Handler
	gateway *recordingGateway
	dir     *directory.Service
	history history.Store
}

func newTestEnv(t *testing.T, secret, adminToken string, claimer *dedup.Claimer) *testEnv {
	t.Helper()

	cfg := config.DefaultCatalog()
	cat, err := catalog.New(cfg)
	require.NoError(t, err)
	resolver, err := catalog.NewResolver(cfg.Mapping, cat)
	require.NoError(t, err)

	gw := &recordingGateway{}
	dir := directory.NewService(memory.NewRecipientRepo())
	orch := delivery.NewOrchestrator(resolver, cat, dir, gw, delivery.NewTemplateService(), delivery.Messages{
		WelcomeWrapper: cfg.WelcomeWrapper,
		Confirmation:   cfg.Confirmation,
	})
	hist := history.NewMemoryStore(100)
	if claimer == nil {
		claimer = dedup.New(nil, time.Hour)
	}

	h := NewHandlers(orch, dir, hist, claimer, secret)
	hc := NewHealthChecker(nil, nil, nil)
	return &testEnv{
		handler: SetupRoutes(h, hc, adminToken),
		gateway: gw,
		dir:     dir,
		history: hist,
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, body map[string]string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookDeliversToRegisteredRecipient(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	_, err := env.dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"sale_id":    "sale-1",
		"product_id": "pack_plantillas_premium",
		"email":      "ana@example.com",
		"full_name":  "Ana",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, string(domain.StatusDelivered), resp["result"])
	assert.NotEmpty(t, resp["delivery_id"])

	texts, files := env.gateway.counts()
	assert.Equal(t, 2, texts, "welcome + confirmation")
	assert.Equal(t, 2, files)

	// Outcome lands in history.
	entries := env.history.Recent(context.Background(), 10)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.StatusDelivered, entries[0].Status)
	assert.Equal(t, "sale-1", entries[0].EventID)
}

func TestWebhookNormalizesEmail(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	_, err := env.dir.Register(context.Background(), "Ana@Example.COM", "555")
	require.NoError(t, err)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"product_id": "pack_plantillas_premium",
		"email":      "ANA@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusDelivered), resp["result"])
}

func TestWebhookUnknownProductAcksWith200(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"product_id": "unknown_sku",
		"email":      "ana@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code, "non-delivery outcomes still ack the webhook")
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusProductNotFound), resp["result"])

	texts, files := env.gateway.counts()
	assert.Zero(t, texts)
	assert.Zero(t, files)
}

func TestWebhookUnregisteredRecipientFlagsFollowUp(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"product_id": "pack_plantillas_premium",
		"email":      "nobody@example.com",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusRecipientNotFound), resp["result"])

	followups := env.history.FollowUps(context.Background(), 10)
	require.Len(t, followups, 1)
	assert.Equal(t, "nobody@example.com", followups[0].CustomerEmail)
}

func TestWebhookAcceptsFormEncoding(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	_, err := env.dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	form := url.Values{}
	form.Set("sale_id", "sale-2")
	form.Set("product_id", "pack_plantillas_premium")
	form.Set("email", "ana@example.com")
	form.Set("full_name", "Ana")

	req := httptest.NewRequest(http.MethodPost, "/webhook/gumroad", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.StatusDelivered), resp["result"])
}

func TestWebhookMissingFields(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"email": "ana@example.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookSharedSecret(t *testing.T) {
	env := newTestEnv(t, "s3cret", "", nil)

	rec := postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"product_id": "pack_plantillas_premium",
		"email":      "ana@example.com",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, env.handler, "/webhook/gumroad", map[string]string{
		"product_id": "pack_plantillas_premium",
		"email":      "ana@example.com",
	}, map[string]string{"X-Gumroad-Secret": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookDeduplicatesBySaleID(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	env := newTestEnv(t, "", "", dedup.New(client, time.Hour))

	_, err := env.dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	payload := map[string]string{
		"sale_id":    "sale-1",
		"product_id": "pack_plantillas_premium",
		"email":      "ana@example.com",
	}

	rec := postJSON(t, env.handler, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, env.handler, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "duplicate", resp["status"])

	// Only the first webhook triggered sends.
	texts, _ := env.gateway.counts()
	assert.Equal(t, 2, texts)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := postJSON(t, env.handler, "/registro", map[string]string{
		"email":   "Ana@Example.com",
		"chat_id": "555",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "registrado", resp["status"])
	assert.Equal(t, "ana@example.com", resp["email"])

	ident, err := env.dir.FindChannel(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "555", ident.ChannelID)
}

func TestRegisterEndpointValidation(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	rec := postJSON(t, env.handler, "/registro", map[string]string{
		"email":   "not-an-email",
		"chat_id": "555",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, env.handler, "/registro", map[string]string{
		"email": "ana@example.com",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeliveriesEndpointRequiresToken(t *testing.T) {
	env := newTestEnv(t, "", "admin-token", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	req.Header.Set("X-Relay-Token", "admin-token")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeliveriesEndpointListsHistory(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	require.NoError(t, env.history.Record(context.Background(), history.Entry{
		ID:     "d1",
		Status: domain.StatusDelivered,
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Deliveries []history.Entry `json:"deliveries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Deliveries, 1)
	assert.Equal(t, "d1", resp.Deliveries[0].ID)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, "", "", nil)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
