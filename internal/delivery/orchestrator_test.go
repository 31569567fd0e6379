package delivery

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/delivery-relay/internal/catalog"
	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/gateway"
	"github.com/ignite/delivery-relay/internal/repository/memory"
)

// gatewayCall records one send made through the fake gateway.
type gatewayCall struct {
	Kind      string // "text" or "file"
	ChannelID string
	Text      string
	Filename  string
}

// fakeGateway records every call and fails the sends it is told to fail.
type fakeGateway struct {
	mu        sync.Mutex
	calls     []gatewayCall
	failFiles map[string]bool // filename -> fail
	failTexts map[string]bool // text substring -> fail
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		failFiles: make(map[string]bool),
		failTexts: make(map[string]bool),
	}
}

func (g *fakeGateway) SendText(_ context.Context, channelID, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{Kind: "text", ChannelID: channelID, Text: text})
	for sub := range g.failTexts {
		if strings.Contains(text, sub) {
			return &gateway.TransportError{Op: "send_text", Err: assert.AnError}
		}
	}
	return nil
}

func (g *fakeGateway) SendFile(_ context.Context, channelID string, ref domain.FileRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{Kind: "file", ChannelID: channelID, Filename: ref.Filename})
	if g.failFiles[ref.Filename] {
		return &gateway.TransportError{Op: "send_file", Label: ref.Filename, Err: assert.AnError}
	}
	return nil
}

func (g *fakeGateway) Calls() []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]gatewayCall, len(g.calls))
	copy(out, g.calls)
	return out
}

func testCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{
		Products: map[string]config.ProductConfig{
			"pack_plantillas": {
				Files: []config.FileConfig{
					{Key: "plantillas_premium.zip", Filename: "plantillas_premium.zip"},
					{Key: "documentacion.pdf", Filename: "documentacion.pdf"},
				},
				Message: "🎨 Pack Plantillas Premium",
			},
		},
		Mapping: map[string]string{
			"pack_plantillas_premium": "pack_plantillas",
		},
	}
}

// newTestOrchestrator wires an orchestrator around the fake gateway and an
// in-memory directory, returning the directory service for registrations.
func newTestOrchestrator(t *testing.T, gw gateway.Gateway) (*Orchestrator, *directory.Service) {
	t.Helper()

	cfg := testCatalogConfig()
	cat, err := catalog.New(cfg)
	require.NoError(t, err)
	resolver, err := catalog.NewResolver(cfg.Mapping, cat)
	require.NoError(t, err)

	dir := directory.NewService(memory.NewRecipientRepo())
	orch := NewOrchestrator(resolver, cat, dir, gw, NewTemplateService(), Messages{
		WelcomeWrapper: "¡Hola {{ name | default: \"Cliente\" }}! {{ bundle }}",
		Confirmation:   "✅ Entrega completada",
	})
	return orch, dir
}

func TestHandleFullDeliverySequence(t *testing.T) {
	gw := newFakeGateway()
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		EventID:           "sale-1",
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
		CustomerName:      "Ana",
	})

	assert.Equal(t, domain.StatusDelivered, outcome.Status)
	assert.NotEmpty(t, outcome.ID)
	assert.False(t, outcome.CompletedAt.IsZero())

	calls := gw.Calls()
	require.Len(t, calls, 4)

	// Exact order: welcome text, both files in bundle order, confirmation.
	assert.Equal(t, "text", calls[0].Kind)
	assert.Contains(t, calls[0].Text, "Ana")
	assert.Contains(t, calls[0].Text, "Pack Plantillas Premium")
	assert.Equal(t, "file", calls[1].Kind)
	assert.Equal(t, "plantillas_premium.zip", calls[1].Filename)
	assert.Equal(t, "file", calls[2].Kind)
	assert.Equal(t, "documentacion.pdf", calls[2].Filename)
	assert.Equal(t, "text", calls[3].Kind)
	assert.Contains(t, calls[3].Text, "Entrega completada")

	for _, c := range calls {
		assert.Equal(t, "555", c.ChannelID)
	}
}

func TestHandleUnknownProductStopsBeforeGateway(t *testing.T) {
	gw := newFakeGateway()
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "unknown_sku",
		CustomerEmail:     "ana@example.com",
	})

	assert.Equal(t, domain.StatusProductNotFound, outcome.Status)
	assert.Contains(t, outcome.Detail, "unknown_sku")
	assert.Empty(t, gw.Calls(), "no gateway calls for an unmapped product")
}

func TestHandleUnregisteredRecipientMakesNoGatewayCalls(t *testing.T) {
	gw := newFakeGateway()
	orch, _ := newTestOrchestrator(t, gw)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "nobody@example.com",
	})

	assert.Equal(t, domain.StatusRecipientNotFound, outcome.Status)
	assert.Empty(t, gw.Calls(), "no gateway calls for an unregistered recipient")
}

func TestHandleOneFileFailsIsPartialFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failFiles["plantillas_premium.zip"] = true
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
		CustomerName:      "Ana",
	})

	assert.Equal(t, domain.StatusPartialFailure, outcome.Status)
	assert.Contains(t, outcome.Detail, "plantillas_premium.zip")
	assert.NotContains(t, outcome.Detail, "documentacion.pdf")

	// Both files were attempted and the confirmation still went out.
	calls := gw.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "documentacion.pdf", calls[2].Filename)
	assert.Equal(t, "text", calls[3].Kind)
}

func TestHandleWelcomeFailureStillSendsFiles(t *testing.T) {
	gw := newFakeGateway()
	gw.failTexts["Hola"] = true
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
	})

	assert.Equal(t, domain.StatusPartialFailure, outcome.Status)
	calls := gw.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "file", calls[1].Kind)
	assert.Equal(t, "file", calls[2].Kind)
}

func TestHandleAllSendsFailIsError(t *testing.T) {
	gw := newFakeGateway()
	gw.failTexts["Hola"] = true
	gw.failTexts["Entrega"] = true
	gw.failFiles["plantillas_premium.zip"] = true
	gw.failFiles["documentacion.pdf"] = true
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
	})

	assert.Equal(t, domain.StatusError, outcome.Status)
	assert.Contains(t, outcome.Detail, "all sends failed")
	// Every step was still attempted.
	assert.Len(t, gw.Calls(), 4)
}

func TestHandleDefaultsCustomerName(t *testing.T) {
	gw := newFakeGateway()
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
		// No CustomerName
	})

	assert.Equal(t, domain.StatusDelivered, outcome.Status)
	calls := gw.Calls()
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0].Text, "Cliente")
}

func TestHandleRecordsStepResults(t *testing.T) {
	gw := newFakeGateway()
	gw.failFiles["documentacion.pdf"] = true
	orch, dir := newTestOrchestrator(t, gw)

	_, err := dir.Register(context.Background(), "ana@example.com", "555")
	require.NoError(t, err)

	outcome := orch.Handle(context.Background(), domain.PurchaseEvent{
		ExternalProductID: "pack_plantillas_premium",
		CustomerEmail:     "ana@example.com",
	})

	require.Len(t, outcome.Steps, 4)
	assert.Equal(t, "welcome", outcome.Steps[0].Step)
	assert.True(t, outcome.Steps[0].OK)
	assert.Equal(t, "file", outcome.Steps[1].Step)
	assert.Equal(t, "plantillas_premium.zip", outcome.Steps[1].Label)
	assert.True(t, outcome.Steps[1].OK)
	assert.False(t, outcome.Steps[2].OK)
	assert.Equal(t, "documentacion.pdf", outcome.Steps[2].Label)
	assert.NotEmpty(t, outcome.Steps[2].Error)
	assert.Equal(t, "confirmation", outcome.Steps[3].Step)
	assert.True(t, outcome.Steps[3].OK)
}
