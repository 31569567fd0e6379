package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/ignite/delivery-relay/internal/dedup"
	"github.com/ignite/delivery-relay/internal/delivery"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/history"
	"github.com/ignite/delivery-relay/internal/pkg/logger"
)

// Handlers holds the HTTP handlers and their collaborators.
type Handlers struct {
	orchestrator *delivery.Orchestrator
	directory    *directory.Service
	history      history.Store
	dedup        *dedup.Claimer
	sharedSecret string
}

// NewHandlers creates the handler set.
func NewHandlers(
	orchestrator *delivery.Orchestrator,
	dir *directory.Service,
	hist history.Store,
	claimer *dedup.Claimer,
	sharedSecret string,
) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		directory:    dir,
		history:      hist,
		dedup:        claimer,
		sharedSecret: sharedSecret,
	}
}

// purchasePayload is the inbound webhook body. Gumroad posts
// form-encoded bodies; tests and resellers post JSON — both are accepted.
type purchasePayload struct {
	SaleID    string `json:"sale_id"`
	ProductID string `json:"product_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
}

// HandlePurchaseWebhook ingests a purchase event and runs the delivery.
// Once the payload parses, the response is always 200 — non-delivery
// outcomes (unmapped product, unregistered recipient, transport failures)
// are conveyed in the body and recorded in history, never as an HTTP
// error that would make the provider re-post the webhook.
//
//	POST /webhook/gumroad
func (h *Handlers) HandlePurchaseWebhook(w http.ResponseWriter, r *http.Request) {
	if h.sharedSecret != "" && r.Header.Get("X-Gumroad-Secret") != h.sharedSecret {
		respondError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	payload, err := parsePurchase(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.ProductID == "" || payload.Email == "" {
		respondError(w, http.StatusBadRequest, "product_id and email are required")
		return
	}

	// A disconnecting provider must not abort a delivery mid-sequence.
	ctx := context.WithoutCancel(r.Context())

	claimed, err := h.dedup.Claim(ctx, payload.SaleID)
	if err != nil {
		logger.Warn("dedup claim failed, processing anyway", "sale_id", payload.SaleID, "error", err.Error())
		claimed = true
	}
	if !claimed {
		respondJSON(w, http.StatusOK, map[string]string{
			"status":  "duplicate",
			"sale_id": payload.SaleID,
		})
		return
	}

	event := domain.PurchaseEvent{
		EventID:           payload.SaleID,
		ExternalProductID: payload.ProductID,
		// Same normalization the registration boundary applies, so the
		// directory lookup stays an exact match.
		CustomerEmail: directory.NormalizeEmail(payload.Email),
		CustomerName:  strings.TrimSpace(payload.FullName),
	}

	outcome := h.orchestrator.Handle(ctx, event)
	if err := h.history.Record(ctx, history.FromOutcome(event, outcome)); err != nil {
		logger.Warn("recording delivery outcome failed", "delivery_id", outcome.ID, "error", err.Error())
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"delivery_id": outcome.ID,
		"result":      outcome.Status,
		"detail":      outcome.Detail,
	})
}

func parsePurchase(r *http.Request) (*purchasePayload, error) {
	var p purchasePayload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return nil, errInvalidBody
		}
		return &p, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, errInvalidBody
	}
	p.SaleID = r.PostFormValue("sale_id")
	p.ProductID = r.PostFormValue("product_id")
	p.Email = r.PostFormValue("email")
	p.FullName = r.PostFormValue("full_name")
	return &p, nil
}

// registrationPayload is the /registro request body.
type registrationPayload struct {
	Email     string `json:"email"`
	ChatID    string `json:"chat_id"`
}

// HandleRegister records an email → chat registration.
//
//	POST /registro
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var p registrationPayload
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			respondError(w, http.StatusBadRequest, "invalid form body")
			return
		}
		p.Email = r.PostFormValue("email")
		p.ChatID = r.PostFormValue("chat_id")
	}

	rec, err := h.directory.Register(r.Context(), p.Email, p.ChatID)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "registrado",
		"email":  rec.Email,
	})
}

// HandleDeliveries lists recent delivery outcomes.
//
//	GET /api/deliveries?limit=50
func (h *Handlers) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deliveries": h.history.Recent(r.Context(), limitParam(r)),
	})
}

// HandleFollowUps lists deliveries waiting on manual follow-up.
//
//	GET /api/deliveries/followups?limit=50
func (h *Handlers) HandleFollowUps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"followups": h.history.FollowUps(r.Context(), limitParam(r)),
	})
}

func limitParam(r *http.Request) int {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return limit
}
