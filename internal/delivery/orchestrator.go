// Package delivery contains the orchestration state machine that turns a
// validated purchase event into a sequence of gateway sends and a single
// structured outcome.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/delivery-relay/internal/catalog"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/gateway"
	"github.com/ignite/delivery-relay/internal/pkg/logger"
)

// Messages holds the fixed texts framing every delivery.
type Messages struct {
	// WelcomeWrapper wraps the product message; gets "name" and "bundle"
	// template variables.
	WelcomeWrapper string
	// Confirmation is sent after the file stage regardless of failures.
	Confirmation string
}

// Orchestrator drives one purchase event through product resolution,
// recipient lookup, and the send sequence. A single Handle call is
// strictly sequential; the orchestrator itself is stateless and safe for
// concurrent calls across independent events.
type Orchestrator struct {
	resolver  *catalog.Resolver
	catalog   *catalog.Catalog
	directory *directory.Service
	gateway   gateway.Gateway
	templates *TemplateService
	messages  Messages
}

// NewOrchestrator wires the delivery pipeline.
func NewOrchestrator(
	resolver *catalog.Resolver,
	cat *catalog.Catalog,
	dir *directory.Service,
	gw gateway.Gateway,
	templates *TemplateService,
	messages Messages,
) *Orchestrator {
	return &Orchestrator{
		resolver:  resolver,
		catalog:   cat,
		directory: dir,
		gateway:   gw,
		templates: templates,
		messages:  messages,
	}
}

// Handle executes the full delivery sequence and always returns an
// outcome, never an error: unmapped products and unregistered recipients
// are routine statuses, and transport failures are isolated per step.
// Once started, the sequence runs to its terminal state.
func (o *Orchestrator) Handle(ctx context.Context, event domain.PurchaseEvent) domain.DeliveryOutcome {
	outcome := domain.DeliveryOutcome{ID: uuid.New().String()}

	key, ok := o.resolver.Resolve(event.ExternalProductID)
	if !ok {
		logger.Info("purchase for unmapped product",
			"delivery_id", outcome.ID, "product_id", event.ExternalProductID)
		return o.finish(outcome, domain.StatusProductNotFound,
			fmt.Sprintf("no mapping for product %q", event.ExternalProductID))
	}

	bundle, err := o.catalog.Lookup(key)
	if err != nil {
		// Startup validation guarantees resolver targets exist in the
		// catalog; landing here is a defect worth alerting on.
		logger.Error("catalog missing resolved product",
			"delivery_id", outcome.ID, "product_key", string(key), "error", err.Error())
		return o.finish(outcome, domain.StatusError,
			fmt.Sprintf("catalog missing product %q", key))
	}

	ident, err := o.directory.FindChannel(ctx, event.CustomerEmail)
	if errors.Is(err, directory.ErrNotFound) {
		logger.Warn("recipient not registered, flagging for manual follow-up",
			"delivery_id", outcome.ID, "email", event.CustomerEmail, "product_key", string(key))
		return o.finish(outcome, domain.StatusRecipientNotFound,
			fmt.Sprintf("no channel registered for %s", logger.RedactEmail(event.CustomerEmail)))
	}
	if err != nil {
		logger.Error("recipient lookup failed",
			"delivery_id", outcome.ID, "email", event.CustomerEmail, "error", err.Error())
		return o.finish(outcome, domain.StatusError, "recipient lookup failed: "+err.Error())
	}

	// Send sequence. A failed step is recorded and the sequence continues:
	// each file is an independent unit of delivery, and the confirmation
	// goes out even after failures.
	welcome := o.welcomeText(event, key, bundle)
	outcome.Steps = append(outcome.Steps,
		o.step("welcome", "", o.gateway.SendText(ctx, ident.ChannelID, welcome)))

	// Files go out one at a time in bundle order. Ordering is a
	// user-visible guarantee; concurrent sends to one chat also risk
	// provider-side rate limiting.
	for _, f := range bundle.Files {
		outcome.Steps = append(outcome.Steps,
			o.step("file", f.Filename, o.gateway.SendFile(ctx, ident.ChannelID, f)))
	}

	outcome.Steps = append(outcome.Steps,
		o.step("confirmation", "", o.gateway.SendText(ctx, ident.ChannelID, o.messages.Confirmation)))

	status, detail := classify(outcome.Steps, len(bundle.Files))
	return o.finish(outcome, status, detail)
}

// welcomeText renders the product message, then wraps it with the
// greeting. Render errors degrade to the raw template text so a bad
// template never blocks the file stage.
func (o *Orchestrator) welcomeText(event domain.PurchaseEvent, key domain.ProductKey, bundle domain.ProductBundle) string {
	vars := map[string]interface{}{"name": event.CustomerName}

	bundleMsg, err := o.templates.Render("bundle:"+string(key), bundle.WelcomeTemplate, vars)
	if err != nil {
		logger.Warn("bundle message render failed", "product_key", string(key), "error", err.Error())
	}
	vars["bundle"] = bundleMsg

	text, err := o.templates.Render("welcome_wrapper", o.messages.WelcomeWrapper, vars)
	if err != nil {
		logger.Warn("welcome wrapper render failed", "error", err.Error())
	}
	return text
}

func (o *Orchestrator) step(name, label string, err error) domain.StepResult {
	res := domain.StepResult{Step: name, Label: label, OK: err == nil}
	if err != nil {
		res.Error = err.Error()
		var te *gateway.TransportError
		if errors.As(err, &te) && res.Label == "" {
			res.Label = te.Label
		}
		logger.Warn("delivery step failed", "step", name, "label", res.Label, "error", err.Error())
	}
	return res
}

func (o *Orchestrator) finish(outcome domain.DeliveryOutcome, status domain.DeliveryStatus, detail string) domain.DeliveryOutcome {
	outcome.Status = status
	outcome.Detail = detail
	outcome.CompletedAt = time.Now().UTC()
	logger.Info("delivery finished",
		"delivery_id", outcome.ID, "status", string(status), "detail", detail)
	return outcome
}

// classify derives the terminal status from the step results: Delivered
// when everything succeeded, Error when nothing did, PartialFailure in
// between. The detail names every failed unit.
func classify(steps []domain.StepResult, fileCount int) (domain.DeliveryStatus, string) {
	var failed []string
	succeeded := 0
	for _, s := range steps {
		if s.OK {
			succeeded++
			continue
		}
		label := s.Label
		if label == "" {
			label = s.Step
		}
		failed = append(failed, label)
	}

	if len(failed) == 0 {
		return domain.StatusDelivered, fmt.Sprintf("delivered %d files", fileCount)
	}
	if succeeded == 0 {
		return domain.StatusError, "all sends failed: " + strings.Join(failed, ", ")
	}
	return domain.StatusPartialFailure, "failed: " + strings.Join(failed, ", ")
}
