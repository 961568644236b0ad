package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/utils"
)

const (
	EventInvoiceCreated = "invoice.created"
	EventInvoiceSent    = "invoice.sent"
	EventInvoicePaid    = "invoice.paid"
	EventInvoiceOverdue = "invoice.overdue"
	EventPaymentPaid    = "payment.paid"
)

const publishTimeout = 5 * time.Second

// publishEvent sends a domain event after the owning transaction committed.
// Failures are logged and never reach the caller.
func publishEvent(ctx context.Context, eventType, referenceType string, referenceId, actor uuid.UUID, payload any) {
	if !config.PubSubEnabled() {
		return
	}
	logger := config.GetLogger().WithContext(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		config.LogError(logger, "models", "publishEvent", "marshal payload", eventType, err)
		return
	}
	evt := config.DomainEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId.String(),
		OccurredAt:    nowUTC(),
		Payload:       data,
	}
	if actor != uuid.Nil {
		evt.ActorId = actor.String()
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		evt.CorrelationId = correlationId
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if _, err := config.PublishDomainEvent(pubCtx, evt); err != nil {
		config.LogError(logger, "models", "publishEvent", "publish", evt, err)
	}
}

func publishTenancyEvent(ctx context.Context, tenancy *Tenancy, actor uuid.UUID) {
	publishEvent(ctx, "tenancy."+string(tenancy.Status), "tenancy", tenancy.ID, actor, tenancy)
}

func publishInvoiceEvent(ctx context.Context, eventType string, invoice *Invoice, actor uuid.UUID) {
	publishEvent(ctx, eventType, "invoice", invoice.ID, actor, invoice)
}

func publishPaymentEvent(ctx context.Context, eventType string, payment *Payment, actor uuid.UUID) {
	publishEvent(ctx, eventType, "payment", payment.ID, actor, payment)
}
