package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/gateway"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentMethodStripe = "Stripe"

	metadataPaymentId = "PaymentId"
	metadataInvoiceId = "InvoiceId"
)

type Payment struct {
	BaseModel
	PropertyId             uuid.UUID       `gorm:"type:char(36);index;not null" json:"property_id"`
	TenancyId              uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenancy_id"`
	PayerId                uuid.UUID       `gorm:"type:char(36);index;not null" json:"payer_id"`
	InvoiceId              uuid.UUID       `gorm:"type:char(36);index;not null" json:"invoice_id"`
	Amount                 decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	PaymentFor             string          `gorm:"size:255" json:"payment_for"`
	PaymentDate            *time.Time      `json:"payment_date"`
	PaymentMethod          string          `gorm:"size:32" json:"payment_method"`
	IsPaid                 bool            `gorm:"not null;default:false;index" json:"is_paid"`
	GatewaySessionId       string          `gorm:"size:255;index" json:"gateway_session_id,omitempty"`
	GatewayPaymentIntentId string          `gorm:"size:255" json:"gateway_payment_intent_id,omitempty"`
	GatewayChargeId        string          `gorm:"size:255" json:"gateway_charge_id,omitempty"`
}

type CheckoutResult struct {
	PaymentId uuid.UUID `json:"payment_id"`
	SessionId string    `json:"session_id"`
	URL       string    `json:"url"`
}

type PaymentFilter struct {
	IsPaid *bool
	From   *time.Time
	To     *time.Time
}

func (f PaymentFilter) scope(db *gorm.DB) *gorm.DB {
	if f.IsPaid != nil {
		db = db.Where("is_paid = ?", *f.IsPaid)
	}
	if f.From != nil {
		db = db.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		db = db.Where("created_at <= ?", f.To.UTC())
	}
	return db
}

// CreateCheckoutSession opens a hosted checkout for the invoice total and
// records an unpaid Payment bound to the returned session.
func CreateCheckoutSession(ctx context.Context, invoiceId uuid.UUID) (*CheckoutResult, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	gw := gateway.GetGateway()
	if gw == nil {
		return nil, utils.InternalError("payment gateway is not configured", errors.New("STRIPE_SECRET_KEY not set"))
	}

	invoice, err := readRepo[Invoice]().GetById(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	if invoice.TenantId != c.Id {
		return nil, utils.ForbiddenError("only the tenant can pay this invoice")
	}
	if err := ensurePayable(invoice); err != nil {
		return nil, err
	}

	payment := Payment{
		PropertyId:    invoice.PropertyId,
		TenancyId:     invoice.TenancyId,
		PayerId:       c.Id,
		InvoiceId:     invoice.ID,
		Amount:        invoice.TotalAmount,
		PaymentFor:    fmt.Sprintf("Invoice #%s", invoice.ID),
		PaymentMethod: PaymentMethodStripe,
	}
	payment.ID = uuid.New()
	payment.CreatedBy = c.Id

	session, err := gw.CreateCheckoutSession(ctx, gateway.CheckoutRequest{
		Amount:      invoice.TotalAmount,
		Currency:    gateway.Currency(),
		Description: payment.PaymentFor,
		SuccessURL:  gateway.SuccessURL(),
		CancelURL:   gateway.CancelURL(),
		Metadata: map[string]string{
			metadataPaymentId: payment.ID.String(),
			metadataInvoiceId: invoice.ID.String(),
		},
	})
	if err != nil {
		config.LogError(config.GetLogger().WithContext(ctx), "models", "CreateCheckoutSession", "gateway", invoice.ID, err)
		return nil, utils.InternalError("failed to create checkout session", err)
	}
	payment.GatewaySessionId = session.ID
	payment.GatewayPaymentIntentId = session.PaymentIntentId

	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		return repository.For[Payment](uow).Insert(ctx, &payment)
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{PaymentId: payment.ID, SessionId: session.ID, URL: session.URL}, nil
}

// HandleGatewayWebhook applies a signed gateway event. Completed checkouts
// mark the payment and its invoice paid; replays of a paid payment are no-ops.
func HandleGatewayWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	secret := gateway.WebhookSecret()
	if secret == "" {
		return utils.InternalError("payment webhook is not configured", errors.New("STRIPE_WEBHOOK_SECRET not set"))
	}
	if err := gateway.VerifySignature(payload, signatureHeader, secret); err != nil {
		return utils.BadRequestError("invalid webhook signature")
	}
	evt, err := gateway.ParseEvent(payload)
	if err != nil {
		return utils.BadRequestError("invalid webhook payload")
	}
	if evt.Type != gateway.EventCheckoutCompleted {
		return nil
	}

	session, err := gateway.CheckoutSessionOf(evt)
	if err != nil {
		return utils.BadRequestError("invalid webhook payload")
	}
	paymentId, err := uuid.Parse(session.Metadata[metadataPaymentId])
	if err != nil {
		return utils.BadRequestError("webhook event has no payment reference")
	}

	var payment *Payment
	var invoice *Invoice
	applied := false
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		payments := repository.For[Payment](uow)
		payment, err = payments.GetById(ctx, paymentId)
		if err != nil {
			return err
		}
		if payment.IsPaid {
			return nil
		}

		at := nowUTC()
		payment.IsPaid = true
		payment.PaymentDate = &at
		if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
			payment.GatewayPaymentIntentId = session.PaymentIntent.ID
		}
		if session.ID != "" {
			payment.GatewaySessionId = session.ID
		}
		payment.touch(payment.PayerId)
		if err := payments.Update(ctx, payment); err != nil {
			return err
		}
		applied = true

		invoice, err = repository.For[Invoice](uow).GetById(ctx, payment.InvoiceId)
		if err != nil {
			return err
		}
		if invoice.Status == InvoiceStatusPaid || invoice.Status == InvoiceStatusCancelled {
			invoice = nil
			return nil
		}
		return markInvoicePaid(ctx, uow, invoice, at, payment.PayerId)
	})
	if err != nil {
		return err
	}
	if applied {
		publishPaymentEvent(ctx, EventPaymentPaid, payment, payment.PayerId)
		if invoice != nil {
			publishInvoiceEvent(ctx, EventInvoicePaid, invoice, payment.PayerId)
		}
	}
	return nil
}

func GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := readRepo[Payment]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.PayerId != c.Id && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this payment")
	}
	return payment, nil
}

func GetPaymentsByUser(ctx context.Context, filter PaymentFilter, page repository.Pagination) (*repository.Page[Payment], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return readRepo[Payment]().Page(ctx, page, whereEq("payer_id", c.Id), filter.scope, orderByNewest)
}

func GetPaymentsByProperty(ctx context.Context, propertyId uuid.UUID, filter PaymentFilter, page repository.Pagination) (*repository.Page[Payment], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	property, err := readRepo[Property]().GetById(ctx, propertyId)
	if err != nil {
		return nil, err
	}
	if property.OwnerId != c.Id {
		return nil, utils.ForbiddenError("only the owner can view payments for this property")
	}
	return readRepo[Payment]().Page(ctx, page, whereEq("property_id", propertyId), filter.scope, orderByNewest)
}

func GetPaymentsByInvoice(ctx context.Context, invoiceId uuid.UUID) ([]Payment, error) {
	invoice, err := GetInvoice(ctx, invoiceId)
	if err != nil {
		return nil, err
	}
	return readRepo[Payment]().Find(ctx, whereEq("invoice_id", invoice.ID), orderByNewest)
}

func IsInvoicePaid(ctx context.Context, invoiceId uuid.UUID) (bool, error) {
	n, err := readRepo[Payment]().Count(ctx, whereEq("invoice_id", invoiceId), whereEq("is_paid", true))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
