package models

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// paid and cancelled are terminal.
var invoiceTransitions = transitionTable[InvoiceStatus]{
	InvoiceStatusDraft:   {InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled},
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
	InvoiceStatusOverdue: {InvoiceStatusPaid, InvoiceStatusCancelled},
}

type Invoice struct {
	BaseModel
	PropertyId         uuid.UUID       `gorm:"type:char(36);index;not null" json:"property_id"`
	TenancyId          uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenancy_id"`
	TenantId           uuid.UUID       `gorm:"type:char(36);index;not null" json:"tenant_id"`
	OwnerId            uuid.UUID       `gorm:"type:char(36);index;not null" json:"owner_id"`
	UtilityReadingId   uuid.UUID       `gorm:"type:char(36);index;not null" json:"utility_reading_id"`
	BillingPeriodStart time.Time       `gorm:"not null" json:"billing_period_start"`
	BillingPeriodEnd   time.Time       `gorm:"not null" json:"billing_period_end"`
	DueDate            time.Time       `gorm:"index;not null" json:"due_date"`
	Status             InvoiceStatus   `gorm:"size:16;index;not null" json:"status"`
	PaymentDate        *time.Time      `json:"payment_date"`
	MonthlyRentPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"monthly_rent_price"`
	ElectricOldIndex   int             `gorm:"not null" json:"electric_old_index"`
	ElectricNewIndex   int             `gorm:"not null" json:"electric_new_index"`
	ElectricUnitPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"electric_unit_price"`
	ElectricCost       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"electric_cost"`
	WaterOldIndex      int             `gorm:"not null" json:"water_old_index"`
	WaterNewIndex      int             `gorm:"not null" json:"water_new_index"`
	WaterUnitPrice     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"water_unit_price"`
	WaterCost          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"water_cost"`
	OtherFees          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"other_fees"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_amount"`
}

type NewInvoice struct {
	TenancyId          uuid.UUID        `json:"tenancy_id" binding:"required"`
	UtilityReadingId   *uuid.UUID       `json:"utility_reading_id"`
	BillingPeriodStart time.Time        `json:"billing_period_start" binding:"required"`
	BillingPeriodEnd   time.Time        `json:"billing_period_end" binding:"required"`
	DueDate            time.Time        `json:"due_date" binding:"required"`
	ElectricNewIndex   *int             `json:"electric_new_index"`
	WaterNewIndex      *int             `json:"water_new_index"`
	ElectricUnitPrice  *decimal.Decimal `json:"electric_unit_price"`
	WaterUnitPrice     *decimal.Decimal `json:"water_unit_price"`
	OtherFees          decimal.Decimal  `json:"other_fees"`
	AsDraft            bool             `json:"as_draft"`
}

type InvoiceUpdate struct {
	BillingPeriodStart *time.Time       `json:"billing_period_start"`
	BillingPeriodEnd   *time.Time       `json:"billing_period_end"`
	DueDate            *time.Time       `json:"due_date"`
	ElectricNewIndex   *int             `json:"electric_new_index"`
	WaterNewIndex      *int             `json:"water_new_index"`
	ElectricUnitPrice  *decimal.Decimal `json:"electric_unit_price"`
	WaterUnitPrice     *decimal.Decimal `json:"water_unit_price"`
	OtherFees          *decimal.Decimal `json:"other_fees"`
}

type InvoiceFilter struct {
	Status     *InvoiceStatus
	PeriodFrom *time.Time
	PeriodTo   *time.Time
}

// recompute derives costs and total from indices, unit prices, rent and fees.
func (inv *Invoice) recompute() {
	inv.ElectricCost = decimal.NewFromInt(int64(inv.ElectricNewIndex - inv.ElectricOldIndex)).Mul(inv.ElectricUnitPrice)
	inv.WaterCost = decimal.NewFromInt(int64(inv.WaterNewIndex - inv.WaterOldIndex)).Mul(inv.WaterUnitPrice)
	inv.TotalAmount = inv.MonthlyRentPrice.Add(inv.ElectricCost).Add(inv.WaterCost).Add(inv.OtherFees)
}

func (inv *Invoice) isParty(userId uuid.UUID) bool {
	return inv.OwnerId == userId || inv.TenantId == userId
}

func (inv *Invoice) editable() bool {
	return inv.Status == InvoiceStatusDraft || inv.Status == InvoiceStatusPending
}

func validateBillingPeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return utils.BadRequestError("billing period is required")
	}
	if end.Before(start) {
		return utils.BadRequestError("billing period end must not be before its start")
	}
	return nil
}

func (input *NewInvoice) validate() error {
	if input.TenancyId == uuid.Nil {
		return utils.BadRequestError("tenancy id is required")
	}
	if err := validateBillingPeriod(input.BillingPeriodStart, input.BillingPeriodEnd); err != nil {
		return err
	}
	if input.DueDate.IsZero() {
		return utils.BadRequestError("due date is required")
	}
	if input.OtherFees.IsNegative() {
		return utils.BadRequestError("other fees must not be negative")
	}
	if input.ElectricUnitPrice != nil && input.ElectricUnitPrice.IsNegative() {
		return utils.BadRequestError("unit prices must not be negative")
	}
	if input.WaterUnitPrice != nil && input.WaterUnitPrice.IsNegative() {
		return utils.BadRequestError("unit prices must not be negative")
	}
	return nil
}

// CreateInvoice bills an existing, not yet charged reading of the tenancy.
// Without an explicit reading id the newest uncharged reading is used.
func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	var invoice Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		tenancy, err := repository.For[Tenancy](uow).GetById(ctx, input.TenancyId)
		if err != nil {
			return err
		}
		property, err := repository.For[Property](uow).GetById(ctx, tenancy.PropertyId)
		if err != nil {
			return err
		}
		if property.OwnerId != c.Id {
			return utils.ForbiddenError("only the property owner can create invoices")
		}

		readings := repository.For[UtilityReading](uow)
		reading, err := invoiceReading(ctx, readings, tenancy, input.UtilityReadingId)
		if err != nil {
			return err
		}

		electricNew, waterNew := reading.ElectricNewIndex, reading.WaterNewIndex
		if input.ElectricNewIndex != nil {
			electricNew = *input.ElectricNewIndex
		}
		if input.WaterNewIndex != nil {
			waterNew = *input.WaterNewIndex
		}
		if err := validateIndices(reading.ElectricOldIndex, electricNew, reading.WaterOldIndex, waterNew); err != nil {
			return err
		}
		if electricNew != reading.ElectricNewIndex || waterNew != reading.WaterNewIndex {
			if err := ensureLatestReading(ctx, readings, reading); err != nil {
				return err
			}
			reading.ElectricNewIndex, reading.WaterNewIndex = electricNew, waterNew
		}

		electricPrice, waterPrice := tenancy.ElectricUnitPrice, tenancy.WaterUnitPrice
		if input.ElectricUnitPrice != nil {
			electricPrice = *input.ElectricUnitPrice
		}
		if input.WaterUnitPrice != nil {
			waterPrice = *input.WaterUnitPrice
		}

		status := InvoiceStatusPending
		if input.AsDraft {
			status = InvoiceStatusDraft
		}
		invoice = Invoice{
			PropertyId:         property.ID,
			TenancyId:          tenancy.ID,
			TenantId:           tenancy.TenantId,
			OwnerId:            property.OwnerId,
			UtilityReadingId:   reading.ID,
			BillingPeriodStart: input.BillingPeriodStart.UTC(),
			BillingPeriodEnd:   input.BillingPeriodEnd.UTC(),
			DueDate:            input.DueDate.UTC(),
			Status:             status,
			MonthlyRentPrice:   property.MonthlyRent,
			ElectricOldIndex:   reading.ElectricOldIndex,
			ElectricNewIndex:   electricNew,
			ElectricUnitPrice:  electricPrice,
			WaterOldIndex:      reading.WaterOldIndex,
			WaterNewIndex:      waterNew,
			WaterUnitPrice:     waterPrice,
			OtherFees:          input.OtherFees,
		}
		invoice.recompute()
		invoice.CreatedBy = c.Id
		if err := repository.For[Invoice](uow).Insert(ctx, &invoice); err != nil {
			return err
		}

		reading.IsCharged = true
		reading.touch(c.Id)
		return readings.Update(ctx, reading)
	})
	if err != nil {
		return nil, err
	}
	publishInvoiceEvent(ctx, EventInvoiceCreated, &invoice, c.Id)
	return &invoice, nil
}

func invoiceReading(ctx context.Context, readings repository.Repository[UtilityReading], tenancy *Tenancy, readingId *uuid.UUID) (*UtilityReading, error) {
	if readingId == nil {
		reading, err := readings.First(ctx, whereEq("tenancy_id", tenancy.ID), whereEq("is_charged", false), newestReadingFirst)
		if utils.IsKind(err, utils.KindNotFound) {
			return nil, utils.BadRequestError("tenancy has no uncharged utility reading; record a reading first")
		}
		return reading, err
	}
	reading, err := readings.GetById(ctx, *readingId)
	if err != nil {
		return nil, err
	}
	if reading.TenancyId != tenancy.ID {
		return nil, utils.BadRequestError("utility reading does not belong to this tenancy")
	}
	if reading.IsCharged {
		return nil, utils.ConflictError("utility reading has already been invoiced")
	}
	return reading, nil
}

// UpdateInvoice edits a draft or pending invoice and recomputes its amounts.
// Index changes are written back to the linked reading.
func UpdateInvoice(ctx context.Context, id uuid.UUID, input *InvoiceUpdate) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		invoice, err = invoices.GetById(ctx, id)
		if err != nil {
			return err
		}
		if invoice.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can update this invoice")
		}
		if !invoice.editable() {
			return utils.ConflictError("invoice is %s and can no longer be edited", invoice.Status)
		}

		start, end := invoice.BillingPeriodStart, invoice.BillingPeriodEnd
		if input.BillingPeriodStart != nil {
			start = input.BillingPeriodStart.UTC()
		}
		if input.BillingPeriodEnd != nil {
			end = input.BillingPeriodEnd.UTC()
		}
		if err := validateBillingPeriod(start, end); err != nil {
			return err
		}
		invoice.BillingPeriodStart, invoice.BillingPeriodEnd = start, end
		if input.DueDate != nil {
			invoice.DueDate = input.DueDate.UTC()
		}

		if input.ElectricUnitPrice != nil {
			invoice.ElectricUnitPrice = *input.ElectricUnitPrice
		}
		if input.WaterUnitPrice != nil {
			invoice.WaterUnitPrice = *input.WaterUnitPrice
		}
		if err := validateUnitPrices(invoice.ElectricUnitPrice, invoice.WaterUnitPrice); err != nil {
			return err
		}
		if input.OtherFees != nil {
			if input.OtherFees.IsNegative() {
				return utils.BadRequestError("other fees must not be negative")
			}
			invoice.OtherFees = *input.OtherFees
		}

		electricNew, waterNew := invoice.ElectricNewIndex, invoice.WaterNewIndex
		if input.ElectricNewIndex != nil {
			electricNew = *input.ElectricNewIndex
		}
		if input.WaterNewIndex != nil {
			waterNew = *input.WaterNewIndex
		}
		if err := validateIndices(invoice.ElectricOldIndex, electricNew, invoice.WaterOldIndex, waterNew); err != nil {
			return err
		}
		if electricNew != invoice.ElectricNewIndex || waterNew != invoice.WaterNewIndex {
			if err := propagateIndices(ctx, uow, invoice.UtilityReadingId, electricNew, waterNew, c.Id); err != nil {
				return err
			}
			invoice.ElectricNewIndex, invoice.WaterNewIndex = electricNew, waterNew
		}

		invoice.recompute()
		invoice.touch(c.Id)
		return invoices.Update(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func propagateIndices(ctx context.Context, uow *repository.UnitOfWork, readingId uuid.UUID, electricNew, waterNew int, actor uuid.UUID) error {
	readings := repository.For[UtilityReading](uow)
	reading, err := readings.GetById(ctx, readingId)
	if err != nil {
		return err
	}
	if err := ensureLatestReading(ctx, readings, reading); err != nil {
		return err
	}
	reading.ElectricNewIndex = electricNew
	reading.WaterNewIndex = waterNew
	reading.touch(actor)
	return readings.Update(ctx, reading)
}

// SendInvoice issues a draft to the tenant.
func SendInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		invoice, err = invoices.GetById(ctx, id)
		if err != nil {
			return err
		}
		if invoice.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can send this invoice")
		}
		if invoice.Status != InvoiceStatusDraft {
			return utils.BadRequestError("only draft invoices can be sent")
		}
		invoice.Status = InvoiceStatusPending
		invoice.touch(c.Id)
		return invoices.Update(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	publishInvoiceEvent(ctx, EventInvoiceSent, invoice, c.Id)
	return invoice, nil
}

// UpdateInvoiceStatus moves an invoice along its status machine.
// Moving to paid without a payment date stamps the current time.
func UpdateInvoiceStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus, paymentDate *time.Time) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, utils.BadRequestError("invalid invoice status %q", status)
	}

	var invoice *Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		invoice, err = invoices.GetById(ctx, id)
		if err != nil {
			return err
		}
		if invoice.OwnerId != c.Id && !c.isAdmin() {
			return utils.ForbiddenError("only the owner or an admin can change the invoice status")
		}
		if err := invoiceTransitions.validate("invoice", invoice.Status, status); err != nil {
			return err
		}
		if status == InvoiceStatusPaid {
			at := nowUTC()
			if paymentDate != nil {
				at = paymentDate.UTC()
			}
			invoice.PaymentDate = &at
		}
		invoice.Status = status
		invoice.touch(c.Id)
		return invoices.Update(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	publishInvoiceEvent(ctx, "invoice."+string(status), invoice, c.Id)
	return invoice, nil
}

// PayInvoice records a direct payment by the tenant.
func PayInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		invoice, err = invoices.GetById(ctx, id)
		if err != nil {
			return err
		}
		if invoice.TenantId != c.Id {
			return utils.ForbiddenError("only the tenant can pay this invoice")
		}
		if err := ensurePayable(invoice); err != nil {
			return err
		}
		return markInvoicePaid(ctx, uow, invoice, nowUTC(), c.Id)
	})
	if err != nil {
		return nil, err
	}
	publishInvoiceEvent(ctx, EventInvoicePaid, invoice, c.Id)
	return invoice, nil
}

func ensurePayable(invoice *Invoice) error {
	switch invoice.Status {
	case InvoiceStatusPaid:
		return utils.ConflictError("invoice is already paid")
	case InvoiceStatusCancelled:
		return utils.ConflictError("invoice is cancelled")
	case InvoiceStatusDraft:
		return utils.BadRequestError("invoice has not been sent yet")
	}
	return nil
}

func markInvoicePaid(ctx context.Context, uow *repository.UnitOfWork, invoice *Invoice, at time.Time, actor uuid.UUID) error {
	invoice.Status = InvoiceStatusPaid
	invoice.PaymentDate = &at
	invoice.touch(actor)
	return repository.For[Invoice](uow).Update(ctx, invoice)
}

// DeleteInvoice removes a draft and frees its reading for another invoice.
func DeleteInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var invoice *Invoice
	err = transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		invoice, err = invoices.GetById(ctx, id)
		if err != nil {
			return err
		}
		if invoice.OwnerId != c.Id {
			return utils.ForbiddenError("only the owner can delete this invoice")
		}
		if invoice.Status != InvoiceStatusDraft {
			return utils.ConflictError("only draft invoices can be deleted")
		}
		if err := invoices.SoftDelete(ctx, invoice, c.Id); err != nil {
			return err
		}
		readings := repository.For[UtilityReading](uow)
		reading, err := readings.GetById(ctx, invoice.UtilityReadingId)
		if utils.IsKind(err, utils.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		reading.IsCharged = false
		reading.touch(c.Id)
		return readings.Update(ctx, reading)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// UpdateOverdueInvoices marks every pending invoice past its due date as
// overdue. Nothing is written when no invoice matches. An invoice settled
// between the read and the write keeps its new status.
func UpdateOverdueInvoices(ctx context.Context) (int, error) {
	now := nowUTC()
	var overdue []Invoice
	err := transact(ctx, func(uow *repository.UnitOfWork) error {
		invoices := repository.For[Invoice](uow)
		stillPending := whereEq("status", InvoiceStatusPending)
		due, err := invoices.Find(ctx, stillPending, func(db *gorm.DB) *gorm.DB {
			return db.Where("due_date < ?", now)
		})
		if err != nil || len(due) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(due))
		for _, inv := range due {
			ids = append(ids, inv.ID)
		}

		affected, err := invoices.BulkUpdate(ctx, ids, map[string]any{
			"status": InvoiceStatusOverdue,
		}, stillPending)
		if err != nil {
			return err
		}
		if int(affected) == len(due) {
			for i := range due {
				due[i].Status = InvoiceStatusOverdue
			}
			overdue = due
			return nil
		}
		overdue, err = invoices.Find(ctx, whereEq("status", InvoiceStatusOverdue), func(db *gorm.DB) *gorm.DB {
			return db.Where("id IN ?", ids)
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	for i := range overdue {
		publishInvoiceEvent(ctx, EventInvoiceOverdue, &overdue[i], uuid.Nil)
	}
	return len(overdue), nil
}

func GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invoice, err := readRepo[Invoice]().GetById(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.isParty(c.Id) && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this invoice")
	}
	return invoice, nil
}

func GetInvoicesByOwner(ctx context.Context, filter InvoiceFilter, page repository.Pagination) (*repository.Page[Invoice], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return readRepo[Invoice]().Page(ctx, page, whereEq("owner_id", c.Id), filter.scope, orderByNewest)
}

func GetInvoicesByTenant(ctx context.Context, filter InvoiceFilter, page repository.Pagination) (*repository.Page[Invoice], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return readRepo[Invoice]().Page(ctx, page, whereEq("tenant_id", c.Id), filter.scope, orderByNewest)
}

func GetInvoicesByTenancy(ctx context.Context, tenancyId uuid.UUID, filter InvoiceFilter, page repository.Pagination) (*repository.Page[Invoice], error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	tenancy, err := readRepo[Tenancy]().GetById(ctx, tenancyId)
	if err != nil {
		return nil, err
	}
	if !tenancy.isParty(c.Id) && !c.isAdmin() {
		return nil, utils.ForbiddenError("you do not have access to this tenancy")
	}
	return readRepo[Invoice]().Page(ctx, page, whereEq("tenancy_id", tenancyId), filter.scope, orderByNewest)
}

func (f InvoiceFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.PeriodFrom != nil {
		db = db.Where("billing_period_start >= ?", f.PeriodFrom.UTC())
	}
	if f.PeriodTo != nil {
		db = db.Where("billing_period_end <= ?", f.PeriodTo.UTC())
	}
	return db
}

func (inv *Invoice) Number() string {
	return fmt.Sprintf("INV-%s", inv.ID.String()[:8])
}
