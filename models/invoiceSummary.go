package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type PropertyRevenue struct {
	PropertyId  uuid.UUID       `json:"property_id"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type RevenueSummary struct {
	From             *time.Time        `json:"from,omitempty"`
	To               *time.Time        `json:"to,omitempty"`
	Paid             decimal.Decimal   `json:"paid"`
	Outstanding      decimal.Decimal   `json:"outstanding"`
	PaidCount        int               `json:"paid_count"`
	OutstandingCount int               `json:"outstanding_count"`
	ByProperty       []PropertyRevenue `json:"by_property"`
}

// GetOwnerRevenue totals the calling owner's paid and outstanding invoices
// whose billing period starts within [from, to].
func GetOwnerRevenue(ctx context.Context, from, to *time.Time) (*RevenueSummary, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, utils.BadRequestError("revenue range end must not be before its start")
	}

	invoices, err := readRepo[Invoice]().Find(ctx, whereEq("owner_id", c.Id), func(db *gorm.DB) *gorm.DB {
		db = db.Where("status IN ?", []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusPending, InvoiceStatusOverdue})
		if from != nil {
			db = db.Where("billing_period_start >= ?", from.UTC())
		}
		if to != nil {
			db = db.Where("billing_period_start <= ?", to.UTC())
		}
		return db.Order("property_id")
	})
	if err != nil {
		return nil, err
	}

	summary := &RevenueSummary{From: from, To: to, Paid: decimal.Zero, Outstanding: decimal.Zero, ByProperty: []PropertyRevenue{}}
	index := make(map[uuid.UUID]int)
	for _, inv := range invoices {
		i, ok := index[inv.PropertyId]
		if !ok {
			i = len(summary.ByProperty)
			index[inv.PropertyId] = i
			summary.ByProperty = append(summary.ByProperty, PropertyRevenue{PropertyId: inv.PropertyId, Paid: decimal.Zero, Outstanding: decimal.Zero})
		}
		row := &summary.ByProperty[i]
		if inv.Status == InvoiceStatusPaid {
			summary.Paid = summary.Paid.Add(inv.TotalAmount)
			summary.PaidCount++
			row.Paid = row.Paid.Add(inv.TotalAmount)
		} else {
			summary.Outstanding = summary.Outstanding.Add(inv.TotalAmount)
			summary.OutstandingCount++
			row.Outstanding = row.Outstanding.Add(inv.TotalAmount)
		}
	}
	return summary, nil
}

const invoiceSheet = "Invoices"

var invoiceSheetHeader = []any{
	"Invoice", "Property", "Tenancy", "Period Start", "Period End", "Due Date", "Status",
	"Rent", "Electric Usage", "Electric Cost", "Water Usage", "Water Cost", "Other Fees", "Total", "Paid On",
}

// ExportInvoices renders the calling owner's invoices as an xlsx workbook.
func ExportInvoices(ctx context.Context, filter InvoiceFilter) ([]byte, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invoices, err := readRepo[Invoice]().Find(ctx, whereEq("owner_id", c.Id), filter.scope, func(db *gorm.DB) *gorm.DB {
		return db.Order("billing_period_start asc")
	})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, utils.InternalError("failed to prepare invoice sheet", err)
	}
	if err := f.SetSheetRow(invoiceSheet, "A1", &invoiceSheetHeader); err != nil {
		return nil, utils.InternalError("failed to write invoice sheet", err)
	}
	for i, inv := range invoices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, utils.InternalError("failed to write invoice sheet", err)
		}
		paidOn := ""
		if inv.PaymentDate != nil {
			paidOn = inv.PaymentDate.Format(time.DateOnly)
		}
		row := []any{
			inv.Number(),
			inv.PropertyId.String(),
			inv.TenancyId.String(),
			inv.BillingPeriodStart.Format(time.DateOnly),
			inv.BillingPeriodEnd.Format(time.DateOnly),
			inv.DueDate.Format(time.DateOnly),
			string(inv.Status),
			inv.MonthlyRentPrice.Round(2).InexactFloat64(),
			inv.ElectricNewIndex - inv.ElectricOldIndex,
			inv.ElectricCost.Round(2).InexactFloat64(),
			inv.WaterNewIndex - inv.WaterOldIndex,
			inv.WaterCost.Round(2).InexactFloat64(),
			inv.OtherFees.Round(2).InexactFloat64(),
			inv.TotalAmount.Round(2).InexactFloat64(),
			paidOn,
		}
		if err := f.SetSheetRow(invoiceSheet, cell, &row); err != nil {
			return nil, utils.InternalError("failed to write invoice sheet", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		config.LogError(config.GetLogger().WithContext(ctx), "models", "ExportInvoices", "write workbook", nil, err)
		return nil, utils.InternalError("failed to export invoices", err)
	}
	return buf.Bytes(), nil
}
