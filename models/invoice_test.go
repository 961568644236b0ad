package models

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

type billedLease struct {
	owner    *Account
	tenant   *Account
	property *Property
	tenancy  *Tenancy
	reading  *UtilityReading
}

// newBilledLease sets up an active lease with one uncharged reading:
// electric 100 -> 150 and water 50 -> 60.
func newBilledLease(f *fixture) *billedLease {
	l := &billedLease{
		owner:  f.account(AccountRoleOwner),
		tenant: f.account(AccountRoleUser),
	}
	l.property = f.property(l.owner, "15000000")
	l.tenancy = f.activeTenancy(l.owner, l.tenant, l.property, baseline(100, 50))
	l.reading = f.reading(l.owner, l.tenancy, 150, 60, time.Now().UTC().AddDate(0, 0, -1))
	return l
}

func TestCreateInvoiceTotals(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)

	inv := f.invoice(l.owner, l.tenancy, false)
	assert.Equal(t, InvoiceStatusPending, inv.Status)
	assert.Equal(t, l.reading.ID, inv.UtilityReadingId)
	assert.Equal(t, l.tenant.ID, inv.TenantId)
	assert.Equal(t, l.owner.ID, inv.OwnerId)
	assertAmount(t, "15000000", inv.MonthlyRentPrice)
	assertAmount(t, "175000", inv.ElectricCost)
	assertAmount(t, "250000", inv.WaterCost)
	assertAmount(t, "15425000", inv.TotalAmount)
	assert.Contains(t, inv.Number(), "INV-")

	var stored Invoice
	f.reload(&stored, inv.ID)
	assertAmount(t, "15425000", stored.TotalAmount)

	var reading UtilityReading
	f.reload(&reading, l.reading.ID)
	assert.True(t, reading.IsCharged)
}

func TestCreateInvoiceRejects(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	now := time.Now().UTC()
	input := func() *NewInvoice {
		return &NewInvoice{
			TenancyId:          l.tenancy.ID,
			BillingPeriodStart: now.AddDate(0, -1, 0),
			BillingPeriodEnd:   now,
			DueDate:            now.AddDate(0, 0, 10),
		}
	}

	_, err := CreateInvoice(as(l.tenant), input())
	requireKind(t, err, utils.KindForbidden)

	bad := input()
	bad.BillingPeriodEnd = now.AddDate(0, -2, 0)
	_, err = CreateInvoice(as(l.owner), bad)
	requireKind(t, err, utils.KindBadRequest)

	bad = input()
	bad.OtherFees = dec("-1")
	_, err = CreateInvoice(as(l.owner), bad)
	requireKind(t, err, utils.KindBadRequest)

	lower := 90
	bad = input()
	bad.ElectricNewIndex = &lower
	_, err = CreateInvoice(as(l.owner), bad)
	requireKind(t, err, utils.KindBadRequest)

	f.invoice(l.owner, l.tenancy, false)

	_, err = CreateInvoice(as(l.owner), input())
	requireKind(t, err, utils.KindBadRequest)

	again := input()
	again.UtilityReadingId = &l.reading.ID
	_, err = CreateInvoice(as(l.owner), again)
	requireKind(t, err, utils.KindConflict)
}

func TestCreateInvoiceOverridesPricesAndIndices(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	now := time.Now().UTC()
	electric := 160
	price := dec("4000")

	inv, err := CreateInvoice(as(l.owner), &NewInvoice{
		TenancyId:          l.tenancy.ID,
		UtilityReadingId:   &l.reading.ID,
		BillingPeriodStart: now.AddDate(0, -1, 0),
		BillingPeriodEnd:   now,
		DueDate:            now.AddDate(0, 0, 10),
		ElectricNewIndex:   &electric,
		ElectricUnitPrice:  &price,
		OtherFees:          dec("100000"),
		AsDraft:            true,
	})
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assertAmount(t, "240000", inv.ElectricCost)
	assertAmount(t, "15590000", inv.TotalAmount)

	var reading UtilityReading
	f.reload(&reading, l.reading.ID)
	assert.Equal(t, 160, reading.ElectricNewIndex)
}

func TestUpdateInvoiceRecomputesAndPropagates(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, true)

	electric := 160
	fees := dec("50000")
	updated, err := UpdateInvoice(as(l.owner), inv.ID, &InvoiceUpdate{ElectricNewIndex: &electric, OtherFees: &fees})
	require.NoError(t, err)
	assertAmount(t, "210000", updated.ElectricCost)
	assertAmount(t, "15510000", updated.TotalAmount)

	var reading UtilityReading
	f.reload(&reading, l.reading.ID)
	assert.Equal(t, 160, reading.ElectricNewIndex)

	_, err = UpdateInvoice(as(l.tenant), inv.ID, &InvoiceUpdate{OtherFees: &fees})
	requireKind(t, err, utils.KindForbidden)

	lower := 90
	_, err = UpdateInvoice(as(l.owner), inv.ID, &InvoiceUpdate{ElectricNewIndex: &lower})
	requireKind(t, err, utils.KindBadRequest)

	_, err = UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatusCancelled, nil)
	require.NoError(t, err)
	_, err = UpdateInvoice(as(l.owner), inv.ID, &InvoiceUpdate{OtherFees: &fees})
	requireKind(t, err, utils.KindConflict)
}

func TestPayInvoice(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, false)

	_, err := PayInvoice(as(l.owner), inv.ID)
	requireKind(t, err, utils.KindForbidden)

	paid, err := PayInvoice(as(l.tenant), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentDate)

	_, err = PayInvoice(as(l.tenant), inv.ID)
	requireKind(t, err, utils.KindConflict)
	assert.Contains(t, err.Error(), "already paid")
}

func TestPayDraftInvoiceRejected(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, true)

	_, err := PayInvoice(as(l.tenant), inv.ID)
	requireKind(t, err, utils.KindBadRequest)

	sent, err := SendInvoice(as(l.owner), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPending, sent.Status)

	_, err = SendInvoice(as(l.owner), inv.ID)
	requireKind(t, err, utils.KindBadRequest)

	_, err = PayInvoice(as(l.tenant), inv.ID)
	require.NoError(t, err)
}

func TestUpdateInvoiceStatusGuardsTransitions(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, false)

	_, err := UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatusDraft, nil)
	requireKind(t, err, utils.KindBadRequest)

	_, err = UpdateInvoiceStatus(as(l.tenant), inv.ID, InvoiceStatusPaid, nil)
	requireKind(t, err, utils.KindForbidden)

	_, err = UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatus("refunded"), nil)
	requireKind(t, err, utils.KindBadRequest)

	paidOn := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	paid, err := UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatusPaid, &paidOn)
	require.NoError(t, err)
	require.NotNil(t, paid.PaymentDate)
	assert.True(t, paidOn.Equal(*paid.PaymentDate))

	_, err = UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatusCancelled, nil)
	requireKind(t, err, utils.KindBadRequest)
}

func TestDeleteDraftInvoiceReleasesReading(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	draft := f.invoice(l.owner, l.tenancy, true)

	deleted, err := DeleteInvoice(as(l.owner), draft.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)

	var reading UtilityReading
	f.reload(&reading, l.reading.ID)
	assert.False(t, reading.IsCharged)

	_, err = GetInvoice(as(l.owner), draft.ID)
	requireKind(t, err, utils.KindNotFound)

	pending := f.invoice(l.owner, l.tenancy, false)
	assert.Equal(t, l.reading.ID, pending.UtilityReadingId)

	_, err = DeleteInvoice(as(l.owner), pending.ID)
	requireKind(t, err, utils.KindConflict)
}

func TestCancelledInvoiceKeepsReadingCharged(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, false)

	_, err := UpdateInvoiceStatus(as(l.owner), inv.ID, InvoiceStatusCancelled, nil)
	require.NoError(t, err)

	var reading UtilityReading
	f.reload(&reading, l.reading.ID)
	assert.True(t, reading.IsCharged)

	_, err = PayInvoice(as(l.tenant), inv.ID)
	requireKind(t, err, utils.KindConflict)
}

func TestUpdateOverdueInvoicesKeepsInvoicePaidMidSweep(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	now := time.Now().UTC()
	inv, err := CreateInvoice(as(l.owner), &NewInvoice{
		TenancyId:          l.tenancy.ID,
		BillingPeriodStart: now.AddDate(0, -1, 0),
		BillingPeriodEnd:   now,
		DueDate:            now.AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	f.onFirstQuery("invoices", func(tx *gorm.DB) {
		require.NoError(t, tx.Exec("UPDATE invoices SET status = ? WHERE id = ?", string(InvoiceStatusPaid), inv.ID).Error)
	})
	n, err := UpdateOverdueInvoices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	var stored Invoice
	f.reload(&stored, inv.ID)
	assert.Equal(t, InvoiceStatusPaid, stored.Status)
}

func TestUpdateOverdueInvoices(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	now := time.Now().UTC()

	overdue, err := CreateInvoice(as(l.owner), &NewInvoice{
		TenancyId:          l.tenancy.ID,
		BillingPeriodStart: now.AddDate(0, -2, 0),
		BillingPeriodEnd:   now.AddDate(0, -1, 0),
		DueDate:            now.AddDate(0, 0, -1),
	})
	require.NoError(t, err)

	f.reading(l.owner, l.tenancy, 170, 65, now)
	draft, err := CreateInvoice(as(l.owner), &NewInvoice{
		TenancyId:          l.tenancy.ID,
		BillingPeriodStart: now.AddDate(0, -1, 0),
		BillingPeriodEnd:   now,
		DueDate:            now.AddDate(0, 0, -1),
		AsDraft:            true,
	})
	require.NoError(t, err)

	n, err := UpdateOverdueInvoices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var stored Invoice
	f.reload(&stored, overdue.ID)
	assert.Equal(t, InvoiceStatusOverdue, stored.Status)
	f.reload(&stored, draft.ID)
	assert.Equal(t, InvoiceStatusDraft, stored.Status)

	before := f.writes.Load()
	n, err = UpdateOverdueInvoices(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, f.writes.Load())

	paid, err := PayInvoice(as(l.tenant), overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, paid.Status)
}

func TestInvoiceListings(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	stranger := f.account(AccountRoleUser)
	inv := f.invoice(l.owner, l.tenancy, false)

	byOwner, err := GetInvoicesByOwner(as(l.owner), InvoiceFilter{}, defaultPage)
	require.NoError(t, err)
	require.Len(t, byOwner.Items, 1)
	assert.Equal(t, inv.ID, byOwner.Items[0].ID)

	status := InvoiceStatusPaid
	byTenant, err := GetInvoicesByTenant(as(l.tenant), InvoiceFilter{Status: &status}, defaultPage)
	require.NoError(t, err)
	assert.Empty(t, byTenant.Items)

	byTenancy, err := GetInvoicesByTenancy(as(l.tenant), l.tenancy.ID, InvoiceFilter{}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byTenancy.Total)

	_, err = GetInvoicesByTenancy(as(stranger), l.tenancy.ID, InvoiceFilter{}, defaultPage)
	requireKind(t, err, utils.KindForbidden)
	_, err = GetInvoice(as(stranger), inv.ID)
	requireKind(t, err, utils.KindForbidden)
}

func TestOwnerRevenue(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	first := f.invoice(l.owner, l.tenancy, false)
	_, err := PayInvoice(as(l.tenant), first.ID)
	require.NoError(t, err)

	f.reading(l.owner, l.tenancy, 160, 62, time.Now().UTC())
	second := f.invoice(l.owner, l.tenancy, false)

	f.reading(l.owner, l.tenancy, 165, 63, time.Now().UTC())
	f.invoice(l.owner, l.tenancy, true)

	summary, err := GetOwnerRevenue(as(l.owner), nil, nil)
	require.NoError(t, err)
	assertAmount(t, "15425000", summary.Paid)
	assertAmount(t, second.TotalAmount.String(), summary.Outstanding)
	assert.Equal(t, 1, summary.PaidCount)
	assert.Equal(t, 1, summary.OutstandingCount)
	require.Len(t, summary.ByProperty, 1)
	assert.Equal(t, l.property.ID, summary.ByProperty[0].PropertyId)

	from := time.Now().UTC()
	to := from.AddDate(0, -1, 0)
	_, err = GetOwnerRevenue(as(l.owner), &from, &to)
	requireKind(t, err, utils.KindBadRequest)

	empty, err := GetOwnerRevenue(as(l.tenant), nil, nil)
	require.NoError(t, err)
	assert.True(t, empty.Paid.IsZero())
	assert.Empty(t, empty.ByProperty)
}

func TestExportInvoices(t *testing.T) {
	f := newFixture(t)
	l := newBilledLease(f)
	inv := f.invoice(l.owner, l.tenancy, false)

	data, err := ExportInvoices(as(l.owner), InvoiceFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	book, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(invoiceSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Invoice", rows[0][0])
	assert.Equal(t, inv.Number(), rows[1][0])
	assert.Equal(t, string(InvoiceStatusPending), rows[1][6])
}
