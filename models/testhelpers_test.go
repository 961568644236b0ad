package models

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/homerly/rental_backend/config"
	"github.com/homerly/rental_backend/gateway"
	"github.com/homerly/rental_backend/repository"
	"github.com/homerly/rental_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var defaultPage = repository.Pagination{Page: 1, PageSize: 20}

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	writes atomic.Int64
}

// newFixture points the package at a fresh in-memory database.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	f := &fixture{t: t, db: db}
	count := func(*gorm.DB) { f.writes.Add(1) }
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:count_create", count))
	require.NoError(t, db.Callback().Update().After("gorm:update").Register("test:count_update", count))
	require.NoError(t, db.Callback().Delete().After("gorm:delete").Register("test:count_delete", count))

	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		_ = sqlDB.Close()
	})
	return f
}

// onFirstQuery runs fn inside the connection of the first later query on
// table, right after its rows are read.
func (f *fixture) onFirstQuery(table string, fn func(tx *gorm.DB)) {
	f.t.Helper()
	var fired atomic.Bool
	name := "test:after_query_" + table
	require.NoError(f.t, f.db.Callback().Query().After("gorm:query").Register(name, func(db *gorm.DB) {
		if db.Statement.Table != table || !fired.CompareAndSwap(false, true) {
			return
		}
		fn(db.Session(&gorm.Session{NewDB: true}))
	}))
	f.t.Cleanup(func() { _ = f.db.Callback().Query().Remove(name) })
}

func (f *fixture) account(role AccountRole) *Account {
	f.t.Helper()
	account := Account{
		Email:           uuid.NewString()[:8] + "@homerly.test",
		PasswordHash:    "x",
		Role:            role,
		FullName:        string(role) + " account",
		IsOwnerApproved: role == AccountRoleOwner,
	}
	require.NoError(f.t, f.db.Create(&account).Error)
	return &account
}

func as(a *Account) context.Context {
	return utils.SetCallerInContext(context.Background(), a.ID, string(a.Role))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) property(owner *Account, rent string) *Property {
	f.t.Helper()
	property, err := CreateProperty(as(owner), &NewProperty{
		Title:       "Riverside studio",
		Address:     "12 Nguyen Hue, District 1",
		MonthlyRent: dec(rent),
		AreaSqm:     dec("35"),
	})
	require.NoError(f.t, err)
	return property
}

type tenancyOption func(*NewTenancy)

func leaseDates(start, end time.Time) tenancyOption {
	return func(n *NewTenancy) {
		n.StartDate, n.EndDate = start, end
	}
}

func baseline(electric, water int) tenancyOption {
	return func(n *NewTenancy) {
		n.ElectricOldIndex, n.WaterOldIndex = electric, water
	}
}

// pendingTenancy creates a lease awaiting the tenant's confirmation.
func (f *fixture) pendingTenancy(owner, tenant *Account, property *Property, opts ...tenancyOption) *Tenancy {
	f.t.Helper()
	now := time.Now().UTC()
	input := &NewTenancy{
		PropertyId:        property.ID,
		TenantId:          tenant.ID,
		StartDate:         now.AddDate(0, -1, 0),
		EndDate:           now.AddDate(0, 11, 0),
		ElectricUnitPrice: dec("3500"),
		WaterUnitPrice:    dec("25000"),
	}
	for _, opt := range opts {
		opt(input)
	}
	resp, err := CreateTenancy(as(owner), input)
	require.NoError(f.t, err)
	return &resp.Tenancy
}

func (f *fixture) activeTenancy(owner, tenant *Account, property *Property, opts ...tenancyOption) *Tenancy {
	f.t.Helper()
	tenancy := f.pendingTenancy(owner, tenant, property, opts...)
	resp, err := ConfirmTenancy(as(tenant), tenancy.ID)
	require.NoError(f.t, err)
	return &resp.Tenancy
}

func (f *fixture) reading(actor *Account, tenancy *Tenancy, electric, water int, at time.Time) *UtilityReading {
	f.t.Helper()
	resp, err := CreateUtilityReading(as(actor), &NewUtilityReading{
		PropertyId:       tenancy.PropertyId,
		TenancyId:        tenancy.ID,
		ReadingDate:      &at,
		ElectricNewIndex: electric,
		WaterNewIndex:    water,
	})
	require.NoError(f.t, err)
	return &resp.UtilityReading
}

func (f *fixture) invoice(owner *Account, tenancy *Tenancy, draft bool) *Invoice {
	f.t.Helper()
	now := time.Now().UTC()
	inv, err := CreateInvoice(as(owner), &NewInvoice{
		TenancyId:          tenancy.ID,
		BillingPeriodStart: now.AddDate(0, -1, 0),
		BillingPeriodEnd:   now,
		DueDate:            now.AddDate(0, 0, 10),
		AsDraft:            draft,
	})
	require.NoError(f.t, err)
	return inv
}

func (f *fixture) reload(dest any, id uuid.UUID) {
	f.t.Helper()
	require.NoError(f.t, f.db.First(dest, "id = ?", id).Error)
}

func requireKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, utils.KindOf(err), "unexpected error: %v", err)
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func useMemoryStorage(t *testing.T) *memoryStorage {
	s := &memoryStorage{objects: map[string][]byte{}}
	previous := utils.GetObjectStorage()
	utils.SetObjectStorage(s)
	t.Cleanup(func() { utils.SetObjectStorage(previous) })
	return s
}

func (s *memoryStorage) Upload(_ context.Context, objectKey string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey] = data
	return "https://storage.test/" + objectKey, nil
}

func (s *memoryStorage) Delete(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey)
	return nil
}

type fakeGateway struct {
	requests []gateway.CheckoutRequest
	err      error
}

func useFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{}
	gateway.SetGateway(g)
	t.Cleanup(func() { gateway.SetGateway(nil) })
	return g
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	id := "cs_test_" + req.Metadata[metadataPaymentId][:8]
	return &gateway.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}
