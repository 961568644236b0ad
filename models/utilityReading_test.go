package models

import (
	"testing"
	"time"

	"github.com/homerly/rental_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadingChainStartsFromBaseline(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)
	property := f.property(owner, "15000000")
	tenancy := f.activeTenancy(owner, tenant, property, baseline(100, 50))
	day := time.Now().UTC().AddDate(0, 0, -10)

	first, err := CreateUtilityReading(as(owner), &NewUtilityReading{
		PropertyId:       property.ID,
		TenancyId:        tenancy.ID,
		ReadingDate:      &day,
		ElectricNewIndex: 150,
		WaterNewIndex:    60,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, first.ElectricOldIndex)
	assert.Equal(t, 50, first.WaterOldIndex)
	assert.Equal(t, 50, first.ElectricUsage)
	assert.Equal(t, 10, first.WaterUsage)
	assert.False(t, first.IsCharged)

	later := day.AddDate(0, 0, 5)
	_, err = CreateUtilityReading(as(owner), &NewUtilityReading{
		PropertyId:       property.ID,
		TenancyId:        tenancy.ID,
		ReadingDate:      &later,
		ElectricNewIndex: 140,
		WaterNewIndex:    70,
	})
	requireKind(t, err, utils.KindBadRequest)

	second := f.reading(tenant, tenancy, 180, 62, later)
	assert.Equal(t, 150, second.ElectricOldIndex)
	assert.Equal(t, 60, second.WaterOldIndex)

	latest, err := GetLatestUtilityReading(as(tenant), property.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	resp, err := GetTenancy(as(owner), tenancy.ID)
	require.NoError(t, err)
	require.NotNil(t, resp.LatestElectricIndex)
	assert.Equal(t, 180, *resp.LatestElectricIndex)
	assert.Equal(t, 62, *resp.LatestWaterIndex)
}

func TestCreateReadingRejects(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)
	stranger := f.account(AccountRoleUser)
	property := f.property(owner, "5000000")
	other := f.property(owner, "5000000")
	tenancy := f.activeTenancy(owner, tenant, property, baseline(100, 50))
	day := time.Now().UTC()

	_, err := CreateUtilityReading(as(stranger), &NewUtilityReading{PropertyId: property.ID, TenancyId: tenancy.ID, ReadingDate: &day, ElectricNewIndex: 120, WaterNewIndex: 55})
	requireKind(t, err, utils.KindForbidden)

	_, err = CreateUtilityReading(as(owner), &NewUtilityReading{PropertyId: other.ID, TenancyId: tenancy.ID, ReadingDate: &day, ElectricNewIndex: 120, WaterNewIndex: 55})
	requireKind(t, err, utils.KindBadRequest)

	_, err = CreateUtilityReading(as(owner), &NewUtilityReading{PropertyId: property.ID, TenancyId: tenancy.ID, ReadingDate: &day, ElectricNewIndex: 120, WaterNewIndex: 40})
	requireKind(t, err, utils.KindBadRequest)
	assert.Contains(t, err.Error(), "water")

	f.reading(owner, tenancy, 120, 55, day)
	earlier := day.AddDate(0, 0, -3)
	_, err = CreateUtilityReading(as(owner), &NewUtilityReading{PropertyId: property.ID, TenancyId: tenancy.ID, ReadingDate: &earlier, ElectricNewIndex: 130, WaterNewIndex: 58})
	requireKind(t, err, utils.KindBadRequest)
}

func TestOnlyLatestReadingChanges(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)
	property := f.property(owner, "5000000")
	tenancy := f.activeTenancy(owner, tenant, property, baseline(0, 0))
	day := time.Now().UTC().AddDate(0, 0, -20)

	first := f.reading(owner, tenancy, 10, 2, day)
	second := f.reading(owner, tenancy, 25, 4, day.AddDate(0, 0, 10))

	_, err := UpdateUtilityReading(as(owner), first.ID, &UtilityReadingUpdate{ElectricNewIndex: 12, WaterNewIndex: 3})
	requireKind(t, err, utils.KindConflict)
	_, err = DeleteUtilityReading(as(owner), first.ID)
	requireKind(t, err, utils.KindConflict)

	updated, err := UpdateUtilityReading(as(tenant), second.ID, &UtilityReadingUpdate{ElectricNewIndex: 30, WaterNewIndex: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.ElectricUsage)
	assert.Equal(t, 1, updated.WaterUsage)

	_, err = UpdateUtilityReading(as(owner), second.ID, &UtilityReadingUpdate{ElectricNewIndex: 5, WaterNewIndex: 5})
	requireKind(t, err, utils.KindBadRequest)

	_, err = DeleteUtilityReading(as(tenant), second.ID)
	requireKind(t, err, utils.KindForbidden)

	_, err = DeleteUtilityReading(as(owner), second.ID)
	require.NoError(t, err)

	third := f.reading(owner, tenancy, 14, 2, day.AddDate(0, 0, 12))
	assert.Equal(t, 10, third.ElectricOldIndex)
}

func TestChargedReadingIsFrozen(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)
	property := f.property(owner, "5000000")
	tenancy := f.activeTenancy(owner, tenant, property)
	reading := f.reading(owner, tenancy, 10, 2, time.Now().UTC())

	_, err := MarkUtilityReadingCharged(as(tenant), reading.ID)
	requireKind(t, err, utils.KindForbidden)

	charged, err := MarkUtilityReadingCharged(as(owner), reading.ID)
	require.NoError(t, err)
	assert.True(t, charged.IsCharged)

	_, err = MarkUtilityReadingCharged(as(owner), reading.ID)
	requireKind(t, err, utils.KindConflict)
	_, err = UpdateUtilityReading(as(owner), reading.ID, &UtilityReadingUpdate{ElectricNewIndex: 11, WaterNewIndex: 2})
	requireKind(t, err, utils.KindConflict)
	_, err = DeleteUtilityReading(as(owner), reading.ID)
	requireKind(t, err, utils.KindConflict)
}

func TestReadingsByPropertyScopedForTenants(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	former := f.account(AccountRoleUser)
	current := f.account(AccountRoleUser)
	stranger := f.account(AccountRoleUser)
	property := f.property(owner, "5000000")
	now := time.Now().UTC()

	old := f.activeTenancy(owner, former, property)
	f.reading(owner, old, 10, 2, now.AddDate(0, -2, 0))
	_, err := CancelTenancy(as(owner), old.ID)
	require.NoError(t, err)

	active := f.activeTenancy(owner, current, property)
	f.reading(owner, active, 20, 3, now)

	all, err := GetUtilityReadingsByProperty(as(owner), property.ID, UtilityReadingFilter{}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)

	own, err := GetUtilityReadingsByProperty(as(current), property.ID, UtilityReadingFilter{}, defaultPage)
	require.NoError(t, err)
	require.Len(t, own.Items, 1)
	assert.Equal(t, active.ID, own.Items[0].TenancyId)

	_, err = GetUtilityReadingsByProperty(as(stranger), property.ID, UtilityReadingFilter{}, defaultPage)
	requireKind(t, err, utils.KindForbidden)

	uncharged := false
	byTenancy, err := GetUtilityReadingsByTenancy(as(former), old.ID, UtilityReadingFilter{IsCharged: &uncharged}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 1, byTenancy.Total)
}
