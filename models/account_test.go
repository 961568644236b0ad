package models

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/homerly/rental_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	newFixture(t)
	ctx := context.Background()

	account, err := RegisterAccount(ctx, &NewAccount{
		Email:    "  Tenant@Homerly.Test ",
		Password: "secret123",
		FullName: "Tran Thi B",
		Role:     AccountRoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant@homerly.test", account.Email)
	assert.NotEqual(t, "secret123", account.PasswordHash)

	_, err = RegisterAccount(ctx, &NewAccount{Email: "tenant@homerly.test", Password: "secret123", FullName: "Again", Role: AccountRoleUser})
	requireKind(t, err, utils.KindConflict)

	_, err = RegisterAccount(ctx, &NewAccount{Email: "admin@homerly.test", Password: "secret123", FullName: "Sneaky", Role: AccountRoleAdmin})
	requireKind(t, err, utils.KindBadRequest)

	_, err = RegisterAccount(ctx, &NewAccount{Email: "short@homerly.test", Password: "123", FullName: "Short", Role: AccountRoleUser})
	requireKind(t, err, utils.KindBadRequest)

	info, err := Login(ctx, "TENANT@homerly.test", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, info.Token)
	assert.Equal(t, account.ID, info.Account.ID)

	claims, id, err := utils.ParseJwtClaims(info.Token)
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)
	assert.Equal(t, string(AccountRoleUser), claims.Role)

	_, err = Login(ctx, "tenant@homerly.test", "wrong-password")
	requireKind(t, err, utils.KindBadRequest)
	_, err = Login(ctx, "nobody@homerly.test", "secret123")
	requireKind(t, err, utils.KindBadRequest)
}

func TestOwnerNeedsApprovalToList(t *testing.T) {
	f := newFixture(t)
	admin := f.account(AccountRoleAdmin)
	owner, err := RegisterAccount(context.Background(), &NewAccount{
		Email:    "owner@homerly.test",
		Password: "secret123",
		FullName: "Nguyen Van A",
		Role:     AccountRoleOwner,
	})
	require.NoError(t, err)
	assert.False(t, owner.IsOwnerApproved)

	listing := &NewProperty{Title: "Loft", Address: "1 Le Loi", MonthlyRent: dec("8000000")}
	_, err = CreateProperty(as(owner), listing)
	requireKind(t, err, utils.KindForbidden)

	_, err = ApproveOwner(as(owner), owner.ID)
	requireKind(t, err, utils.KindForbidden)

	approved, err := ApproveOwner(as(admin), owner.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsOwnerApproved)

	_, err = ApproveOwner(as(admin), owner.ID)
	requireKind(t, err, utils.KindConflict)

	property, err := CreateProperty(as(owner), listing)
	require.NoError(t, err)
	assert.Equal(t, PropertyStatusAvailable, property.Status)
}

func TestPropertyUpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)
	property := f.property(owner, "5000000")

	_, err := UpdateProperty(as(tenant), property.ID, &NewProperty{Title: "Mine", Address: "x", MonthlyRent: dec("1")})
	requireKind(t, err, utils.KindForbidden)

	_, err = UpdateProperty(as(owner), property.ID, &NewProperty{Title: "Loft", Address: "1 Le Loi", MonthlyRent: dec("0")})
	requireKind(t, err, utils.KindBadRequest)

	updated, err := UpdateProperty(as(owner), property.ID, &NewProperty{Title: "Loft", Address: "1 Le Loi", MonthlyRent: dec("6000000")})
	require.NoError(t, err)
	assert.Equal(t, "Loft", updated.Title)

	search, err := GetProperties(as(tenant), PropertyFilter{Search: "Lof"}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 1, search.Total)

	tenancy := f.activeTenancy(owner, tenant, property)
	_, err = DeleteProperty(as(owner), property.ID)
	requireKind(t, err, utils.KindConflict)

	_, err = CancelTenancy(as(owner), tenancy.ID)
	require.NoError(t, err)
	_, err = DeleteProperty(as(owner), property.ID)
	require.NoError(t, err)
	_, err = GetProperty(as(owner), property.ID)
	requireKind(t, err, utils.KindNotFound)
}

func TestSetPropertyImage(t *testing.T) {
	f := newFixture(t)
	store := useMemoryStorage(t)
	owner := f.account(AccountRoleOwner)
	property := f.property(owner, "5000000")

	img := image.NewRGBA(image.Rect(0, 0, 400, 300))
	for x := 0; x < 400; x++ {
		img.Set(x, x%300, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	updated, err := SetPropertyImage(as(owner), property.ID, "front.png", buf.Bytes())
	require.NoError(t, err)
	assert.NotEmpty(t, updated.ImageUrl)
	assert.Contains(t, updated.ThumbnailUrl, "/thumbnails/")
	assert.Len(t, store.objects, 2)

	_, err = SetPropertyImage(as(owner), property.ID, "notes.txt", []byte("hello"))
	requireKind(t, err, utils.KindBadRequest)
}

func TestAccountAdministration(t *testing.T) {
	f := newFixture(t)
	admin := f.account(AccountRoleAdmin)
	owner := f.account(AccountRoleOwner)
	tenant := f.account(AccountRoleUser)

	_, err := GetAccounts(as(tenant), AccountFilter{}, defaultPage)
	requireKind(t, err, utils.KindForbidden)

	all, err := GetAccounts(as(admin), AccountFilter{}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 3, all.Total)

	owners := AccountRoleOwner
	byRole, err := GetAccounts(as(admin), AccountFilter{Role: &owners}, defaultPage)
	require.NoError(t, err)
	require.Len(t, byRole.Items, 1)
	assert.Equal(t, owner.ID, byRole.Items[0].ID)

	search, err := GetAccounts(as(admin), AccountFilter{Search: tenant.Email[:6]}, defaultPage)
	require.NoError(t, err)
	require.Len(t, search.Items, 1)
	assert.Equal(t, tenant.ID, search.Items[0].ID)

	future := time.Now().UTC().Add(time.Hour)
	none, err := GetAccounts(as(admin), AccountFilter{CreatedFrom: &future}, defaultPage)
	require.NoError(t, err)
	assert.Zero(t, none.Total)

	_, err = DeleteAccount(as(owner), tenant.ID)
	requireKind(t, err, utils.KindForbidden)
	_, err = DeleteAccount(as(admin), admin.ID)
	requireKind(t, err, utils.KindBadRequest)

	_, err = DeleteAccount(as(admin), tenant.ID)
	require.NoError(t, err)
	_, err = DeleteAccount(as(admin), tenant.ID)
	requireKind(t, err, utils.KindNotFound)

	live, err := GetAccounts(as(admin), AccountFilter{}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 2, live.Total)
	deleted, err := GetAccounts(as(admin), AccountFilter{IsDeleted: utils.NewTrue()}, defaultPage)
	require.NoError(t, err)
	require.Len(t, deleted.Items, 1)
	assert.Equal(t, tenant.ID, deleted.Items[0].ID)

	restored, err := RestoreAccount(as(admin), tenant.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	_, err = RestoreAccount(as(admin), tenant.ID)
	requireKind(t, err, utils.KindNotFound)
}

func TestChangeAccountRole(t *testing.T) {
	f := newFixture(t)
	admin := f.account(AccountRoleAdmin)
	tenant := f.account(AccountRoleUser)
	owner := f.account(AccountRoleOwner)

	_, err := ChangeAccountRole(as(tenant), owner.ID, AccountRoleUser)
	requireKind(t, err, utils.KindForbidden)
	_, err = ChangeAccountRole(as(admin), tenant.ID, AccountRole("landlord"))
	requireKind(t, err, utils.KindBadRequest)
	_, err = ChangeAccountRole(as(admin), admin.ID, AccountRoleUser)
	requireKind(t, err, utils.KindBadRequest)

	promoted, err := ChangeAccountRole(as(admin), tenant.ID, AccountRoleOwner)
	require.NoError(t, err)
	assert.Equal(t, AccountRoleOwner, promoted.Role)
	assert.False(t, promoted.IsOwnerApproved)

	demoted, err := ChangeAccountRole(as(admin), owner.ID, AccountRoleUser)
	require.NoError(t, err)
	assert.Equal(t, AccountRoleUser, demoted.Role)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	other := f.account(AccountRoleUser)
	account, err := RegisterAccount(context.Background(), &NewAccount{
		Email:    "renter@homerly.test",
		Password: "secret123",
		FullName: "Le Van C",
		Role:     AccountRoleUser,
	})
	require.NoError(t, err)

	name := "Le Van D"
	_, err = UpdateAccount(as(other), account.ID, &AccountUpdate{FullName: &name})
	requireKind(t, err, utils.KindForbidden)

	blank := "  "
	_, err = UpdateAccount(as(account), account.ID, &AccountUpdate{FullName: &blank})
	requireKind(t, err, utils.KindBadRequest)

	_, err = UpdateAccount(as(account), account.ID, &AccountUpdate{CurrentPassword: "wrong", NewPassword: "newsecret"})
	requireKind(t, err, utils.KindBadRequest)

	updated, err := UpdateAccount(as(account), account.ID, &AccountUpdate{FullName: &name, CurrentPassword: "secret123", NewPassword: "newsecret"})
	require.NoError(t, err)
	assert.Equal(t, name, updated.FullName)

	_, err = Login(context.Background(), "renter@homerly.test", "secret123")
	requireKind(t, err, utils.KindBadRequest)
	_, err = Login(context.Background(), "renter@homerly.test", "newsecret")
	require.NoError(t, err)

	seen, err := ViewAccount(as(other), account.ID)
	assert.Nil(t, seen)
	requireKind(t, err, utils.KindForbidden)
}

func TestPropertyRangeFilters(t *testing.T) {
	f := newFixture(t)
	owner := f.account(AccountRoleOwner)
	f.property(owner, "3000000")
	mid := f.property(owner, "5000000")
	f.property(owner, "9000000")

	lo, hi := dec("4000000"), dec("6000000")
	result, err := GetProperties(as(owner), PropertyFilter{MinRent: &lo, MaxRent: &hi}, defaultPage)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, mid.ID, result.Items[0].ID)

	small, large := dec("30"), dec("40")
	result, err = GetProperties(as(owner), PropertyFilter{MinArea: &small, MaxArea: &large}, defaultPage)
	require.NoError(t, err)
	assert.EqualValues(t, 3, result.Total)

	result, err = GetProperties(as(owner), PropertyFilter{MinArea: &large}, defaultPage)
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	_, err = GetProperties(as(owner), PropertyFilter{MinRent: &hi, MaxRent: &lo}, defaultPage)
	requireKind(t, err, utils.KindBadRequest)
}
