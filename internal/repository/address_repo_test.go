package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/testutil"
)

func seedUser(t *testing.T, db *gorm.DB, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: model.UserRoleCustomer}
	mustCreate(t, db, u)
	return u
}

func TestAddressRepo_GetOrCreateDedupes(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAddressRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, &model.Address{AddressLine: "1 Main St", City: "Sydney", Postcode: "2000", State: "NSW", Country: "AU", ContentHash: "h1"})
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, &model.Address{AddressLine: "1 Main St", City: "Sydney", Postcode: "2000", State: "NSW", Country: "AU", ContentHash: "h1"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	count, err := repo.CountByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAddressRepo_RejectsMutation(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAddressRepository(db)
	ctx := context.Background()

	addr, err := repo.GetOrCreate(ctx, &model.Address{AddressLine: "1 Main St", City: "Sydney", Postcode: "2000", State: "NSW", Country: "AU", ContentHash: "h1"})
	require.NoError(t, err)

	err = db.Model(addr).Update("city", "Perth").Error
	assert.ErrorIs(t, err, model.ErrAddressImmutable)
	err = db.Delete(addr).Error
	assert.ErrorIs(t, err, model.ErrAddressImmutable)
}

func TestAddressRepo_LinkUniqueAndDefault(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAddressRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "alice")

	a, _ := repo.GetOrCreate(ctx, &model.Address{AddressLine: "a", City: "c", Postcode: "1", State: "s", Country: "AU", ContentHash: "ha"})
	b, _ := repo.GetOrCreate(ctx, &model.Address{AddressLine: "b", City: "c", Postcode: "1", State: "s", Country: "AU", ContentHash: "hb"})

	la := &model.UserAddress{UserID: u.ID, AddressID: a.ID}
	lb := &model.UserAddress{UserID: u.ID, AddressID: b.ID}
	require.NoError(t, repo.Link(ctx, la))
	require.NoError(t, repo.Link(ctx, lb))

	err := repo.Link(ctx, &model.UserAddress{UserID: u.ID, AddressID: a.ID})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, repo.SetDefault(ctx, u.ID, la.ID))
	require.NoError(t, repo.SetDefault(ctx, u.ID, lb.ID))

	n, err := repo.CountDefaults(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	links, err := repo.ListLinks(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, lb.ID, links[0].ID)
	assert.True(t, links[0].IsDefault)
	assert.Equal(t, "b", links[0].Address.AddressLine)

	// 部分唯一索引: 绕过 SetDefault 直接写第二个默认会被拒绝
	err = db.Model(&model.UserAddress{}).Where("id = ?", la.ID).Update("is_default", true).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestAddressRepo_SetDefaultForeignLink(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewAddressRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	a, _ := repo.GetOrCreate(ctx, &model.Address{AddressLine: "a", City: "c", Postcode: "1", State: "s", Country: "AU", ContentHash: "ha"})
	link := &model.UserAddress{UserID: alice.ID, AddressID: a.ID}
	require.NoError(t, repo.Link(ctx, link))

	err := repo.SetDefault(ctx, bob.ID, link.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
