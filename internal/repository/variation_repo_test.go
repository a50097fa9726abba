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

func TestVariationRepo_AttachTwiceKeepsOneRow(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewVariationRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "Shirts", 0)
	p := &model.Product{Name: "Tee", CategoryID: cat.ID}
	mustCreate(t, db, p)
	red := seedVariant(t, db, "Color", "Red")
	item := seedItem(t, db, p.ID, "TEE-1", "19.99")

	require.NoError(t, repo.AttachVariant(ctx, item.ID, red.ID))
	err := repo.AttachVariant(ctx, item.ID, red.ID)
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var count int64
	db.Model(&model.ProductConfig{}).Where("product_item_id = ?", item.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	variants, err := repo.ListItemVariants(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "Color", variants[0].VariationType.Name)
}

func TestVariationRepo_ListTypesForCategory(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewVariationRepository(db)
	cats := NewCategoryRepository(db)
	ctx := context.Background()

	clothing := insertCategory(t, cats, "Clothing", 0)
	shirts := insertCategory(t, cats, "Shirts", clothing.ID)
	electronics := insertCategory(t, cats, "Electronics", 0)

	require.NoError(t, repo.CreateType(ctx, &model.VariationType{Name: "Color"}, nil))
	require.NoError(t, repo.CreateType(ctx, &model.VariationType{Name: "Size"}, []int64{clothing.ID}))
	require.NoError(t, repo.CreateType(ctx, &model.VariationType{Name: "Storage"}, []int64{electronics.ID}))

	names := func(list []model.VariationType) []string {
		var out []string
		for _, vt := range list {
			out = append(out, vt.Name)
		}
		return out
	}

	// 子分类继承祖先上的维度
	got, err := repo.ListTypesForCategory(ctx, shirts.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Color", "Size"}, names(got))

	got, err = repo.ListTypesForCategory(ctx, electronics.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Color", "Storage"}, names(got))

	storage, err := repo.GetTypeByName(ctx, "storage")
	require.NoError(t, err)
	ok, err := repo.TypeAppliesToCategory(ctx, storage.ID, shirts.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVariationRepo_DeletingScopeCategoryNeverMakesTypeGlobal(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewVariationRepository(db)
	cats := NewCategoryRepository(db)
	ctx := context.Background()

	apparel := insertCategory(t, cats, "Apparel", 0)
	shirts := insertCategory(t, cats, "Shirts", apparel.ID)
	electronics := insertCategory(t, cats, "Electronics", 0)

	color := &model.VariationType{Name: "Color"}
	size := &model.VariationType{Name: "Size"}
	require.NoError(t, repo.CreateType(ctx, color, nil))
	require.NoError(t, repo.CreateType(ctx, size, []int64{shirts.ID}))
	assert.True(t, color.IsGlobal)
	assert.False(t, size.IsGlobal)

	typeNames := func(categoryID int64) []string {
		list, err := repo.ListTypesForCategory(ctx, categoryID)
		require.NoError(t, err)
		var out []string
		for _, vt := range list {
			out = append(out, vt.Name)
		}
		return out
	}
	assert.Equal(t, []string{"Color"}, typeNames(apparel.ID))
	assert.Equal(t, []string{"Color"}, typeNames(electronics.ID))

	// 删除绑定所在的子分类, 维度改挂到父分类
	require.NoError(t, cats.DeleteSubtree(ctx, shirts.ID))
	assert.Equal(t, []string{"Color", "Size"}, typeNames(apparel.ID))
	assert.Equal(t, []string{"Color"}, typeNames(electronics.ID))

	// 删除根分类后维度不再对任何分类生效
	require.NoError(t, cats.DeleteSubtree(ctx, apparel.ID))
	assert.Equal(t, []string{"Color"}, typeNames(electronics.ID))
	ok, err := repo.TypeAppliesToCategory(ctx, size.ID, electronics.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := repo.GetType(ctx, size.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsGlobal)
}

func TestVariationRepo_FindItemsByConfiguration(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewVariationRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "Shirts", 0)
	p := &model.Product{Name: "Tee", CategoryID: cat.ID}
	mustCreate(t, db, p)

	red := seedVariant(t, db, "Color", "Red")
	m := seedVariant(t, db, "Size", "M")
	l := seedVariant(t, db, "Size", "L")

	redM := seedItem(t, db, p.ID, "TEE-RM", "20", red, m)
	seedItem(t, db, p.ID, "TEE-RL", "20", red, l)
	seedItem(t, db, p.ID, "TEE-R", "18", red)

	ids, err := repo.FindItemsByConfiguration(ctx, p.ID, []int64{m.ID, red.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{redM.ID}, ids)

	// 子集不算匹配
	ids, err = repo.FindItemsByConfiguration(ctx, p.ID, []int64{red.ID, red.ID})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	has, err := repo.ItemHasVariantOfType(ctx, redM.ID, m.VariationTypeID)
	require.NoError(t, err)
	assert.True(t, has)
}
