package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/testutil"
)

func rowNames(rows []ProductRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Name)
	}
	return out
}

func TestProductRepo_SearchPaginationStableOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)
	for i := 0; i < 25; i++ {
		mustCreate(t, db, &model.Product{Name: fmt.Sprintf("P%02d", i), CategoryID: cat.ID})
	}

	seen := map[int64]bool{}
	for page := 0; page < 3; page++ {
		rows, total, err := repo.Search(ctx, ProductSearch{Offset: page * 10, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)
		for _, r := range rows {
			assert.False(t, seen[r.ID], "分页结果重复: %d", r.ID)
			seen[r.ID] = true
		}
		if page == 2 {
			assert.Len(t, rows, 5)
		}
	}
	assert.Len(t, seen, 25)
}

func TestProductRepo_SearchSubstringRanksNameFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)
	mustCreate(t, db, &model.Product{Name: "Canvas bag", Description: "a red tote", CategoryID: cat.ID})
	mustCreate(t, db, &model.Product{Name: "Red sneaker", Description: "runner", CategoryID: cat.ID})
	mustCreate(t, db, &model.Product{Name: "Blue cap", Description: "plain", CategoryID: cat.ID})

	rows, total, err := repo.Search(ctx, ProductSearch{Query: "RED", Mode: SearchSubstring, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, []string{"Red sneaker", "Canvas bag"}, rowNames(rows))
	assert.Equal(t, float64(2), rows[0].Rank)
}

func TestProductRepo_SearchEscapesWildcards(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)
	mustCreate(t, db, &model.Product{Name: "100% cotton", CategoryID: cat.ID})
	mustCreate(t, db, &model.Product{Name: "100 pack", CategoryID: cat.ID})

	rows, _, err := repo.Search(ctx, ProductSearch{Query: "100%", Mode: SearchSubstring, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% cotton"}, rowNames(rows))
}

func TestProductRepo_RankedUnsupportedOnSQLite(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)

	_, _, err := repo.Search(context.Background(), ProductSearch{Query: "red", Mode: SearchRanked, Limit: 10})
	assert.ErrorIs(t, err, ErrRankedSearchUnsupported)
}

func TestProductRepo_ItemFilterSameItem(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "Shirts", 0)
	red := seedVariant(t, db, "Color", "Red")
	blue := seedVariant(t, db, "Color", "Blue")
	m := seedVariant(t, db, "Size", "M")

	a := &model.Product{Name: "A", CategoryID: cat.ID}
	b := &model.Product{Name: "B", CategoryID: cat.ID}
	mustCreate(t, db, a)
	mustCreate(t, db, b)

	// A: 一个 SKU 同时是 Red+M
	seedItem(t, db, a.ID, "A-RM", "30", red, m)
	// B: Red 和 M 分别在不同 SKU 上
	seedItem(t, db, b.ID, "B-R", "10", red)
	seedItem(t, db, b.ID, "B-BM", "12", blue, m)

	filter := ItemFilter{VariantGroups: [][]int64{{red.ID}, {m.ID}}}
	rows, total, err := repo.Search(ctx, ProductSearch{Items: filter, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, []string{"A"}, rowNames(rows))

	// 同一维度多个取值为 OR
	filter = ItemFilter{VariantGroups: [][]int64{{red.ID, blue.ID}, {m.ID}}}
	_, total, err = repo.Search(ctx, ProductSearch{Items: filter, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	// 价格区间作用于同一 SKU
	max := decimal.NewFromInt(11)
	rows, _, err = repo.Search(ctx, ProductSearch{Items: ItemFilter{PriceMax: &max}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, rowNames(rows))
	assert.True(t, rows[0].MinPrice.Valid)
	assert.Equal(t, "10", rows[0].MinPrice.Decimal.String())
	assert.Equal(t, "12", rows[0].MaxPrice.Decimal.String())

	items, err := repo.MatchingItems(ctx, []int64{b.ID}, ItemFilter{PriceMax: &max})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "B-R", items[0].SKU)
}

func TestProductRepo_SortByPrice(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)
	cheap := &model.Product{Name: "cheap", CategoryID: cat.ID}
	pricey := &model.Product{Name: "pricey", CategoryID: cat.ID}
	empty := &model.Product{Name: "no-items", CategoryID: cat.ID}
	mustCreate(t, db, cheap)
	mustCreate(t, db, pricey)
	mustCreate(t, db, empty)
	seedItem(t, db, cheap.ID, "C1", "5")
	seedItem(t, db, pricey.ID, "P1", "50")

	rows, _, err := repo.Search(ctx, ProductSearch{Sort: SortPriceAsc, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"cheap", "pricey", "no-items"}, rowNames(rows))

	rows, _, err = repo.Search(ctx, ProductSearch{Sort: SortPriceDesc, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"pricey", "cheap", "no-items"}, rowNames(rows))
}

func TestProductRepo_Related(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cats := NewCategoryRepository(db)
	shoes := insertCategory(t, cats, "Shoes", 0)
	hats := insertCategory(t, cats, "Hats", 0)

	base := &model.Product{Name: "base", CategoryID: shoes.ID}
	mustCreate(t, db, base)
	older := &model.Product{Name: "older", CategoryID: shoes.ID}
	mustCreate(t, db, older)
	newer := &model.Product{Name: "newer", CategoryID: shoes.ID}
	mustCreate(t, db, newer)
	star := &model.Product{Name: "star", CategoryID: shoes.ID, Featured: true}
	mustCreate(t, db, star)
	mustCreate(t, db, &model.Product{Name: "other", CategoryID: hats.ID})

	rows, err := repo.Related(ctx, base, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"star", "newer", "older"}, rowNames(rows))

	rows, err = repo.Related(ctx, base, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"star"}, rowNames(rows))
}

func TestProductRepo_CategoryFilter(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	ctx := context.Background()

	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)
	mustCreate(t, db, &model.Product{Name: "x", CategoryID: cat.ID})

	rows, total, err := repo.Search(ctx, ProductSearch{CategoryIDs: []int64{}, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rows)

	_, total, err = repo.Search(ctx, ProductSearch{CategoryIDs: []int64{cat.ID}, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestProductRepo_UpdateFieldsStampsUpdatedBy(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewProductRepository(db)
	cat := insertCategory(t, NewCategoryRepository(db), "All", 0)

	creator := middleware.WithAuditActor(context.Background(), model.Actor{UserID: 2, Role: model.UserRoleSeller})
	p := &model.Product{Name: "Mug", CategoryID: cat.ID, IsActive: true}
	require.NoError(t, db.WithContext(creator).Create(p).Error)
	assert.Equal(t, int64(2), p.CreatedBy)
	assert.Equal(t, int64(2), p.UpdatedBy)

	editor := middleware.WithAuditActor(context.Background(), model.Actor{UserID: 9, Role: model.UserRoleAdmin})
	require.NoError(t, repo.UpdateFields(editor, p.ID, map[string]interface{}{"name": "Travel Mug"}))

	var got model.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, "Travel Mug", got.Name)
	assert.Equal(t, int64(2), got.CreatedBy)
	assert.Equal(t, int64(9), got.UpdatedBy)

	// 匿名上下文不改写操作人
	require.NoError(t, repo.UpdateFields(context.Background(), p.ID, map[string]interface{}{"featured": true}))
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, int64(9), got.UpdatedBy)
}
