package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Men's Shoes":      "men-s-shoes",
		"  T-Shirts  ":     "t-shirts",
		"Home & Garden!!":  "home-garden",
		"already-a-slug":   "already-a-slug",
		"日用品":              "",
		"Size 42 / EU":     "size-42-eu",
		"--leading--trail": "leading-trail",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestCategoryService_CreateAndBreadcrumb(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	shoes := env.category(t, "Shoes", clothing)
	sneakers := env.category(t, "Sneakers", shoes)

	info, err := env.categories.Get(ctx, sneakers)
	require.NoError(t, err)
	assert.Equal(t, "sneakers", info.Slug)
	assert.Equal(t, 2, info.Depth)
	require.Len(t, info.Breadcrumb, 3)
	assert.Equal(t, "Clothing", info.Breadcrumb[0].Name)
	assert.Equal(t, "Sneakers", info.Breadcrumb[2].Name)

	parent, err := env.categories.Get(ctx, shoes)
	require.NoError(t, err)
	require.Len(t, parent.Children, 1)
	assert.Equal(t, sneakers, parent.Children[0].ID)
}

func TestCategoryService_CreateValidation(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	_, err := env.categories.Create(ctx, customerActor, &dto.CreateCategoryRequest{Name: "X"})
	assert.ErrorIs(t, err, apperr.ErrPermission)

	_, err = env.categories.Create(ctx, adminActor, &dto.CreateCategoryRequest{Name: "X", ParentID: 999})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = env.categories.Create(ctx, adminActor, &dto.CreateCategoryRequest{Name: "日用品"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	env.category(t, "Books", 0)
	_, err = env.categories.Create(ctx, adminActor, &dto.CreateCategoryRequest{Name: "books"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestCategoryService_MoveRejectsCycle(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	shoes := env.category(t, "Shoes", clothing)

	_, err := env.categories.Update(ctx, adminActor, clothing, &dto.UpdateCategoryRequest{ParentID: &shoes})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	root := int64(0)
	info, err := env.categories.Update(ctx, adminActor, shoes, &dto.UpdateCategoryRequest{ParentID: &root})
	require.NoError(t, err)
	assert.Zero(t, info.ParentID)
	assert.Zero(t, info.Depth)

	bad, err := env.categories.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)
}

func TestCategoryService_RenameRegeneratesSlug(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()
	id := env.category(t, "Shirts", 0)

	name := "Dress Shirts"
	info, err := env.categories.Update(ctx, sellerActor, id, &dto.UpdateCategoryRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "dress-shirts", info.Slug)

	desc := "formal"
	info, err = env.categories.Update(ctx, sellerActor, id, &dto.UpdateCategoryRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "dress-shirts", info.Slug)
	assert.Equal(t, "formal", info.Description)
}

func TestCategoryService_DeleteWithProductsConflicts(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	shoes := env.category(t, "Shoes", clothing)
	env.product(t, "Runner", "", shoes)

	err := env.categories.Delete(ctx, adminActor, clothing, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// 子分类先挂到根上, 再删除空的 Clothing
	root := int64(0)
	require.NoError(t, env.categories.Delete(ctx, adminActor, clothing, &root))

	_, err = env.categories.Get(ctx, clothing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	info, err := env.categories.Get(ctx, shoes)
	require.NoError(t, err)
	assert.Zero(t, info.ParentID)
}

func TestCategoryService_DeleteMoveIntoOwnSubtree(t *testing.T) {
	env := newCatalogEnv(t)
	clothing := env.category(t, "Clothing", 0)
	shoes := env.category(t, "Shoes", clothing)

	err := env.categories.Delete(context.Background(), adminActor, clothing, &shoes)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCategoryService_ListTreeCachedAndInvalidated(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	clothing := env.category(t, "Clothing", 0)
	env.category(t, "Shoes", clothing)

	tree, err := env.categories.ListTree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)

	_, err = env.cache.Get(ctx, categoryTreeCacheKey)
	require.NoError(t, err, "树应已写入缓存")

	env.category(t, "Electronics", 0)
	tree, err = env.categories.ListTree(ctx)
	require.NoError(t, err)
	assert.Len(t, tree, 2)
}

func TestCategoryService_RebuildAdminOnly(t *testing.T) {
	env := newCatalogEnv(t)
	ctx := context.Background()

	_, err := env.categories.Rebuild(ctx, sellerActor)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	// 绕过服务写入的节点没有边界
	require.NoError(t, env.db.Create(&model.Category{Name: "Bulk", Slug: "bulk"}).Error)
	bad, err := env.categories.Verify(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, bad)

	res, err := env.categories.Rebuild(ctx, adminActor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Changed)

	bad, err = env.categories.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, bad)
}

func TestCategoryService_FlatListPermission(t *testing.T) {
	env := newCatalogEnv(t)
	env.category(t, "Clothing", 0)

	_, err := env.categories.FlatList(context.Background(), customerActor)
	assert.ErrorIs(t, err, apperr.ErrPermission)

	list, err := env.categories.FlatList(context.Background(), sellerActor)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].Lft)
	assert.Equal(t, 2, list[0].Rgt)
}
