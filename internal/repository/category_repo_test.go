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

func setupCategoryRepo(t *testing.T) (*gorm.DB, CategoryRepository) {
	db := testutil.NewTestDB(t)
	return db, NewCategoryRepository(db)
}

func insertCategory(t *testing.T, repo CategoryRepository, name string, parentID int64) *model.Category {
	t.Helper()
	c := &model.Category{Name: name, Slug: name, ParentID: parentID}
	if err := repo.Insert(context.Background(), c); err != nil {
		t.Fatalf("创建分类 %s 失败: %v", name, err)
	}
	return c
}

func categoryNames(list []model.Category) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.Name)
	}
	return out
}

// 构造:
//
//	Clothing
//	├── Shoes
//	│   └── Sneakers
//	└── Shirts
//	Electronics
func buildSampleTree(t *testing.T, repo CategoryRepository) map[string]*model.Category {
	nodes := map[string]*model.Category{}
	nodes["Clothing"] = insertCategory(t, repo, "Clothing", 0)
	nodes["Shoes"] = insertCategory(t, repo, "Shoes", nodes["Clothing"].ID)
	nodes["Sneakers"] = insertCategory(t, repo, "Sneakers", nodes["Shoes"].ID)
	nodes["Shirts"] = insertCategory(t, repo, "Shirts", nodes["Clothing"].ID)
	nodes["Electronics"] = insertCategory(t, repo, "Electronics", 0)
	return nodes
}

func assertTreeConsistent(t *testing.T, repo CategoryRepository) {
	t.Helper()
	bad, err := repo.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bad, "边界与父指针不一致")
}

func TestCategoryRepo_InsertBounds(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clothing", "Shoes", "Sneakers", "Shirts", "Electronics"}, categoryNames(all))

	clothing, _ := repo.GetByID(ctx, n["Clothing"].ID)
	assert.Equal(t, 1, clothing.Lft)
	assert.Equal(t, 8, clothing.Rgt)

	sneakers, _ := repo.GetByID(ctx, n["Sneakers"].ID)
	assert.Equal(t, 2, sneakers.Depth)

	electronics, _ := repo.GetByID(ctx, n["Electronics"].ID)
	assert.Equal(t, 9, electronics.Lft)
	assert.Equal(t, 10, electronics.Rgt)

	assertTreeConsistent(t, repo)
}

func TestCategoryRepo_InsertMissingParent(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	err := repo.Insert(context.Background(), &model.Category{Name: "x", Slug: "x", ParentID: 404})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCategoryRepo_AncestorsRootFirst(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	anc, err := repo.Ancestors(ctx, n["Sneakers"].ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clothing", "Shoes"}, categoryNames(anc))

	withSelf, err := repo.Ancestors(ctx, n["Sneakers"].ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clothing", "Shoes", "Sneakers"}, categoryNames(withSelf))

	rootAnc, err := repo.Ancestors(ctx, n["Electronics"].ID, false)
	require.NoError(t, err)
	assert.Empty(t, rootAnc)
}

func TestCategoryRepo_RootDescendantsContainNode(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	for name, c := range n {
		anc, err := repo.Ancestors(ctx, c.ID, true)
		require.NoError(t, err)
		root := anc[0]

		ids, err := repo.DescendantIDs(ctx, root.ID, true)
		require.NoError(t, err)
		assert.Contains(t, ids, c.ID, "根的子树应包含 %s", name)
	}
}

func TestCategoryRepo_Descendants(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	desc, err := repo.Descendants(ctx, n["Clothing"].ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoes", "Sneakers", "Shirts"}, categoryNames(desc))

	ids, err := repo.DescendantIDs(ctx, n["Shoes"].ID, true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{n["Shoes"].ID, n["Sneakers"].ID}, ids)
}

func TestCategoryRepo_RebuildPreservesShape(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	before := map[int64][]int64{}
	for _, c := range n {
		ids, err := repo.DescendantIDs(ctx, c.ID, false)
		require.NoError(t, err)
		before[c.ID] = ids
	}

	_, err := repo.Rebuild(ctx)
	require.NoError(t, err)

	for id, want := range before {
		got, err := repo.DescendantIDs(ctx, id, false)
		require.NoError(t, err)
		assert.ElementsMatch(t, want, got)
	}

	// 再次重建不再产生变化
	changed, err := repo.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assertTreeConsistent(t, repo)
}

func TestCategoryRepo_RebuildKeepsSiblingOrder(t *testing.T) {
	db, repo := setupCategoryRepo(t)
	ctx := context.Background()

	// 同级按插入顺序排列, 与名称顺序不同
	root := insertCategory(t, repo, "Clothing", 0)
	insertCategory(t, repo, "Tops", root.ID)
	insertCategory(t, repo, "Bottoms", root.ID)
	insertCategory(t, repo, "Accessories", root.ID)

	order := func() []string {
		children, err := repo.ListChildren(ctx, root.ID)
		require.NoError(t, err)
		return categoryNames(children)
	}
	want := []string{"Tops", "Bottoms", "Accessories"}
	require.Equal(t, want, order())

	changed, err := repo.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
	assert.Equal(t, want, order())

	// 破坏根节点的 rgt 后重建, 同级顺序仍不变
	require.NoError(t, db.Model(&model.Category{}).Where("id = ?", root.ID).UpdateColumn("rgt", 3).Error)
	changed, err = repo.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	assert.Equal(t, want, order())
	assertTreeConsistent(t, repo)
}

func TestCategoryRepo_RebuildRepairsBulkLoad(t *testing.T) {
	db, repo := setupCategoryRepo(t)
	ctx := context.Background()

	// 批量导入绕过了 Insert, 边界全为 0
	root := model.Category{Name: "Home", Slug: "home"}
	require.NoError(t, db.Create(&root).Error)
	kitchen := model.Category{Name: "Kitchen", Slug: "kitchen", ParentID: root.ID}
	require.NoError(t, db.Create(&kitchen).Error)
	orphan := model.Category{Name: "Garden", Slug: "garden", ParentID: 999}
	require.NoError(t, db.Create(&orphan).Error)

	bad, err := repo.Verify(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, bad)

	_, err = repo.Rebuild(ctx)
	require.NoError(t, err)
	assertTreeConsistent(t, repo)

	desc, err := repo.Descendants(ctx, root.ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kitchen"}, categoryNames(desc))

	g, err := repo.GetByID(ctx, orphan.ID)
	require.NoError(t, err)
	assert.True(t, g.IsRoot(), "父节点不存在的分类应提升为根")
}

func TestCategoryRepo_RebuildRejectsCycle(t *testing.T) {
	db, repo := setupCategoryRepo(t)
	ctx := context.Background()

	a := model.Category{Name: "A", Slug: "a"}
	require.NoError(t, db.Create(&a).Error)
	b := model.Category{Name: "B", Slug: "b", ParentID: a.ID}
	require.NoError(t, db.Create(&b).Error)
	require.NoError(t, db.Model(&a).UpdateColumn("parent_id", b.ID).Error)

	_, err := repo.Rebuild(ctx)
	assert.ErrorIs(t, err, ErrTreeCycle)

	// 回滚: 边界未被改写
	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Lft)
}

func TestCategoryRepo_MoveSubtree(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	// Shoes (含 Sneakers) 移到 Electronics 下
	require.NoError(t, repo.Move(ctx, n["Shoes"].ID, n["Electronics"].ID))
	assertTreeConsistent(t, repo)

	desc, err := repo.Descendants(ctx, n["Electronics"].ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shoes", "Sneakers"}, categoryNames(desc))

	desc, err = repo.Descendants(ctx, n["Clothing"].ID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Shirts"}, categoryNames(desc))

	sneakers, _ := repo.GetByID(ctx, n["Sneakers"].ID)
	assert.Equal(t, 2, sneakers.Depth)

	// 再移成根
	require.NoError(t, repo.Move(ctx, n["Shoes"].ID, 0))
	assertTreeConsistent(t, repo)
	shoes, _ := repo.GetByID(ctx, n["Shoes"].ID)
	assert.True(t, shoes.IsRoot())
	assert.Equal(t, 0, shoes.Depth)
}

func TestCategoryRepo_MoveRejectsCycle(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	assert.ErrorIs(t, repo.Move(ctx, n["Clothing"].ID, n["Sneakers"].ID), ErrInvalidParent)
	assert.ErrorIs(t, repo.Move(ctx, n["Shoes"].ID, n["Shoes"].ID), ErrInvalidParent)
	assertTreeConsistent(t, repo)
}

func TestCategoryRepo_DeleteSubtree(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	require.NoError(t, repo.DeleteSubtree(ctx, n["Shoes"].ID))
	assertTreeConsistent(t, repo)

	_, err := repo.GetByID(ctx, n["Sneakers"].ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clothing", "Shirts", "Electronics"}, categoryNames(all))
}

func TestCategoryRepo_CountProductsInSubtree(t *testing.T) {
	db, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	require.NoError(t, db.Create(&model.Product{Name: "Runner", CategoryID: n["Sneakers"].ID}).Error)

	count, err := repo.CountProductsInSubtree(ctx, n["Clothing"].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = repo.CountProductsInSubtree(ctx, n["Shirts"].ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCategoryRepo_SlugExists(t *testing.T) {
	_, repo := setupCategoryRepo(t)
	ctx := context.Background()
	n := buildSampleTree(t, repo)

	ok, err := repo.SlugExists(ctx, n["Clothing"].ID, "Shoes", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SlugExists(ctx, n["Clothing"].ID, "Shoes", n["Shoes"].ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
