package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop_catalog_v1/internal/model"
)

// ErrTreeCycle 父指针成环, 部分节点无法从任何根到达
var ErrTreeCycle = errors.New("分类父指针存在环")

// ErrInvalidParent 目标父节点是自身或自身的子孙
var ErrInvalidParent = errors.New("不能把分类移动到自身或其子孙之下")

// treeLockKey pg_advisory_xact_lock 的固定键
const treeLockKey = 7_204_311

// ==================== 接口定义 ====================

// CategoryRepository 分类树仓储 (嵌套集)
// 所有结构性修改 (插入/移动/删除/重建) 在同一事务内持有树锁
type CategoryRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Category, error)
	ListAll(ctx context.Context) ([]model.Category, error)
	ListChildren(ctx context.Context, parentID int64) ([]model.Category, error)
	SlugExists(ctx context.Context, parentID int64, slug string, excludeID int64) (bool, error)

	// 区间查询
	Ancestors(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error)
	Descendants(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error)
	DescendantIDs(ctx context.Context, id int64, includeSelf bool) ([]int64, error)
	CountProductsInSubtree(ctx context.Context, id int64) (int64, error)

	// 结构性修改
	Insert(ctx context.Context, category *model.Category) error
	Move(ctx context.Context, id, newParentID int64) error
	DeleteSubtree(ctx context.Context, id int64) error
	Rebuild(ctx context.Context) (int, error)
	Verify(ctx context.Context) ([]int64, error)

	// 非结构字段
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error

	// 事务
	WithTx(tx *gorm.DB) CategoryRepository
	Transaction(ctx context.Context, fn func(txRepo CategoryRepository) error) error
}

// ==================== 仓储实现 ====================

type categoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepository 创建分类仓储
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAll 按先序遍历顺序返回全部节点
func (r *categoryRepo) ListAll(ctx context.Context) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).Order("lft ASC").Find(&list).Error
	return list, err
}

func (r *categoryRepo) ListChildren(ctx context.Context, parentID int64) ([]model.Category, error) {
	var list []model.Category
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("lft ASC").
		Find(&list).Error
	return list, err
}

func (r *categoryRepo) SlugExists(ctx context.Context, parentID int64, slug string, excludeID int64) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Category{}).
		Where("parent_id = ? AND slug = ?", parentID, slug)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// ==================== 区间查询 ====================

// Ancestors 根在前; 单条区间语句, 读到的是某一次已提交的边界
func (r *categoryRepo) Ancestors(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error) {
	q := r.db.WithContext(ctx).
		Table("categories AS a").
		Select("a.*").
		Joins("JOIN categories AS n ON a.lft <= n.lft AND a.rgt >= n.rgt").
		Where("n.id = ?", id)
	if !includeSelf {
		q = q.Where("a.id <> n.id")
	}

	var list []model.Category
	err := q.Order("a.lft ASC").Find(&list).Error
	return list, err
}

func (r *categoryRepo) Descendants(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error) {
	var list []model.Category
	err := r.subtree(ctx, id, includeSelf).
		Select("d.*").
		Order("d.lft ASC").
		Find(&list).Error
	return list, err
}

func (r *categoryRepo) DescendantIDs(ctx context.Context, id int64, includeSelf bool) ([]int64, error) {
	var ids []int64
	err := r.subtree(ctx, id, includeSelf).Pluck("d.id", &ids).Error
	return ids, err
}

func (r *categoryRepo) subtree(ctx context.Context, id int64, includeSelf bool) *gorm.DB {
	q := r.db.WithContext(ctx).
		Table("categories AS d").
		Joins("JOIN categories AS n ON d.lft >= n.lft AND d.rgt <= n.rgt").
		Where("n.id = ?", id)
	if !includeSelf {
		q = q.Where("d.id <> n.id")
	}
	return q
}

// CountProductsInSubtree 子树下的商品数 (含已下架)
func (r *categoryRepo) CountProductsInSubtree(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().
		Table("products AS p").
		Joins("JOIN categories AS d ON p.category_id = d.id").
		Joins("JOIN categories AS n ON d.lft >= n.lft AND d.rgt <= n.rgt").
		Where("n.id = ?", id).
		Count(&count).Error
	return count, err
}

// ==================== 结构性修改 ====================

// Insert 在父节点右边界处开出宽度为 2 的空位; ParentID 为 0 时追加到最后一个根之后
func (r *categoryRepo) Insert(ctx context.Context, category *model.Category) error {
	return r.mutate(ctx, func(tx *gorm.DB) error {
		var pos, depth int
		if category.ParentID == 0 {
			max, err := maxRgt(tx)
			if err != nil {
				return err
			}
			pos = max + 1
		} else {
			parent, err := lockedNode(tx, category.ParentID)
			if err != nil {
				return err
			}
			pos = parent.Rgt
			depth = parent.Depth + 1
			if err := openGap(tx, pos, 2); err != nil {
				return err
			}
		}

		category.Lft = pos
		category.Rgt = pos + 1
		category.Depth = depth
		return tx.Create(category).Error
	})
}

// Move 把子树挂到新父节点下 (0 = 成为最后一个根)
// 步骤: 取反剥离子树 -> 收拢空位 -> 目标处开空位 -> 平移回填
func (r *categoryRepo) Move(ctx context.Context, id, newParentID int64) error {
	return r.mutate(ctx, func(tx *gorm.DB) error {
		node, err := lockedNode(tx, id)
		if err != nil {
			return err
		}
		if node.ParentID == newParentID {
			return nil
		}

		if newParentID != 0 {
			target, err := lockedNode(tx, newParentID)
			if err != nil {
				return err
			}
			if target.ID == node.ID || node.IsAncestorOf(target) {
				return ErrInvalidParent
			}
		}

		width := node.Width()

		if err := tx.Exec("UPDATE categories SET lft = -lft, rgt = -rgt WHERE lft >= ? AND rgt <= ?",
			node.Lft, node.Rgt).Error; err != nil {
			return err
		}
		if err := closeGap(tx, node.Rgt, width); err != nil {
			return err
		}

		var pos, depth int
		if newParentID == 0 {
			max, err := maxRgt(tx)
			if err != nil {
				return err
			}
			pos = max + 1
		} else {
			// 收拢后父节点边界可能变化, 重新读取
			target, err := lockedNode(tx, newParentID)
			if err != nil {
				return err
			}
			pos = target.Rgt
			depth = target.Depth + 1
			if err := openGap(tx, pos, width); err != nil {
				return err
			}
		}

		offset := pos - node.Lft
		if err := tx.Exec("UPDATE categories SET lft = -lft + ?, rgt = -rgt + ?, depth = depth + ? WHERE lft < 0",
			offset, offset, depth-node.Depth).Error; err != nil {
			return err
		}

		return tx.Model(&model.Category{}).
			Where("id = ?", node.ID).
			UpdateColumn("parent_id", newParentID).Error
	})
}

// DeleteSubtree 物理删除节点及全部子孙, 并收拢空位
// 挂在子树上的规格维度改挂到父节点
func (r *categoryRepo) DeleteSubtree(ctx context.Context, id int64) error {
	return r.mutate(ctx, func(tx *gorm.DB) error {
		node, err := lockedNode(tx, id)
		if err != nil {
			return err
		}

		sub := tx.Model(&model.Category{}).Select("id").
			Where("lft >= ? AND rgt <= ?", node.Lft, node.Rgt)
		// 子树上的规格绑定上移到父节点, 删除根节点时直接丢弃
		if node.ParentID != 0 {
			if err := tx.Exec(`INSERT INTO category_variation_types (variation_type_id, category_id)
				SELECT DISTINCT s.variation_type_id, ? FROM category_variation_types AS s
				WHERE s.category_id IN (?) AND NOT EXISTS (
					SELECT 1 FROM category_variation_types AS p
					WHERE p.variation_type_id = s.variation_type_id AND p.category_id = ?)`,
				node.ParentID, sub, node.ParentID).Error; err != nil {
				return err
			}
		}
		if err := tx.Exec("DELETE FROM category_variation_types WHERE category_id IN (?)", sub).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().
			Where("lft >= ? AND rgt <= ?", node.Lft, node.Rgt).
			Delete(&model.Category{}).Error; err != nil {
			return err
		}
		return closeGap(tx, node.Rgt, node.Width())
	})
}

// Rebuild 依据父指针全量重算边界
// 同级保持原有 lft 顺序, 边界未初始化 (lft = 0) 的节点排在已有节点之后, 再按 name, id 排序
// 父节点不存在的节点提升为根; 存在环时整体回滚
// 返回边界发生变化的节点数
func (r *categoryRepo) Rebuild(ctx context.Context) (int, error) {
	changed := 0
	err := r.mutate(ctx, func(tx *gorm.DB) error {
		var nodes []model.Category
		if err := tx.Order("CASE WHEN lft > 0 THEN 0 ELSE 1 END, lft ASC, name ASC, id ASC").Find(&nodes).Error; err != nil {
			return err
		}

		want, err := computeBounds(nodes)
		if err != nil {
			return err
		}

		for _, n := range nodes {
			w := want[n.ID]
			if w.Lft == n.Lft && w.Rgt == n.Rgt && w.Depth == n.Depth && w.ParentID == n.ParentID {
				continue
			}
			changed++
			if err := tx.Model(&model.Category{}).Where("id = ?", n.ID).UpdateColumns(map[string]interface{}{
				"lft":       w.Lft,
				"rgt":       w.Rgt,
				"depth":     w.Depth,
				"parent_id": w.ParentID,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return changed, err
}

// Verify 以当前同级顺序 (lft) 重走一遍, 返回边界不一致的节点 ID
func (r *categoryRepo) Verify(ctx context.Context) ([]int64, error) {
	var nodes []model.Category
	if err := r.db.WithContext(ctx).Order("lft ASC, id ASC").Find(&nodes).Error; err != nil {
		return nil, err
	}

	want, err := computeBounds(nodes)
	if err != nil {
		return nil, err
	}

	var bad []int64
	for _, n := range nodes {
		w := want[n.ID]
		if w.Lft != n.Lft || w.Rgt != n.Rgt || w.Depth != n.Depth || w.ParentID != n.ParentID {
			bad = append(bad, n.ID)
		}
	}
	return bad, nil
}

func (r *categoryRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Category{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// ==================== 事务 ====================

func (r *categoryRepo) WithTx(tx *gorm.DB) CategoryRepository {
	return &categoryRepo{db: tx}
}

func (r *categoryRepo) Transaction(ctx context.Context, fn func(txRepo CategoryRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTree(tx); err != nil {
			return err
		}
		return fn(r.WithTx(tx))
	})
}

// mutate 结构性修改统一入口; 已处于事务中时为保存点
func (r *categoryRepo) mutate(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTree(tx); err != nil {
			return err
		}
		return fn(tx)
	})
}

// ==================== 内部工具 ====================

// lockTree 事务级树锁; SQLite 本身单写者, 无需加锁
func lockTree(tx *gorm.DB) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", treeLockKey).Error
}

func lockedNode(tx *gorm.DB, id int64) (*model.Category, error) {
	var c model.Category
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func maxRgt(tx *gorm.DB) (int, error) {
	var max int
	err := tx.Model(&model.Category{}).
		Select("COALESCE(MAX(rgt), 0)").
		Where("rgt > 0").
		Scan(&max).Error
	return max, err
}

// openGap pos 及其右侧整体右移 width
func openGap(tx *gorm.DB, pos, width int) error {
	if err := tx.Exec("UPDATE categories SET rgt = rgt + ? WHERE rgt >= ?", width, pos).Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE categories SET lft = lft + ? WHERE lft > ?", width, pos).Error
}

// closeGap after 右侧整体左移 width
func closeGap(tx *gorm.DB, after, width int) error {
	if err := tx.Exec("UPDATE categories SET lft = lft - ? WHERE lft > ?", width, after).Error; err != nil {
		return err
	}
	return tx.Exec("UPDATE categories SET rgt = rgt - ? WHERE rgt > ?", width, after).Error
}

type bounds struct {
	Lft, Rgt, Depth int
	ParentID        int64
}

// computeBounds 按 nodes 的现有顺序深度优先编号
// nodes 的顺序即同级顺序
func computeBounds(nodes []model.Category) (map[int64]bounds, error) {
	exists := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		exists[n.ID] = true
	}

	children := make(map[int64][]int64, len(nodes))
	var roots []int64
	for _, n := range nodes {
		if n.ParentID == 0 || !exists[n.ParentID] {
			roots = append(roots, n.ID)
			continue
		}
		children[n.ParentID] = append(children[n.ParentID], n.ID)
	}

	out := make(map[int64]bounds, len(nodes))
	counter := 0

	var walk func(id, parent int64, depth int)
	walk = func(id, parent int64, depth int) {
		counter++
		lft := counter
		for _, child := range children[id] {
			walk(child, id, depth+1)
		}
		counter++
		out[id] = bounds{Lft: lft, Rgt: counter, Depth: depth, ParentID: parent}
	}
	for _, id := range roots {
		walk(id, 0, 0)
	}

	if len(out) != len(nodes) {
		var stuck []int64
		for _, n := range nodes {
			if _, ok := out[n.ID]; !ok {
				stuck = append(stuck, n.ID)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
		return nil, fmt.Errorf("%w: %v", ErrTreeCycle, stuck)
	}
	return out, nil
}
