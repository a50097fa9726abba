package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/pkg/cache"
)

const categoryTreeCacheKey = "catalog:category_tree"

// ==================== CategoryService 分类服务 ====================

// CategoryService 分类树维护与查询
type CategoryService struct {
	repo     repository.CategoryRepository
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewCategoryService 创建分类服务; c 为 nil 时不缓存
func NewCategoryService(repo repository.CategoryRepository, c cache.Cache, ttl time.Duration) *CategoryService {
	return &CategoryService{repo: repo, cache: c, cacheTTL: ttl}
}

// ==================== 结构性修改 ====================

// Create 创建分类; ParentID 为 0 时创建根分类
func (s *CategoryService) Create(ctx context.Context, actor model.Actor, req *dto.CreateCategoryRequest) (*dto.CategoryInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护分类")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("分类名称不能为空")
	}
	slug, err := resolveSlug(req.Slug, name)
	if err != nil {
		return nil, err
	}

	category := &model.Category{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		ParentID:    req.ParentID,
	}

	err = s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		if req.ParentID != 0 {
			if _, err := tx.GetByID(ctx, req.ParentID); err != nil {
				return apperr.FromStore(err, "父分类")
			}
		}
		exists, err := tx.SlugExists(ctx, req.ParentID, slug, 0)
		if err != nil {
			return err
		}
		if exists {
			return apperr.Conflict("同级分类下 slug %q 已存在", slug)
		}
		return tx.Insert(ctx, category)
	})
	if err != nil {
		return nil, categoryError(err)
	}

	s.invalidateTree(ctx)
	return toCategoryInfo(category), nil
}

// Update 更新分类; ParentID 变化时整棵子树移动
func (s *CategoryService) Update(ctx context.Context, actor model.Actor, id int64, req *dto.UpdateCategoryRequest) (*dto.CategoryInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护分类")
	}

	var updated *model.Category
	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		current, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		parentID := current.ParentID
		if req.ParentID != nil && *req.ParentID != current.ParentID {
			parentID = *req.ParentID
			if parentID != 0 {
				if _, err := tx.GetByID(ctx, parentID); err != nil {
					return apperr.FromStore(err, "父分类")
				}
			}
		}

		fields := map[string]interface{}{}
		name := current.Name
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
			if name == "" {
				return apperr.Validation("分类名称不能为空")
			}
			fields["name"] = name
		}
		if req.Description != nil {
			fields["description"] = strings.TrimSpace(*req.Description)
		}

		// 显式 slug 优先; 改名时随名称重新生成
		slug := current.Slug
		switch {
		case req.Slug != nil:
			if slug, err = resolveSlug(*req.Slug, name); err != nil {
				return err
			}
		case name != current.Name:
			if slug, err = resolveSlug("", name); err != nil {
				return err
			}
		}
		if slug != current.Slug || parentID != current.ParentID {
			exists, err := tx.SlugExists(ctx, parentID, slug, id)
			if err != nil {
				return err
			}
			if exists {
				return apperr.Conflict("同级分类下 slug %q 已存在", slug)
			}
			fields["slug"] = slug
		}

		if parentID != current.ParentID {
			if err := tx.Move(ctx, id, parentID); err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			if err := tx.UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}

		updated, err = tx.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, categoryError(err)
	}

	s.invalidateTree(ctx)
	return toCategoryInfo(updated), nil
}

// Delete 删除分类
// moveChildrenTo 非 nil 时先把直接子分类挂到目标下 (0 = 提升为根), 否则整棵子树一并删除
// 子树下仍有商品时拒绝删除
func (s *CategoryService) Delete(ctx context.Context, actor model.Actor, id int64, moveChildrenTo *int64) error {
	if !actor.CanManageCatalog() {
		return apperr.Permission("无权维护分类")
	}

	err := s.repo.Transaction(ctx, func(tx repository.CategoryRepository) error {
		node, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if moveChildrenTo != nil {
			target := *moveChildrenTo
			if target != 0 {
				dest, err := tx.GetByID(ctx, target)
				if err != nil {
					return apperr.FromStore(err, "目标分类")
				}
				if dest.Lft >= node.Lft && dest.Rgt <= node.Rgt {
					return apperr.Validation("子分类不能移动到待删除的子树内")
				}
			}
			children, err := tx.ListChildren(ctx, id)
			if err != nil {
				return err
			}
			for _, child := range children {
				if err := tx.Move(ctx, child.ID, target); err != nil {
					return err
				}
			}
		}

		count, err := tx.CountProductsInSubtree(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("分类下仍有 %d 个商品, 不能删除", count)
		}
		return tx.DeleteSubtree(ctx, id)
	})
	if err != nil {
		return categoryError(err)
	}

	s.invalidateTree(ctx)
	return nil
}

// Rebuild 依据父指针重算全部边界, 仅管理员
func (s *CategoryService) Rebuild(ctx context.Context, actor model.Actor) (*dto.RebuildResult, error) {
	if !actor.IsAdmin() {
		return nil, apperr.Permission("只有管理员可以重建分类树")
	}
	changed, err := s.repo.Rebuild(ctx)
	if err != nil {
		return nil, categoryError(err)
	}
	if changed > 0 {
		s.invalidateTree(ctx)
	}
	zap.L().Info("分类树已重建", zap.Int("changed", changed), zap.Int64("by", actor.UserID))
	return &dto.RebuildResult{Changed: changed}, nil
}

// Verify 返回边界不一致的节点, 供定时任务使用
func (s *CategoryService) Verify(ctx context.Context) ([]int64, error) {
	bad, err := s.repo.Verify(ctx)
	if err != nil {
		return nil, categoryError(err)
	}
	return bad, nil
}

// Repair 无权限检查的重建, 只由定时任务调用
func (s *CategoryService) Repair(ctx context.Context) (int, error) {
	changed, err := s.repo.Rebuild(ctx)
	if err != nil {
		return 0, categoryError(err)
	}
	if changed > 0 {
		s.invalidateTree(ctx)
	}
	return changed, nil
}

// ==================== 查询 ====================

// Get 分类详情, 含面包屑与直接子分类
func (s *CategoryService) Get(ctx context.Context, id int64) (*dto.CategoryInfo, error) {
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, categoryError(err)
	}
	breadcrumb, err := s.Breadcrumb(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := s.repo.ListChildren(ctx, id)
	if err != nil {
		return nil, categoryError(err)
	}

	info := toCategoryInfo(category)
	info.Breadcrumb = breadcrumb
	info.Children = make([]dto.BreadcrumbItem, len(children))
	for i := range children {
		info.Children[i] = toBreadcrumbItem(&children[i])
	}
	return info, nil
}

// Breadcrumb 根到自身的路径
func (s *CategoryService) Breadcrumb(ctx context.Context, id int64) ([]dto.BreadcrumbItem, error) {
	path, err := s.repo.Ancestors(ctx, id, true)
	if err != nil {
		return nil, categoryError(err)
	}
	if len(path) == 0 {
		return nil, apperr.NotFound("分类不存在")
	}
	out := make([]dto.BreadcrumbItem, len(path))
	for i := range path {
		out[i] = toBreadcrumbItem(&path[i])
	}
	return out, nil
}

// Ancestors 祖先, 根在前
func (s *CategoryService) Ancestors(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, categoryError(err)
	}
	list, err := s.repo.Ancestors(ctx, id, includeSelf)
	return list, categoryError(err)
}

// Descendants 子孙, 先序
func (s *CategoryService) Descendants(ctx context.Context, id int64, includeSelf bool) ([]model.Category, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, categoryError(err)
	}
	list, err := s.repo.Descendants(ctx, id, includeSelf)
	return list, categoryError(err)
}

// SubtreeIDs 自身及全部子孙 ID
func (s *CategoryService) SubtreeIDs(ctx context.Context, id int64) ([]int64, error) {
	ids, err := s.repo.DescendantIDs(ctx, id, true)
	if err != nil {
		return nil, categoryError(err)
	}
	if len(ids) == 0 {
		return nil, apperr.NotFound("分类不存在")
	}
	return ids, nil
}

// ListTree 全部根分类及嵌套子分类; 结果缓存, 结构性修改时失效
func (s *CategoryService) ListTree(ctx context.Context) ([]*dto.CategoryNode, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, categoryTreeCacheKey); err == nil {
			var nodes []*dto.CategoryNode
			if json.Unmarshal([]byte(raw), &nodes) == nil {
				return nodes, nil
			}
		}
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, categoryError(err)
	}
	roots := buildTree(all)

	if s.cache != nil {
		if raw, err := json.Marshal(roots); err == nil {
			if err := s.cache.Set(ctx, categoryTreeCacheKey, string(raw), s.cacheTTL); err != nil {
				zap.L().Warn("分类树缓存写入失败", zap.Error(err))
			}
		}
	}
	return roots, nil
}

// FlatList 管理端平铺列表, 按树序
func (s *CategoryService) FlatList(ctx context.Context, actor model.Actor) ([]dto.CategoryFlatItem, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权查看")
	}
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, categoryError(err)
	}
	out := make([]dto.CategoryFlatItem, len(all))
	for i, c := range all {
		out[i] = dto.CategoryFlatItem{
			ID:       c.ID,
			Name:     c.Name,
			Slug:     c.Slug,
			ParentID: c.ParentID,
			Depth:    c.Depth,
			Lft:      c.Lft,
			Rgt:      c.Rgt,
		}
	}
	return out, nil
}

// ==================== 辅助方法 ====================

func (s *CategoryService) invalidateTree(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, categoryTreeCacheKey); err != nil {
		zap.L().Warn("分类树缓存失效失败", zap.Error(err))
	}
}

// buildTree all 须按 lft 排序; 父节点总在子节点之前出现
func buildTree(all []model.Category) []*dto.CategoryNode {
	byID := make(map[int64]*dto.CategoryNode, len(all))
	roots := make([]*dto.CategoryNode, 0)
	for _, c := range all {
		node := &dto.CategoryNode{ID: c.ID, Name: c.Name, Slug: c.Slug, Depth: c.Depth, Children: []*dto.CategoryNode{}}
		byID[c.ID] = node
		if parent, ok := byID[c.ParentID]; ok && c.ParentID != 0 {
			parent.Children = append(parent.Children, node)
		} else {
			roots = append(roots, node)
		}
	}
	return roots
}

var slugSeparator = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 小写, 非字母数字的连续字符替换为 "-"
func Slugify(s string) string {
	s = slugSeparator.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

func resolveSlug(explicit, name string) (string, error) {
	src := explicit
	if strings.TrimSpace(src) == "" {
		src = name
	}
	slug := Slugify(src)
	if slug == "" {
		return "", apperr.Validation("无法生成 slug, 请显式指定")
	}
	return slug, nil
}

func categoryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTreeCycle):
		return apperr.Validation("分类父指针存在环, 重建已回滚")
	case errors.Is(err, repository.ErrInvalidParent):
		return apperr.Validation("不能把分类移动到自身或其子孙之下")
	default:
		return apperr.FromStore(err, "分类")
	}
}

func toCategoryInfo(c *model.Category) *dto.CategoryInfo {
	return &dto.CategoryInfo{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ParentID:    c.ParentID,
		Depth:       c.Depth,
	}
}

func toBreadcrumbItem(c *model.Category) dto.BreadcrumbItem {
	return dto.BreadcrumbItem{ID: c.ID, Name: c.Name, Slug: c.Slug}
}
