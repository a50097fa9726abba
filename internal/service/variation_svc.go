package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
)

// ==================== VariationService 规格服务 ====================

// VariationService 规格维度、规格值以及 SKU 规格配置
type VariationService struct {
	repo         repository.VariationRepository
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewVariationService 创建规格服务
func NewVariationService(repo repository.VariationRepository, productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository) *VariationService {
	return &VariationService{repo: repo, productRepo: productRepo, categoryRepo: categoryRepo}
}

// ==================== 规格维度 ====================

// CreateVariationType 创建规格维度; categoryIDs 为空时全局可用
func (s *VariationService) CreateVariationType(ctx context.Context, actor model.Actor, req *dto.CreateVariationTypeRequest) (*dto.VariationTypeInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护规格")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.Validation("规格名称不能为空")
	}

	existing, err := s.repo.GetTypeByName(ctx, name)
	if err == nil && existing != nil {
		return nil, apperr.Conflict("规格 %q 已存在", existing.Name)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStore(err, "规格")
	}

	ids := uniqueInt64s(req.CategoryIDs)
	for _, cid := range ids {
		if _, err := s.categoryRepo.GetByID(ctx, cid); err != nil {
			return nil, apperr.FromStore(err, "分类")
		}
	}

	vt := &model.VariationType{Name: name}
	if err := s.repo.CreateType(ctx, vt, ids); err != nil {
		return nil, apperr.FromStore(err, "规格")
	}
	return &dto.VariationTypeInfo{ID: vt.ID, Name: vt.Name, IsGlobal: vt.IsGlobal, Variants: []dto.VariantInfo{}}, nil
}

// AddVariant 给规格维度新增取值
func (s *VariationService) AddVariant(ctx context.Context, actor model.Actor, typeID int64, req *dto.CreateVariantRequest) (*dto.VariantInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护规格")
	}
	value := strings.TrimSpace(req.Value)
	if value == "" {
		return nil, apperr.Validation("规格值不能为空")
	}

	vt, err := s.repo.GetType(ctx, typeID)
	if err != nil {
		return nil, apperr.FromStore(err, "规格")
	}
	if _, err := s.repo.FindVariant(ctx, typeID, value); err == nil {
		return nil, apperr.Conflict("规格 %s 已有取值 %q", vt.Name, value)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromStore(err, "规格值")
	}

	v := &model.Variant{Value: value, VariationTypeID: typeID}
	if err := s.repo.CreateVariant(ctx, v); err != nil {
		return nil, apperr.FromStore(err, "规格值")
	}
	return &dto.VariantInfo{ID: v.ID, Type: vt.Name, TypeID: vt.ID, Value: v.Value}, nil
}

// ListVariationTypes 全部规格维度
func (s *VariationService) ListVariationTypes(ctx context.Context) ([]dto.VariationTypeInfo, error) {
	list, err := s.repo.ListTypes(ctx)
	if err != nil {
		return nil, apperr.FromStore(err, "规格")
	}
	return toVariationTypeInfos(list), nil
}

// ListVariationTypesForCategory 对该分类生效的规格维度: 全局 + 绑定在自身或任一祖先上的
func (s *VariationService) ListVariationTypesForCategory(ctx context.Context, categoryID int64) ([]dto.VariationTypeInfo, error) {
	if _, err := s.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return nil, apperr.FromStore(err, "分类")
	}
	list, err := s.repo.ListTypesForCategory(ctx, categoryID)
	if err != nil {
		return nil, apperr.FromStore(err, "规格")
	}
	return toVariationTypeInfos(list), nil
}

// ==================== SKU 规格配置 ====================

// AttachVariant 给 SKU 绑定规格值
// 同一对 (SKU, 规格值) 只能绑定一次; 每个维度最多一个取值; 维度必须对商品分类生效
func (s *VariationService) AttachVariant(ctx context.Context, actor model.Actor, itemID, variantID int64) (*dto.VariantInfo, error) {
	if !actor.CanManageCatalog() {
		return nil, apperr.Permission("无权维护 SKU")
	}

	item, err := s.productRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	variant, err := s.repo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, apperr.FromStore(err, "规格值")
	}

	err = s.repo.Transaction(ctx, func(tx repository.VariationRepository) error {
		return attachChecked(ctx, tx, item, variant)
	})
	if err != nil {
		return nil, err
	}
	return toVariantInfo(variant), nil
}

// attachChecked 预检查后插入; 并发插入同一对时由主键兜底, 同样映射为冲突
func attachChecked(ctx context.Context, repo repository.VariationRepository, item *model.ProductItem, variant *model.Variant) error {
	exists, err := repo.ConfigExists(ctx, item.ID, variant.ID)
	if err != nil {
		return apperr.FromStore(err, "规格配置")
	}
	if exists {
		return apperr.Conflict("SKU %s 已绑定该规格值", item.SKU)
	}

	sameType, err := repo.ItemHasVariantOfType(ctx, item.ID, variant.VariationTypeID)
	if err != nil {
		return apperr.FromStore(err, "规格配置")
	}
	if sameType {
		return apperr.Validation("SKU %s 在该规格维度上已有取值", item.SKU)
	}

	if item.Product != nil {
		ok, err := repo.TypeAppliesToCategory(ctx, variant.VariationTypeID, item.Product.CategoryID)
		if err != nil {
			return apperr.FromStore(err, "规格")
		}
		if !ok {
			return apperr.Validation("该规格维度不适用于商品所属分类")
		}
	}

	if err := repo.AttachVariant(ctx, item.ID, variant.ID); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("SKU %s 已绑定该规格值", item.SKU)
		}
		return apperr.FromStore(err, "规格配置")
	}
	return nil
}

// ListVariants SKU 已绑定的规格值
func (s *VariationService) ListVariants(ctx context.Context, itemID int64) ([]dto.VariantInfo, error) {
	if _, err := s.productRepo.GetItem(ctx, itemID); err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	list, err := s.repo.ListItemVariants(ctx, itemID)
	if err != nil {
		return nil, apperr.FromStore(err, "规格配置")
	}
	out := make([]dto.VariantInfo, len(list))
	for i := range list {
		out[i] = *toVariantInfo(&list[i])
	}
	return out, nil
}

// FindItemByConfiguration 按规格组合精确查找在售 SKU
func (s *VariationService) FindItemByConfiguration(ctx context.Context, productID int64, variantIDs []int64) (*dto.ItemInfo, error) {
	if _, err := s.productRepo.GetByID(ctx, productID); err != nil {
		return nil, apperr.FromStore(err, "商品")
	}
	if len(uniqueInt64s(variantIDs)) == 0 {
		return nil, apperr.Validation("至少指定一个规格值")
	}

	ids, err := s.repo.FindItemsByConfiguration(ctx, productID, variantIDs)
	if err != nil {
		return nil, apperr.FromStore(err, "规格配置")
	}
	switch len(ids) {
	case 0:
		return nil, apperr.NotFound("没有匹配该规格组合的 SKU")
	case 1:
	default:
		return nil, apperr.Conflict("有 %d 个 SKU 匹配同一规格组合", len(ids))
	}

	item, err := s.productRepo.GetItem(ctx, ids[0])
	if err != nil {
		return nil, apperr.FromStore(err, "SKU")
	}
	info := toItemInfo(item)
	return &info, nil
}

// ==================== 辅助方法 ====================

func toVariantInfo(v *model.Variant) *dto.VariantInfo {
	info := &dto.VariantInfo{ID: v.ID, TypeID: v.VariationTypeID, Value: v.Value}
	if v.VariationType != nil {
		info.Type = v.VariationType.Name
	}
	return info
}

func toVariationTypeInfos(list []model.VariationType) []dto.VariationTypeInfo {
	out := make([]dto.VariationTypeInfo, len(list))
	for i, vt := range list {
		variants := make([]dto.VariantInfo, len(vt.Variants))
		for j, v := range vt.Variants {
			variants[j] = dto.VariantInfo{ID: v.ID, Type: vt.Name, TypeID: vt.ID, Value: v.Value}
		}
		out[i] = dto.VariationTypeInfo{ID: vt.ID, Name: vt.Name, IsGlobal: vt.IsGlobal, Variants: variants}
	}
	return out
}

func uniqueInt64s(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id > 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
