package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shop_catalog_v1/internal/model"
)

// ErrRankedSearchUnsupported 当前方言没有全文检索能力
var ErrRankedSearchUnsupported = errors.New("当前数据库不支持全文检索")

// ==================== 接口定义 ====================

// ProductRepository 商品 / SKU 仓储
type ProductRepository interface {
	// 商品
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetDetail(ctx context.Context, id int64) (*model.Product, error)
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	AppendImages(ctx context.Context, id int64, urls []string) error

	// 查询
	Search(ctx context.Context, filter ProductSearch) ([]ProductRow, int64, error)
	MatchingItems(ctx context.Context, productIDs []int64, filter ItemFilter) ([]model.ProductItem, error)
	Related(ctx context.Context, product *model.Product, limit int) ([]ProductRow, error)

	// SKU
	CreateItem(ctx context.Context, item *model.ProductItem) error
	GetItem(ctx context.Context, id int64) (*model.ProductItem, error)
	UpdateItemFields(ctx context.Context, id int64, fields map[string]interface{}) error
	ListItems(ctx context.Context, productID int64, includeInactive bool) ([]model.ProductItem, error)
	GetItemsByIDs(ctx context.Context, ids []int64) ([]model.ProductItem, error)

	// 事务
	WithTx(tx *gorm.DB) ProductRepository
	Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error
}

// ==================== 过滤条件 ====================

// SearchMode 关键词匹配方式
type SearchMode int

const (
	SearchRanked    SearchMode = iota // PostgreSQL tsvector + ts_rank
	SearchSubstring                   // LOWER(..) LIKE, 名称命中排在描述命中之前
)

// SortOption 显式排序
type SortOption string

const (
	SortRelevance SortOption = "relevance"
	SortNewest    SortOption = "newest"
	SortPriceAsc  SortOption = "price_asc"
	SortPriceDesc SortOption = "price_desc"
	SortFeatured  SortOption = "featured"
	SortName      SortOption = "name"
)

// ItemFilter SKU 级条件, 必须由同一个 SKU 同时满足
type ItemFilter struct {
	// 组间 AND, 组内 OR (同一维度的多个取值)
	VariantGroups [][]int64
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
}

// IsEmpty 没有任何 SKU 级条件
func (f ItemFilter) IsEmpty() bool {
	return len(f.VariantGroups) == 0 && f.PriceMin == nil && f.PriceMax == nil
}

// ProductSearch 已解析的检索条件
type ProductSearch struct {
	// nil 表示不过滤分类; 非 nil 空切片表示无匹配
	CategoryIDs  []int64
	Items        ItemFilter
	FeaturedOnly bool

	Query    string
	Mode     SearchMode
	Language string

	Sort   SortOption
	Offset int
	Limit  int
}

// ProductRow 检索结果行
type ProductRow struct {
	model.Product
	Rank     float64             `gorm:"column:search_rank"`
	MinPrice decimal.NullDecimal `gorm:"column:min_price"`
	MaxPrice decimal.NullDecimal `gorm:"column:max_price"`
}

// ==================== 仓储实现 ====================

type productRepo struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// GetDetail 带分类、在售 SKU 及其规格
func (r *productRepo) GetDetail(ctx context.Context, id int64) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("price ASC, id ASC")
		}).
		Preload("Items.Variants.VariationType").
		First(&product, id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// AppendImages 读改写, 行锁避免并发上传互相覆盖
func (r *productRepo) AppendImages(ctx context.Context, id int64, urls []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Product
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return err
		}
		images := append(p.Images, urls...)
		return tx.Model(&model.Product{}).Where("id = ?", id).Update("images", images).Error
	})
}

// ==================== 检索 ====================

var languagePattern = regexp.MustCompile(`^[a-z_]+$`)

// Search 分类/SKU 条件/关键词/推荐位 组合检索
// 排序: 显式排序 -> 相关度 -> 创建时间 -> ID, 保证分页稳定
func (r *productRepo) Search(ctx context.Context, f ProductSearch) ([]ProductRow, int64, error) {
	var rows []ProductRow
	var total int64

	if f.CategoryIDs != nil && len(f.CategoryIDs) == 0 {
		return rows, 0, nil
	}

	query := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("products.is_active = ?", true)

	if f.CategoryIDs != nil {
		query = query.Where("products.category_id IN ?", f.CategoryIDs)
	}
	if f.FeaturedOnly {
		query = query.Where("products.featured = ?", true)
	}
	if !f.Items.IsEmpty() {
		sub := r.itemQuery(ctx, "pi", f.Items).
			Select("1").
			Where("pi.product_id = products.id")
		query = query.Where("EXISTS (?)", sub)
	}

	rankExpr := clause.Expr{SQL: "0"}
	if q := strings.TrimSpace(f.Query); q != "" {
		var cond clause.Expr
		var err error
		cond, rankExpr, err = r.textMatch(q, f.Mode, f.Language)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where(cond)
	}

	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return rows, 0, nil
	}

	minExpr, maxExpr := priceExprs()
	err := query.Session(&gorm.Session{}).
		Select("products.*, ("+minExpr+") AS min_price, ("+maxExpr+") AS max_price, (?) AS search_rank", rankExpr).
		Order(orderFor(f.Sort, minExpr, maxExpr)).
		Order("search_rank DESC").
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&rows).Error
	return rows, total, err
}

// textMatch 返回 WHERE 条件与相关度表达式
func (r *productRepo) textMatch(q string, mode SearchMode, language string) (cond, rank clause.Expr, err error) {
	if mode == SearchRanked {
		if r.db.Dialector.Name() != "postgres" {
			return cond, rank, ErrRankedSearchUnsupported
		}
		if language == "" {
			language = "english"
		}
		if !languagePattern.MatchString(language) {
			return cond, rank, fmt.Errorf("非法的检索语言: %s", language)
		}
		vector := fmt.Sprintf("(setweight(to_tsvector('%[1]s', coalesce(products.name, '')), 'A') || "+
			"setweight(to_tsvector('%[1]s', coalesce(products.description, '')), 'B'))", language)
		tsq := fmt.Sprintf("plainto_tsquery('%s', ?)", language)
		cond = clause.Expr{SQL: vector + " @@ " + tsq, Vars: []interface{}{q}}
		rank = clause.Expr{SQL: "ts_rank(" + vector + ", " + tsq + ")", Vars: []interface{}{q}}
		return cond, rank, nil
	}

	pattern := "%" + EscapeLike(strings.ToLower(q)) + "%"
	cond = clause.Expr{
		SQL:  `(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.description) LIKE ? ESCAPE '\')`,
		Vars: []interface{}{pattern, pattern},
	}
	rank = clause.Expr{
		SQL:  `CASE WHEN LOWER(products.name) LIKE ? ESCAPE '\' THEN 2 WHEN LOWER(products.description) LIKE ? ESCAPE '\' THEN 1 ELSE 0 END`,
		Vars: []interface{}{pattern, pattern},
	}
	return cond, rank, nil
}

// EscapeLike 转义 LIKE 通配符
func EscapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// itemQuery 满足 SKU 级条件的在售 SKU
func (r *productRepo) itemQuery(ctx context.Context, alias string, f ItemFilter) *gorm.DB {
	col := func(name string) string { return alias + "." + name }

	q := r.db.WithContext(ctx).
		Table("product_items AS "+alias).
		Where(col("is_active")+" = ? AND "+col("deleted_at")+" IS NULL", true)

	if f.PriceMin != nil {
		q = q.Where(col("price")+" >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where(col("price")+" <= ?", *f.PriceMax)
	}
	for i, group := range f.VariantGroups {
		pc := fmt.Sprintf("pc%d", i)
		sub := r.db.WithContext(ctx).
			Table("product_configs AS "+pc).
			Select("1").
			Where(pc+".product_item_id = "+col("id")).
			Where(pc+".variant_id IN ?", group)
		q = q.Where("EXISTS (?)", sub)
	}
	return q
}

func priceExprs() (min, max string) {
	const scope = "FROM product_items AS pp WHERE pp.product_id = products.id AND pp.is_active = true AND pp.deleted_at IS NULL"
	return "SELECT MIN(pp.price) " + scope, "SELECT MAX(pp.price) " + scope
}

// orderFor 价格排序时无 SKU 的商品排在最后
func orderFor(sort SortOption, minExpr, maxExpr string) string {
	switch sort {
	case SortNewest:
		return "products.created_at DESC"
	case SortPriceAsc:
		return fmt.Sprintf("CASE WHEN (%[1]s) IS NULL THEN 1 ELSE 0 END, (%[1]s) ASC", minExpr)
	case SortPriceDesc:
		return fmt.Sprintf("CASE WHEN (%[1]s) IS NULL THEN 1 ELSE 0 END, (%[1]s) DESC", maxExpr)
	case SortFeatured:
		return "products.featured DESC"
	case SortName:
		return "LOWER(products.name) ASC"
	default:
		// relevance 只依赖后续的 search_rank
		return ""
	}
}

// MatchingItems 命中 SKU 级条件的 SKU (带规格), 按商品分组由调用方处理
func (r *productRepo) MatchingItems(ctx context.Context, productIDs []int64, f ItemFilter) ([]model.ProductItem, error) {
	var items []model.ProductItem
	if len(productIDs) == 0 {
		return items, nil
	}
	ids := r.itemQuery(ctx, "pi", f).
		Select("pi.id").
		Where("pi.product_id IN ?", productIDs)

	err := r.db.WithContext(ctx).
		Preload("Variants.VariationType").
		Where("id IN (?)", ids).
		Order("product_id ASC, price ASC, id ASC").
		Find(&items).Error
	return items, err
}

// Related 同分类的其他在售商品: 推荐位优先, 再按新旧
func (r *productRepo) Related(ctx context.Context, product *model.Product, limit int) ([]ProductRow, error) {
	var rows []ProductRow
	minExpr, maxExpr := priceExprs()
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Select("products.*, ("+minExpr+") AS min_price, ("+maxExpr+") AS max_price, 0 AS search_rank").
		Where("products.category_id = ? AND products.id <> ? AND products.is_active = ?",
			product.CategoryID, product.ID, true).
		Order("products.featured DESC, products.created_at DESC, products.id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ==================== SKU ====================

func (r *productRepo) CreateItem(ctx context.Context, item *model.ProductItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *productRepo) GetItem(ctx context.Context, id int64) (*model.ProductItem, error) {
	var item model.ProductItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Variants.VariationType").
		First(&item, id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *productRepo) UpdateItemFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.ProductItem{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *productRepo) ListItems(ctx context.Context, productID int64, includeInactive bool) ([]model.ProductItem, error) {
	var items []model.ProductItem
	q := r.db.WithContext(ctx).
		Preload("Variants.VariationType").
		Where("product_id = ?", productID)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	err := q.Order("price ASC, id ASC").Find(&items).Error
	return items, err
}

func (r *productRepo) GetItemsByIDs(ctx context.Context, ids []int64) ([]model.ProductItem, error) {
	var items []model.ProductItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Variants.VariationType").
		Where("id IN ?", ids).
		Order("price ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ==================== 事务 ====================

func (r *productRepo) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepo{db: tx}
}

func (r *productRepo) Transaction(ctx context.Context, fn func(txRepo ProductRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
