package controller

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/api/view"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

const maxUploadFiles = 10

// ==================== ProductController 商品接口 ====================

// ProductController 商品检索、详情与维护
type ProductController struct {
	catalog    *service.CatalogService
	variations *service.VariationService
}

// NewProductController 创建商品控制器
func NewProductController(catalog *service.CatalogService, variations *service.VariationService) *ProductController {
	return &ProductController{catalog: catalog, variations: variations}
}

// ==================== 检索 ====================

// Search 商品检索
// @Summary 商品检索
// @Description 关键词、分类 (含子分类)、价格区间、规格 (同一 SKU 同时满足) 组合检索
// @Tags Product
// @Produce json
// @Param q query string false "关键词"
// @Param category query int false "分类 ID"
// @Param exact_category query bool false "只匹配该分类本身"
// @Param price_min query string false "最低价"
// @Param price_max query string false "最高价"
// @Param variant query []string false "规格 type:value, 可重复" collectionFormat(multi)
// @Param colour query string false "颜色"
// @Param featured query bool false "只看推荐"
// @Param sort query string false "relevance|newest|price_asc|price_desc|featured|name"
// @Param currency query string false "展示货币"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.PageResult[dto.ProductSummary]
// @Failure 400 {object} map[string]interface{}
// @Router /products [get]
func (c *ProductController) Search(ctx *gin.Context) {
	var q dto.ProductSearchQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, err)
		return
	}

	page, err := c.catalog.Search(ctx.Request.Context(), &q)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", view.ProductPage(page, middleware.ActorFrom(ctx).Role))
}

// Featured 推荐位商品
// @Summary 推荐商品
// @Tags Product
// @Produce json
// @Param currency query string false "展示货币"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} dto.PageResult[dto.ProductSummary]
// @Router /products/featured [get]
func (c *ProductController) Featured(ctx *gin.Context) {
	var q dto.ProductSearchQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		badRequest(ctx, err)
		return
	}

	page, err := c.catalog.Featured(ctx.Request.Context(), &q)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", view.ProductPage(page, middleware.ActorFrom(ctx).Role))
}

// Get 商品详情
// @Summary 商品详情
// @Tags Product
// @Produce json
// @Param id path int true "商品 ID"
// @Param currency query string false "展示货币"
// @Param location query string false "销售地区国家代码"
// @Success 200 {object} dto.ProductDetail
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id} [get]
func (c *ProductController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var pc dto.PriceContext
	if err := ctx.ShouldBindQuery(&pc); err != nil {
		badRequest(ctx, err)
		return
	}
	actor := middleware.ActorFrom(ctx)

	detail, err := c.catalog.GetProduct(ctx.Request.Context(), actor, id, pc)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", view.ProductDetail(detail, actor.Role))
}

// Related 同分类的其他商品
// @Summary 相关商品
// @Tags Product
// @Produce json
// @Param id path int true "商品 ID"
// @Param limit query int false "数量"
// @Param currency query string false "展示货币"
// @Success 200 {array} dto.ProductSummary
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id}/related [get]
func (c *ProductController) Related(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	limit := cast.ToInt(ctx.Query("limit"))

	list, err := c.catalog.Related(ctx.Request.Context(), id, limit, ctx.Query("currency"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	role := middleware.ActorFrom(ctx).Role
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = view.Product(s, role)
	}
	success(ctx, "success", out)
}

// ==================== 维护 ====================

// Create 创建商品
// @Summary 创建商品
// @Tags Product
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateProductRequest true "商品信息"
// @Success 200 {object} dto.ProductSummary
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /products [post]
func (c *ProductController) Create(ctx *gin.Context) {
	var req dto.CreateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	product, err := c.catalog.CreateProduct(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "创建成功", product)
}

// Update 更新商品
// @Summary 更新商品
// @Tags Product
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品 ID"
// @Param request body dto.UpdateProductRequest true "商品信息"
// @Success 200 {object} dto.ProductSummary
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id} [put]
func (c *ProductController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	product, err := c.catalog.UpdateProduct(ctx.Request.Context(), middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "更新成功", product)
}

// Delete 下架商品
// @Summary 下架商品
// @Tags Product
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id} [delete]
func (c *ProductController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.catalog.DeactivateProduct(ctx.Request.Context(), middleware.ActorFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "已下架", nil)
}

// UploadImages 上传商品图片
// @Summary 上传商品图片
// @Tags Product
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品 ID"
// @Param images formData file true "图片, 可多张"
// @Success 200 {object} dto.ImageUploadResult
// @Failure 400 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /products/{id}/images [post]
func (c *ProductController) UploadImages(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		badRequest(ctx, err)
		return
	}
	headers := form.File["images"]
	if len(headers) == 0 || len(headers) > maxUploadFiles {
		fail(ctx, http.StatusBadRequest, fmt.Sprintf("每次上传 1 到 %d 张图片", maxUploadFiles))
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			badRequest(ctx, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			badRequest(ctx, err)
			return
		}
		files = append(files, service.UploadFile{Filename: h.Filename, Data: data})
	}

	res, err := c.catalog.UploadImages(ctx.Request.Context(), middleware.ActorFrom(ctx), id, files)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "上传成功", res)
}

// ==================== SKU ====================

// Items 商品下的 SKU
// @Summary 商品 SKU 列表
// @Tags Product
// @Produce json
// @Param id path int true "商品 ID"
// @Success 200 {array} dto.ItemInfo
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id}/items [get]
func (c *ProductController) Items(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(ctx)

	items, err := c.catalog.ListItems(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", view.Items(items, actor.Role))
}

// MatchItem 按规格组合找 SKU
// @Summary 规格组合匹配 SKU
// @Tags Product
// @Accept json
// @Produce json
// @Param id path int true "商品 ID"
// @Param request body dto.MatchItemRequest true "规格值 ID"
// @Success 200 {object} dto.ItemInfo
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /products/{id}/items/match [post]
func (c *ProductController) MatchItem(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.MatchItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	item, err := c.variations.FindItemByConfiguration(ctx.Request.Context(), id, req.VariantIDs)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", view.Item(*item, middleware.ActorFrom(ctx).Role))
}
