package controller

import (
	"github.com/gin-gonic/gin"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// ItemController SKU 维护与规格绑定
type ItemController struct {
	catalog    *service.CatalogService
	variations *service.VariationService
}

func NewItemController(catalog *service.CatalogService, variations *service.VariationService) *ItemController {
	return &ItemController{catalog: catalog, variations: variations}
}

// Create 创建 SKU
// @Summary 创建 SKU
// @Tags Item
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateItemRequest true "SKU 信息"
// @Success 200 {object} dto.ItemInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /items [post]
func (c *ItemController) Create(ctx *gin.Context) {
	var req dto.CreateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	item, err := c.catalog.CreateItem(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "创建成功", item)
}

// Update 更新 SKU; variant_ids 非空时整体替换规格
// @Summary 更新 SKU
// @Tags Item
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "SKU ID"
// @Param request body dto.UpdateItemRequest true "SKU 信息"
// @Success 200 {object} dto.ItemInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /items/{id} [put]
func (c *ItemController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	item, err := c.catalog.UpdateItem(ctx.Request.Context(), middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "更新成功", item)
}

// Delete 下架 SKU
// @Summary 下架 SKU
// @Tags Item
// @Produce json
// @Security BearerAuth
// @Param id path int true "SKU ID"
// @Success 200 {object} map[string]interface{}
// @Router /items/{id} [delete]
func (c *ItemController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.catalog.DeactivateItem(ctx.Request.Context(), middleware.ActorFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "已下架", nil)
}

// AttachVariant 给 SKU 绑定规格值
// @Summary 绑定规格值
// @Tags Item
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "SKU ID"
// @Param request body dto.AttachVariantRequest true "规格值"
// @Success 200 {object} dto.VariantInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /items/{id}/variants [post]
func (c *ItemController) AttachVariant(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.AttachVariantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.variations.AttachVariant(ctx.Request.Context(), middleware.ActorFrom(ctx), id, req.VariantID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "绑定成功", info)
}

// ListVariants SKU 的规格值
// @Summary SKU 规格
// @Tags Item
// @Produce json
// @Param id path int true "SKU ID"
// @Success 200 {array} dto.VariantInfo
// @Failure 404 {object} map[string]interface{}
// @Router /items/{id}/variants [get]
func (c *ItemController) ListVariants(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	list, err := c.variations.ListVariants(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}
