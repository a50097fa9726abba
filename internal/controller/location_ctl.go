package controller

import (
	"github.com/gin-gonic/gin"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// LocationController 销售地区与地区定价
type LocationController struct {
	locations *service.LocationService
}

func NewLocationController(locations *service.LocationService) *LocationController {
	return &LocationController{locations: locations}
}

// List 全部销售地区
// @Summary 销售地区列表
// @Tags Location
// @Produce json
// @Success 200 {array} dto.LocationInfo
// @Router /locations [get]
func (c *LocationController) List(ctx *gin.Context) {
	list, err := c.locations.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// Get 单个销售地区
// @Summary 销售地区详情
// @Tags Location
// @Produce json
// @Param code path string true "国家代码"
// @Success 200 {object} dto.LocationInfo
// @Failure 404 {object} map[string]interface{}
// @Router /locations/{code} [get]
func (c *LocationController) Get(ctx *gin.Context) {
	info, err := c.locations.Get(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", info)
}

// Save 新建或修改销售地区
// @Summary 保存销售地区
// @Tags Location
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "国家代码"
// @Param request body dto.SaveLocationRequest true "地区信息"
// @Success 200 {object} dto.LocationInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /locations/{code} [put]
func (c *LocationController) Save(ctx *gin.Context) {
	var req dto.SaveLocationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.locations.Save(ctx.Request.Context(), middleware.ActorFrom(ctx), ctx.Param("code"), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "保存成功", info)
}

// ProductPrices 商品在各地区的标价
// @Summary 商品地区标价
// @Tags Location
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品 ID"
// @Success 200 {array} dto.ProductPriceInfo
// @Router /products/{id}/locations [get]
func (c *LocationController) ProductPrices(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	list, err := c.locations.ListProductPrices(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// SetProductPrice 设置商品地区标价
// @Summary 设置商品地区标价
// @Tags Location
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "商品 ID"
// @Param code path string true "国家代码"
// @Param request body dto.ProductPriceRequest true "标价"
// @Success 200 {object} dto.ProductPriceInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /products/{id}/locations/{code} [put]
func (c *LocationController) SetProductPrice(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.ProductPriceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.locations.SetProductPrice(ctx.Request.Context(), middleware.ActorFrom(ctx), id, ctx.Param("code"), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "保存成功", info)
}

// SetItemDiscount 设置 SKU 地区折扣
// @Summary 设置 SKU 地区折扣
// @Tags Location
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "SKU ID"
// @Param code path string true "国家代码"
// @Param request body dto.ItemDiscountRequest true "折扣"
// @Success 200 {object} dto.ItemDiscountInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /items/{id}/locations/{code} [put]
func (c *LocationController) SetItemDiscount(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.ItemDiscountRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.locations.SetItemDiscount(ctx.Request.Context(), middleware.ActorFrom(ctx), id, ctx.Param("code"), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "保存成功", info)
}
