package controller

import (
	"github.com/gin-gonic/gin"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// VariationController 规格维度与取值
type VariationController struct {
	variations *service.VariationService
}

func NewVariationController(variations *service.VariationService) *VariationController {
	return &VariationController{variations: variations}
}

// List 全部规格维度
// @Summary 规格维度列表
// @Tags Variation
// @Produce json
// @Success 200 {array} dto.VariationTypeInfo
// @Router /variation-types [get]
func (c *VariationController) List(ctx *gin.Context) {
	list, err := c.variations.ListVariationTypes(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// CreateType 创建规格维度
// @Summary 创建规格维度
// @Tags Variation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateVariationTypeRequest true "规格维度"
// @Success 200 {object} dto.VariationTypeInfo
// @Failure 409 {object} map[string]interface{}
// @Router /variation-types [post]
func (c *VariationController) CreateType(ctx *gin.Context) {
	var req dto.CreateVariationTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.variations.CreateVariationType(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "创建成功", info)
}

// AddVariant 新增规格取值
// @Summary 新增规格取值
// @Tags Variation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "规格维度 ID"
// @Param request body dto.CreateVariantRequest true "取值"
// @Success 200 {object} dto.VariantInfo
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /variation-types/{id}/variants [post]
func (c *VariationController) AddVariant(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.CreateVariantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.variations.AddVariant(ctx.Request.Context(), middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "创建成功", info)
}
