package controller

import (
	"github.com/gin-gonic/gin"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// CurrencyController 汇率查询与维护
type CurrencyController struct {
	currency *service.CurrencyService
}

func NewCurrencyController(currency *service.CurrencyService) *CurrencyController {
	return &CurrencyController{currency: currency}
}

// List 全部汇率
// @Summary 汇率列表
// @Tags Currency
// @Produce json
// @Success 200 {object} dto.CurrencyListResponse
// @Router /currencies [get]
func (c *CurrencyController) List(ctx *gin.Context) {
	resp, err := c.currency.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", resp)
}

// SetRate 设置汇率
// @Summary 设置汇率
// @Tags Currency
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "货币代码"
// @Param request body dto.UpdateRateRequest true "汇率"
// @Success 200 {object} dto.CurrencyRateInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /currencies/{code} [put]
func (c *CurrencyController) SetRate(ctx *gin.Context) {
	var req dto.UpdateRateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.currency.SetRate(ctx.Request.Context(), middleware.ActorFrom(ctx), ctx.Param("code"), req.Rate)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "更新成功", info)
}
