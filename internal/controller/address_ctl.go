package controller

import (
	"github.com/gin-gonic/gin"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// AddressController 地址簿与结算地址
type AddressController struct {
	addresses *service.AddressService
}

func NewAddressController(addresses *service.AddressService) *AddressController {
	return &AddressController{addresses: addresses}
}

// List 当前用户的地址簿
// @Summary 地址簿
// @Tags Address
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.UserAddressInfo
// @Router /addresses [get]
func (c *AddressController) List(ctx *gin.Context) {
	list, err := c.addresses.List(ctx.Request.Context(), middleware.ActorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// Create 添加地址
// @Summary 添加地址
// @Tags Address
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateAddressRequest true "地址"
// @Success 200 {object} dto.UserAddressInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /addresses [post]
func (c *AddressController) Create(ctx *gin.Context) {
	var req dto.CreateAddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.addresses.Create(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "添加成功", info)
}

// Update 修改地址
// @Summary 修改地址
// @Tags Address
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "地址簿条目 ID"
// @Param request body dto.UpdateAddressRequest true "地址"
// @Success 200 {object} dto.UserAddressInfo
// @Failure 403 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /addresses/{id} [put]
func (c *AddressController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateAddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.addresses.Update(ctx.Request.Context(), middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "更新成功", info)
}

// Delete 从地址簿移除
// @Summary 移除地址
// @Tags Address
// @Produce json
// @Security BearerAuth
// @Param id path int true "地址簿条目 ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /addresses/{id} [delete]
func (c *AddressController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if err := c.addresses.Remove(ctx.Request.Context(), middleware.ActorFrom(ctx), id); err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "已移除", nil)
}

// SetDefault 设为默认地址
// @Summary 设为默认地址
// @Tags Address
// @Produce json
// @Security BearerAuth
// @Param id path int true "地址簿条目 ID"
// @Success 200 {object} dto.UserAddressInfo
// @Router /addresses/{id}/default [put]
func (c *AddressController) SetDefault(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	info, err := c.addresses.SetDefault(ctx.Request.Context(), middleware.ActorFrom(ctx), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "设置成功", info)
}

// Checkout 结算地址, 游客可用
// @Summary 结算地址
// @Tags Address
// @Accept json
// @Produce json
// @Param request body dto.CheckoutAddressRequest true "地址"
// @Success 200 {object} dto.CheckoutAddressResponse
// @Failure 400 {object} map[string]interface{}
// @Router /addresses/checkout [post]
func (c *AddressController) Checkout(ctx *gin.Context) {
	var req dto.CheckoutAddressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	resp, err := c.addresses.Checkout(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", resp)
}
