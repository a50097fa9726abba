package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"shop_catalog_v1/internal/api/dto"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/service"
)

// CategoryController 分类树接口
type CategoryController struct {
	categories *service.CategoryService
	variations *service.VariationService
}

func NewCategoryController(categories *service.CategoryService, variations *service.VariationService) *CategoryController {
	return &CategoryController{categories: categories, variations: variations}
}

// ListTree 完整分类树
// @Summary 分类树
// @Tags Category
// @Produce json
// @Success 200 {array} dto.CategoryNode
// @Router /categories [get]
func (c *CategoryController) ListTree(ctx *gin.Context) {
	tree, err := c.categories.ListTree(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", tree)
}

// FlatList 按先序排列的扁平列表, 带左右边界
// @Summary 分类扁平列表
// @Tags Category
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.CategoryFlatItem
// @Failure 403 {object} map[string]interface{}
// @Router /categories/flat [get]
func (c *CategoryController) FlatList(ctx *gin.Context) {
	list, err := c.categories.FlatList(ctx.Request.Context(), middleware.ActorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// Get 分类详情, 带面包屑与直接子分类
// @Summary 分类详情
// @Tags Category
// @Produce json
// @Param id path int true "分类 ID"
// @Success 200 {object} dto.CategoryInfo
// @Failure 404 {object} map[string]interface{}
// @Router /categories/{id} [get]
func (c *CategoryController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	info, err := c.categories.Get(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", info)
}

// VariationTypes 对该分类生效的规格维度
// @Summary 分类可用规格
// @Tags Category
// @Produce json
// @Param id path int true "分类 ID"
// @Success 200 {array} dto.VariationTypeInfo
// @Failure 404 {object} map[string]interface{}
// @Router /categories/{id}/variation-types [get]
func (c *CategoryController) VariationTypes(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	list, err := c.variations.ListVariationTypesForCategory(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "success", list)
}

// Create 创建分类
// @Summary 创建分类
// @Tags Category
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateCategoryRequest true "分类信息"
// @Success 200 {object} dto.CategoryInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /categories [post]
func (c *CategoryController) Create(ctx *gin.Context) {
	var req dto.CreateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.categories.Create(ctx.Request.Context(), middleware.ActorFrom(ctx), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "创建成功", info)
}

// Update 更新分类; parent_id 变化时整棵子树移动
// @Summary 更新分类
// @Tags Category
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类 ID"
// @Param request body dto.UpdateCategoryRequest true "分类信息"
// @Success 200 {object} dto.CategoryInfo
// @Failure 400 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /categories/{id} [put]
func (c *CategoryController) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req dto.UpdateCategoryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}
	info, err := c.categories.Update(ctx.Request.Context(), middleware.ActorFrom(ctx), id, &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "更新成功", info)
}

// Delete 删除分类
// @Summary 删除分类
// @Description 传 move_children_to 时先把子分类挂到目标下 (0 表示提升为根), 否则整棵子树删除
// @Tags Category
// @Produce json
// @Security BearerAuth
// @Param id path int true "分类 ID"
// @Param move_children_to query int false "子分类移动目标"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /categories/{id} [delete]
func (c *CategoryController) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var moveTo *int64
	if raw, exists := ctx.GetQuery("move_children_to"); exists {
		target, err := cast.ToInt64E(raw)
		if err != nil || target < 0 {
			fail(ctx, http.StatusBadRequest, "无效的 move_children_to")
			return
		}
		moveTo = &target
	}

	if err := c.categories.Delete(ctx.Request.Context(), middleware.ActorFrom(ctx), id, moveTo); err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "删除成功", nil)
}

// Rebuild 按父指针重算整棵树的边界
// @Summary 重建分类树
// @Tags Category
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.RebuildResult
// @Failure 403 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Router /categories/rebuild [post]
func (c *CategoryController) Rebuild(ctx *gin.Context) {
	res, err := c.categories.Rebuild(ctx.Request.Context(), middleware.ActorFrom(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	success(ctx, "重建完成", res)
}
