package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"shop_catalog_v1/internal/apperr"
	"shop_catalog_v1/internal/service"
)

// ==================== 统一响应 ====================

func success(ctx *gin.Context, message string, data interface{}) {
	body := gin.H{
		"code":    0,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	ctx.JSON(http.StatusOK, body)
}

func fail(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}

func badRequest(ctx *gin.Context, err error) {
	fail(ctx, http.StatusBadRequest, "参数错误: "+err.Error())
}

// respondError 按错误类别映射 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	if isAuthError(err) {
		fail(ctx, http.StatusUnauthorized, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindPermission:
		status = http.StatusForbidden
	case apperr.KindStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		zap.L().Error("请求处理失败",
			zap.String("path", ctx.FullPath()),
			zap.Error(err))
	}
	fail(ctx, status, err.Error())
}

func isAuthError(err error) bool {
	return errors.Is(err, service.ErrInvalidCredentials) ||
		errors.Is(err, service.ErrUserDisabled) ||
		errors.Is(err, service.ErrInvalidToken)
}

// pathID 解析路径中的正整数 ID; 失败时已写出 400
func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := cast.ToInt64E(ctx.Param(name))
	if err != nil || id <= 0 {
		fail(ctx, http.StatusBadRequest, "无效的 "+name)
		return 0, false
	}
	return id, true
}
