package middleware

import (
	"context"
	"reflect"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/model"
)

type auditActorKey struct{}

// WithAuditActor 把操作人写入 context, GORM 回调据此填充 created_by / updated_by
func WithAuditActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, auditActorKey{}, actor)
}

// AuditActor context 中的操作人, 没有时为匿名
func AuditActor(ctx context.Context) model.Actor {
	if ctx == nil {
		return model.Anonymous()
	}
	if actor, ok := ctx.Value(auditActorKey{}).(model.Actor); ok {
		return actor
	}
	return model.Anonymous()
}

// AuditContext 把鉴权得到的身份带进 request context
func AuditContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := ActorFrom(c); !actor.IsAnonymous() {
			c.Request = c.Request.WithContext(WithAuditActor(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// ==================== GORM 回调 ====================

const (
	createdByField = "CreatedBy"
	updatedByField = "UpdatedBy"
)

// RegisterAuditCallbacks 注册审计回调
// 创建时补齐空的 CreatedBy/UpdatedBy; 更新时总是改写 UpdatedBy
// 更新走 Statement.SetColumn, Updates(map) 与 Model(&T{}).Updates(struct) 都能写入
func RegisterAuditCallbacks(db *gorm.DB) {
	_ = db.Callback().Create().Before("gorm:create").Register("audit:create", func(tx *gorm.DB) {
		userID, ok := auditUser(tx, createdByField)
		if !ok {
			return
		}
		fillZero(tx, createdByField, userID)
		fillZero(tx, updatedByField, userID)
	})

	_ = db.Callback().Update().Before("gorm:update").Register("audit:update", func(tx *gorm.DB) {
		userID, ok := auditUser(tx, updatedByField)
		if !ok {
			return
		}
		tx.Statement.SetColumn(updatedByField, userID, true)
	})
}

// auditUser 模型带审计字段且 context 里有登录身份时返回其 ID
func auditUser(tx *gorm.DB, field string) (int64, bool) {
	if tx.Statement.Schema == nil || tx.Statement.Schema.LookUpField(field) == nil {
		return 0, false
	}
	actor := AuditActor(tx.Statement.Context)
	if actor.IsAnonymous() {
		return 0, false
	}
	return actor.UserID, true
}

// fillZero 仅在字段为零值时写入, 调用方显式给出的值保留
func fillZero(tx *gorm.DB, name string, value int64) {
	stmt := tx.Statement
	field := stmt.Schema.LookUpField(name)
	if field == nil {
		return
	}

	switch rv := stmt.ReflectValue; rv.Kind() {
	case reflect.Struct:
		if _, zero := field.ValueOf(stmt.Context, rv); zero {
			stmt.SetColumn(name, value, true)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(rv.Index(i))
			if _, zero := field.ValueOf(stmt.Context, elem); zero {
				_ = field.Set(stmt.Context, elem, value)
			}
		}
	default:
		stmt.SetColumn(name, value, true)
	}
}
