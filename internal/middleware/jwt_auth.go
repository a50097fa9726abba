package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"shop_catalog_v1/internal/model"
)

// ==================== JWT 配置 ====================

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey       string        // 签名密钥
	AccessTokenTTL  time.Duration // Access Token 有效期
	RefreshTokenTTL time.Duration // Refresh Token 有效期
	Issuer          string        // 签发者
}

// DefaultJWTConfig 默认配置
func DefaultJWTConfig() *JWTConfig {
	return &JWTConfig{
		SecretKey:       "catalog-secret-key-change-in-production",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "shop-catalog",
	}
}

var jwtConfig = DefaultJWTConfig()

// SetJWTConfig 设置 JWT 配置
func SetJWTConfig(cfg *JWTConfig) {
	jwtConfig = cfg
}

// GetJWTConfig 获取 JWT 配置
func GetJWTConfig() *JWTConfig {
	return jwtConfig
}

// ==================== Claims ====================

// TokenKind 写在 sub 里, 区分访问令牌与刷新令牌
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var (
	ErrTokenInvalid = errors.New("token 无效或已过期")
	ErrTokenKind    = errors.New("token 类型错误")
)

// CatalogClaims 目录服务签发的令牌声明
type CatalogClaims struct {
	UserID   int64          `json:"uid"`
	Username string         `json:"name"`
	Role     model.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *CatalogClaims) Kind() TokenKind {
	return TokenKind(c.Subject)
}

// Actor 令牌对应的请求身份; 未知角色按顾客处理
func (c *CatalogClaims) Actor() model.Actor {
	role := c.Role
	if !role.Valid() {
		role = model.UserRoleCustomer
	}
	return model.Actor{UserID: c.UserID, Role: role}
}

// ==================== 签发 ====================

// SignToken 签发指定类型的令牌
// refresh token 带随机 jti, 同一秒内签发的两个也不相同, 服务端只保存其摘要
func SignToken(kind TokenKind, userID int64, username string, role model.UserRole) (string, error) {
	ttl := jwtConfig.AccessTokenTTL
	now := time.Now()
	claims := &CatalogClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   jwtConfig.Issuer,
			Subject:  string(kind),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if kind == TokenKindRefresh {
		ttl = jwtConfig.RefreshTokenTTL
		claims.ID = uuid.NewString()
	}
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtConfig.SecretKey))
}

// IssueTokenPair 签发 access + refresh
func IssueTokenPair(userID int64, username string, role model.UserRole) (access, refresh string, err error) {
	if access, err = SignToken(TokenKindAccess, userID, username, role); err != nil {
		return "", "", err
	}
	if refresh, err = SignToken(TokenKindRefresh, userID, username, role); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ParseToken 校验签名、签发者、有效期, 并要求令牌类型为 want
func ParseToken(raw string, want TokenKind) (*CatalogClaims, error) {
	claims := &CatalogClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtConfig.SecretKey), nil
	}, jwt.WithIssuer(jwtConfig.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind() != want {
		return nil, ErrTokenKind
	}
	return claims, nil
}

// ==================== Gin 中间件 ====================

// ContextKeyActor gin.Context 中的 model.Actor
const ContextKeyActor = "actor"

var errNoCredentials = errors.New("未提供认证信息")

// bearerClaims 从 Authorization 头解析访问令牌
func bearerClaims(c *gin.Context) (*CatalogClaims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, errNoCredentials
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || raw == "" {
		return nil, errors.New("认证格式错误, 应为 Bearer {token}")
	}
	return ParseToken(raw, TokenKindAccess)
}

func setIdentity(c *gin.Context, claims *CatalogClaims) {
	c.Set(ContextKeyActor, claims.Actor())
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

// JWTAuth 必须携带有效的访问令牌
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, err.Error())
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth 令牌缺失或无效时按游客继续
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := bearerClaims(c); err == nil {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequireRole 当前身份必须是给定角色之一, 需放在 JWTAuth 之后
func RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor.IsAnonymous() {
			abortJSON(c, http.StatusUnauthorized, errNoCredentials.Error())
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortJSON(c, http.StatusForbidden, "无权限访问")
	}
}

// ==================== 辅助函数 ====================

// ActorFrom 当前请求的身份; 未登录返回匿名身份
func ActorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(ContextKeyActor); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Anonymous()
}

// GetUserID 当前登录用户 ID, 匿名为 0
func GetUserID(c *gin.Context) int64 {
	return ActorFrom(c).UserID
}
