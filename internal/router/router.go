package router

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"shop_catalog_v1/internal/controller"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/model"

	_ "shop_catalog_v1/docs"
)

// Controllers 控制器集合
type Controllers struct {
	User      *controller.UserController
	Category  *controller.CategoryController
	Product   *controller.ProductController
	Item      *controller.ItemController
	Variation *controller.VariationController
	Address   *controller.AddressController
	Currency  *controller.CurrencyController
	Location  *controller.LocationController
}

// Options 路由参数
type Options struct {
	Mode            string        // gin 模式, 为空时不修改
	Logger          *zap.Logger   // 为空时使用 zap 全局实例
	UploadDir       string        // 本地存储目录, 非空时挂载 /uploads
	RebuildCooldown time.Duration // 分类树重建冷却时间
	Limiter         *middleware.CooldownLimiter
}

// SetupRouter 创建 gin 引擎并注册所有路由
func SetupRouter(c *Controllers, opts *Options) *gin.Engine {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = middleware.NewCooldownLimiter()
	}
	cooldown := opts.RebuildCooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.RequestLogger(logger), middleware.Recovery(logger))

	// 访问 http://localhost:8080/swagger/index.html 查看文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if opts.UploadDir != "" {
		r.Static("/uploads", opts.UploadDir)
	}

	api := r.Group("/api")

	// 公开接口按需解析 token, 匿名请求按游客处理
	public := api.Group("", middleware.OptionalAuth(), middleware.AuditContext())
	authed := api.Group("", middleware.JWTAuth(), middleware.AuditContext())
	manager := api.Group("", middleware.JWTAuth(), middleware.RequireRole(model.UserRoleAdmin, model.UserRoleSeller), middleware.AuditContext())
	admin := api.Group("", middleware.JWTAuth(), middleware.RequireRole(model.UserRoleAdmin), middleware.AuditContext())

	registerAuthRoutes(public, authed, admin, c.User)
	registerCategoryRoutes(public, manager, admin, c.Category, limiter, cooldown)
	registerProductRoutes(public, manager, c.Product, c.Item, c.Variation)
	registerAddressRoutes(public, authed, c.Address)
	registerCurrencyRoutes(public, admin, c.Currency)
	registerLocationRoutes(public, manager, admin, c.Location)

	return r
}

func registerAuthRoutes(public, authed, admin *gin.RouterGroup, ctl *controller.UserController) {
	// auth 鉴权
	public.POST("/auth/register", ctl.Register)
	public.POST("/auth/login", ctl.Login)
	public.POST("/auth/refresh", ctl.RefreshToken)

	authed.POST("/auth/logout", ctl.Logout)
	authed.GET("/auth/profile", ctl.GetProfile)
	authed.PUT("/auth/password", ctl.ChangePassword)

	// 用户管理
	users := admin.Group("/users")
	{
		users.GET("", ctl.ListUsers)
		users.POST("", ctl.CreateUser)
		users.GET("/:id", ctl.GetUser)
		users.PUT("/:id", ctl.UpdateUser)
		users.PUT("/:id/password", ctl.ResetPassword)
		users.DELETE("/:id", ctl.DeleteUser)
	}
}

func registerCategoryRoutes(public, manager, admin *gin.RouterGroup, ctl *controller.CategoryController,
	limiter *middleware.CooldownLimiter, cooldown time.Duration) {
	public.GET("/categories", ctl.ListTree)
	public.GET("/categories/:id", ctl.Get)
	public.GET("/categories/:id/variation-types", ctl.VariationTypes)

	manager.GET("/categories/flat", ctl.FlatList)
	manager.POST("/categories", ctl.Create)
	manager.PUT("/categories/:id", ctl.Update)
	manager.DELETE("/categories/:id", ctl.Delete)

	admin.POST("/categories/rebuild",
		middleware.Cooldown(limiter, "category:rebuild", cooldown),
		ctl.Rebuild,
	)
}

func registerProductRoutes(public, manager *gin.RouterGroup, products *controller.ProductController,
	items *controller.ItemController, variations *controller.VariationController) {
	// 商品
	public.GET("/products", products.Search)
	public.GET("/products/featured", products.Featured)
	public.GET("/products/:id", products.Get)
	public.GET("/products/:id/related", products.Related)
	public.GET("/products/:id/items", products.Items)
	public.POST("/products/:id/items/match", products.MatchItem)

	manager.POST("/products", products.Create)
	manager.PUT("/products/:id", products.Update)
	manager.DELETE("/products/:id", products.Delete)
	manager.POST("/products/:id/images", products.UploadImages)

	// SKU
	public.GET("/items/:id/variants", items.ListVariants)
	manager.POST("/items", items.Create)
	manager.PUT("/items/:id", items.Update)
	manager.DELETE("/items/:id", items.Delete)
	manager.POST("/items/:id/variants", items.AttachVariant)

	// 规格
	public.GET("/variation-types", variations.List)
	manager.POST("/variation-types", variations.CreateType)
	manager.POST("/variation-types/:id/variants", variations.AddVariant)
}

func registerAddressRoutes(public, authed *gin.RouterGroup, ctl *controller.AddressController) {
	public.POST("/addresses/checkout", ctl.Checkout)

	addresses := authed.Group("/addresses")
	{
		addresses.GET("", ctl.List)
		addresses.POST("", ctl.Create)
		addresses.PUT("/:id", ctl.Update)
		addresses.DELETE("/:id", ctl.Delete)
		addresses.PUT("/:id/default", ctl.SetDefault)
	}
}

func registerCurrencyRoutes(public, admin *gin.RouterGroup, ctl *controller.CurrencyController) {
	public.GET("/currencies", ctl.List)
	admin.PUT("/currencies/:code", ctl.SetRate)
}

func registerLocationRoutes(public, manager, admin *gin.RouterGroup, ctl *controller.LocationController) {
	if ctl == nil {
		return
	}
	public.GET("/locations", ctl.List)
	public.GET("/locations/:code", ctl.Get)
	admin.PUT("/locations/:code", ctl.Save)

	// 地区标价与折扣
	manager.GET("/products/:id/locations", ctl.ProductPrices)
	manager.PUT("/products/:id/locations/:code", ctl.SetProductPrice)
	manager.PUT("/items/:id/locations/:code", ctl.SetItemDiscount)
}
