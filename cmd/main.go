package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"shop_catalog_v1/internal/controller"
	"shop_catalog_v1/internal/middleware"
	"shop_catalog_v1/internal/model"
	"shop_catalog_v1/internal/repository"
	"shop_catalog_v1/internal/router"
	"shop_catalog_v1/internal/service"
	"shop_catalog_v1/internal/task"
	"shop_catalog_v1/pkg/cache"
	"shop_catalog_v1/pkg/config"
	"shop_catalog_v1/pkg/database"
	"shop_catalog_v1/pkg/logger"
)

// @title Shop Catalog API
// @version 1.0
// @description 商品目录、分类树、规格、地址簿与汇率接口
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if _, err := logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Production: cfg.Server.Mode == gin.ReleaseMode,
	}); err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	// 1. 初始化数据库
	db := initDatabase(cfg)

	// 2. 初始化依赖
	deps := initDependencies(cfg, db)

	// 3. 启动定时任务
	tasks := initTasks(cfg, deps)
	defer tasks.Stop()

	// 4. 初始化路由
	r := router.SetupRouter(deps.Controllers, &router.Options{
		Mode:            cfg.Server.Mode,
		UploadDir:       deps.UploadDir,
		RebuildCooldown: cfg.Task.RebuildCooldown,
	})

	// 5. 启动服务
	startServer(cfg.Server.Port, r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB          *gorm.DB
	Cache       cache.Cache
	Repos       *Repositories
	Services    *Services
	Controllers *router.Controllers
	UploadDir   string // 本地存储时对外提供静态访问
}

// Repositories 仓库集合
type Repositories struct {
	Tx        *repository.TxManager
	User      repository.UserRepository
	Category  repository.CategoryRepository
	Product   repository.ProductRepository
	Variation repository.VariationRepository
	Address   repository.AddressRepository
	Currency  repository.CurrencyRepository
	Location  repository.LocationRepository
}

// Services 服务集合
type Services struct {
	User      *service.UserService
	Category  *service.CategoryService
	Variation *service.VariationService
	Catalog   *service.CatalogService
	Address   *service.AddressService
	Currency  *service.CurrencyService
	Location  *service.LocationService
	Storage   service.StorageProvider
}

// ==================== 初始化函数 ====================

// initDatabase 连接数据库并执行建表与 DDL 脚本
func initDatabase(cfg *config.Config) *gorm.DB {
	db, err := database.InitDB(database.Options{
		DSN:          cfg.Database.DSN,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		ConnMaxLife:  cfg.Database.ConnMaxLife,
		LogLevel:     cfg.Database.LogLevel,
	})
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	initializer := database.NewInitializer(db, database.InitOptions{
		Prepare: model.SetupJoinTables,
		Models:  model.AllModels(),
	})
	if err := initializer.Initialize(ctx); err != nil {
		zap.L().Fatal("数据库建表失败", zap.Error(err))
	}

	// CreatedBy / UpdatedBy 自动填充
	middleware.RegisterAuditCallbacks(db)
	return db
}

// initDependencies 初始化所有依赖
func initDependencies(cfg *config.Config, db *gorm.DB) *Dependencies {
	middleware.SetJWTConfig(&middleware.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenTTL:  cfg.JWT.AccessTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTTL,
		Issuer:          cfg.JWT.Issuer,
	})

	// -------- Repo 层 --------
	repos := initRepositories(db)

	// -------- 基础服务 --------
	c := initCache(cfg)
	storage, uploadDir := initStorage(cfg)

	// -------- 业务服务 --------
	services := &Services{Storage: storage}
	services.User = service.NewUserService(repos.User)
	services.Currency = service.NewCurrencyService(repos.Currency, cfg.Currency.Base, cfg.Currency.RatesURL, cfg.Currency.Timeout)
	services.Category = service.NewCategoryService(repos.Category, c, cfg.Redis.TTL)
	services.Variation = service.NewVariationService(repos.Variation, repos.Product, repos.Category)
	services.Address = service.NewAddressService(repos.Address)
	services.Location = service.NewLocationService(repos.Location, repos.Product, services.Currency)
	services.Catalog = service.NewCatalogService(
		repos.Tx, repos.Product, repos.Variation, repos.Category,
		service.NewSearchBreaker(service.SearchBreakerOptions{
			Threshold: cfg.Catalog.BreakerThreshold,
			Cooldown:  cfg.Catalog.BreakerCooldown,
			Timeout:   cfg.Catalog.SearchTimeout,
			Language:  cfg.Catalog.SearchLanguage,
		}),
		services.Currency, services.Location, storage, c,
		service.CatalogOptions{
			DefaultPageSize: cfg.Catalog.DefaultPageSize,
			MaxPageSize:     cfg.Catalog.MaxPageSize,
			RelatedLimit:    cfg.Catalog.RelatedLimit,
			MaxRelatedLimit: cfg.Catalog.MaxRelatedLimit,
			CacheTTL:        cfg.Redis.TTL,
		},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if created, err := services.User.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		zap.L().Error("创建初始管理员失败", zap.Error(err))
	} else if created {
		zap.L().Info("已创建初始管理员", zap.String("username", cfg.Admin.Username))
	}

	// -------- Controller 层 --------
	controllers := initControllers(services)

	return &Dependencies{
		DB:          db,
		Cache:       c,
		Repos:       repos,
		Services:    services,
		Controllers: controllers,
		UploadDir:   uploadDir,
	}
}

// initRepositories 初始化所有仓库
func initRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tx:        repository.NewTxManager(db),
		User:      repository.NewUserRepository(db),
		Category:  repository.NewCategoryRepository(db),
		Product:   repository.NewProductRepository(db),
		Variation: repository.NewVariationRepository(db),
		Address:   repository.NewAddressRepository(db),
		Currency:  repository.NewCurrencyRepository(db),
		Location:  repository.NewLocationRepository(db),
	}
}

// initCache 配置了 Redis 时使用 Redis, 连接失败退回进程内缓存
func initCache(cfg *config.Config) cache.Cache {
	if cfg.Redis.Addr == "" {
		return cache.NewMemory()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		zap.L().Warn("Redis 不可用, 使用进程内缓存", zap.Error(err))
		return cache.NewMemory()
	}
	return c
}

// initStorage 初始化图片存储; 失败时图片上传接口返回 503
func initStorage(cfg *config.Config) (service.StorageProvider, string) {
	storage, err := service.NewStorageProvider(cfg.Storage)
	if err != nil {
		zap.L().Warn("存储服务初始化失败", zap.Error(err))
		return nil, ""
	}
	if local, ok := storage.(*service.LocalStorage); ok {
		return storage, local.BasePath()
	}
	return storage, ""
}

// initControllers 初始化所有控制器
func initControllers(svc *Services) *router.Controllers {
	return &router.Controllers{
		User:      controller.NewUserController(svc.User),
		Category:  controller.NewCategoryController(svc.Category, svc.Variation),
		Product:   controller.NewProductController(svc.Catalog, svc.Variation),
		Item:      controller.NewItemController(svc.Catalog, svc.Variation),
		Variation: controller.NewVariationController(svc.Variation),
		Address:   controller.NewAddressController(svc.Address),
		Currency:  controller.NewCurrencyController(svc.Currency),
		Location:  controller.NewLocationController(svc.Location),
	}
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(cfg *config.Config, deps *Dependencies) *task.TaskManager {
	tm := task.NewTaskManager(&task.TaskManagerDeps{
		Tree:  deps.Services.Category,
		Rates: deps.Services.Currency,
	}, &task.TaskManagerConfig{
		TreeVerifySchedule: cfg.Task.TreeVerifySchedule,
		CurrencyEnabled:    cfg.Currency.RatesURL != "",
		CurrencySchedule:   cfg.Currency.Schedule,
		CurrencyTimeout:    cfg.Currency.Timeout,
		RunOnStart:         true,
	})
	if err := tm.Start(); err != nil {
		zap.L().Fatal("定时任务启动失败", zap.Error(err))
	}
	return tm
}

// ==================== 服务启动 ====================

// startServer 启动服务, 收到退出信号后优雅关闭
func startServer(port string, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("服务启动失败", zap.Error(err))
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("正在关闭服务...")

	// 优雅关闭，最多等待 30 秒
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("服务强制关闭", zap.Error(err))
		return
	}

	zap.L().Info("服务已退出")
}
