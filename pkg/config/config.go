package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 全局配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Currency CurrencyConfig `mapstructure:"currency"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Task     TaskConfig     `mapstructure:"task"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_life"`
	LogLevel     string        `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"` // 为空时使用进程内缓存
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // 为空时只输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// CatalogConfig 商品查询相关
type CatalogConfig struct {
	DefaultPageSize int    `mapstructure:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size"`
	RelatedLimit    int    `mapstructure:"related_limit"`
	MaxRelatedLimit int    `mapstructure:"max_related_limit"`
	SearchLanguage  string `mapstructure:"search_language"`
	// 全文检索熔断: 连续失败 BreakerThreshold 次后, 冷却 BreakerCooldown 内直接走模糊匹配
	BreakerThreshold uint32        `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
}

type CurrencyConfig struct {
	Base     string        `mapstructure:"base"`
	RatesURL string        `mapstructure:"rates_url"` // 为空时不启动定时拉取
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Provider  string `mapstructure:"provider"` // s3 | local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
	CDNDomain string `mapstructure:"cdn_domain"`
	BasePath  string `mapstructure:"base_path"`
}

type TaskConfig struct {
	TreeVerifySchedule string        `mapstructure:"tree_verify_schedule"`
	RebuildCooldown    time.Duration `mapstructure:"rebuild_cooldown"`
}

// AdminConfig 初始管理员, 用户名为空时不创建
type AdminConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// ==================== 加载 ====================

// Load 加载配置
// 优先级: 环境变量 > config 文件 > 默认值; 启动前先尝试加载 .env
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("警告: .env 加载失败: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

// Default 仅使用默认值 (测试用)
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.dsn", "host=localhost user=catalog password=catalog dbname=catalog port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_life", time.Hour)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("jwt.secret", "catalog-secret-key-change-in-production")
	v.SetDefault("jwt.access_ttl", time.Hour)
	v.SetDefault("jwt.refresh_ttl", 24*time.Hour)
	v.SetDefault("jwt.issuer", "shop-catalog")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("catalog.default_page_size", 10)
	v.SetDefault("catalog.max_page_size", 50)
	v.SetDefault("catalog.related_limit", 4)
	v.SetDefault("catalog.max_related_limit", 20)
	v.SetDefault("catalog.search_language", "english")
	v.SetDefault("catalog.breaker_threshold", 3)
	v.SetDefault("catalog.breaker_cooldown", 30*time.Second)
	v.SetDefault("catalog.search_timeout", 2*time.Second)

	v.SetDefault("currency.base", "AUD")
	v.SetDefault("currency.rates_url", "")
	v.SetDefault("currency.schedule", "0 0 */6 * * *")
	v.SetDefault("currency.timeout", 10*time.Second)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_path", "./uploads")
	// 环境变量覆盖需要 key 已注册
	for _, k := range []string{"bucket", "region", "access_key", "secret_key", "endpoint", "cdn_domain"} {
		v.SetDefault("storage."+k, "")
	}

	v.SetDefault("task.tree_verify_schedule", "0 30 3 * * *")
	v.SetDefault("task.rebuild_cooldown", 5*time.Minute)

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}
