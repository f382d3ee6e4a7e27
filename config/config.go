package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Backend  BackendConfig  `mapstructure:"backend"`
	App      AppConfig      `mapstructure:"app"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Cron     CronConfig     `mapstructure:"cron"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres, mysql
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AuthConfig 托管身份服务签发的会话令牌
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	Audience   string `mapstructure:"audience"`
	CookieName string `mapstructure:"cookie_name"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PricePro      string `mapstructure:"price_pro"`
	PriceElite    string `mapstructure:"price_elite"`
}

// PriceFor 根据套餐获取价格 ID
func (c StripeConfig) PriceFor(plan string) string {
	switch plan {
	case "pro":
		return c.PricePro
	case "elite":
		return c.PriceElite
	}
	return ""
}

// PlanForPrice 根据价格 ID 反查套餐，未知价格返回空字符串
func (c StripeConfig) PlanForPrice(priceID string) string {
	if priceID == "" {
		return ""
	}
	switch priceID {
	case c.PricePro:
		return "pro"
	case c.PriceElite:
		return "elite"
	}
	return ""
}

// BackendConfig 内部分析后端（picks、聊天机器人）
type BackendConfig struct {
	URL              string `mapstructure:"url"`
	InternalKey      string `mapstructure:"internal_key"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	RefreshPerMinute int    `mapstructure:"refresh_per_minute"`
}

type AppConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type QueueConfig struct {
	PaymentQueue string `mapstructure:"payment_queue"`
	MaxWorkers   int    `mapstructure:"max_workers"`
}

type CronConfig struct {
	ExpireIntervalMinutes int `mapstructure:"expire_interval_minutes"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.cookie_name", "sb-access-token")
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout_seconds", 30)
	v.SetDefault("backend.refresh_per_minute", 2)
	v.SetDefault("queue.payment_queue", "payment_events")
	v.SetDefault("queue.max_workers", 2)
	v.SetDefault("cron.expire_interval_minutes", 60)
	v.SetDefault("log.level", "info")
}

// envOnlyKeys 密钥通常只出现在环境变量或 .env 中，yaml 不写也要能读到
var envOnlyKeys = []string{
	"auth.jwt_secret",
	"stripe.secret_key",
	"stripe.webhook_secret",
	"stripe.price_pro",
	"stripe.price_elite",
	"backend.internal_key",
	"database.host",
	"database.username",
	"database.password",
	"database.database",
	"redis.host",
	"redis.password",
	"app.base_url",
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	// .env 中的变量进入进程环境，再由 AutomaticEnv 覆盖 yaml；已存在的环境变量优先
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖，例如 STRIPE_SECRET_KEY -> stripe.secret_key
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
