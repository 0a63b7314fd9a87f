package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Cron        CronConfig        `mapstructure:"cron"`
	Batch       BatchConfig       `mapstructure:"batch"`
	Opportunity OpportunityConfig `mapstructure:"opportunity"`
	Settings    SettingsConfig    `mapstructure:"settings"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig enables the shared configuration cache. Empty Addr keeps the
// cache in process memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Analysis string `mapstructure:"analysis"`
	Expire   string `mapstructure:"expire"`
}

type BatchConfig struct {
	Mode            string        `mapstructure:"mode"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	ContinueOnError bool          `mapstructure:"continue_on_error"`
	ProductTimeout  time.Duration `mapstructure:"product_timeout"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
}

type OpportunityConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	FlashTTL  time.Duration `mapstructure:"flash_ttl"`
	MaxActive int           `mapstructure:"max_active"`
}

type SettingsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type NotifyConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Timeout  time.Duration  `mapstructure:"timeout"`
}

type WebhookConfig struct {
	URL string `mapstructure:"url"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BARGAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.analysis", "0 0 3 * * *")
	v.SetDefault("cron.expire", "@every 15m")
	v.SetDefault("batch.mode", "parallel")
	v.SetDefault("batch.max_concurrent", 5)
	v.SetDefault("batch.continue_on_error", true)
	v.SetDefault("batch.product_timeout", "0s")
	v.SetDefault("batch.notify_timeout", "5s")
	v.SetDefault("opportunity.ttl", "72h")
	v.SetDefault("opportunity.flash_ttl", "24h")
	v.SetDefault("opportunity.max_active", 0)
	v.SetDefault("settings.cache_ttl", "60s")
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.webhook.url", "")
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")
	v.SetDefault("notify.timeout", "5s")
	v.SetDefault("auth.jwt_secret", "")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
