package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Peers (IPs or CIDRs) whose X-Forwarded-For / X-Real-IP are honoured.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int           `mapstructure:"max_connections"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout"`
}

type CacheConfig struct {
	ApplicationTTL time.Duration `mapstructure:"application_ttl"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type SecurityConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type RateLimitConfig struct {
	ClientPerMinute int    `mapstructure:"client_per_minute"`
	AdminPerMinute  int    `mapstructure:"admin_per_minute"`
	RedisURL        string `mapstructure:"redis_url"`
}

// WebhooksConfig drives the delivery policy of the notification service.
type WebhooksConfig struct {
	MaxAttempts        int           `mapstructure:"max_attempts"`
	BaseDelay          time.Duration `mapstructure:"base_delay"`
	MaxDelay           time.Duration `mapstructure:"max_delay"`
	BaseTimeout        time.Duration `mapstructure:"base_timeout"`
	TimeoutStep        time.Duration `mapstructure:"timeout_step"`
	InterDeliveryDelay time.Duration `mapstructure:"inter_delivery_delay"`
	ProbeTimeout       time.Duration `mapstructure:"probe_timeout"`
	Workers            int           `mapstructure:"workers"`
	QueueSize          int           `mapstructure:"queue_size"`
}

type SessionsConfig struct {
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.url", "file:./data/keyauth.db")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	v.SetDefault("cache.application_ttl", 30*time.Second)

	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("security.bcrypt_cost", 10)

	v.SetDefault("rate_limit.client_per_minute", 120)
	v.SetDefault("rate_limit.admin_per_minute", 300)

	v.SetDefault("webhooks.max_attempts", 5)
	v.SetDefault("webhooks.base_delay", time.Second)
	v.SetDefault("webhooks.max_delay", 30*time.Second)
	v.SetDefault("webhooks.base_timeout", 10*time.Second)
	v.SetDefault("webhooks.timeout_step", 5*time.Second)
	v.SetDefault("webhooks.inter_delivery_delay", 250*time.Millisecond)
	v.SetDefault("webhooks.probe_timeout", 10*time.Second)
	v.SetDefault("webhooks.workers", 8)
	v.SetDefault("webhooks.queue_size", 1024)

	v.SetDefault("sessions.idle_timeout", 30*time.Minute)
	v.SetDefault("sessions.reap_interval", 5*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
