package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ecopoints/internal/scoring"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Email     EmailConfig     `mapstructure:"email"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Scoring   scoring.Config  `mapstructure:"scoring"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type AppConfig struct {
	Env       string `mapstructure:"env"`
	Port      string `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // text | json
	Timezone  string `mapstructure:"timezone"`
	SiteURL   string `mapstructure:"site_url"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres | mysql | sqlite
	URL    string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Enabled reports whether enough SMTP settings are present to send mail.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port > 0 && e.From != ""
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	SessionSecret  string        `mapstructure:"session_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	RankingTTL     time.Duration `mapstructure:"ranking_ttl"`
	RankingMaxSize int           `mapstructure:"ranking_max_size"`
}

type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Capacity       int           `mapstructure:"capacity"`
	RefillTokens   int           `mapstructure:"refill_tokens"`
	RefillInterval time.Duration `mapstructure:"refill_interval"`
	TTL            time.Duration `mapstructure:"ttl"`
	Prefix         string        `mapstructure:"prefix"`
}

// AdminConfig is the superuser created at startup when missing.
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DefaultSessionSecret is only accepted in local and test environments.
const DefaultSessionSecret = "secret_key_change_me"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "local")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.site_url", "http://localhost:5173")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "host=localhost user=postgres password=postgres dbname=ecopoints port=5432 sslmode=disable TimeZone=UTC")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "ecopoints.events")
	v.SetDefault("rabbitmq.queue", "ecopoints.notifications")

	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.user", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.session_secret", DefaultSessionSecret)
	v.SetDefault("security.access_ttl", "15m")
	v.SetDefault("security.refresh_ttl", "720h")
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("security.ranking_ttl", "30s")
	v.SetDefault("security.ranking_max_size", 64)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.capacity", 60)
	v.SetDefault("ratelimit.refill_tokens", 1)
	v.SetDefault("ratelimit.refill_interval", "1s")
	v.SetDefault("ratelimit.ttl", "10m")
	v.SetDefault("ratelimit.prefix", "rl")

	def := scoring.DefaultConfig()
	v.SetDefault("scoring.task_co2_per_point", def.TaskCO2PerPoint)
	v.SetDefault("scoring.manual_co2_per_unit", def.ManualCO2PerUnit)
	v.SetDefault("scoring.default_unit_points", def.DefaultUnitPoints)
	v.SetDefault("scoring.materials", def.Materials)

	v.SetDefault("admin.email", "admin@ecopoints.cl")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.name", "Admin")
}

// bindLegacyEnv keeps the short variable names used by deployments.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("app.port", "APP_PORT", "PORT")
	_ = v.BindEnv("database.url", "DATABASE_URL")
	_ = v.BindEnv("database.driver", "DATABASE_DRIVER")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("rabbitmq.url", "RABBITMQ_URL", "AMQP_URL")
	_ = v.BindEnv("email.host", "SMTP_HOST")
	_ = v.BindEnv("email.port", "SMTP_PORT")
	_ = v.BindEnv("email.user", "SMTP_USER")
	_ = v.BindEnv("email.password", "SMTP_PASS")
	_ = v.BindEnv("email.from", "SMTP_FROM")
	_ = v.BindEnv("security.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("security.session_secret", "SESSION_SECRET")
	_ = v.BindEnv("admin.email", "ADMIN_EMAIL")
	_ = v.BindEnv("admin.password", "ADMIN_PASSWORD")
}

// Load reads defaults, an optional configs/config.yaml and the environment,
// in increasing order of priority.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	dev := c.App.Env == "local" || c.App.Env == "test"
	if c.Security.JWTSecret == "" {
		if !dev {
			return errors.New("security.jwt_secret (JWT_SECRET) is required")
		}
		c.Security.JWTSecret = "dev_jwt_secret_change_me"
	}
	// the session cookie authenticates as fully as a bearer token
	if c.Security.SessionSecret == "" || c.Security.SessionSecret == DefaultSessionSecret {
		if !dev {
			return errors.New("security.session_secret (SESSION_SECRET) must be set to a non-default value")
		}
		c.Security.SessionSecret = DefaultSessionSecret
	}
	if c.Scoring.TaskCO2PerPoint < 0 || c.Scoring.ManualCO2PerUnit < 0 {
		return errors.New("scoring: CO2 factors must not be negative")
	}
	if c.Scoring.DefaultUnitPoints <= 0 {
		return errors.New("scoring: default_unit_points must be positive")
	}
	for m, p := range c.Scoring.Materials {
		if p <= 0 {
			return fmt.Errorf("scoring: material %q must be worth a positive amount", m)
		}
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.RateLimit.Capacity < 1 {
		c.RateLimit.Capacity = 1
	}
	if c.RateLimit.RefillTokens < 1 {
		c.RateLimit.RefillTokens = 1
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RateLimit.RefillInterval; c.RateLimit.TTL < minTTL {
		c.RateLimit.TTL = minTTL
	}
	return nil
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
