package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/mesh-api/internal/model"
)

type ServerConfig struct {
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// RegionConfig declares one region in the static catalog.
type RegionConfig struct {
	ID          string   `mapstructure:"id" validate:"required"`
	GeoPrefixes []string `mapstructure:"geo_prefixes"`
	Endpoint    string   `mapstructure:"endpoint" validate:"omitempty,url"`
	Active      bool     `mapstructure:"active"`
}

type HealthConfig struct {
	ProbeInterval time.Duration `mapstructure:"probe_interval" validate:"required"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout" validate:"required"`
	WindowSize    int           `mapstructure:"window_size" validate:"min=1"`
}

type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"min=1"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"min=1"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout" validate:"required"`
}

type PoolConfig struct {
	ReplicasPerRegion int           `mapstructure:"replicas_per_region" validate:"min=1"`
	LeaseWait         time.Duration `mapstructure:"lease_wait"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type AlertConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	SMTPHost string        `mapstructure:"smtp_host"`
	SMTPPort int           `mapstructure:"smtp_port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from" validate:"omitempty,email"`
	To       []string      `mapstructure:"to" validate:"omitempty,dive,email"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Regions   []RegionConfig  `mapstructure:"regions" validate:"required,min=1,dive"`
	Health    HealthConfig    `mapstructure:"health"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerts    AlertConfig     `mapstructure:"alerts"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// envOverrides are applied on top of the config file, MESHAPI_ prefixed.
type envOverrides struct {
	RedisURL     string `envconfig:"REDIS_URL"`
	DBHost       string `envconfig:"DB_HOST"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("health.probe_interval", 10*time.Second)
	v.SetDefault("health.probe_timeout", 2*time.Second)
	v.SetDefault("health.window_size", 20)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 3)
	v.SetDefault("breaker.recovery_timeout", 30*time.Second)
	v.SetDefault("pool.replicas_per_region", 3)
	v.SetDefault("pool.lease_wait", 2*time.Second)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("alerts.cooldown", 15*time.Minute)
	v.SetDefault("rate_limit.rps", 100)
	v.SetDefault("rate_limit.burst", 50)
}

// LoadConfig reads config.yml from the standard search paths.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	return load(v)
}

// LoadConfigFile reads a specific config file.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("meshapi", &env); err != nil {
		return nil, fmt.Errorf("failed to read env overrides: %w", err)
	}
	if env.RedisURL != "" {
		config.Redis.URL = env.RedisURL
	}
	if env.DBHost != "" {
		config.Database.Host = env.DBHost
	}
	if env.DBPassword != "" {
		config.Database.Password = env.DBPassword
	}
	if env.SMTPPassword != "" {
		config.Alerts.Password = env.SMTPPassword
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(config.ActiveRegions()) == 0 {
		return nil, fmt.Errorf("invalid config: at least one region must be active")
	}

	return &config, nil
}

// ActiveRegions returns the active subset of the configured catalog.
func (c *Config) ActiveRegions() []RegionConfig {
	var active []RegionConfig
	for _, r := range c.Regions {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// RegionModels converts the configured catalog to model regions.
func (c *Config) RegionModels() []model.Region {
	regions := make([]model.Region, 0, len(c.Regions))
	for _, r := range c.Regions {
		regions = append(regions, model.Region{
			ID:          r.ID,
			GeoPrefixes: r.GeoPrefixes,
			Endpoint:    r.Endpoint,
			Active:      r.Active,
		})
	}
	return regions
}
