// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	OptOut     OptOutConfig     `mapstructure:"optout"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port         string `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
	MigrationsPath string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GatewayConfig describes the WhatsApp gateway. SendURL receives one POST per
// message; APIURL exposes the session-status endpoint.
type GatewayConfig struct {
	SendURL        string               `mapstructure:"send_url"`
	APIURL         string               `mapstructure:"api_url"`
	SendTimeout    int                  `mapstructure:"send_timeout"`
	ProbeTimeout   int                  `mapstructure:"probe_timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"`
	Timeout          int     `mapstructure:"timeout"`
	FailureRatio     float64 `mapstructure:"failure_ratio"`
	ConsecutiveFails uint32  `mapstructure:"consecutive_fails"`
}

// DispatchConfig holds the pacing and retry tuning of the dispatcher.
// Durations are expressed in milliseconds.
type DispatchConfig struct {
	MeanDelayMs           int     `mapstructure:"mean_delay_ms"`
	StdDevDelayMs         int     `mapstructure:"stddev_delay_ms"`
	MinDelayMs            int     `mapstructure:"min_delay_ms"`
	MaxDelayMs            int     `mapstructure:"max_delay_ms"`
	TypingCharsPerMinute  int     `mapstructure:"typing_chars_per_minute"`
	MinTypingMs           int     `mapstructure:"min_typing_ms"`
	MaxTypingMs           int     `mapstructure:"max_typing_ms"`
	BatchSize             int     `mapstructure:"batch_size"`
	LongBreakChance       float64 `mapstructure:"long_break_chance"`
	LongBreakMs           int     `mapstructure:"long_break_ms"`
	VeryLongBreakChance   float64 `mapstructure:"very_long_break_chance"`
	VeryLongBreakMs       int     `mapstructure:"very_long_break_ms"`
	MaxRetries            int     `mapstructure:"max_retries"`
	InitialBackoffMs      int     `mapstructure:"initial_backoff_ms"`
	MaxConsecutiveFailure int     `mapstructure:"max_consecutive_failures"`
	RecoveryPauseMs       int     `mapstructure:"recovery_pause_ms"`
	MaxRecipients         int     `mapstructure:"max_recipients"`
	LeaseTTLSeconds       int     `mapstructure:"lease_ttl_seconds"`
}

type SchedulerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
}

type OptOutConfig struct {
	Keywords []string `mapstructure:"keywords"`
}

type MiddlewareConfig struct {
	RateLimit      int      `mapstructure:"rate_limit"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MetricsConfig struct {
	StatusCron string `mapstructure:"status_cron"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("database.migrations_path", "./migrations")
	v.SetDefault("redis.db", 0)
	v.SetDefault("gateway.send_timeout", 30)
	v.SetDefault("gateway.probe_timeout", 10)
	v.SetDefault("gateway.circuit_breaker.max_requests", 3)
	v.SetDefault("gateway.circuit_breaker.interval", 60)
	v.SetDefault("gateway.circuit_breaker.timeout", 60)
	v.SetDefault("gateway.circuit_breaker.failure_ratio", 0.6)
	v.SetDefault("gateway.circuit_breaker.consecutive_fails", 10)
	v.SetDefault("dispatch.mean_delay_ms", 8000)
	v.SetDefault("dispatch.stddev_delay_ms", 3000)
	v.SetDefault("dispatch.min_delay_ms", 5000)
	v.SetDefault("dispatch.max_delay_ms", 11000)
	v.SetDefault("dispatch.typing_chars_per_minute", 200)
	v.SetDefault("dispatch.min_typing_ms", 2000)
	v.SetDefault("dispatch.max_typing_ms", 15000)
	v.SetDefault("dispatch.batch_size", 5)
	v.SetDefault("dispatch.long_break_chance", 0.10)
	v.SetDefault("dispatch.long_break_ms", 30000)
	v.SetDefault("dispatch.very_long_break_chance", 0.05)
	v.SetDefault("dispatch.very_long_break_ms", 90000)
	v.SetDefault("dispatch.max_retries", 2)
	v.SetDefault("dispatch.initial_backoff_ms", 5000)
	v.SetDefault("dispatch.max_consecutive_failures", 3)
	v.SetDefault("dispatch.recovery_pause_ms", 180000)
	v.SetDefault("dispatch.max_recipients", 1000)
	v.SetDefault("dispatch.lease_ttl_seconds", 600)
	v.SetDefault("scheduler.interval_seconds", 30)
	v.SetDefault("scheduler.batch_size", 50)
	v.SetDefault("optout.keywords", []string{"não", "nao", "sair", "parar", "cancelar", "stop", "remover"})
	v.SetDefault("middleware.rate_limit", 100)
	v.SetDefault("middleware.rate_limit_burst", 1000)
	v.SetDefault("middleware.enable_cors", true)
	v.SetDefault("middleware.allowed_origins", []string{"*"})
	v.SetDefault("metrics.status_cron", "@every 1m")
}

// GetDSN returns PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetURL returns the PostgreSQL connection URL used by migrations.
func (d *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Addr returns the Redis host:port pair.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func (d *DispatchConfig) RecoveryPause() time.Duration {
	return time.Duration(d.RecoveryPauseMs) * time.Millisecond
}

func (d *DispatchConfig) LeaseTTL() time.Duration {
	return time.Duration(d.LeaseTTLSeconds) * time.Second
}
