package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	JudgeURL          string
	JudgeTimeout      time.Duration
	AnalyticsCacheTTL time.Duration
	ReconcileInterval time.Duration
	RefreshTTL        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return read()
}

func read() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOLVEARC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SolveArc API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("judge.timeout_ms", 30000)
	v.SetDefault("analytics.cache_ttl", "5m")
	v.SetDefault("reconcile.interval", "15s")
	v.SetDefault("config.refresh_ttl", "1m")

	ttl, err := parseDuration(v.GetString("analytics.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid analytics cache ttl: %w", err)
	}
	interval, err := parseDuration(v.GetString("reconcile.interval"), 15*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid reconcile interval: %w", err)
	}
	refreshTTL, err := parseDuration(v.GetString("config.refresh_ttl"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config refresh ttl: %w", err)
	}

	timeoutMs := v.GetInt("judge.timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 30000
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		JudgeURL:          v.GetString("judge.url"),
		JudgeTimeout:      time.Duration(timeoutMs) * time.Millisecond,
		AnalyticsCacheTTL: ttl,
		ReconcileInterval: interval,
		RefreshTTL:        refreshTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.JudgeURL == "" {
		return Config{}, fmt.Errorf("judge url must be provided")
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
