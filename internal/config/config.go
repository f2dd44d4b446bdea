package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseDriver        string
	DatabaseURL           string
	RedisURL              string
	RedisPoolSize         int
	RedisDialTimeout      time.Duration
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	DeadlineWindow        time.Duration
	DeadlineSweepInterval time.Duration
	EventRetryAttempts    int
	NotificationKeepAlive time.Duration
	RateLimitMax          int
	RateLimitWindow       time.Duration
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

	v := viper.New()
	v.SetEnvPrefix("GROUPBUY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Campus GroupBuy API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("redis.pool_size", 0)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("realtime.channel", "groupbuy")
	v.SetDefault("deadline.window", "24h")
	v.SetDefault("deadline.sweep_interval", "10m")
	v.SetDefault("events.retry_attempts", 1)
	v.SetDefault("notification.keepalive", "30s")
	v.SetDefault("rate_limit.max", 60)
	v.SetDefault("rate_limit.window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"redis.dial_timeout", "deadline.window", "deadline.sweep_interval", "notification.keepalive", "rate_limit.window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseDriver:        strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		RedisPoolSize:         v.GetInt("redis.pool_size"),
		RedisDialTimeout:      durations["redis.dial_timeout"],
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		DeadlineWindow:        durations["deadline.window"],
		DeadlineSweepInterval: durations["deadline.sweep_interval"],
		EventRetryAttempts:    v.GetInt("events.retry_attempts"),
		NotificationKeepAlive: durations["notification.keepalive"],
		RateLimitMax:          v.GetInt("rate_limit.max"),
		RateLimitWindow:       durations["rate_limit.window"],
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.DatabaseDriver {
	case "mysql", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.EventRetryAttempts <= 0 {
		cfg.EventRetryAttempts = 1
	}

	if cfg.DeadlineSweepInterval <= 0 {
		cfg.DeadlineSweepInterval = 10 * time.Minute
	}

	return cfg, nil
}
