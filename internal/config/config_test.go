package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GROUPBUY_DATABASE_URL", "user:pass@tcp(localhost:3306)/groupbuy?parseTime=true")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.DatabaseDriver)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 24*time.Hour, cfg.DeadlineWindow)
	require.Equal(t, 10*time.Minute, cfg.DeadlineSweepInterval)
	require.Equal(t, 1, cfg.EventRetryAttempts)
	require.Equal(t, 60, cfg.RateLimitMax)
	require.Equal(t, 0, cfg.RedisPoolSize)
	require.Equal(t, 5*time.Second, cfg.RedisDialTimeout)
}

func TestLoadReadsRedisTuning(t *testing.T) {
	t.Setenv("GROUPBUY_DATABASE_URL", "postgres://localhost/groupbuy")
	t.Setenv("GROUPBUY_DATABASE_DRIVER", "postgres")
	t.Setenv("GROUPBUY_REDIS_POOL_SIZE", "32")
	t.Setenv("GROUPBUY_REDIS_DIAL_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 32, cfg.RedisPoolSize)
	require.Equal(t, 2*time.Second, cfg.RedisDialTimeout)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("GROUPBUY_DATABASE_URL", "file::memory:")
	t.Setenv("GROUPBUY_DATABASE_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("GROUPBUY_DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("GROUPBUY_DATABASE_URL", "postgres://localhost/groupbuy")
	t.Setenv("GROUPBUY_DATABASE_DRIVER", "postgres")
	t.Setenv("GROUPBUY_DEADLINE_WINDOW", "soon")

	_, err := Load()
	require.Error(t, err)
}
