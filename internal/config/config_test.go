package config

import (
	"testing"
	"time"

	"github.com/jason-s-yu/wordparty/internal/cache"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "PUBLIC_BASE_URL", "MAX_SLOTS",
		"ROUND_START_DELAY", "TURN_ANNOUNCE_DELAY", "WORD_SELECT_WINDOW", "SCORE_PAUSE",
		"TOKEN_EXPIRE_TIME", "REDIS_ADDR", "REDIS_DB", "EVENT_QUEUE_NAME"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
	assert.Equal(t, 6, cfg.MaxSlots)
	assert.Equal(t, 3*time.Second, cfg.Timing.RoundStartDelay)
	assert.Equal(t, 15*time.Second, cfg.Timing.WordSelectWindow)
	assert.Equal(t, 5*time.Second, cfg.Timing.ScorePause)
	assert.Zero(t, cfg.TokenTTL)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, cache.DefaultQueueName, cfg.EventQueue)
}

func TestLoadServerOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUBLIC_BASE_URL", "https://play.example/")
	t.Setenv("MAX_SLOTS", "42")
	t.Setenv("SCORE_PAUSE", "2s")
	t.Setenv("WORD_SELECT_WINDOW", "bogus")
	t.Setenv("TOKEN_EXPIRE_TIME", "24h")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "https://play.example", cfg.PublicBaseURL)
	assert.Equal(t, 10, cfg.MaxSlots, "max slots is clamped")
	assert.Equal(t, 2*time.Second, cfg.Timing.ScorePause)
	assert.Equal(t, 15*time.Second, cfg.Timing.WordSelectWindow, "invalid durations fall back")
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
}

func TestLoadServerBadTokenTTL(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "forever")
	_, err := LoadServer()
	assert.Error(t, err)
}

func TestLoadHistorian(t *testing.T) {
	t.Setenv("HISTORIAN_BATCH_SIZE", "50")
	t.Setenv("HISTORIAN_FLUSH_MS", "250")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_DATABASE", "wordparty")
	t.Setenv("POSTGRES_USER", "wp")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("PG_PORT", "")

	cfg := LoadHistorian()
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, "postgres://wp:secret@db:5432/wordparty", cfg.Postgres.URL())
}
