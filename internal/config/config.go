// internal/config/config.go
//
// Package config reads process configuration from the environment. Each cmd loads
// a .env file first through godotenv's autoload import.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/wordparty/internal/auth"
	"github.com/jason-s-yu/wordparty/internal/cache"
	"github.com/jason-s-yu/wordparty/internal/database"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/sirupsen/logrus"
)

// Server is the configuration of cmd/server.
type Server struct {
	Port           string
	AllowedOrigins []string
	LogLevel       logrus.Level
	PublicBaseURL  string
	MaxSlots       int
	Timing         game.Timing
	TokenTTL       time.Duration

	RedisAddr  string // empty disables the event log
	RedisDB    int
	EventQueue string
}

// Historian is the configuration of cmd/historian.
type Historian struct {
	LogLevel      logrus.Level
	RedisAddr     string
	RedisDB       int
	EventQueue    string
	BatchSize     int
	FlushInterval time.Duration
	Inactivity    time.Duration
	Postgres      database.Config
}

// LoadServer reads the server configuration.
func LoadServer() (Server, error) {
	ttl, err := auth.ParseTTL(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return Server{}, err
	}
	port := getEnv("PORT", "8080")
	return Server{
		Port:           port,
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnvLevel("LOG_LEVEL", logrus.InfoLevel),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),
		MaxSlots:       clamp(getEnvInt("MAX_SLOTS", game.DefaultMaxSlots), game.MinSlots, game.MaxSlots),
		Timing: game.Timing{
			RoundStartDelay:   getEnvDuration("ROUND_START_DELAY", 3*time.Second),
			TurnAnnounceDelay: getEnvDuration("TURN_ANNOUNCE_DELAY", 3*time.Second),
			WordSelectWindow:  getEnvDuration("WORD_SELECT_WINDOW", 15*time.Second),
			ScorePause:        getEnvDuration("SCORE_PAUSE", 5*time.Second),
		},
		TokenTTL:   ttl,
		RedisAddr:  os.Getenv("REDIS_ADDR"),
		RedisDB:    getEnvInt("REDIS_DB", 0),
		EventQueue: getEnv("EVENT_QUEUE_NAME", cache.DefaultQueueName),
	}, nil
}

// LoadHistorian reads the historian configuration.
func LoadHistorian() Historian {
	return Historian{
		LogLevel:      getEnvLevel("LOG_LEVEL", logrus.InfoLevel),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		EventQueue:    getEnv("EVENT_QUEUE_NAME", cache.DefaultQueueName),
		BatchSize:     getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushInterval: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		Inactivity:    time.Duration(getEnvInt("SESSION_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		Postgres: database.Config{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: os.Getenv("PG_DATABASE"),
		},
	}
}

// getEnv reads an environment variable or returns a default.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else returns the default.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		logrus.Warnf("config: %s=%q is not an integer, using %d", key, s, def)
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		logrus.Warnf("config: %s=%q is not a positive duration, using %s", key, s, def)
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func getEnvLevel(key string, def logrus.Level) logrus.Level {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		logrus.Warnf("config: unknown %s %q, using %s", key, s, def)
		return def
	}
	return lvl
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
