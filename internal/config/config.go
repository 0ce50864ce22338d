package config

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 应用配置
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	StylePalette string // optional YAML palette file

	RedisAddr     string // empty disables reload notifications
	ReloadChannel string

	CollapseDelay               time.Duration
	KeepDefaultVisibleOnHideAll bool

	RateLimitRPS   float64
	RateLimitBurst int

	LogLevel zapcore.Level

	// Problems lists env values that were invalid and replaced by defaults.
	Problems []string
}

// Load 加载配置
func Load() *Config {
	cfg := &Config{
		Port:          getString("PORT", ":8080"),
		DBPath:        getString("DB_PATH", "./data/adenai.db"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		StylePalette:  os.Getenv("STYLE_PALETTE"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		ReloadChannel: getString("RELOAD_CHANNEL", "adenai:reload"),
	}

	cfg.CollapseDelay = cfg.duration("COLLAPSE_DELAY", 400*time.Millisecond)
	cfg.KeepDefaultVisibleOnHideAll = cfg.boolean("KEEP_DEFAULT_VISIBLE_ON_HIDE_ALL", false)
	cfg.RateLimitRPS = cfg.float("RATE_LIMIT_RPS", 20)
	cfg.RateLimitBurst = cfg.integer("RATE_LIMIT_BURST", 40)

	cfg.LogLevel = zapcore.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			cfg.LogLevel = zapcore.InfoLevel
			cfg.Problems = append(cfg.Problems, "LOG_LEVEL")
		}
	}

	return cfg
}

// AdminEnabled reports whether a JWT secret was configured. Without one the
// admin routes are not mounted.
func (c *Config) AdminEnabled() bool {
	return c.JWTSecret != ""
}

// NewLogger builds the process logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}

// Report logs every invalid env value that was replaced by its default.
func (c *Config) Report(logger *zap.Logger) {
	for _, key := range c.Problems {
		logger.Warn("invalid config value, using default", zap.String("key", key), zap.String("value", os.Getenv(key)))
	}
	if !c.AdminEnabled() {
		logger.Warn("JWT_SECRET not set, admin routes disabled")
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		c.Problems = append(c.Problems, key)
		return def
	}
	return d
}

func (c *Config) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.Problems = append(c.Problems, key)
		return def
	}
	return b
}

func (c *Config) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		c.Problems = append(c.Problems, key)
		return def
	}
	return f
}

func (c *Config) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.Problems = append(c.Problems, key)
		return def
	}
	return n
}
