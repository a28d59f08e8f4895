package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret        string
	SessionMaxAge        int
	SessionSweepInterval time.Duration

	// Auth state
	AuthStoreIdleTTL       time.Duration
	AuthInitTimeout        time.Duration
	AuthRevalidateInterval time.Duration
	GuardWaitTimeout       time.Duration
	LoginPath              string

	// Session events
	RedisURL string

	// Transcription workflow
	WorkflowBaseURL        string
	WorkflowTimeout        time.Duration
	WorkflowAttemptTimeout time.Duration
	WorkflowMaxTries       int

	// Checkout
	CheckoutEndpoint string
	CheckoutTimeout  time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitVideoReg int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は不足分をまとめてエラーで返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.GoogleClientID = required("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = required("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = required("GOOGLE_REDIRECT_URL")
	cfg.SessionSecret = required("SESSION_SECRET")
	cfg.BaseURL = required("BASE_URL")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute)
	cfg.AuthStoreIdleTTL = getEnvDuration("AUTH_STORE_IDLE_TTL", 15*time.Minute)
	cfg.AuthInitTimeout = getEnvDuration("AUTH_INIT_TIMEOUT", 5*time.Second)
	cfg.AuthRevalidateInterval = getEnvDuration("AUTH_REVALIDATE_INTERVAL", 30*time.Second)
	cfg.GuardWaitTimeout = getEnvDuration("GUARD_WAIT_TIMEOUT", 2*time.Second)
	cfg.LoginPath = getEnvString("LOGIN_PATH", "/login")
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.WorkflowBaseURL = strings.TrimRight(getEnvString("WORKFLOW_BASE_URL", ""), "/")
	cfg.WorkflowTimeout = getEnvDuration("WORKFLOW_TIMEOUT", 10*time.Second)
	cfg.WorkflowAttemptTimeout = getEnvDuration("WORKFLOW_ATTEMPT_TIMEOUT", 3*time.Second)
	cfg.WorkflowMaxTries = getEnvInt("WORKFLOW_MAX_TRIES", 3)
	cfg.CheckoutEndpoint = getEnvString("CHECKOUT_ENDPOINT", "")
	cfg.CheckoutTimeout = getEnvDuration("CHECKOUT_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitVideoReg = getEnvInt("RATE_LIMIT_VIDEO_REG", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// SessionTTL はセッションの有効期間を返す。
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionMaxAge) * time.Second
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
