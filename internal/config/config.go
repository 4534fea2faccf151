// Package config resolves process settings from the environment once at
// startup. Nothing reads the environment at request time.
package config

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/neenza/offsetauth"
)

type Settings struct {
	Auth offsetauth.Config

	HTTPAddr    string
	LogLevel    string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SeedDefaultUsers bool

	// OTLPEndpoint enables OTLP metric push when set.
	OTLPEndpoint string
	OTLPInsecure bool
}

// Load reads .env when present and then the process environment.
func Load() Settings {
	if err := godotenv.Load(".env"); err != nil {
		slog.Info("notice: .env file not found, using system environment variables", "error", err)
	}
	return FromEnv()
}

// FromEnv builds Settings from the current environment without touching
// .env files.
func FromEnv() Settings {
	auth := offsetauth.DefaultConfig()

	auth.JWT.AccessSecret = []byte(os.Getenv("ACCESS_TOKEN_SECRET"))
	auth.JWT.RefreshSecret = []byte(os.Getenv("REFRESH_TOKEN_SECRET"))
	auth.JWT.Issuer = EnvDefault("JWT_ISSUER", "offsetauth")
	auth.JWT.AccessTTL = EnvDurationDefault("ACCESS_TOKEN_TTL", auth.JWT.AccessTTL)
	auth.JWT.RefreshTTL = EnvDurationDefault("REFRESH_TOKEN_TTL", auth.JWT.RefreshTTL)

	auth.Session.EnforceSingleDevice = EnvBoolDefault("ENFORCE_SINGLE_DEVICE", auth.Session.EnforceSingleDevice)
	auth.Session.Fingerprinting = EnvBoolDefault("SESSION_FINGERPRINTING", auth.Session.Fingerprinting)

	auth.Cookie.Secure = EnvBoolDefault("COOKIE_SECURE", auth.Cookie.Secure)
	auth.Cookie.SameSite = SameSite(EnvDefault("COOKIE_SAMESITE", "lax"))
	auth.Cookie.Domain = os.Getenv("COOKIE_DOMAIN")
	auth.Cookie.Path = EnvDefault("COOKIE_PATH", auth.Cookie.Path)
	auth.Cookie.ExposeAccessTokenInBody = EnvBoolDefault("EXPOSE_ACCESS_TOKEN_IN_BODY", false)

	auth.Store.Namespace = os.Getenv("REDIS_NAMESPACE")
	auth.Store.Timeout = EnvDurationDefault("STORE_TIMEOUT", auth.Store.Timeout)

	auth.Password.Algorithm = EnvDefault("PASSWORD_ALGORITHM", auth.Password.Algorithm)

	auth.Metrics.Enabled = EnvBoolDefault("METRICS_ENABLED", auth.Metrics.Enabled)

	return Settings{
		Auth:             auth,
		HTTPAddr:         EnvDefault("HTTP_ADDR", ":8000"),
		LogLevel:         EnvDefault("LOG_LEVEL", "info"),
		CORSOrigins:      CSV(EnvDefault("CORS_ORIGINS", "http://localhost:3000")),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          EnvIntDefault("REDIS_DB", 0),
		SeedDefaultUsers: EnvBoolDefault("SEED_DEFAULT_USERS", false),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:     EnvBoolDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

func SameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
