package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")

	s := FromEnv()

	assert.Equal(t, []byte("access"), s.Auth.JWT.AccessSecret)
	assert.Equal(t, []byte("refresh"), s.Auth.JWT.RefreshSecret)
	assert.Equal(t, 15*time.Minute, s.Auth.JWT.AccessTTL)
	assert.Equal(t, 720*time.Hour, s.Auth.JWT.RefreshTTL)
	assert.Equal(t, 3*time.Second, s.Auth.Store.Timeout)
	assert.Equal(t, http.SameSiteLaxMode, s.Auth.Cookie.SameSite)
	assert.True(t, s.Auth.Cookie.Secure)
	assert.False(t, s.Auth.Session.EnforceSingleDevice)
	assert.False(t, s.Auth.Cookie.ExposeAccessTokenInBody)
	assert.Equal(t, ":8000", s.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, s.CORSOrigins)
	require.NoError(t, s.Auth.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_SECRET", "access")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("ENFORCE_SINGLE_DEVICE", "true")
	t.Setenv("SESSION_FINGERPRINTING", "1")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("COOKIE_SAMESITE", "Strict")
	t.Setenv("COOKIE_DOMAIN", "print.example.com")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("PASSWORD_ALGORITHM", "bcrypt")
	t.Setenv("SEED_DEFAULT_USERS", "true")
	t.Setenv("EXPOSE_ACCESS_TOKEN_IN_BODY", "true")

	s := FromEnv()

	assert.Equal(t, 5*time.Minute, s.Auth.JWT.AccessTTL)
	assert.Equal(t, 24*time.Hour, s.Auth.JWT.RefreshTTL)
	assert.Equal(t, 250*time.Millisecond, s.Auth.Store.Timeout)
	assert.True(t, s.Auth.Session.EnforceSingleDevice)
	assert.True(t, s.Auth.Session.Fingerprinting)
	assert.False(t, s.Auth.Cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, s.Auth.Cookie.SameSite)
	assert.Equal(t, "print.example.com", s.Auth.Cookie.Domain)
	assert.Equal(t, "localhost:6379", s.RedisAddr)
	assert.Equal(t, 2, s.RedisDB)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, s.CORSOrigins)
	assert.Equal(t, "bcrypt", s.Auth.Password.Algorithm)
	assert.True(t, s.SeedDefaultUsers)
	assert.True(t, s.Auth.Cookie.ExposeAccessTokenInBody)
	require.NoError(t, s.Auth.Validate())
}

func TestMalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	t.Setenv("ACCESS_TOKEN_TTL", "-5m")
	t.Setenv("METRICS_ENABLED", "sometimes")

	assert.Equal(t, 0, EnvIntDefault("REDIS_DB", 0))
	assert.Equal(t, time.Minute, EnvDurationDefault("ACCESS_TOKEN_TTL", time.Minute))
	assert.True(t, EnvBoolDefault("METRICS_ENABLED", true))
}

func TestSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteNoneMode, SameSite("none"))
	assert.Equal(t, http.SameSiteStrictMode, SameSite(" STRICT "))
	assert.Equal(t, http.SameSiteLaxMode, SameSite("bogus"))
}

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a", "b"}, CSV(" a ,b,, "))
}
