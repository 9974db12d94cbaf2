package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL())
	assert.Equal(t, 10*time.Minute, cfg.OTP.TTL())
	assert.Equal(t, "token", cfg.Auth.CookieName)
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.False(t, cfg.App.TLSEnabled())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OTP_TTL_MINUTES", "3")
	t.Setenv("OTP_RESEND_COOLDOWN_SECONDS", "0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("APP_TLS_CERT_FILE", "cert.pem")
	t.Setenv("APP_TLS_KEY_FILE", "key.pem")
	t.Setenv("AUTH_SESSION_TTL_HOURS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Minute, cfg.OTP.TTL())
	assert.Equal(t, time.Duration(0), cfg.OTP.ResendCooldown())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.App.TLSEnabled())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL(), "falls back on malformed value")
}

func TestLoadRejectsDevSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")

	_, err := Load()
	assert.Error(t, err)
}
