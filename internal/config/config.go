package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	OTP      OTPConfig
	Twilio   TwilioConfig
	Kafka    KafkaConfig
	Policy   PolicyConfig
	Seed     SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	TLSCertFile           string
	TLSKeyFile            string
}

// MongoConfig holds the document store connection values.
type MongoConfig struct {
	URI                   string
	Database              string
	ConnectTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the login audit trail.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret       string
	SessionTTLHours int
	CookieName      string
	CookieSecure    bool
	BcryptCost      int
}

// OTPConfig tunes one-time code issuance and verification.
type OTPConfig struct {
	TTLMinutes            int
	ResendCooldownSeconds int
	MaxFailedAttempts     int
	FailedWindowMinutes   int
	RetentionHours        int
}

// TwilioConfig holds SMS gateway credentials. Empty FromNumber means log-only delivery.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// KafkaConfig configures auth event publishing. No brokers means events are only logged.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	BufferSize int
}

// PolicyConfig points at the role policy and gate rules file.
type PolicyConfig struct {
	File string
}

// SeedConfig describes the bootstrap admin account created on startup.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "tasi-auth-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			TLSCertFile:           os.Getenv("APP_TLS_CERT_FILE"),
			TLSKeyFile:            os.Getenv("APP_TLS_KEY_FILE"),
		},
		Mongo: MongoConfig{
			URI:                   getEnv("MONGO_URI", "mongodb://127.0.0.1:27017"),
			Database:              getEnv("MONGO_DATABASE", "tasi"),
			ConnectTimeoutSeconds: getEnvAsInt("MONGO_CONNECT_TIMEOUT_SECONDS", 10),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("AUTH_JWT_SECRET", "dev-secret"),
			SessionTTLHours: getEnvAsInt("AUTH_SESSION_TTL_HOURS", 7*24),
			CookieName:      getEnv("AUTH_COOKIE_NAME", "token"),
			CookieSecure:    getEnvAsBool("AUTH_COOKIE_SECURE", false),
			BcryptCost:      getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		OTP: OTPConfig{
			TTLMinutes:            getEnvAsInt("OTP_TTL_MINUTES", 10),
			ResendCooldownSeconds: getEnvAsInt("OTP_RESEND_COOLDOWN_SECONDS", 60),
			MaxFailedAttempts:     getEnvAsInt("OTP_MAX_FAILED_ATTEMPTS", 5),
			FailedWindowMinutes:   getEnvAsInt("OTP_FAILED_WINDOW_MINUTES", 15),
			RetentionHours:        getEnvAsInt("OTP_RETENTION_HOURS", 24),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
		},
		Kafka: KafkaConfig{
			Brokers:    getEnvAsList("KAFKA_BROKERS"),
			Topic:      getEnv("KAFKA_TOPIC", "tasi.auth.events"),
			BufferSize: getEnvAsInt("KAFKA_RELAY_BUFFER", 256),
		},
		Policy: PolicyConfig{
			File: getEnv("POLICY_FILE", "config/policy.yml"),
		},
		Seed: SeedConfig{
			AdminEmail:    os.Getenv("SEED_ADMIN_EMAIL"),
			AdminPassword: os.Getenv("SEED_ADMIN_PASSWORD"),
			AdminName:     getEnv("SEED_ADMIN_NAME", "Administrator"),
		},
	}

	if cfg.App.Env == "production" && cfg.Auth.JWTSecret == "dev-secret" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET must be set in production")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// TLSEnabled reports whether both certificate and key are configured.
func (a AppConfig) TLSEnabled() bool {
	return a.TLSCertFile != "" && a.TLSKeyFile != ""
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// ConnectTimeout returns the Mongo connect timeout.
func (m MongoConfig) ConnectTimeout() time.Duration {
	if m.ConnectTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.ConnectTimeoutSeconds) * time.Second
}

// SessionTTL returns the session token validity window.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.SessionTTLHours) * time.Hour
}

// TTL returns the one-time code validity window.
func (o OTPConfig) TTL() time.Duration {
	if o.TTLMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(o.TTLMinutes) * time.Minute
}

// ResendCooldown returns the per-phone issuance cooldown. Zero disables it.
func (o OTPConfig) ResendCooldown() time.Duration {
	if o.ResendCooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(o.ResendCooldownSeconds) * time.Second
}

// FailedWindow returns how long failed verifications are counted per phone.
func (o OTPConfig) FailedWindow() time.Duration {
	if o.FailedWindowMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(o.FailedWindowMinutes) * time.Minute
}

// Retention returns how long codes survive past their expiry before the TTL index removes them.
func (o OTPConfig) Retention() time.Duration {
	if o.RetentionHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(o.RetentionHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
