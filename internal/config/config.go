package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Notify   NotifyConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

// AuthConfig covers the service tokens that callers of the ingest API
// present, not end-user authentication (that happens upstream).
type AuthConfig struct {
	ServiceTokenSecret string
	ServiceTokenExpiry time.Duration
}

// NotifyConfig holds the anomaly-detection and throttling settings.
type NotifyConfig struct {
	// SecretKey signs history-token records. When unset it is derived
	// from GlobalSecret, so multiple services sharing one global secret
	// produce compatible tokens.
	SecretKey    string
	GlobalSecret string

	CookieExpiry     time.Duration
	MaxCookieRecords int

	// CacheTTL bounds how long the last-seen subnet is remembered per
	// user. Zero disables the subnet cache entirely.
	CacheTTL time.Duration

	// Failure thresholds: a notification fires on every multiple of the
	// threshold. Unknown locations warrant a lower threshold.
	KnownThreshold int
	KnownTTL       time.Duration
	NewThreshold   int
	NewTTL         time.Duration

	// SuccessNotify controls notifications on successful logins from
	// unknown locations. Unset means disabled.
	SuccessNotify TriState

	// HistoryEnabled turns the deep-history lookup on or off.
	HistoryEnabled bool
	// NoInfoIsKnown preserves the historical polarity: when no evidence
	// source has any data at all, treat the location as known.
	NoInfoIsKnown bool

	LocalRealm   string
	MaxRealms    int
	RealmTimeout time.Duration

	// HistoryRetention bounds how long recorded logins are kept before
	// the cleanup loop removes them.
	HistoryRetention time.Duration
	CleanupInterval  time.Duration

	// StorePath is the on-disk location of the counter and cache store.
	// Empty runs the store in memory, losing counters on restart.
	StorePath string
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	// RecipientPattern is a printf pattern mapping a user ID onto an
	// address, e.g. "user-%d@accounts.example.org". The account store
	// lives upstream, so recipient routing is configuration here.
	RecipientPattern string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	globalSecret := getEnv("GLOBAL_SECRET", "")
	notifySecret := getEnv("NOTIFY_SECRET_KEY", "")
	if notifySecret == "" && globalSecret == "" {
		return nil, fmt.Errorf("NOTIFY_SECRET_KEY or GLOBAL_SECRET is required")
	}

	serviceSecret := getEnv("SERVICE_TOKEN_SECRET", "")
	if serviceSecret == "" {
		return nil, fmt.Errorf("SERVICE_TOKEN_SECRET is required")
	}

	successNotify, err := getEnvAsTriState("NOTIFY_ON_SUCCESS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "loginsentry"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:     getEnv("PORT", "8080"),
			Env:      env,
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			ServiceTokenSecret: serviceSecret,
			ServiceTokenExpiry: getEnvAsDuration("SERVICE_TOKEN_EXPIRY", 24*time.Hour),
		},
		Notify: NotifyConfig{
			SecretKey:        notifySecret,
			GlobalSecret:     globalSecret,
			CookieExpiry:     getEnvAsDuration("NOTIFY_COOKIE_EXPIRY", 180*24*time.Hour),
			MaxCookieRecords: getEnvAsInt("NOTIFY_MAX_COOKIE_RECORDS", 6),
			CacheTTL:         getEnvAsDuration("NOTIFY_CACHE_TTL", 60*24*time.Hour),
			KnownThreshold:   getEnvAsInt("NOTIFY_KNOWN_THRESHOLD", 10),
			KnownTTL:         getEnvAsDuration("NOTIFY_KNOWN_TTL", 7*24*time.Hour),
			NewThreshold:     getEnvAsInt("NOTIFY_NEW_THRESHOLD", 3),
			NewTTL:           getEnvAsDuration("NOTIFY_NEW_TTL", 14*24*time.Hour),
			SuccessNotify:    successNotify,
			HistoryEnabled:   getEnvAsBool("NOTIFY_HISTORY_ENABLED", true),
			NoInfoIsKnown:    getEnvAsBool("NOTIFY_NO_INFO_IS_KNOWN", true),
			LocalRealm:       getEnv("NOTIFY_LOCAL_REALM", "local"),
			MaxRealms:        getEnvAsInt("NOTIFY_MAX_REALMS", 10),
			RealmTimeout:     getEnvAsDuration("NOTIFY_REALM_TIMEOUT", 2*time.Second),
			HistoryRetention: getEnvAsDuration("NOTIFY_HISTORY_RETENTION", 90*24*time.Hour),
			CleanupInterval:  getEnvAsDuration("NOTIFY_CLEANUP_INTERVAL", 1*time.Hour),
			StorePath:        getEnv("NOTIFY_STORE_PATH", ""),
		},
		Email: EmailConfig{
			Enabled:          getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
			FromAddress:      getEnv("EMAIL_FROM_ADDRESS", ""),
			RecipientPattern: getEnv("EMAIL_RECIPIENT_PATTERN", ""),
		},
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}
	if cfg.Email.Enabled && cfg.Email.RecipientPattern == "" {
		return nil, fmt.Errorf("EMAIL_RECIPIENT_PATTERN is required when EMAIL_ENABLED is set")
	}

	if err := validateSecret("SERVICE_TOKEN_SECRET", serviceSecret, env); err != nil {
		return nil, err
	}
	if err := validateSecret("signing secret", cfg.Notify.SigningSecret(), env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SigningSecret returns the secret used to sign history-token records,
// deriving one from the global secret when no dedicated key is configured.
func (n *NotifyConfig) SigningSecret() string {
	if n.SecretKey != "" {
		return n.SecretKey
	}
	sum := sha256.Sum256([]byte(n.GlobalSecret + "loginsentry"))
	return hex.EncodeToString(sum[:])
}

// validateSecret enforces minimum security standards for signing secrets
func validateSecret(name, secret, env string) error {
	minLength := 16 // Development minimum
	if env == "production" {
		minLength = 32 // Production requires stronger secret (256 bits)
	}

	if len(secret) < minLength {
		return fmt.Errorf("%s must be at least %d characters in %s environment (got %d)",
			name, minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("%s cannot be a common weak value", name)
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsTriState(key string) (TriState, error) {
	value := os.Getenv(key)
	state, err := ParseTriState(value)
	if err != nil {
		return Unset, fmt.Errorf("%s: %w", key, err)
	}
	return state, nil
}
