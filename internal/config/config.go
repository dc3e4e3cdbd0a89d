package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
	Email    EmailConfig
	Security SecurityConfig
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
	RunMigrations     bool
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration

	// Minimum latency of public reset responses, plus up to Jitter.
	ResetResponseFloor  time.Duration
	ResetResponseJitter time.Duration

	ResetRequestsPerMinute   int
	ServiceRequestsPerMinute int
}

type AuthConfig struct {
	JWTSecret string
}

type EmailConfig struct {
	Provider                string // "ses" or "log"
	AWSRegion               string
	FromAddress             string
	ResetURLBase            string
	PasswordResetTemplate   string
	PasswordChangedTemplate string
	BcryptCost              int
}

// SecurityConfig holds the lockout, reset and audit policy.
type SecurityConfig struct {
	MaxFailedAttempts           int
	LockoutTimeWindow           time.Duration
	LockoutDuration             time.Duration
	TokenExpiry                 time.Duration
	MaxResetRequestsPerHour     int
	EnableRealTimeMonitoring    bool
	AuditEventCapPerUser        int
	AuditRetention              time.Duration
	SuspiciousActivityThreshold int
	SuspiciousActivityWindow    time.Duration
}

// DefaultSecurityConfig returns the documented defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxFailedAttempts:           5,
		LockoutTimeWindow:           15 * time.Minute,
		LockoutDuration:             30 * time.Minute,
		TokenExpiry:                 30 * time.Minute,
		MaxResetRequestsPerHour:     5,
		EnableRealTimeMonitoring:    true,
		AuditEventCapPerUser:        1000,
		AuditRetention:              30 * 24 * time.Hour,
		SuspiciousActivityThreshold: 10,
		SuspiciousActivityWindow:    15 * time.Minute,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")
	defaults := DefaultSecurityConfig()

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "kamino_guard"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "kg"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),

			ResetResponseFloor:  time.Duration(getEnvAsInt("PASSWORD_RESET_RESPONSE_FLOOR_MS", 250)) * time.Millisecond,
			ResetResponseJitter: time.Duration(getEnvAsInt("PASSWORD_RESET_RESPONSE_JITTER_MS", 100)) * time.Millisecond,

			ResetRequestsPerMinute:   getEnvAsInt("RATE_LIMIT_RESET_PER_MINUTE", 10),
			ServiceRequestsPerMinute: getEnvAsInt("RATE_LIMIT_SERVICE_PER_MINUTE", 600),
		},
		Auth: AuthConfig{
			JWTSecret: jwtSecret,
		},
		Email: EmailConfig{
			Provider:                getEnv("EMAIL_PROVIDER", "ses"),
			AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
			FromAddress:             getEnv("EMAIL_FROM_ADDRESS", "no-reply@example.com"),
			ResetURLBase:            getEnv("PASSWORD_RESET_URL_BASE", "http://localhost:3000"),
			PasswordResetTemplate:   getEnv("EMAIL_TEMPLATE_PASSWORD_RESET", "PasswordReset"),
			PasswordChangedTemplate: getEnv("EMAIL_TEMPLATE_PASSWORD_CHANGED", "PasswordChanged"),
			BcryptCost:              getEnvAsInt("BCRYPT_COST", 14),
		},
		Security: SecurityConfig{
			MaxFailedAttempts:           getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", defaults.MaxFailedAttempts),
			LockoutTimeWindow:           getEnvAsMinutes("LOCKOUT_TIME_WINDOW_MINUTES", defaults.LockoutTimeWindow),
			LockoutDuration:             getEnvAsMinutes("LOCKOUT_DURATION_MINUTES", defaults.LockoutDuration),
			TokenExpiry:                 getEnvAsMinutes("PASSWORD_RESET_TOKEN_EXPIRY_MINUTES", defaults.TokenExpiry),
			MaxResetRequestsPerHour:     getEnvAsInt("PASSWORD_RESET_MAX_REQUESTS_PER_HOUR", defaults.MaxResetRequestsPerHour),
			EnableRealTimeMonitoring:    getEnvAsBool("AUDIT_REALTIME_MONITORING", defaults.EnableRealTimeMonitoring),
			AuditEventCapPerUser:        getEnvAsInt("AUDIT_EVENT_CAP_PER_USER", defaults.AuditEventCapPerUser),
			AuditRetention:              time.Duration(getEnvAsInt("AUDIT_RETENTION_DAYS", 30)) * 24 * time.Hour,
			SuspiciousActivityThreshold: getEnvAsInt("SUSPICIOUS_ACTIVITY_THRESHOLD", defaults.SuspiciousActivityThreshold),
			SuspiciousActivityWindow:    getEnvAsMinutes("SUSPICIOUS_ACTIVITY_WINDOW_MINUTES", defaults.SuspiciousActivityWindow),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.Security.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects non-positive thresholds and windows.
func (s SecurityConfig) Validate() error {
	ints := map[string]int{
		"LOCKOUT_MAX_FAILED_ATTEMPTS":          s.MaxFailedAttempts,
		"PASSWORD_RESET_MAX_REQUESTS_PER_HOUR": s.MaxResetRequestsPerHour,
		"AUDIT_EVENT_CAP_PER_USER":             s.AuditEventCapPerUser,
		"SUSPICIOUS_ACTIVITY_THRESHOLD":        s.SuspiciousActivityThreshold,
	}
	for name, v := range ints {
		if v <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", name, v)
		}
	}

	durations := map[string]time.Duration{
		"LOCKOUT_TIME_WINDOW_MINUTES":         s.LockoutTimeWindow,
		"LOCKOUT_DURATION_MINUTES":            s.LockoutDuration,
		"PASSWORD_RESET_TOKEN_EXPIRY_MINUTES": s.TokenExpiry,
		"AUDIT_RETENTION_DAYS":                s.AuditRetention,
		"SUSPICIOUS_ACTIVITY_WINDOW_MINUTES":  s.SuspiciousActivityWindow,
	}
	for name, v := range durations {
		if v <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", name, v)
		}
	}

	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
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

// getEnvAsMinutes reads a whole number of minutes.
func getEnvAsMinutes(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return []string{}
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
