package infrastructure

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Telemetry    TelemetryConfig
	CORS         CORSConfig
	Cache        CacheConfig
	Revision     RevisionConfig
	Gamification GamificationConfig
	Admin        AdminConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Environment  string
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver is "postgres" or "memory"
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds JWT authentication configuration
type JWTConfig struct {
	SecretKey          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled         bool
	ServiceName     string
	ServiceVersion  string
	Environment     string
	OTLPEndpoint    string
	OTLPInsecure    bool
	SampleRatio     float64
	MetricsEndpoint string
}

// AdminConfig lists the accounts granted the admin role. Matching is case
// insensitive and applies on signup and on every login.
type AdminConfig struct {
	Emails []string
}

// IsAdmin reports whether email belongs to a configured admin
func (c *AdminConfig) IsAdmin(email string) bool {
	if c == nil {
		return false
	}
	for _, e := range c.Emails {
		if strings.EqualFold(e, email) {
			return true
		}
	}
	return false
}

// CORSConfig holds the browser origins allowed to call the API
type CORSConfig struct {
	AllowOrigins []string
}

// CacheConfig holds the Redis cache used for revision dashboards.
// An empty RedisAddr disables caching.
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StatsTTL      time.Duration
}

// RevisionConfig holds the spaced-repetition plan
type RevisionConfig struct {
	// DefaultIntervalDays is used when a solve is marked for revision
	// without explicit intervals
	DefaultIntervalDays []int
	// StageDays is the canonical table consulted after completing a revision
	// to advise the next date. It is independent of the scheduling intervals.
	StageDays []int
	// TimeZone defines calendar-day boundaries for overdue and streak logic
	TimeZone string
	// ConflictRetries bounds how often a unit of work is replayed after a
	// concurrent modification
	ConflictRetries int
}

// GamificationConfig holds XP rules
type GamificationConfig struct {
	XPPerSolve int
	// AwardXPOnResolve restores the legacy behaviour of awarding XP on every
	// solve call instead of only on the first solve of a problem
	AwardXPOnResolve bool
}

// Location resolves the configured time zone, falling back to UTC
func (c *RevisionConfig) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first if present.
func LoadConfig() *Config {
	_ = godotenv.Load()

	environment := getEnv("ENVIRONMENT", "development")
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 10)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
			Environment:  environment,
		},
		Log: LogConfig{
			Environment: environment,
			Level:       getEnv("LOG_LEVEL", ""),
			Service:     getEnv("SERVICE_NAME", "sheet-tracker-api"),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "sheet_tracker"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			SecretKey:          getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
			AccessTokenExpiry:  time.Duration(getEnvInt("JWT_ACCESS_EXPIRY_MINUTES", 15)) * time.Minute,
			RefreshTokenExpiry: time.Duration(getEnvInt("JWT_REFRESH_EXPIRY_HOURS", 168)) * time.Hour, // 7 days
			Issuer:             getEnv("JWT_ISSUER", "sheet-tracker"),
		},
		Telemetry: TelemetryConfig{
			Enabled:         getEnvBool("TELEMETRY_ENABLED", true),
			ServiceName:     getEnv("SERVICE_NAME", "sheet-tracker-api"),
			ServiceVersion:  getEnv("SERVICE_VERSION", "1.0.0"),
			Environment:     environment,
			OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
			OTLPInsecure:    getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:     getEnvRatio("TELEMETRY_SAMPLE_RATIO", 0.1),
			MetricsEndpoint: getEnv("METRICS_ENDPOINT", "/metrics"),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnvStrings("CORS_ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			}),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			StatsTTL:      time.Duration(getEnvInt("REVISION_STATS_TTL_SECONDS", 300)) * time.Second,
		},
		Revision: RevisionConfig{
			DefaultIntervalDays: getEnvIntList("REVISION_DEFAULT_DAYS", []int{1, 7, 30}),
			StageDays:           getEnvIntList("REVISION_STAGE_DAYS", []int{1, 7, 30}),
			TimeZone:            getEnv("APP_TIMEZONE", "UTC"),
			ConflictRetries:     getEnvInt("CONFLICT_RETRIES", 3),
		},
		Gamification: GamificationConfig{
			XPPerSolve:       getEnvInt("XP_PER_SOLVE", 10),
			AwardXPOnResolve: getEnvBool("XP_AWARD_ON_RESOLVE", false),
		},
		Admin: AdminConfig{
			Emails: getEnvStrings("ADMIN_EMAILS", nil),
		},
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvRatio reads a float in [0, 1]
func getEnvRatio(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return defaultValue
}

// getEnvStrings reads a comma separated list
func getEnvStrings(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvIntList reads a comma separated list of positive integers such as
// "1,7,30". Any malformed or non-positive entry falls back to the default.
func getEnvIntList(key string, defaultValue []int) []int {
	parts := getEnvStrings(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}
