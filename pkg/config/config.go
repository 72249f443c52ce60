package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Supported persistence drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Grades      GradeConfig
	Audit       AuditConfig
	Idempotency IdempotencyConfig
	Events      EventsConfig
	Telemetry   TelemetryConfig
	Metrics     MetricsConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	Expiration  time.Duration
	RequireAuth bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradeConfig bounds accepted grade values. Both ends are inclusive.
type GradeConfig struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Validate rejects inverted and single-point ranges.
func (g GradeConfig) Validate() error {
	if !g.Max.GreaterThan(g.Min) {
		return fmt.Errorf("GRADE_MAX (%s) must be above GRADE_MIN (%s)", g.Max, g.Min)
	}
	return nil
}

// DefaultGradeBounds is the conventional 0 to 100 scale.
func DefaultGradeBounds() GradeConfig {
	return GradeConfig{Min: decimal.Zero, Max: decimal.NewFromInt(100)}
}

// AuditConfig tunes the audit trail read side.
type AuditConfig struct {
	DefaultLimit int
	MaxLimit     int
	DefaultActor string
}

// IdempotencyConfig controls replay of mutating HTTP requests.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

// EventsConfig toggles post-commit domain event publishing.
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	// Workers and Buffer size the in-process dispatch queue in front of Kafka.
	Workers int
	Buffer  int
}

// TelemetryConfig configures OpenTelemetry tracing export.
type TelemetryConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       strings.ToLower(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		Path:         v.GetString("DB_PATH"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}
	if cfg.Database.Driver != DriverPostgres && cfg.Database.Driver != DriverSQLite {
		return nil, errors.New("DB_DRIVER must be postgres or sqlite")
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:      v.GetString("JWT_SECRET"),
		Expiration:  parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RequireAuth: v.GetBool("REQUIRE_AUTH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	minGrade, err := decimal.NewFromString(v.GetString("GRADE_MIN"))
	if err != nil {
		return nil, errors.New("GRADE_MIN must be numeric")
	}
	maxGrade, err := decimal.NewFromString(v.GetString("GRADE_MAX"))
	if err != nil {
		return nil, errors.New("GRADE_MAX must be numeric")
	}
	cfg.Grades = GradeConfig{Min: minGrade, Max: maxGrade}
	if err := cfg.Grades.Validate(); err != nil {
		return nil, err
	}

	cfg.Audit = AuditConfig{
		DefaultLimit: v.GetInt("AUDIT_DEFAULT_LIMIT"),
		MaxLimit:     v.GetInt("AUDIT_MAX_LIMIT"),
		DefaultActor: v.GetString("DEFAULT_ACTOR"),
	}

	cfg.Idempotency = IdempotencyConfig{
		Enabled: v.GetBool("ENABLE_IDEMPOTENCY"),
		TTL:     parseDuration(v.GetString("IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("ENABLE_EVENTS"),
		Brokers: splitAndTrim(v.GetString("KAFKA_BROKERS")),
		Topic:   v.GetString("KAFKA_TOPIC"),
		Workers: v.GetInt("EVENTS_WORKERS"),
		Buffer:  v.GetInt("EVENTS_BUFFER"),
	}

	cfg.Telemetry = TelemetryConfig{
		Enabled:     v.GetBool("OTEL_ENABLED"),
		Endpoint:    v.GetString("OTEL_ENDPOINT"),
		ServiceName: v.GetString("OTEL_SERVICE_NAME"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_course_system")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_PATH", "./enrollment.db")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REQUIRE_AUTH", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADE_MIN", "0")
	v.SetDefault("GRADE_MAX", "100")

	v.SetDefault("AUDIT_DEFAULT_LIMIT", 20)
	v.SetDefault("AUDIT_MAX_LIMIT", 500)
	v.SetDefault("DEFAULT_ACTOR", "system")

	v.SetDefault("ENABLE_IDEMPOTENCY", false)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "enrollment-events")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_BUFFER", 1024)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_SERVICE_NAME", "enrollment-ledger")

	v.SetDefault("ENABLE_METRICS", true)
}

// isMissingFile covers viper reporting an absent explicit config file as a
// plain fs error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
