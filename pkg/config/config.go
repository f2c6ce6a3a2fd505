package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Transaction TransactionConfig
	Redis       RedisConfig
	QueryCache  QueryCacheConfig
	CORS        CORSConfig
	Log         LogConfig
	Telemetry   TelemetryConfig
	Maintenance MaintenanceConfig
	Gateway     GatewayConfig
	Migrations  MigrationsConfig
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL renders the postgres:// form used by the migration driver.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// TransactionConfig holds the defaults applied to interactive transactions.
type TransactionConfig struct {
	MaxWait        time.Duration
	Timeout        time.Duration
	IsolationLevel string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueryCacheConfig toggles the opt-in read-through result cache.
type QueryCacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TelemetryConfig controls sampling of query timings into database_metric.
type TelemetryConfig struct {
	Enabled    bool
	SampleRate float64
	Workers    int
	BufferSize int
}

// MaintenanceConfig drives the cron purge of expired tokens, sessions and old metrics.
type MaintenanceConfig struct {
	Enabled         bool
	Schedule        string
	MetricRetention time.Duration
}

// GatewayConfig secures the HTTP data proxy.
type GatewayConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	Issuer           string
	ClientID         string
	ClientSecretHash string
	MaxBodyBytes     int64
}

type MigrationsConfig struct {
	OnStart bool
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
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnMaxLifetime: parseDuration(v.GetString("DB_CONN_MAX_LIFETIME"), 30*time.Minute),
		QueryTimeout:    parseDuration(v.GetString("QUERY_TIMEOUT"), 0),
	}

	cfg.Transaction = TransactionConfig{
		MaxWait:        parseDuration(v.GetString("TX_MAX_WAIT"), 2*time.Second),
		Timeout:        parseDuration(v.GetString("TX_TIMEOUT"), 5*time.Second),
		IsolationLevel: v.GetString("TX_ISOLATION_LEVEL"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.QueryCache = QueryCacheConfig{
		Enabled:    v.GetBool("ENABLE_QUERY_CACHE"),
		DefaultTTL: parseDuration(v.GetString("QUERY_CACHE_TTL"), time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Telemetry = TelemetryConfig{
		Enabled:    v.GetBool("ENABLE_TELEMETRY"),
		SampleRate: v.GetFloat64("TELEMETRY_SAMPLE_RATE"),
		Workers:    v.GetInt("TELEMETRY_WORKERS"),
		BufferSize: v.GetInt("TELEMETRY_BUFFER_SIZE"),
	}
	if cfg.Telemetry.SampleRate < 0 || cfg.Telemetry.SampleRate > 1 {
		return nil, fmt.Errorf("TELEMETRY_SAMPLE_RATE must be within [0,1], got %v", cfg.Telemetry.SampleRate)
	}

	cfg.Maintenance = MaintenanceConfig{
		Enabled:         v.GetBool("ENABLE_MAINTENANCE"),
		Schedule:        v.GetString("MAINTENANCE_SCHEDULE"),
		MetricRetention: parseDuration(v.GetString("METRIC_RETENTION"), 7*24*time.Hour),
	}

	cfg.Gateway = GatewayConfig{
		JWTSecret:        v.GetString("GATEWAY_JWT_SECRET"),
		TokenTTL:         parseDuration(v.GetString("GATEWAY_TOKEN_TTL"), time.Hour),
		Issuer:           v.GetString("GATEWAY_ISSUER"),
		ClientID:         v.GetString("GATEWAY_CLIENT_ID"),
		ClientSecretHash: v.GetString("GATEWAY_CLIENT_SECRET_HASH"),
		MaxBodyBytes:     v.GetInt64("GATEWAY_MAX_BODY_BYTES"),
	}

	cfg.Migrations = MigrationsConfig{OnStart: v.GetBool("MIGRATE_ON_START")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_presence")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("QUERY_TIMEOUT", "")

	v.SetDefault("TX_MAX_WAIT", "2s")
	v.SetDefault("TX_TIMEOUT", "5s")
	v.SetDefault("TX_ISOLATION_LEVEL", "")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_QUERY_CACHE", false)
	v.SetDefault("QUERY_CACHE_TTL", "1m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_TELEMETRY", false)
	v.SetDefault("TELEMETRY_SAMPLE_RATE", 0.1)
	v.SetDefault("TELEMETRY_WORKERS", 1)
	v.SetDefault("TELEMETRY_BUFFER_SIZE", 256)

	v.SetDefault("ENABLE_MAINTENANCE", false)
	v.SetDefault("MAINTENANCE_SCHEDULE", "*/15 * * * *")
	v.SetDefault("METRIC_RETENTION", "168h")

	v.SetDefault("GATEWAY_JWT_SECRET", "dev_gateway_secret")
	v.SetDefault("GATEWAY_TOKEN_TTL", "1h")
	v.SetDefault("GATEWAY_ISSUER", "sma-presence-api")
	v.SetDefault("GATEWAY_CLIENT_ID", "")
	v.SetDefault("GATEWAY_CLIENT_SECRET_HASH", "")
	v.SetDefault("GATEWAY_MAX_BODY_BYTES", 1<<20)

	v.SetDefault("MIGRATE_ON_START", false)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
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
