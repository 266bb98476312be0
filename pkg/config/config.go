package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// State backends.
const (
	StateBackendMemory   = "memory"
	StateBackendRedis    = "redis"
	StateBackendPostgres = "postgres"
	StateBackendSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	State     StateConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	External  ExternalConfig
	Google    GoogleConfig
	ICS       ICSConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SQLiteConfig points at a local database file for single-node deployments.
type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StateConfig controls where session state lives and how long it stays in memory.
type StateConfig struct {
	Backend       string
	RootKey       string
	SeedOnCreate  bool
	FlushSchedule string
	IdleTimeout   time.Duration
}

// JWTConfig validates tokens issued by the external identity provider.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs caching of the analytics summary.
type AnalyticsConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExternalConfig tunes external calendar refreshes.
type ExternalConfig struct {
	Enabled          bool
	WindowPadding    time.Duration
	FetchTimeout     time.Duration
	Workers          int
	QueueSize        int
	MaxRetries       int
	RetryDelay       time.Duration
	BreakerTimeout   time.Duration
	BreakerThreshold float64
	BreakerMinCalls  uint32
}

// GoogleConfig enables the Google Calendar provider.
type GoogleConfig struct {
	Enabled         bool
	CredentialsFile string
	CalendarID      string
}

// ICSFeedConfig names one subscribed iCalendar URL.
type ICSFeedConfig struct {
	Name string
	URL  string
}

// ICSConfig lists iCalendar feeds imported as external events.
type ICSConfig struct {
	Feeds   []ICSFeedConfig
	Timeout time.Duration
}

// ExportsConfig controls analytics exports and their stored downloads.
type ExportsConfig struct {
	Enabled         bool
	Dir             string
	SigningSecret   string
	ResultTTL       time.Duration
	CleanupSchedule string
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
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.SQLite = SQLiteConfig{Path: v.GetString("SQLITE_PATH")}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.State = StateConfig{
		Backend:       strings.ToLower(v.GetString("STATE_BACKEND")),
		RootKey:       v.GetString("STATE_ROOT_KEY"),
		SeedOnCreate:  v.GetBool("STATE_SEED_ON_CREATE"),
		FlushSchedule: v.GetString("STATE_FLUSH_SCHEDULE"),
		IdleTimeout:   parseDuration(v.GetString("STATE_IDLE_TIMEOUT"), 30*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheEnabled: v.GetBool("ANALYTICS_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.External = ExternalConfig{
		Enabled:          v.GetBool("ENABLE_EXTERNAL_CALENDARS"),
		WindowPadding:    parseDuration(v.GetString("EXTERNAL_WINDOW_PADDING"), 7*24*time.Hour),
		FetchTimeout:     parseDuration(v.GetString("EXTERNAL_FETCH_TIMEOUT"), 20*time.Second),
		Workers:          v.GetInt("EXTERNAL_WORKERS"),
		QueueSize:        v.GetInt("EXTERNAL_QUEUE_SIZE"),
		MaxRetries:       v.GetInt("EXTERNAL_MAX_RETRIES"),
		RetryDelay:       parseDuration(v.GetString("EXTERNAL_RETRY_DELAY"), 2*time.Second),
		BreakerTimeout:   parseDuration(v.GetString("EXTERNAL_BREAKER_TIMEOUT"), 30*time.Second),
		BreakerThreshold: v.GetFloat64("EXTERNAL_BREAKER_THRESHOLD"),
		BreakerMinCalls:  v.GetUint32("EXTERNAL_BREAKER_MIN_CALLS"),
	}

	cfg.Google = GoogleConfig{
		Enabled:         v.GetBool("ENABLE_GOOGLE_CALENDAR"),
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		CalendarID:      v.GetString("GOOGLE_CALENDAR_ID"),
	}

	feeds, err := parseFeeds(v.GetString("ICS_FEEDS"))
	if err != nil {
		return nil, err
	}
	cfg.ICS = ICSConfig{
		Feeds:   feeds,
		Timeout: parseDuration(v.GetString("ICS_TIMEOUT"), 15*time.Second),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		Dir:             v.GetString("EXPORT_DIR"),
		SigningSecret:   v.GetString("EXPORT_SIGNING_SECRET"),
		ResultTTL:       parseDuration(v.GetString("EXPORT_RESULT_TTL"), 24*time.Hour),
		CleanupSchedule: v.GetString("EXPORT_CLEANUP_SCHEDULE"),
	}
	if cfg.Exports.SigningSecret == "" {
		cfg.Exports.SigningSecret = cfg.JWT.Secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.State.Backend {
	case StateBackendMemory, StateBackendRedis, StateBackendPostgres, StateBackendSQLite:
	default:
		return fmt.Errorf("unsupported STATE_BACKEND %q", c.State.Backend)
	}
	if c.State.Backend == StateBackendSQLite && c.SQLite.Path == "" {
		return errors.New("SQLITE_PATH is required for the sqlite state backend")
	}
	if c.Env == EnvProduction && c.JWT.Secret == "dev_secret" {
		return errors.New("JWT_SECRET must be set in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timeblocks")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("SQLITE_PATH", "./var/timeblocks.db")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("STATE_BACKEND", StateBackendMemory)
	v.SetDefault("STATE_ROOT_KEY", "timeblocks")
	v.SetDefault("STATE_SEED_ON_CREATE", true)
	v.SetDefault("STATE_FLUSH_SCHEDULE", "@every 1m")
	v.SetDefault("STATE_IDLE_TIMEOUT", "30m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ANALYTICS_CACHE_ENABLED", false)
	v.SetDefault("ANALYTICS_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_EXTERNAL_CALENDARS", false)
	v.SetDefault("EXTERNAL_WINDOW_PADDING", "168h")
	v.SetDefault("EXTERNAL_FETCH_TIMEOUT", "20s")
	v.SetDefault("EXTERNAL_WORKERS", 2)
	v.SetDefault("EXTERNAL_QUEUE_SIZE", 64)
	v.SetDefault("EXTERNAL_MAX_RETRIES", 2)
	v.SetDefault("EXTERNAL_RETRY_DELAY", "2s")
	v.SetDefault("EXTERNAL_BREAKER_TIMEOUT", "30s")
	v.SetDefault("EXTERNAL_BREAKER_THRESHOLD", 0.6)
	v.SetDefault("EXTERNAL_BREAKER_MIN_CALLS", 3)

	v.SetDefault("ENABLE_GOOGLE_CALENDAR", false)
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "")
	v.SetDefault("GOOGLE_CALENDAR_ID", "primary")

	v.SetDefault("ICS_FEEDS", "")
	v.SetDefault("ICS_TIMEOUT", "15s")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORT_DIR", "./var/exports")
	v.SetDefault("EXPORT_SIGNING_SECRET", "")
	v.SetDefault("EXPORT_RESULT_TTL", "24h")
	v.SetDefault("EXPORT_CLEANUP_SCHEDULE", "@every 1h")
}

// parseFeeds reads "name=url" pairs separated by commas. A bare url gets a numbered name.
func parseFeeds(raw string) ([]ICSFeedConfig, error) {
	parts := splitAndTrim(raw)
	feeds := make([]ICSFeedConfig, 0, len(parts))
	for i, part := range parts {
		name, url, found := strings.Cut(part, "=")
		if !found || strings.Contains(name, "://") {
			name, url = fmt.Sprintf("feed%d", i+1), part
		}
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if url == "" {
			return nil, fmt.Errorf("ICS_FEEDS entry %q has no url", part)
		}
		feeds = append(feeds, ICSFeedConfig{Name: name, URL: url})
	}
	return feeds, nil
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
