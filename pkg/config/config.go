package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends understood by STORE_BACKEND.
const (
	StoreMemory    = "memory"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Store     StoreConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Firestore FirestoreConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Roster    RosterConfig
	Dashboard DashboardConfig
	Scanner   ScannerConfig
	Notify    NotifyConfig
}

type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// FirestoreConfig points the document store at a Firebase project.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
}

// JWTConfig verifies bearer tokens minted by the external identity provider.
type JWTConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RosterConfig tunes the in-memory student snapshot.
type RosterConfig struct {
	SnapshotTTL time.Duration
}

// DashboardConfig governs dashboard widgets and cache tuning.
type DashboardConfig struct {
	CacheTTL     time.Duration
	AbsenteeCap  int
	TopAttendees int
	BirthdayDays int
	AgePolicy    string
}

// ScannerConfig governs QR capture sessions and frame ingestion.
type ScannerConfig struct {
	FPS             int
	MaxFrameBytes   int64
	Retention       time.Duration
	SessionTimeout  time.Duration
	RateLimitPerMin int
}

// NotifyConfig controls out-of-band notification delivery.
type NotifyConfig struct {
	EmailEnabled bool
	SESRegion    string
	FromEmail    string
	Recipients   []string
	Workers      int
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

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Store = StoreConfig{Backend: strings.ToLower(v.GetString("STORE_BACKEND"))}

	cfg.Database = DatabaseConfig{
		Driver:       v.GetString("DB_DRIVER"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Firestore = FirestoreConfig{
		ProjectID:       v.GetString("FIRESTORE_PROJECT_ID"),
		CredentialsFile: v.GetString("FIRESTORE_CREDENTIALS_FILE"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
		Issuer:  v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roster = RosterConfig{
		SnapshotTTL: parseDuration(v.GetString("ROSTER_SNAPSHOT_TTL"), 30*time.Second),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		AbsenteeCap:  v.GetInt("DASHBOARD_ABSENTEE_CAP"),
		TopAttendees: v.GetInt("DASHBOARD_TOP_ATTENDEES"),
		BirthdayDays: v.GetInt("DASHBOARD_BIRTHDAY_DAYS"),
		AgePolicy:    v.GetString("AGE_POLICY"),
	}

	cfg.Scanner = ScannerConfig{
		FPS:             v.GetInt("SCANNER_FPS"),
		MaxFrameBytes:   v.GetInt64("SCANNER_MAX_FRAME_BYTES"),
		Retention:       parseDuration(v.GetString("SCANNER_SESSION_RETENTION"), 10*time.Minute),
		SessionTimeout:  parseDuration(v.GetString("SCANNER_SESSION_TIMEOUT"), 2*time.Minute),
		RateLimitPerMin: v.GetInt("SCANNER_RATE_LIMIT_PER_MIN"),
	}

	cfg.Notify = NotifyConfig{
		EmailEnabled: v.GetBool("NOTIFY_EMAIL_ENABLED"),
		SESRegion:    v.GetString("SES_REGION"),
		FromEmail:    v.GetString("SES_FROM_EMAIL"),
		Recipients:   splitAndTrim(v.GetString("NOTIFY_RECIPIENTS")),
		Workers:      v.GetInt("NOTIFY_WORKERS"),
	}

	return cfg, nil
}

// Location resolves the configured timezone, falling back to the host zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "")

	v.SetDefault("STORE_BACKEND", StoreMemory)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "roster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("FIRESTORE_PROJECT_ID", "")
	v.SetDefault("FIRESTORE_CREDENTIALS_FILE", "")

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_SNAPSHOT_TTL", "30s")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_ABSENTEE_CAP", 10)
	v.SetDefault("DASHBOARD_TOP_ATTENDEES", 8)
	v.SetDefault("DASHBOARD_BIRTHDAY_DAYS", 3)
	v.SetDefault("AGE_POLICY", "turning_this_year")

	v.SetDefault("SCANNER_FPS", 10)
	v.SetDefault("SCANNER_MAX_FRAME_BYTES", 4*1024*1024)
	v.SetDefault("SCANNER_SESSION_RETENTION", "10m")
	v.SetDefault("SCANNER_SESSION_TIMEOUT", "2m")
	v.SetDefault("SCANNER_RATE_LIMIT_PER_MIN", 1200)

	v.SetDefault("NOTIFY_EMAIL_ENABLED", false)
	v.SetDefault("SES_REGION", "us-east-1")
	v.SetDefault("SES_FROM_EMAIL", "")
	v.SetDefault("NOTIFY_RECIPIENTS", "")
	v.SetDefault("NOTIFY_WORKERS", 1)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
