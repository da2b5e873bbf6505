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

// Rewrite policies for messages the classifier marks as needs_rewrite.
const (
	RewritePolicyDeliver = "deliver"
	RewritePolicyHold    = "hold"
)

// Classifier providers.
const (
	ClassifierGemini = "gemini"
	ClassifierVertex = "vertex"
	ClassifierNone   = "none"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Moderation    ModerationConfig
	Classifier    ClassifierConfig
	Ledger        LedgerConfig
	Notifications NotificationConfig
	Exports       ExportsConfig
	Metrics       MetricsConfig
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
	AutoMigrate  bool
	LockTimeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ModerationConfig tunes the chat moderation pipeline.
type ModerationConfig struct {
	ClassifierTimeout time.Duration
	RewritePolicy     string
	Denylist          []string
	AudioMaxBytes     int64
	AudioStorageDir   string
	AudioAllowedMIMEs []string
	ListCacheTTL      time.Duration
}

// ClassifierConfig selects and authenticates the content classifier backend.
type ClassifierConfig struct {
	Provider string
	APIKey   string
	Model    string
	Project  string
	Location string
}

// LedgerConfig governs child progress bookkeeping.
type LedgerConfig struct {
	PointsPerLevel int
}

// NotificationConfig controls the asynchronous notification dispatcher.
type NotificationConfig struct {
	EmergencyBypassSuppression bool
	Workers                    int
	BufferSize                 int
	MaxRetries                 int
}

// ExportsConfig configures ledger statement files and their download links.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
		LockTimeout:  parseDuration(v.GetString("DB_LOCK_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("ENABLE_CACHE"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	policy := strings.ToLower(strings.TrimSpace(v.GetString("MODERATION_REWRITE_POLICY")))
	if policy != RewritePolicyHold {
		policy = RewritePolicyDeliver
	}
	audioMax := v.GetInt64("MODERATION_AUDIO_MAX_BYTES")
	if audioMax <= 0 {
		audioMax = 10 * 1024 * 1024
	}
	cfg.Moderation = ModerationConfig{
		ClassifierTimeout: parseDuration(v.GetString("MODERATION_CLASSIFIER_TIMEOUT"), 8*time.Second),
		RewritePolicy:     policy,
		Denylist:          splitAndTrim(v.GetString("MODERATION_DENYLIST")),
		AudioMaxBytes:     audioMax,
		AudioStorageDir:   v.GetString("MODERATION_AUDIO_DIR"),
		AudioAllowedMIMEs: splitAndTrim(v.GetString("MODERATION_AUDIO_MIME_TYPES")),
		ListCacheTTL:      parseDuration(v.GetString("MODERATION_LIST_CACHE_TTL"), 30*time.Second),
	}

	cfg.Classifier = ClassifierConfig{
		Provider: strings.ToLower(v.GetString("CLASSIFIER_PROVIDER")),
		APIKey:   v.GetString("GOOGLE_API_KEY"),
		Model:    v.GetString("CLASSIFIER_MODEL"),
		Project:  v.GetString("VERTEX_PROJECT"),
		Location: v.GetString("VERTEX_LOCATION"),
	}

	pointsPerLevel := v.GetInt("LEDGER_POINTS_PER_LEVEL")
	if pointsPerLevel <= 0 {
		pointsPerLevel = 100
	}
	cfg.Ledger = LedgerConfig{PointsPerLevel: pointsPerLevel}

	cfg.Notifications = NotificationConfig{
		EmergencyBypassSuppression: v.GetBool("NOTIFY_EMERGENCY_BYPASS_SUPPRESSION"),
		Workers:                    v.GetInt("NOTIFY_WORKERS"),
		BufferSize:                 v.GetInt("NOTIFY_BUFFER"),
		MaxRetries:                 v.GetInt("NOTIFY_MAX_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "family_trust")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "family-trust-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MODERATION_CLASSIFIER_TIMEOUT", "8s")
	v.SetDefault("MODERATION_REWRITE_POLICY", RewritePolicyDeliver)
	v.SetDefault("MODERATION_DENYLIST", "idiota,burro,estúpido,imbecil,retardado")
	v.SetDefault("MODERATION_AUDIO_MAX_BYTES", 10*1024*1024)
	v.SetDefault("MODERATION_AUDIO_DIR", "./media/audio")
	v.SetDefault("MODERATION_AUDIO_MIME_TYPES", "audio/mpeg,audio/mp4,audio/ogg,audio/wav,audio/webm,audio/aac")
	v.SetDefault("MODERATION_LIST_CACHE_TTL", "30s")

	v.SetDefault("CLASSIFIER_PROVIDER", ClassifierGemini)
	v.SetDefault("GOOGLE_API_KEY", "")
	v.SetDefault("CLASSIFIER_MODEL", "gemini-2.5-flash")
	v.SetDefault("VERTEX_PROJECT", "")
	v.SetDefault("VERTEX_LOCATION", "us-central1")

	v.SetDefault("LEDGER_POINTS_PER_LEVEL", 100)

	v.SetDefault("NOTIFY_EMERGENCY_BYPASS_SUPPRESSION", true)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_BUFFER", 256)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_METRICS", true)
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
