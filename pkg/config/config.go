package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	QR        QRConfig
	RateLimit RateLimitConfig
	Mail      MailConfig
	Storage   StorageConfig
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
	Migrate      bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
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

// QRConfig governs gate-pass QR issuance.
type QRConfig struct {
	DefaultExpiryDays int
	MinExpiryDays     int
	MaxExpiryDays     int
	ImageSize         int
}

// RateLimitConfig holds the per-endpoint limiter windows. The submit limit is
// deliberately strict: students only need a handful of attempts per semester.
type RateLimitConfig struct {
	SubmitPerHour   int
	AcceptPerMinute int
	ResendPerHour   int
	VerifyPerMinute int
	CompletePerMin  int
	LoginPerMinute  int
	KeyPrefix       string
}

// MailConfig configures the transactional mailer and its worker queue.
type MailConfig struct {
	SendGridKey string
	FromName    string
	FromEmail   string
	Workers     int
	MaxRetries  int
	RetryDelay  time.Duration
}

// StorageConfig describes the external object store holding uploaded images.
// Submitted image URLs must live under BaseURL to be accepted.
type StorageConfig struct {
	BaseURL string
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
		if !errors.As(err, &notFound) {
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
		Migrate:      v.GetBool("DB_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
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

	cfg.QR = QRConfig{
		DefaultExpiryDays: v.GetInt("QR_DEFAULT_EXPIRY_DAYS"),
		MinExpiryDays:     v.GetInt("QR_MIN_EXPIRY_DAYS"),
		MaxExpiryDays:     v.GetInt("QR_MAX_EXPIRY_DAYS"),
		ImageSize:         v.GetInt("QR_IMAGE_SIZE"),
	}

	cfg.RateLimit = RateLimitConfig{
		SubmitPerHour:   v.GetInt("RATELIMIT_SUBMIT_PER_HOUR"),
		AcceptPerMinute: v.GetInt("RATELIMIT_ACCEPT_PER_MINUTE"),
		ResendPerHour:   v.GetInt("RATELIMIT_RESEND_PER_HOUR"),
		VerifyPerMinute: v.GetInt("RATELIMIT_VERIFY_PER_MINUTE"),
		CompletePerMin:  v.GetInt("RATELIMIT_COMPLETE_PER_MINUTE"),
		LoginPerMinute:  v.GetInt("RATELIMIT_LOGIN_PER_MINUTE"),
		KeyPrefix:       v.GetString("RATELIMIT_KEY_PREFIX"),
	}

	cfg.Mail = MailConfig{
		SendGridKey: v.GetString("SENDGRID_API_KEY"),
		FromName:    v.GetString("MAIL_FROM_NAME"),
		FromEmail:   v.GetString("MAIL_FROM_EMAIL"),
		Workers:     v.GetInt("MAIL_WORKERS"),
		MaxRetries:  v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("MAIL_RETRY_DELAY"), 30*time.Second),
	}

	cfg.Storage = StorageConfig{
		BaseURL: v.GetString("STORAGE_BASE_URL"),
	}

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
	v.SetDefault("DB_NAME", "campus_idv")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_ISSUER", "campus-idv-api")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("QR_DEFAULT_EXPIRY_DAYS", 7)
	v.SetDefault("QR_MIN_EXPIRY_DAYS", 1)
	v.SetDefault("QR_MAX_EXPIRY_DAYS", 30)
	v.SetDefault("QR_IMAGE_SIZE", 400)

	v.SetDefault("RATELIMIT_SUBMIT_PER_HOUR", 3)
	v.SetDefault("RATELIMIT_ACCEPT_PER_MINUTE", 10)
	v.SetDefault("RATELIMIT_RESEND_PER_HOUR", 20)
	v.SetDefault("RATELIMIT_VERIFY_PER_MINUTE", 30)
	v.SetDefault("RATELIMIT_COMPLETE_PER_MINUTE", 20)
	v.SetDefault("RATELIMIT_LOGIN_PER_MINUTE", 5)
	v.SetDefault("RATELIMIT_KEY_PREFIX", "ratelimit")

	v.SetDefault("MAIL_FROM_NAME", "Office of Student Affairs")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)

	v.SetDefault("STORAGE_BASE_URL", "https://storage.googleapis.com/campus-idv-uploads/")
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
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
