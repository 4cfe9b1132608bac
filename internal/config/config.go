package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Env               string
	HTTPPort          int
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
	CORSOrigins       []string
	TrustedProxies    []string

	DataBackend string

	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBConnectTimeout  time.Duration

	RedisURL string

	JWTSecret string
	JWTExpiry time.Duration

	MediaBackend        string
	MediaBucket         string
	MediaURLTTL         time.Duration
	MaxFileSize         int64
	MaxPresentationSize int64

	S3Region         string
	S3Endpoint       string
	S3ForcePathStyle bool
	S3AccessKey      string
	S3SecretKey      string

	GCSCredentialsFile string

	RateLimitRPS   float64
	RateLimitBurst int
}

const (
	defaultEnv               = "development"
	defaultHTTPPort          = 8080
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second

	defaultDataBackend = "memory"

	defaultDBMaxOpenConns    = 10
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = time.Hour
	defaultDBConnMaxIdleTime = 30 * time.Minute
	defaultDBConnectTimeout  = 30 * time.Second

	defaultJWTExpiry = 24 * time.Hour

	defaultMediaBackend        = "memory"
	defaultMediaURLTTL         = 15 * time.Minute
	defaultMaxFileSize         = 50 << 20
	defaultMaxPresentationSize = 50 << 20

	defaultS3Region = "eu-north-1"

	defaultRateLimitRPS   = 20
	defaultRateLimitBurst = 40
)

// Load reads configuration values from the environment, applying defaults where necessary.
// A .env file in the working directory is read first when present.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Env:               v.GetString("APP_ENV"),
		HTTPPort:          v.GetInt("HTTP_PORT"),
		ShutdownTimeout:   v.GetDuration("SHUTDOWN_TIMEOUT"),
		ReadHeaderTimeout: v.GetDuration("READ_HEADER_TIMEOUT"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		TrustedProxies:    splitList(v.GetString("TRUSTED_PROXIES")),

		DataBackend: strings.ToLower(v.GetString("DATA_BACKEND")),

		DatabaseURL:       v.GetString("DATABASE_URL"),
		DBMaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		DBConnectTimeout:  v.GetDuration("DB_CONNECT_TIMEOUT"),

		RedisURL: v.GetString("REDIS_URL"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTExpiry: v.GetDuration("JWT_EXPIRY"),

		MediaBackend:        strings.ToLower(v.GetString("MEDIA_BACKEND")),
		MediaBucket:         v.GetString("MEDIA_BUCKET"),
		MediaURLTTL:         v.GetDuration("MEDIA_URL_TTL"),
		MaxFileSize:         v.GetInt64("MAX_FILE_SIZE"),
		MaxPresentationSize: v.GetInt64("MAX_PRESENTATION_SIZE"),

		S3Region:         v.GetString("S3_REGION"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
		S3ForcePathStyle: v.GetBool("S3_FORCE_PATH_STYLE"),
		S3AccessKey:      v.GetString("S3_ACCESS_KEY_ID"),
		S3SecretKey:      v.GetString("S3_SECRET_ACCESS_KEY"),

		GCSCredentialsFile: v.GetString("GCS_CREDENTIALS_FILE"),

		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.DataBackend {
	case "memory":
		// no-op
	case "postgres":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when DATA_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown DATA_BACKEND value: %s", cfg.DataBackend)
	}

	switch cfg.MediaBackend {
	case "memory":
	case "s3", "gcs":
		if cfg.MediaBucket == "" {
			return Config{}, fmt.Errorf("MEDIA_BUCKET is required when MEDIA_BACKEND=%s", cfg.MediaBackend)
		}
	default:
		return Config{}, fmt.Errorf("unknown MEDIA_BACKEND value: %s", cfg.MediaBackend)
	}

	if cfg.MaxFileSize <= 0 || cfg.MaxPresentationSize <= 0 {
		return Config{}, fmt.Errorf("MAX_FILE_SIZE and MAX_PRESENTATION_SIZE must be positive")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("HTTP_PORT", defaultHTTPPort)
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownTimeout)
	v.SetDefault("READ_HEADER_TIMEOUT", defaultReadHeaderTimeout)
	v.SetDefault("CORS_ORIGINS", "*")

	v.SetDefault("DATA_BACKEND", defaultDataBackend)

	v.SetDefault("DB_MAX_OPEN_CONNS", defaultDBMaxOpenConns)
	v.SetDefault("DB_MAX_IDLE_CONNS", defaultDBMaxIdleConns)
	v.SetDefault("DB_CONN_MAX_LIFETIME", defaultDBConnMaxLifetime)
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", defaultDBConnMaxIdleTime)
	v.SetDefault("DB_CONNECT_TIMEOUT", defaultDBConnectTimeout)

	v.SetDefault("JWT_EXPIRY", defaultJWTExpiry)

	v.SetDefault("MEDIA_BACKEND", defaultMediaBackend)
	v.SetDefault("MEDIA_URL_TTL", defaultMediaURLTTL)
	v.SetDefault("MAX_FILE_SIZE", defaultMaxFileSize)
	v.SetDefault("MAX_PRESENTATION_SIZE", defaultMaxPresentationSize)

	v.SetDefault("S3_REGION", defaultS3Region)

	v.SetDefault("RATE_LIMIT_RPS", defaultRateLimitRPS)
	v.SetDefault("RATE_LIMIT_BURST", defaultRateLimitBurst)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
