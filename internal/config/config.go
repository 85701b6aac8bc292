package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string          `json:"env"`
	Http      HttpConfig      `json:"http"`
	Postgres  PostgresConfig  `json:"postgres"`
	Redis     RedisConfig     `json:"redis"`
	Minio     MinioConfig     `json:"minio"`
	Engine    EngineConfig    `json:"engine"`
	Reaper    ReaperConfig    `json:"reaper"`
	Profiles  ProfilesConfig  `json:"profiles"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	APIKey    string          `json:"api_key,omitempty"`
	Webhook   WebhookConfig   `json:"webhook"`
}

type HttpConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxUploadBytes  int64         `json:"max_upload_bytes"`
}

type PostgresConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	SSLMode  string `json:"ssl_mode"`

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password,omitempty"`
	DB       int           `json:"db"`
	CacheTTL time.Duration `json:"cache_ttl"`
}

type MinioConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key,omitempty"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"use_ssl"`
	PublicURL string `json:"public_url"`
}

// EngineConfig tunes duplicate detection. Defaults reproduce the mobile client:
// 100 m merge radius and a flat 30 minute window reset on every merge.
type EngineConfig struct {
	MergeRadiusM   float64       `json:"merge_radius_m"`
	MergeWindow    time.Duration `json:"merge_window"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	CellSizeDeg    float64       `json:"cell_size_deg"`
	LockTTL        time.Duration `json:"lock_ttl"`
	LockWait       time.Duration `json:"lock_wait"`
	RetryAttempts  int           `json:"retry_attempts"`
	RetryBaseDelay time.Duration `json:"retry_base_delay"`
}

type ReaperConfig struct {
	Schedule string `json:"schedule"`
	Disabled bool   `json:"disabled"`
}

type ProfilesConfig struct {
	Backend             string `json:"backend"`
	FirestoreProject    string `json:"firestore_project"`
	FirestoreCreds      string `json:"-"`
	FirestoreCollection string `json:"firestore_collection"`
}

type RateLimitConfig struct {
	PublicRPS   int `json:"public_rps"`
	PublicBurst int `json:"public_burst"`
	AdminRPS    int `json:"admin_rps"`
	AdminBurst  int `json:"admin_burst"`
}

type WebhookConfig struct {
	URL      string `json:"url"`
	Disabled bool   `json:"disabled"`
}

func LoadConfig() (*Config, error) {
	stdLogger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLogger.Warn(".env load warning", slog.Any("error", err))
	}

	cfg := &Config{
		Env: getEnv("ENV", "local"),
		Http: HttpConfig{
			Port:            getEnv("HTTP_PORT", ":8080"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(getEnvInt("HTTP_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "pg-local"),
			Port:            getEnvInt("POSTGRES_PORT", 5432),
			Database:        getEnv("POSTGRES_DB", "roadwatch"),
			User:            getEnv("POSTGRES_USER", "postgres"),
			Password:        getEnv("POSTGRES_PASSWORD", "postgres"),
			SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
			MaxConns:        20,
			MinConns:        1,
			MaxConnLifetime: 1 * time.Hour,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "redis-local:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 15*time.Second),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "minio-local:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "roadwatch"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
		Engine: EngineConfig{
			MergeRadiusM:   getEnvFloat("ENGINE_MERGE_RADIUS_M", 100),
			MergeWindow:    getEnvDuration("ENGINE_MERGE_WINDOW", 30*time.Minute),
			MaxLifetime:    getEnvDuration("ENGINE_MAX_LIFETIME", 0),
			CellSizeDeg:    getEnvFloat("ENGINE_CELL_SIZE_DEG", 0.01),
			LockTTL:        getEnvDuration("ENGINE_LOCK_TTL", 5*time.Second),
			LockWait:       getEnvDuration("ENGINE_LOCK_WAIT", 2*time.Second),
			RetryAttempts:  getEnvInt("ENGINE_RETRY_ATTEMPTS", 3),
			RetryBaseDelay: getEnvDuration("ENGINE_RETRY_BASE_DELAY", 100*time.Millisecond),
		},
		Reaper: ReaperConfig{
			Schedule: getEnv("REAPER_SCHEDULE", "@every 1m"),
			Disabled: getEnvBool("REAPER_DISABLED", false),
		},
		Profiles: ProfilesConfig{
			Backend:             getEnv("PROFILES_BACKEND", "postgres"),
			FirestoreProject:    getEnv("FIRESTORE_PROJECT_ID", ""),
			FirestoreCreds:      getEnv("FIREBASE_CREDENTIALS", ""),
			FirestoreCollection: getEnv("FIRESTORE_PROFILES_COLLECTION", "users"),
		},
		RateLimit: RateLimitConfig{
			PublicRPS:   getEnvInt("RATE_PUBLIC_RPS", 10),
			PublicBurst: getEnvInt("RATE_PUBLIC_BURST", 20),
			AdminRPS:    getEnvInt("RATE_ADMIN_RPS", 2),
			AdminBurst:  getEnvInt("RATE_ADMIN_BURST", 5),
		},
		APIKey: getEnv("API_KEY", ""),
		Webhook: WebhookConfig{
			URL:      getEnv("WEBHOOK_URL", ""),
			Disabled: getEnvBool("WEBHOOK_DISABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stdLogger.Info("Config loaded successfully",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.Http.Port),
		slog.String("postgres_db", cfg.Postgres.Database),
		slog.String("redis_addr", cfg.Redis.Addr),
		slog.String("minio_bucket", cfg.Minio.Bucket),
		slog.String("profiles_backend", cfg.Profiles.Backend),
		slog.String("webhook_url", cfg.Webhook.URL))

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Http.Port == "" || c.Http.Port[0] != ':' {
		return errors.New("HTTP_PORT must start with ':' like ':8080'")
	}

	if c.Postgres.Host == "" {
		return errors.New("POSTGRES_HOST required")
	}

	if c.APIKey == "" {
		return errors.New("API_KEY required")
	}

	if c.Engine.MergeRadiusM <= 0 {
		return errors.New("ENGINE_MERGE_RADIUS_M must be positive")
	}
	if c.Engine.MergeWindow <= 0 {
		return errors.New("ENGINE_MERGE_WINDOW must be positive")
	}
	if c.Engine.MaxLifetime < 0 {
		return errors.New("ENGINE_MAX_LIFETIME must not be negative")
	}
	if c.Engine.MaxLifetime > 0 && c.Engine.MaxLifetime < c.Engine.MergeWindow {
		return errors.New("ENGINE_MAX_LIFETIME must be at least ENGINE_MERGE_WINDOW")
	}
	if c.Engine.RetryAttempts < 1 {
		return errors.New("ENGINE_RETRY_ATTEMPTS must be at least 1")
	}

	switch c.Profiles.Backend {
	case "postgres":
	case "firestore":
		if c.Profiles.FirestoreProject == "" {
			return errors.New("FIRESTORE_PROJECT_ID required for firestore profiles")
		}
	default:
		return errors.New("PROFILES_BACKEND must be postgres or firestore")
	}

	if c.Webhook.Disabled || c.Webhook.URL == "" {
		slog.Warn("webhooks disabled", slog.Bool("disabled_flag", c.Webhook.Disabled))
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
