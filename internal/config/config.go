package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"production"`
	// Storage selects the store backend: "postgres" or "memory".
	Storage    string     `yaml:"storage" env:"STORAGE_BACKEND" env-default:"postgres"`
	PGSQL      PQSQL      `yaml:"pgsql"`
	Redis      Redis      `yaml:"redis"`
	HTTPServer HTTPServer `yaml:"http_server"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true" env-default:"super_secret_key"`
	Hosting    Hosting    `yaml:"hosting"`
	Media      Media      `yaml:"media"`
	Access     Access     `yaml:"access"`
	Sweeper    Sweeper    `yaml:"sweeper"`
	Timeouts   Timeouts   `yaml:"timeouts"`
	RateLimits RateLimits `yaml:"rate_limits"`
}

type HTTPServer struct {
	Address         string `yaml:"address" env:"HTTP_ADDRESS" env-required:"true" env-default:"localhost:8080"`
	// OperatorAddress serves health and cache stats. Keep it off the public network.
	OperatorAddress string `yaml:"operator_address" env:"HTTP_OPERATOR_ADDRESS" env-default:"localhost:9091"`
}

type PQSQL struct {
	// Driver is the database/sql driver name: "postgres" (lib/pq) or "pgx".
	Driver   string `yaml:"driver" env:"PG_DRIVER" env-default:"postgres"`
	Host     string `yaml:"host" env:"PG_HOST" env-required:"true" env-default:"localhost"`
	Port     string `yaml:"port" env:"PG_PORT" env-required:"true" env-default:"5432"`
	User     string `yaml:"user" env:"PG_USER" env-required:"true" env-default:"postgres"`
	Password string `yaml:"password" env:"PG_PASSWORD" env-required:"true" env-default:"password"`
	DBName   string `yaml:"dbname" env:"PG_DBNAME" env-required:"true" env-default:"resume_videos"`
	SSLMode  string `yaml:"sslmode" env:"PG_SSLMODE" env-required:"true" env-default:"disable"`
}

// DSN renders the key/value connection string understood by both lib/pq and pgx.
func (p PQSQL) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Hosting selects and configures the remote video provider.
type Hosting struct {
	Provider string `yaml:"provider" env:"HOSTING_PROVIDER" env-default:"minio"`
	MinIO    MinIO  `yaml:"minio"`
	S3       S3     `yaml:"s3"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY_ID" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_ACCESS_KEY" env-default:"minioadmin"`
	BucketName      string `yaml:"bucket_name" env:"MINIO_BUCKET" env-default:"resume-videos"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

type S3 struct {
	Bucket   string `yaml:"bucket" env:"S3_BUCKET"`
	Region   string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint string `yaml:"endpoint" env:"S3_ENDPOINT"`
	// AccessKeyID and SecretAccessKey are optional; the default AWS credential chain is used when empty.
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
}

type Media struct {
	AllowedMimeTypes []string `yaml:"allowed_mime_types" env:"MEDIA_ALLOWED_MIME_TYPES" env-default:"video/mp4,video/quicktime,video/webm"`
	MaxFileSize      int64    `yaml:"max_file_size" env:"MEDIA_MAX_FILE_SIZE" env-default:"104857600"`
}

type Access struct {
	MaxViews      int           `yaml:"max_views" env:"ACCESS_MAX_VIEWS" env-default:"2"`
	TokenTTL      time.Duration `yaml:"token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"5m"`
	StreamBaseURL string        `yaml:"stream_base_url" env:"ACCESS_STREAM_BASE_URL" env-default:"http://localhost:8080"`
}

type Sweeper struct {
	Interval         time.Duration `yaml:"interval" env:"SWEEPER_INTERVAL" env-default:"1m"`
	BatchSize        int           `yaml:"batch_size" env:"SWEEPER_BATCH_SIZE" env-default:"100"`
	DeletesPerSecond float64       `yaml:"deletes_per_second" env:"SWEEPER_DELETES_PER_SECOND" env-default:"5"`
}

type Timeouts struct {
	Store   time.Duration `yaml:"store" env:"TIMEOUT_STORE" env-default:"3s"`
	Cache   time.Duration `yaml:"cache" env:"TIMEOUT_CACHE" env-default:"2s"`
	Hosting time.Duration `yaml:"hosting" env:"TIMEOUT_HOSTING" env-default:"30s"`
}

type RateLimits struct {
	// AccessPerMinute bounds access-URL requests per employer.
	AccessPerMinute int64 `yaml:"access_per_minute" env:"RATE_LIMIT_ACCESS" env-default:"30"`
	UploadPerMinute int64 `yaml:"upload_per_minute" env:"RATE_LIMIT_UPLOAD" env-default:"5"`
}

// Load reads the config file at path, letting environment variables override it.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file does not exist at path: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Access.MaxViews <= 0 {
		return nil, fmt.Errorf("access.max_views must be positive, got %d", cfg.Access.MaxViews)
	}
	if cfg.Access.TokenTTL <= 0 {
		return nil, fmt.Errorf("access.token_ttl must be positive, got %s", cfg.Access.TokenTTL)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}
