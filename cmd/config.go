package main

import (
	"time"

	"uploader/internal/envcfg"
	"uploader/internal/events"
)

type config struct {
	Port        string `env:"API_PORT" default:"8080" validate:"numeric"`
	Frontend    string `env:"DOMAIN_NAME" default:"*"`
	CatalogPath string `env:"CATALOG_PATH"`
	LogLevel    string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Storage storageConfig
	Upload  uploadConfig
	Session sessionConfig
	Redis   redisConfig
	Auth    authorizationConfig
	Events  events.EventConfig

	DatabaseDSN      string `env:"DB_DSN"`
	NATSEndpoint     string `env:"NATS_ENDPOINT"`
	OtelCollectorURL string `env:"OTEL_COLLECTOR_URL"`

	// AuditViaEvents leaves recording to the audit worker; the gateway then only
	// reads upload history.
	AuditViaEvents bool `env:"AUDIT_VIA_EVENTS"`
}

type storageConfig struct {
	Driver          string `env:"STORAGE_DRIVER" default:"minio" validate:"oneof=minio s3 memory"`
	Endpoint        string `env:"S3_ENDPOINT" validate:"required_if=Driver minio"`
	Region          string `env:"S3_REGION" default:"us-east-1"`
	Bucket          string `env:"S3_BUCKET" default:"uploads" validate:"required"`
	AccessKeyID     string `env:"GATEWAY_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"GATEWAY_S3_SECRET_ACCESS_KEY"`
	UseSSL          bool   `env:"S3_USE_SSL"`
	ForcePathStyle  bool   `env:"S3_FORCE_PATH_STYLE"`
}

type uploadConfig struct {
	MaxFileSizeMB    int64    `env:"MAX_FILE_SIZE_MB" default:"50" validate:"gte=0"`
	MaxRequestSizeMB int64    `env:"MAX_REQUEST_SIZE_MB" default:"200" validate:"gte=0"`
	MaxSessionSizeMB int64    `env:"MAX_SESSION_SIZE_MB" default:"200" validate:"gte=0"`
	AllowedMimeTypes []string `env:"ALLOWED_MIME_TYPES"`
	ResetPolicy      string   `env:"RESET_POLICY" default:"on_success" validate:"oneof=on_success always"`
}

type sessionConfig struct {
	TTLMinutes int `env:"SESSION_TTL_MINUTES" default:"30" validate:"gt=0"`
}

type redisConfig struct {
	Addr         string `env:"REDIS_ADDR"`
	Password     string `env:"REDIS_PASSWORD"`
	PoolSize     int    `env:"REDIS_POOL_SIZE" validate:"gte=0"`
	MinIdleConns int    `env:"REDIS_MIN_IDLE_CONNS" validate:"gte=0"`
}

type authorizationConfig struct {
	URL          string `env:"AUTHORIZATION_URL" validate:"omitempty,url"`
	ClientID     string `env:"AUTHORIZATION_CLIENT_ID" validate:"required_with=URL"`
	RequiredRole string `env:"AUTHORIZATION_REQUIRED_ROLE"`
}

func (c config) addr() string {
	return ":" + c.Port
}

func (c config) sessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}

// loadConfig reads the gateway settings from getenv by `env` tag, applying
// `default` tags to whatever is unset.
func loadConfig(getenv func(string) string) (config, error) {
	var cfg config
	if err := envcfg.Load(getenv, &cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}
