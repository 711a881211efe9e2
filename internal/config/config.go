// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case, shared by the YAML file and TAIKAI_ env vars.
// - New returns the defaults; Load layers file and env on top and validates.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/taikai/internal/adapters/storage"
	"github.com/okian/taikai/internal/domain/scoring"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3000".
	Addr string `koanf:"addr"`

	// StaticDir, when set, is served at / for the browser front end.
	StaticDir string `koanf:"static_dir"`

	// QueueSize bounds pending mutations per resource.
	QueueSize int `koanf:"queue_size"`

	// PublishBuffer bounds notifications waiting for fan-out.
	PublishBuffer int `koanf:"publish_buffer"`

	// SubscriberBuffer bounds frames queued for one websocket client.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// AutoRecompute recomputes the roster after every accepted ledger change.
	AutoRecompute bool `koanf:"auto_recompute"`

	// UnknownTeamPolicy is one of discard, create, reject.
	UnknownTeamPolicy string `koanf:"unknown_team_policy"`

	// CORSOrigins lists allowed origins for the API and websocket. "*" allows all.
	CORSOrigins []string `koanf:"cors_origins"`

	// StorageBackend is one of memory, file, sqlite, postgres, redis, mongo, s3.
	StorageBackend string `koanf:"storage_backend"`

	DataDir    string `koanf:"data_dir"`
	SQLitePath string `koanf:"sqlite_path"`

	PostgresDSN string `koanf:"postgres_dsn"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisPrefix   string `koanf:"redis_prefix"`

	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`

	S3Bucket          string `koanf:"s3_bucket"`
	S3Prefix          string `koanf:"s3_prefix"`
	S3Region          string `koanf:"s3_region"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":3000",
		QueueSize:         1024,
		PublishBuffer:     256,
		SubscriberBuffer:  64,
		AutoRecompute:     true,
		UnknownTeamPolicy: string(scoring.PolicyDiscard),
		StorageBackend:    storage.BackendFile,
		DataDir:           "data",
		SQLitePath:        "taikai.db",
		RedisPrefix:       "taikai:",
		MongoDatabase:     "taikai",
		MongoCollection:   "documents",
		S3Prefix:          "taikai",
		S3Region:          "us-east-1",
	}
}

// Policy returns the parsed unknown-team policy.
func (c *Config) Policy() scoring.Policy {
	p, err := scoring.ParsePolicy(c.UnknownTeamPolicy)
	if err != nil {
		return scoring.PolicyDiscard
	}
	return p
}

// Storage returns the backend settings.
func (c *Config) Storage() storage.Config {
	return storage.Config{
		Backend:           c.StorageBackend,
		DataDir:           c.DataDir,
		SQLitePath:        c.SQLitePath,
		PostgresDSN:       c.PostgresDSN,
		RedisAddr:         c.RedisAddr,
		RedisPassword:     c.RedisPassword,
		RedisDB:           c.RedisDB,
		RedisPrefix:       c.RedisPrefix,
		MongoURI:          c.MongoURI,
		MongoDatabase:     c.MongoDatabase,
		MongoCollection:   c.MongoCollection,
		S3Bucket:          c.S3Bucket,
		S3Prefix:          c.S3Prefix,
		S3Region:          c.S3Region,
		S3Endpoint:        c.S3Endpoint,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return invalid("addr must not be empty")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if _, err := scoring.ParsePolicy(c.UnknownTeamPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.QueueSize <= 0 || c.PublishBuffer <= 0 || c.SubscriberBuffer <= 0 {
		return invalid("queue_size, publish_buffer and subscriber_buffer must be positive")
	}

	switch strings.ToLower(c.StorageBackend) {
	case storage.BackendMemory:
	case storage.BackendFile:
		return require(c.DataDir, "data_dir")
	case storage.BackendSQLite:
		return require(c.SQLitePath, "sqlite_path")
	case storage.BackendPostgres:
		return require(c.PostgresDSN, "postgres_dsn")
	case storage.BackendRedis:
		return require(c.RedisAddr, "redis_addr")
	case storage.BackendMongo:
		return require(c.MongoURI, "mongo_uri")
	case storage.BackendS3:
		return require(c.S3Bucket, "s3_bucket")
	default:
		return invalid("unknown storage_backend %q", c.StorageBackend)
	}
	return nil
}

func require(v, key string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s is required for this storage_backend", key)
	}
	return nil
}
