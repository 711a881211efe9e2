// Package storage provides durable key/value backends for whole JSON documents.
//
// Every shared resource is persisted as one document under a fixed key, so a
// backend only needs to load and atomically overwrite a blob.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/taikai/pkg/metrics"
)

// ErrNotFound is returned by Load when no document exists for a key.
var ErrNotFound = errors.New("document not found")

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendS3       = "s3"
)

// Backend loads and stores whole documents.
// Save must either replace the document completely or leave the old one in place.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	DataDir string

	SQLitePath  string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	S3Bucket          string
	S3Prefix          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Open connects the configured backend and wraps it with metrics.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	var (
		b   Backend
		err error
	)
	switch name {
	case "", BackendMemory:
		name = BackendMemory
		b = NewMemory()
	case BackendFile:
		b, err = NewFile(cfg.DataDir)
	case BackendSQLite:
		b, err = OpenSQLite(ctx, cfg.SQLitePath)
	case BackendPostgres:
		b, err = OpenPostgres(ctx, cfg.PostgresDSN)
	case BackendRedis:
		b, err = NewRedis(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case BackendMongo:
		b, err = NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
	case BackendS3:
		b, err = NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", name, err)
	}
	return Instrument(name, b), nil
}

// Instrument records latency and outcome of every call to b.
func Instrument(name string, b Backend) Backend {
	return &instrumented{name: name, next: b}
}

type instrumented struct {
	name string
	next Backend
}

func (i *instrumented) Load(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := i.next.Load(ctx, key)
	i.observe("load", start, err)
	return data, err
}

func (i *instrumented) Save(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := i.next.Save(ctx, key, data)
	i.observe("save", start, err)
	return err
}

func (i *instrumented) Close() error { return i.next.Close() }

func (i *instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.RecordStorageOperation(i.name, op, outcome, float64(time.Since(start).Microseconds())/1000)
}
