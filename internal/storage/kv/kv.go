// Package kv provides the device-local key-value stores the storefront
// client keeps its cart, session and pending checkout key in.
package kv

import (
	"context"
	"io"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store. Delete of an absent key succeeds.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	io.Closer
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Driver string `default:"file" usage:"local store driver: memory, file, sqlite or redis"`
	// Path is the document path for file and the database path for sqlite.
	Path string `usage:"local store path"`
	// RedisURL is a redis:// URL for the redis driver.
	RedisURL string `usage:"redis url for the redis driver"`
}

// Open creates the backend named by cfg.Driver. deviceID namespaces keys on
// shared backends.
func Open(ctx context.Context, cfg Config, deviceID string, lg *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverFile, "":
		if cfg.Path == "" {
			return nil, errors.New("file store: path is required")
		}
		return NewFile(cfg.Path, lg), nil
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite store: path is required")
		}
		return OpenSQLite(ctx, cfg.Path)
	case DriverRedis:
		return OpenRedis(ctx, cfg.RedisURL, deviceID)
	default:
		return nil, errors.Errorf("unknown store driver %q", cfg.Driver)
	}
}
