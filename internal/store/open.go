package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverKuzu     = "kuzu"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	Path        string // file directory, SQLite file, or Kuzu database directory
	DSN         string // PostgreSQL connection string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// DefaultPath is the store location used when Options.Path is empty.
const DefaultPath = ".blueprint"

// Open constructs the backend named by o.Driver. An empty driver selects the
// file store.
func Open(ctx context.Context, o Options) (Store, error) {
	path := o.Path
	if path == "" {
		path = DefaultPath
	}
	switch o.Driver {
	case DriverMemory:
		return NewMemStore(), nil
	case DriverFile, "":
		return NewFileStore(filepath.Join(path, "projects")), nil
	case DriverSQLite:
		return wrap(OpenSQLite(ctx, filepath.Join(path, "blueprint.db")))
	case DriverPostgres:
		if o.DSN == "" {
			return nil, fmt.Errorf("store: postgres driver requires a dsn")
		}
		return wrap(OpenPostgres(ctx, o.DSN))
	case DriverRedis:
		addr := o.RedisAddr
		if addr == "" {
			addr = "127.0.0.1:6379"
		}
		return wrap(OpenRedis(ctx, addr, o.RedisDB, o.RedisPrefix))
	case DriverKuzu:
		return wrap(OpenKuzu(ctx, filepath.Join(path, "graph")))
	default:
		return nil, fmt.Errorf("store: unknown driver %q", o.Driver)
	}
}

// wrap keeps a failed constructor from yielding a non-nil Store holding a
// nil pointer.
func wrap[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
