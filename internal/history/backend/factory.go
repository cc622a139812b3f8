package backend

import (
	"context"
	"errors"
	"fmt"
	"log"

	history "meterbill/internal/history/domain"
	"meterbill/internal/history/infrastructure/file"
	"meterbill/internal/history/infrastructure/memory"
	"meterbill/internal/history/infrastructure/postgres"
	historyredis "meterbill/internal/history/infrastructure/redis"
	"meterbill/internal/history/infrastructure/sqlite"
	"meterbill/internal/observability/metrics"
)

// Type names a history store backend.
type Type string

const (
	MemoryBackend   Type = "memory"
	FileBackend     Type = "file"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
	RedisBackend    Type = "redis"
)

// String implements fmt.Stringer.
func (t Type) String() string {
	return string(t)
}

// IsValid reports whether t is a known backend.
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend, RedisBackend:
		return true
	default:
		return false
	}
}

// Config selects and configures a backend.
type Config struct {
	Type Type

	FilePath    string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string

	// FallbackPath is a JSON file used when the configured backend cannot be opened.
	// Empty disables the fallback.
	FallbackPath string
}

// Result is an opened store.
type Result struct {
	Store    history.Store
	Backend  Type
	Fallback bool
}

// Open creates the configured store. When it fails and FallbackPath is set the
// failure is logged and a file store at FallbackPath is returned instead.
func Open(ctx context.Context, cfg Config, logger *log.Logger) (*Result, error) {
	if logger == nil {
		logger = log.Default()
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}

	store, err := create(ctx, cfg)
	if err == nil {
		logger.Printf("history store opened: backend=%s", cfg.Type)
		metrics.SetStoreBackend(cfg.Type.String(), false)
		return &Result{Store: store, Backend: cfg.Type}, nil
	}
	if cfg.FallbackPath == "" || (cfg.Type == FileBackend && cfg.FilePath == cfg.FallbackPath) {
		return nil, err
	}

	logger.Printf("history store unavailable, using fallback: backend=%s fallback=%s err=%v", cfg.Type, cfg.FallbackPath, err)
	fallback, ferr := file.NewStore(cfg.FallbackPath)
	if ferr != nil {
		return nil, errors.Join(err, fmt.Errorf("fallback store: %w", ferr))
	}
	metrics.SetStoreBackend(FileBackend.String(), true)
	return &Result{Store: fallback, Backend: FileBackend, Fallback: true}, nil
}

func create(ctx context.Context, cfg Config) (history.Store, error) {
	switch cfg.Type {
	case MemoryBackend:
		return memory.NewStore(), nil
	case FileBackend:
		return file.NewStore(cfg.FilePath)
	case SQLiteBackend:
		return sqlite.NewStore(cfg.SQLitePath)
	case PostgresBackend:
		return postgres.Open(ctx, cfg.DatabaseURL)
	case RedisBackend:
		return historyredis.Open(ctx, cfg.RedisAddr, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
