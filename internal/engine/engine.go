// Package engine orchestrates lineage resolution: it extracts references
// from object SQL, builds the dependency graph, and persists it through
// the store. Extraction runs in parallel; graph building and persistence
// are single-writer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/lineal-dev/lineal/internal/state"
	"github.com/lineal-dev/lineal/pkg/core"
)

// Engine orchestrates lineage resolution and persistence.
type Engine struct {
	store   *state.SQLiteStore
	logger  *slog.Logger
	workers int
	strict  bool

	retryAttempts uint64
	retryBase     time.Duration
}

// Config holds engine configuration.
type Config struct {
	// StatePath is the path to the SQLite lineage database
	StatePath string
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Workers bounds parallel extraction (default 4)
	Workers int
	// Strict makes ambiguous column references fail the object instead of
	// recording every candidate at reduced confidence
	Strict bool
	// RetryAttempts bounds store transaction retries (default 3)
	RetryAttempts int
	// RetryBase is the initial retry backoff (default 50ms)
	RetryBase time.Duration
}

// New creates an engine, opening and migrating the lineage database.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open lineage store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate lineage store: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = 50 * time.Millisecond
	}

	return &Engine{
		store:         store,
		logger:        logger,
		workers:       workers,
		strict:        cfg.Strict,
		retryAttempts: uint64(attempts),
		retryBase:     base,
	}, nil
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the store for read queries.
func (e *Engine) Store() core.Store {
	return e.store
}

// withRetry runs op, retrying with exponential backoff when it fails with
// a StoreTransactionError. Other errors abort immediately.
func (e *Engine) withRetry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(e.retryAttempts, retry.NewExponential(e.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		var txErr *core.StoreTransactionError
		if errors.As(err, &txErr) {
			e.logger.Warn("store transaction failed, retrying", "op", name, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
}
