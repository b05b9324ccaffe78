// Package blobstore is the key-value persistence behind chat sessions.
//
// Values are opaque byte blobs. PutAll writes every key of a call atomically,
// so a reader never observes a session map from one save paired with an
// order list from another.
package blobstore

import (
	"context"
	"fmt"
	"strings"
)

// Store is a small key-value blob store.
type Store interface {
	// GetAll returns the values of the keys that exist. Missing keys are
	// absent from the result.
	GetAll(ctx context.Context, keys ...string) (map[string][]byte, error)

	// PutAll writes all values in one atomic step.
	PutAll(ctx context.Context, values map[string][]byte) error

	Close() error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
	KindMemory   Kind = "memory"
)

// Options configures Open.
type Options struct {
	Kind        Kind
	SQLitePath  string
	DatabaseURL string
	RedisURL    string
}

// Open connects the configured store and applies its migrations.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch Kind(strings.ToLower(strings.TrimSpace(string(opts.Kind)))) {
	case KindSQLite, "":
		store, err = openAs(OpenSQLite(ctx, opts.SQLitePath))
	case KindPostgres:
		store, err = openAs(OpenPostgres(ctx, opts.DatabaseURL))
	case KindRedis:
		store, err = openAs(OpenRedis(ctx, opts.RedisURL))
	case KindMemory:
		store = NewMemory()
	default:
		err = fmt.Errorf("unknown blob store %q (want sqlite, postgres, redis or memory)", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// openAs keeps a typed nil from leaking out as a non-nil Store.
func openAs[S Store](s S, err error) (Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
