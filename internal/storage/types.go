package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (one JSON document per key)
//   - "sqlite": SQLite database file
//   - "memory": ephemeral in-process store (tests, dry runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the whole-document persistence API.
//
// Get decodes the document at key into out and reports whether it existed.
// Put replaces the document at key (create-on-first-use).
// Keys lists stored keys with the given prefix, in unspecified order.
type Store interface {
	Get(ctx context.Context, key string, out any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
