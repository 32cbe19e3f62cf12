package sink

import (
	"context"
	"fmt"

	"ima/internal/codec"
)

// Adapter is the common behaviour every store exposes.
type Adapter interface {
	Configure(Config) error
	// Store writes one row for rec in its own transaction. Failures are
	// returned as *PersistenceError.
	Store(ctx context.Context, rec codec.Record) error
	// Ping proves the store is reachable with the configured credentials.
	Ping(ctx context.Context) error
	Close() error // idempotent
}

// Migrator is optional; stores that can create their table implement it and
// the compiler calls it when store.auto_migrate is set.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// PersistenceError wraps any failure to store a record.
type PersistenceError struct {
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store record %q: %v", e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown sink %q", name)
}
