// Package stdout is a development store that prints records instead of
// writing them to a database.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"ima/internal/codec"
	"ima/sink"
)

type driver struct {
	cfg sink.Config

	mu  sync.Mutex // guards out
	out io.Writer
	seq atomic.Uint64
}

// New returns a driver writing to w.
func New(w io.Writer) sink.Adapter { return &driver{out: w} }

func (d *driver) Configure(cfg sink.Config) error {
	d.cfg = cfg
	return nil
}

func (d *driver) Store(ctx context.Context, rec codec.Record) error {
	if err := ctx.Err(); err != nil {
		return &sink.PersistenceError{ID: rec.ID, Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.out, "[sink %06d] %s %s %s %s %s\n",
		d.seq.Add(1), d.cfg.Table, rec.ID, rec.DateString(), rec.Time, rec.Name)
	if err != nil {
		return &sink.PersistenceError{ID: rec.ID, Err: err}
	}
	return nil
}

func (d *driver) Ping(context.Context) error { return nil }

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	sink.Register("stdout", func() sink.Adapter { return New(os.Stdout) })
}
