// Package postgres stores records through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ima/internal/codec"
	"ima/internal/logging"
	"ima/sink"
)

// Driver builds its pool on first use; the pool itself connects lazily.
type Driver struct {
	cfg sink.Config

	mu   sync.Mutex
	pool *pgxpool.Pool
}

func (d *Driver) Configure(cfg sink.Config) error {
	if cfg.Host == "" {
		return errors.New("postgres-sink: host is required")
	}
	if cfg.Database == "" {
		return errors.New("postgres-sink: database is required")
	}
	if cfg.Table == "" {
		return errors.New("postgres-sink: table is required")
	}
	d.cfg = cfg
	return nil
}

// ConnString renders a postgres:// URL for pgx.
func (d *Driver) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.cfg.User, d.cfg.Password),
		Host:   net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port)),
		Path:   "/" + d.cfg.Database,
	}
	q := url.Values{}
	if d.cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(max(1, int(d.cfg.ConnectTimeout.Seconds()))))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *Driver) open(ctx context.Context) (*pgxpool.Pool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		return d.pool, nil
	}
	pc, err := pgxpool.ParseConfig(d.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if d.cfg.MaxConns > 0 {
		pc.MaxConns = int32(d.cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	d.pool = pool
	return pool, nil
}

func (d *Driver) table() string {
	return pgx.Identifier{d.cfg.Table}.Sanitize()
}

func (d *Driver) insertSQL() string {
	q := "INSERT INTO " + d.table() + " (uuid, data, hora, nome) VALUES ($1, $2, $3, $4)"
	if d.cfg.Deduplicate {
		q += " ON CONFLICT (uuid) DO NOTHING"
	}
	return q
}

func (d *Driver) Store(ctx context.Context, rec codec.Record) error {
	if err := d.store(ctx, rec); err != nil {
		return &sink.PersistenceError{ID: rec.ID, Err: err}
	}
	return nil
}

func (d *Driver) store(ctx context.Context, rec codec.Record) error {
	pool, err := d.open(ctx)
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, d.insertSQL(), rec.ID, rec.Date, rec.Time, rec.Name); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return tx.Commit(ctx)
}

func (d *Driver) Ping(ctx context.Context) error {
	pool, err := d.open(ctx)
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (d *Driver) Migrate(ctx context.Context) error {
	pool, err := d.open(ctx)
	if err != nil {
		return err
	}
	uniq := ""
	if d.cfg.Deduplicate {
		uniq = " UNIQUE"
	}
	ddl := "CREATE TABLE IF NOT EXISTS " + d.table() + " (" +
		"uuid TEXT NOT NULL" + uniq + ", " +
		"data DATE NOT NULL, " +
		"hora TEXT NOT NULL, " +
		"nome TEXT NOT NULL)"
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", d.cfg.Table, err)
	}
	logging.L().Info("postgres-sink: table ready", "table", d.cfg.Table, "deduplicate", d.cfg.Deduplicate)
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

func init() {
	sink.Register("postgres", func() sink.Adapter { return &Driver{} })
}
