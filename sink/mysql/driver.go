// Package mysql stores records through gorm on MySQL/MariaDB.
package mysql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	mysqlgorm "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ima/internal/codec"
	"ima/internal/logging"
	"ima/sink"
)

type row struct {
	UUID string    `gorm:"column:uuid"`
	Data time.Time `gorm:"column:data;type:date"`
	Hora string    `gorm:"column:hora"`
	Nome string    `gorm:"column:nome"`
}

// Driver opens its pool on first use. Each Store runs in its own transaction.
type Driver struct {
	cfg sink.Config

	mu sync.Mutex
	db *gorm.DB
}

func (d *Driver) Configure(cfg sink.Config) error {
	if cfg.Host == "" {
		return errors.New("mysql-sink: host is required")
	}
	if cfg.Database == "" {
		return errors.New("mysql-sink: database is required")
	}
	if cfg.Table == "" {
		return errors.New("mysql-sink: table is required")
	}
	d.cfg = cfg
	return nil
}

// DSN renders the go-sql-driver connection string.
func (d *Driver) DSN() string {
	mc := gomysql.NewConfig()
	mc.User = d.cfg.User
	mc.Passwd = d.cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	mc.DBName = d.cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = d.cfg.ConnectTimeout
	return mc.FormatDSN()
}

func (d *Driver) open() (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return d.db, nil
	}

	db, err := gorm.Open(mysqlgorm.New(mysqlgorm.Config{
		DSN:                       d.DSN(),
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Silent),
		TranslateError:       true,
		DisableAutomaticPing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if d.cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(d.cfg.MaxConns)
	}
	d.db = db
	return db, nil
}

func (d *Driver) Store(ctx context.Context, rec codec.Record) error {
	db, err := d.open()
	if err != nil {
		return &sink.PersistenceError{ID: rec.ID, Err: err}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Table(d.cfg.Table)
		if d.cfg.Deduplicate {
			q = q.Clauses(clause.OnConflict{DoNothing: true})
		}
		return q.Create(&row{
			UUID: rec.ID,
			Data: rec.Date,
			Hora: rec.Time,
			Nome: rec.Name,
		}).Error
	})
	if err != nil {
		return &sink.PersistenceError{ID: rec.ID, Err: err}
	}
	return nil
}

func (d *Driver) Ping(ctx context.Context) error {
	db, err := d.open()
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Migrate creates the table if it is missing. With Deduplicate the uuid
// column carries a unique key.
func (d *Driver) Migrate(ctx context.Context) error {
	db, err := d.open()
	if err != nil {
		return err
	}
	uniq := ""
	if d.cfg.Deduplicate {
		uniq = ", UNIQUE KEY uq_uuid (uuid)"
	}
	ddl := "CREATE TABLE IF NOT EXISTS ? (" +
		"uuid VARCHAR(64) NOT NULL, " +
		"data DATE NOT NULL, " +
		"hora VARCHAR(16) NOT NULL, " +
		"nome VARCHAR(255) NOT NULL" + uniq + ")"
	if err := db.WithContext(ctx).Exec(ddl, clause.Table{Name: d.cfg.Table}).Error; err != nil {
		return fmt.Errorf("migrate %s: %w", d.cfg.Table, err)
	}
	logging.L().Info("mysql-sink: table ready", "table", d.cfg.Table, "deduplicate", d.cfg.Deduplicate)
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func init() {
	sink.Register("mysql", func() sink.Adapter { return &Driver{} })
}
