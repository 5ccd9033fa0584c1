// Package persistence opens the bun database for a DSN and applies the
// embedded migrations.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"
)

// Dialect names
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options tune how the database is opened
type Options struct {
	Debug       bool
	PingTimeout time.Duration
}

// Option mutates Options
type Option func(*Options)

// WithDebug logs every query through bundebug
func WithDebug(debug bool) Option {
	return func(o *Options) {
		o.Debug = debug
	}
}

// WithPingTimeout bounds the initial connectivity check
func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.PingTimeout = d
	}
}

// DialectFor returns the dialect name a DSN maps to
func DialectFor(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to dsn: postgres URLs go through pgx, anything else is a
// SQLite file or memory DSN
func Open(ctx context.Context, dsn string, opts ...Option) (*bun.DB, error) {
	options := Options{PingTimeout: 5 * time.Second}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	var db *bun.DB
	switch DialectFor(dsn) {
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres connection")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite connection")
		}
		if strings.Contains(dsn, ":memory:") {
			sqldb.SetMaxOpenConns(1)
		}
		db = bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
	}

	if options.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	pingCtx, cancel := context.WithTimeout(ctx, options.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "database is not reachable")
	}

	return db, nil
}

// Migrate applies every pending migration found in fsys
func Migrate(ctx context.Context, db *bun.DB, fsys fs.FS, logger glog.Logger) error {
	migrations := migrate.NewMigrations()
	if err := migrations.Discover(fsys); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize migrations table")
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	if logger == nil {
		return nil
	}

	if group.IsZero() {
		logger.Debug("database schema up to date")
		return nil
	}

	logger.Info("database migrated", "group", fmt.Sprint(group))
	return nil
}
