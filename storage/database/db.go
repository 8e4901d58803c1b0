// Package database opens the PostgreSQL pool, bootstraps the app role and
// database, and runs the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"net/url"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ecolehub/backend/core"
	appfs "github.com/ecolehub/backend/fs"
)

const (
	maintenanceDB   = "postgres"
	pingAttempts    = 30
	pingBackoffStep = 100 * time.Millisecond
)

// dsn builds the connection URL for dbName, as the admin role when asked and configured.
func dsn(dbName string, admin bool, dbc core.DatabaseConfig) string {
	creds := url.UserPassword(dbc.User, dbc.Password)
	if admin && dbc.AdminUser != "" {
		creds = url.UserPassword(dbc.AdminUser, dbc.AdminPassword)
	}
	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if dbc.DisableTLS {
		q.Set("sslmode", "disable")
	}
	u := url.URL{Scheme: dbc.Engine, User: creds, Host: dbc.Address(), Path: dbName, RawQuery: q.Encode()}
	return u.String()
}

// Open returns the app's connection pool. It does not connect.
func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(conf.Database.Name, false, conf.Database))
}

// NewGorm wraps an opened connection pool; repositories go through gorm only.
func NewGorm(db *sql.DB, conf *core.Config) (*gorm.DB, error) {
	level := gormlogger.Silent
	if conf.Debug {
		level = gormlogger.Info
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(level),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return core.NowFunc().UTC() },
	})
	return gdb, errors.Wrap(err, "opening gorm")
}

// waitReady pings db until it answers, backing off a little more after each failure.
func waitReady(ctx context.Context, db *sql.DB) error {
	var err error
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * pingBackoffStep):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func exists(ctx context.Context, db *sql.DB, query, name string) (bool, error) {
	var found bool
	err := db.QueryRowContext(ctx, query, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return found, err
}

func ensureAppRole(ctx context.Context, db *sql.DB, dbc core.DatabaseConfig) error {
	if dbc.User == "" {
		return nil
	}
	found, err := exists(ctx, db, "SELECT true FROM pg_roles WHERE rolname = $1", dbc.User)
	if err != nil || found {
		return errors.Wrap(err, "checking app role")
	}
	stmt := "CREATE ROLE " + pq.QuoteIdentifier(dbc.User) + " LOGIN CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(dbc.Password)
	_, err = db.ExecContext(ctx, stmt)
	return errors.Wrap(err, "creating app role")
}

func ensureDatabase(ctx context.Context, db *sql.DB, name string) error {
	found, err := exists(ctx, db, "SELECT true FROM pg_database WHERE datname = $1", name)
	if err != nil || found {
		return errors.Wrap(err, "checking database")
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// CreateIfNotExist creates the app role as admin, then the app database as that role.
func CreateIfNotExist(conf *core.Config) error {
	ctx := context.Background()
	dbc := conf.Database

	adminDB, err := sql.Open(dbc.Engine, dsn(maintenanceDB, true, dbc))
	if err != nil {
		return errors.Wrap(err, "opening database as admin")
	}
	defer func() { _ = adminDB.Close() }()
	if err = waitReady(ctx, adminDB); err != nil {
		return err
	}
	if err = ensureAppRole(ctx, adminDB, dbc); err != nil {
		return err
	}

	appDB, err := sql.Open(dbc.Engine, dsn(maintenanceDB, false, dbc))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return ensureDatabase(ctx, appDB, dbc.Name)
}

// Migrate runs a goose command ("up", "down", "redo", "status", ...) with the embedded migrations.
func Migrate(db *sql.DB, command string) error {
	if command == "" {
		command = "up"
	}
	return errors.Wrapf(goose.RunFS(command, db, appfs.FS, "migrations"), "migrating database (%s)", command)
}
