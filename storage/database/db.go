package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/vigilsat/vigil/core"
	appfs "github.com/vigilsat/vigil/fs"
)

const (
	driverName    = "mysql"
	migrationsDir = "migrations"
)

func dsn(dbName string, conf *core.Config) string {
	cfg := mysql.NewConfig()
	cfg.User = conf.Database.User
	cfg.Passwd = conf.Database.Password
	cfg.Net = "tcp"
	cfg.Addr = conf.Database.Address()
	cfg.DBName = dbName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true // goose migrations hold several statements
	cfg.ClientFoundRows = true // UPDATE reports matched rows, not changed rows
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

func open(dbName string, conf *core.Config) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn(dbName, conf))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(conf.Database.MaxOpenConns)
	db.SetMaxIdleConns(conf.Database.MaxIdleConns)
	db.SetConnMaxLifetime(conf.Database.ConnMaxLifetime)
	return db, nil
}

// Open opens the application database pool and waits for it to answer.
func Open(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

// CreateIfNotExist creates the application database when it does not exist yet.
func CreateIfNotExist(ctx context.Context, conf *core.Config) error {
	db, err := open("", conf)
	if err != nil {
		return errors.Wrap(err, "opening server connection")
	}
	defer func() { _ = db.Close() }()

	if err = ping(ctx, db.DB); err != nil {
		return err
	}
	q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", conf.Database.Name)
	if _, err = db.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	return RunMigrations(ctx, db, "up")
}

// RunMigrations runs a goose command (up, down, status, version, ...) against the embedded migrations.
func RunMigrations(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(driverName); err != nil {
		return errors.Wrap(err, "setting goose dialect")
	}
	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return errors.Wrapf(err, "running migrations %q", command)
	}
	return nil
}
