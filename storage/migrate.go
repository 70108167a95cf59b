package storage

import (
	"database/sql"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/xerrors"

	"exercisetracker/storage/migrations"
)

// Migrate brings the schema up to date. It uses a dedicated connection pool
// that is closed before returning, since the migrate drivers take ownership
// of the handle they are given.
func Migrate(driver, dsn string) error {
	src, err := iofs.New(migrations.FS, driver)
	if err != nil {
		return xerrors.Errorf("open %s migrations: %w", driver, err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		_ = src.Close()
		return xerrors.Errorf("open %s: %w", driver, err)
	}

	var target database.Driver
	switch driver {
	case DriverMySQL:
		target, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case DriverSQLite:
		target, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		err = xerrors.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return xerrors.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		_ = src.Close()
		_ = target.Close()
		return xerrors.Errorf("new migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
		_ = db.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return xerrors.Errorf("up: %w", err)
	}
	return nil
}
