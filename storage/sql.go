package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"golang.org/x/xerrors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"exercisetracker/common"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// MySQL error numbers treated as retryable conflicts.
const (
	mysqlDuplicateEntry = 1062
	mysqlDeadlock       = 1213
)

// Options tunes the connection pool. SQLite ignores the pool settings.
type Options struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	Logger          slog.Logger
}

// SQLStore implements Store on MySQL or SQLite.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	logger slog.Logger
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database, applies pending migrations and returns a
// ready store. The caller owns the store and must Close it.
func Open(ctx context.Context, driver, dsn string, opts Options) (*SQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, xerrors.New("database dsn is required")
	}
	switch driver {
	case DriverMySQL:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, xerrors.Errorf("unsupported database driver %q", driver)
	}

	if err := Migrate(driver, dsn); err != nil {
		return nil, xerrors.Errorf("migrate: %w", err)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, xerrors.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// A single connection serializes every transaction.
		db.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
			db.SetMaxIdleConns(opts.MaxOpenConns)
		}
		if opts.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, xerrors.Errorf("ping %s: %w", driver, err)
	}

	opts.Logger.Debug(ctx, "database ready", slog.F("driver", driver))
	return &SQLStore{db: db, driver: driver, logger: opts.Logger}, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type userRow struct {
	ID       string `db:"id"`
	Username string `db:"username"`
}

func (r userRow) user() common.User {
	return common.User{ID: r.ID, Name: r.Username}
}

type entryRow struct {
	Description     string `db:"description"`
	DurationMinutes int    `db:"duration_minutes"`
	EntryDate       string `db:"entry_date"`
}

func (s *SQLStore) CreateUser(ctx context.Context, user common.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, username) VALUES (?, ?)`, user.ID, user.Name)
	if err != nil {
		return xerrors.Errorf("insert user: %w", classify(err))
	}
	return nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]common.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows, `SELECT id, username FROM users ORDER BY seq`)
	if err != nil {
		return nil, xerrors.Errorf("select users: %w", err)
	}
	users := make([]common.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (s *SQLStore) UserByID(ctx context.Context, id string) (common.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT id, username FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return common.User{}, ErrNotFound
	}
	if err != nil {
		return common.User{}, xerrors.Errorf("select user: %w", err)
	}
	return row.user(), nil
}

func (s *SQLStore) LogByUsername(ctx context.Context, username string) (common.ExerciseLog, error) {
	return loadLog(ctx, s.db, username, "")
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return xerrors.Errorf("begin: %w", classify(err))
	}
	defer func() {
		// Rollback after Commit is a no-op returning sql.ErrTxDone.
		_ = tx.Rollback()
	}()

	if err := fn(&sqlTx{tx: tx, driver: s.driver}); err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.Debug(ctx, "transaction lost a write race", slog.Error(err))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Errorf("commit: %w", classify(err))
	}
	return nil
}

type sqlTx struct {
	tx     *sqlx.Tx
	driver string
}

func (t *sqlTx) LockLog(ctx context.Context, username string) (common.ExerciseLog, error) {
	lock := ""
	if t.driver == DriverMySQL {
		lock = " FOR UPDATE"
	}
	log, err := loadLog(ctx, t.tx, username, lock)
	return log, classify(err)
}

func (t *sqlTx) InsertLog(ctx context.Context, log common.ExerciseLog) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO exercise_logs (username, entry_count) VALUES (?, ?)`,
		log.Username, log.Count)
	if err != nil {
		return xerrors.Errorf("insert log: %w", classify(err))
	}
	for i, ex := range log.Entries {
		if err := insertEntry(ctx, t.tx, log.Username, i, ex); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) AppendEntry(ctx context.Context, username string, count int, ex common.Exercise) error {
	if err := insertEntry(ctx, t.tx, username, count-1, ex); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE exercise_logs SET entry_count = ? WHERE username = ?`, count, username)
	if err != nil {
		return xerrors.Errorf("update log: %w", classify(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func insertEntry(ctx context.Context, tx *sqlx.Tx, username string, position int, ex common.Exercise) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO exercise_entries (username, position, description, duration_minutes, entry_date)
		 VALUES (?, ?, ?, ?, ?)`,
		username, position, ex.Description, ex.DurationMinutes, ex.Date.Format(common.StorageLayout))
	if err != nil {
		return xerrors.Errorf("insert entry %d: %w", position, classify(err))
	}
	return nil
}

func loadLog(ctx context.Context, q sqlx.QueryerContext, username, lock string) (common.ExerciseLog, error) {
	var count int
	err := sqlx.GetContext(ctx, q, &count,
		`SELECT entry_count FROM exercise_logs WHERE username = ?`+lock, username)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ExerciseLog{}, ErrNotFound
	}
	if err != nil {
		return common.ExerciseLog{}, xerrors.Errorf("select log: %w", err)
	}

	var rows []entryRow
	err = sqlx.SelectContext(ctx, q, &rows,
		`SELECT description, duration_minutes, entry_date FROM exercise_entries
		 WHERE username = ? ORDER BY position`, username)
	if err != nil {
		return common.ExerciseLog{}, xerrors.Errorf("select entries: %w", err)
	}

	log := common.ExerciseLog{
		Username: username,
		Count:    count,
		Entries:  make([]common.Exercise, 0, len(rows)),
	}
	for _, r := range rows {
		date, err := common.ParseDate(r.EntryDate)
		if err != nil {
			return common.ExerciseLog{}, xerrors.Errorf("entry date: %w", err)
		}
		log.Entries = append(log.Entries, common.Exercise{
			Description:     r.Description,
			DurationMinutes: r.DurationMinutes,
			Date:            date,
		})
	}
	return log, nil
}

// classify maps driver errors that indicate a lost race onto ErrConflict.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlDeadlock:
			return xerrors.Errorf("mysql %d: %w", myErr.Number, ErrConflict)
		}
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_BUSY:
			return xerrors.Errorf("sqlite %d: %w", liteErr.Code(), ErrConflict)
		}
	}
	return err
}
