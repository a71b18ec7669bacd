package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrBusy is returned when SQLite could not obtain its lock within the busy
// timeout.
var ErrBusy = errors.New("store is busy")

// Store hands out request-scoped transactions over the catalog table.
type Store interface {
	WithTx(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the set of catalog operations available inside one transaction.
// Lookups return nil, nil when no row matches.
type Tx interface {
	FindByTriple(ctx context.Context, fields EntryFields) (*Entry, error)
	GetEntry(ctx context.Context, id int64) (*Entry, error)
	InsertEntry(ctx context.Context, fields EntryFields) (int64, error)
	UpdateEntry(ctx context.Context, entry *Entry) error
	DeleteEntry(ctx context.Context, id int64) error
	CountEntries(ctx context.Context) (int, error)
	ListEntries(ctx context.Context, offset, limit int) ([]*Entry, error)
}

type EntryFields struct {
	CreatorName string
	GameName    string
	ReleaseDate string
}

type Entry struct {
	ID int64
	EntryFields
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database named by url, which may be a plain path,
// a file: URI or an SQLAlchemy style sqlite:/// URL, and creates the schema
// if it is missing.
func NewSQLiteStore(url string) (*SQLiteStore, error) {
	path, err := PathFromURL(url)
	if err != nil {
		return nil, err
	}

	memory := isMemory(path)
	if !memory {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if memory {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// PathFromURL turns a DATABASE_URL value into something the sqlite driver
// accepts.
func PathFromURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", errors.New("database url is empty")
	}
	if rest, ok := strings.CutPrefix(url, "sqlite://"); ok {
		// sqlite:///rel.db is relative, sqlite:////abs.db is absolute
		path, ok := strings.CutPrefix(rest, "/")
		if !ok || path == "" {
			return "", fmt.Errorf("database url %q has no path", url)
		}
		return path, nil
	}
	if strings.Contains(url, "://") {
		return "", fmt.Errorf("unsupported database url %q", url)
	}
	return url, nil
}

func isMemory(path string) bool {
	base, _, _ := strings.Cut(path, "?")
	return base == ":memory:" || base == "file::memory:" || strings.Contains(path, "mode=memory")
}

func ensureDir(path string) error {
	base, _, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	dir := filepath.Dir(base)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// dsn appends the pragmas every connection needs. _txlock=immediate makes
// BEGIN take the write lock, so a read followed by a write in the same
// transaction cannot interleave with another writer.
func dsn(path string) string {
	params := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"
	if !isMemory(path) {
		params += "&_pragma=journal_mode(WAL)"
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// WithTx runs fn inside one transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}

	if err = sqlTx.Commit(); err != nil {
		return wrapErr("failed to commit transaction", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) FindByTriple(ctx context.Context, fields EntryFields) (*Entry, error) {
	entry := &Entry{}
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, creator_name, game_name, release_date FROM jogos
		 WHERE creator_name = ? AND game_name = ? AND release_date = ?
		 ORDER BY id LIMIT 1`,
		fields.CreatorName, fields.GameName, fields.ReleaseDate,
	).Scan(&entry.ID, &entry.CreatorName, &entry.GameName, &entry.ReleaseDate)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to find entry", err)
	}
	return entry, nil
}

func (t *sqliteTx) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	entry := &Entry{}
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, creator_name, game_name, release_date FROM jogos WHERE id = ?",
		id,
	).Scan(&entry.ID, &entry.CreatorName, &entry.GameName, &entry.ReleaseDate)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("failed to get entry", err)
	}
	return entry, nil
}

func (t *sqliteTx) InsertEntry(ctx context.Context, fields EntryFields) (int64, error) {
	result, err := t.tx.ExecContext(ctx,
		"INSERT INTO jogos (creator_name, game_name, release_date) VALUES (?, ?, ?)",
		fields.CreatorName, fields.GameName, fields.ReleaseDate,
	)
	if err != nil {
		return 0, wrapErr("failed to insert entry", err)
	}
	return result.LastInsertId()
}

func (t *sqliteTx) UpdateEntry(ctx context.Context, entry *Entry) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE jogos SET creator_name = ?, game_name = ?, release_date = ? WHERE id = ?",
		entry.CreatorName, entry.GameName, entry.ReleaseDate, entry.ID,
	)
	if err != nil {
		return wrapErr("failed to update entry", err)
	}
	return nil
}

func (t *sqliteTx) DeleteEntry(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM jogos WHERE id = ?", id); err != nil {
		return wrapErr("failed to delete entry", err)
	}
	return nil
}

func (t *sqliteTx) CountEntries(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jogos").Scan(&n); err != nil {
		return 0, wrapErr("failed to count entries", err)
	}
	return n, nil
}

func (t *sqliteTx) ListEntries(ctx context.Context, offset, limit int) ([]*Entry, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, creator_name, game_name, release_date FROM jogos ORDER BY id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, wrapErr("failed to list entries", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, min(limit, 64))
	for rows.Next() {
		entry := &Entry{}
		if err := rows.Scan(&entry.ID, &entry.CreatorName, &entry.GameName, &entry.ReleaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("failed to list entries", err)
	}
	return entries, nil
}

func wrapErr(msg string, err error) error {
	if isBusyError(err) {
		return fmt.Errorf("%s: %w: %w", msg, ErrBusy, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func isBusyError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
}
