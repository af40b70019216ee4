package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"bizreview/internal/core"
	"bizreview/internal/fixedcosts"
	"bizreview/internal/labour"
)

// Dialect selects SQL placeholders and the migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB is a migrated database shared by the SQL stores.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQLite opens (creating when needed) and migrates a SQLite database.
func OpenSQLite(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(DialectSQLite, path)
}

// OpenPostgres connects through pgx and migrates the schema.
func OpenPostgres(databaseURL string) (*DB, error) {
	return open(DialectPostgres, NormalizeDatabaseURL(databaseURL))
}

func open(dialect Dialect, dsn string) (*DB, error) {
	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &DB{db: db, dialect: dialect}, nil
}

func openDB(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectSQLite:
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		return db, nil
	case DialectPostgres:
		config, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		return stdlib.OpenDB(*config), nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}

// NormalizeDatabaseURL rewrites postgresql:// to postgres:// and disables
// TLS unless sslmode is given.
func NormalizeDatabaseURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql:") {
		databaseURL = "postgres" + strings.TrimPrefix(databaseURL, "postgresql")
	}
	if databaseURL != "" && !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL += separator + "sslmode=disable"
	}
	return databaseURL
}

func (d *DB) Dialect() Dialect { return d.dialect }

func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// rebind turns ? placeholders into $n for postgres.
func (d *DB) rebind(query string) string {
	if d.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) loadBody(ctx context.Context, query string, key string) ([]byte, bool, error) {
	var body []byte
	err := d.db.QueryRowContext(ctx, d.rebind(query), key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

const (
	selectDocument = `SELECT body FROM documents WHERE name = ?`
	upsertDocument = `INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	selectSnapshot = `SELECT body FROM snapshots WHERE month_key = ?`
	upsertSnapshot = `INSERT INTO snapshots (month_key, body, computed_at) VALUES (?, ?, ?)
ON CONFLICT (month_key) DO UPDATE SET body = excluded.body, computed_at = excluded.computed_at`
	listSnapshots = `SELECT month_key FROM snapshots ORDER BY month_key`
)

// SQLStore keeps one JSON document per row of the documents table.
type SQLStore[T any] struct {
	db   *DB
	name string
}

func NewSQLStore[T any](db *DB, name string) *SQLStore[T] {
	return &SQLStore[T]{db: db, name: name}
}

func (s *SQLStore[T]) Load(ctx context.Context) (T, error) {
	var out T
	body, found, err := s.db.loadBody(ctx, selectDocument, s.name)
	if err != nil {
		return out, fmt.Errorf("load document %s: %w", s.name, err)
	}
	if !found {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("decode document %s: %w", s.name, err)
	}
	return out, nil
}

func (s *SQLStore[T]) Save(ctx context.Context, value T) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", s.name, err)
	}
	if _, err := s.db.db.ExecContext(ctx, s.db.rebind(upsertDocument), s.name, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("save document %s: %w", s.name, err)
	}
	return nil
}

type SQLSnapshotStore struct {
	db *DB
}

func NewSQLSnapshotStore(db *DB) *SQLSnapshotStore {
	return &SQLSnapshotStore{db: db}
}

func (s *SQLSnapshotStore) LoadSnapshot(ctx context.Context, month core.MonthKey) (core.Groups, bool, error) {
	body, found, err := s.db.loadBody(ctx, selectSnapshot, month.String())
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", month, err)
	}
	if !found {
		return nil, false, nil
	}
	var groups core.Groups
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, false, fmt.Errorf("decode snapshot %s: %w", month, err)
	}
	return groups, true, nil
}

func (s *SQLSnapshotStore) SaveSnapshot(ctx context.Context, month core.MonthKey, groups core.Groups) error {
	body, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", month, err)
	}
	if _, err := s.db.db.ExecContext(ctx, s.db.rebind(upsertSnapshot), month.String(), string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot %s: %w", month, err)
	}
	return nil
}

func (s *SQLSnapshotStore) ListSnapshots(ctx context.Context) ([]core.MonthKey, error) {
	rows, err := s.db.db.QueryContext(ctx, listSnapshots)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan snapshot key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return parseMonthKeys(keys)
}

// NewSQLDocuments binds every document store to db.
func NewSQLDocuments(db *DB) Documents {
	return Documents{
		Overrides:     NewSQLStore[core.OverrideTable](db, DocOverrides),
		Distributions: NewSQLStore[core.DistributionTable](db, DocDistributions),
		Labour:        NewSQLStore[labour.Allocations](db, DocLabour),
		FixedCosts:    NewSQLStore[fixedcosts.Document](db, DocFixedCosts),
		Snapshots:     NewSQLSnapshotStore(db),
	}
}
