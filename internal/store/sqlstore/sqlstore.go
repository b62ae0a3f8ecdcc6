package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
)

type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// Store implements store.Repository on top of Postgres or SQLite. Queries are
// written with ? placeholders and rebound for the active driver.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

func NewPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newStore(db, dialectPostgres), nil
}

// NewSQLite opens a database file (or ":memory:") through the pure-Go driver.
// A single connection serializes write transactions.
func NewSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newStore(db, dialectSQLite), nil
}

func newStore(db *sqlx.DB, d dialect) *Store {
	db.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)
	return &Store{db: db, dialect: d}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}

// forUpdate is appended to row reads inside CommitSale. SQLite has no row
// locks; its single connection already excludes other writers.
func (s *Store) forUpdate() string {
	if s.dialect == dialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) beginSale(ctx context.Context) (*sqlx.Tx, error) {
	if s.dialect == dialectPostgres {
		return s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	}
	return s.db.BeginTxx(ctx, nil)
}

func (s *Store) selectIn(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) error {
	expanded, inArgs, err := sqlx.In(query, args...)
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, q, dest, s.rebind(expanded), inArgs...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func expectAffected(res sql.Result, entity string, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.NotFound(entity, id)
	}
	return nil
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return domain.DateOf(*val)
}

func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}
