// Package postgres implements the catalog, membership and circulation
// repositories on PostgreSQL through sqlx, with queries built by goqu.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"libraryservice/internal/catalog"
	"libraryservice/internal/circulation"
	"libraryservice/internal/membership"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var schema string

const (
	tableBooks         = "books"
	tableHolders       = "holders"
	tableRentals       = "rentals"
	tableSubscriptions = "subscriptions"
)

var dialect = goqu.Dialect("postgres")

var (
	_ catalog.Repository    = (*Store)(nil)
	_ membership.Repository = (*Store)(nil)
	_ circulation.Store     = (*Store)(nil)
)

// Store serves every repository from one connection pool.
type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
	tracer      trace.Tracer
}

// Open connects with driverName ("postgres" for lib/pq, "pgx" for the pgx
// stdlib driver) and verifies the connection.
func Open(ctx context.Context, driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables and indexes when they are missing.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// NewStore wraps db. A positive lockTimeout is applied to every circulation
// transaction with SET LOCAL lock_timeout.
func NewStore(db *sqlx.DB, lockTimeout time.Duration) *Store {
	return &Store{
		db:          db,
		lockTimeout: lockTimeout,
		tracer:      otel.Tracer("libraryservice/storage/postgres"),
	}
}

func (s *Store) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(attrs, attribute.String("db.system", "postgresql"))...),
	)
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func get(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

func exec(ctx context.Context, e sqlx.ExecerContext, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// sqlState extracts the SQLSTATE code from either driver's error type.
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == pgerrcode.UniqueViolation
}

func isLockNotAvailable(err error) bool {
	return sqlState(err) == pgerrcode.LockNotAvailable
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func record(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
	}
	return err
}
