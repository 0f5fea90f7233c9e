package corpus

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"ats-scorer-go/internal/ats"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier runs a query; *pgxpool.Pool and *pgx.Conn satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the corpus from a table with a file name column and
// a keywords column holding the same list literal as the CSV.
type PostgresSource struct {
	DB             Querier
	Table          string
	FileColumn     string
	KeywordsColumn string
}

var _ ats.LexiconSource = PostgresSource{}

func (s PostgresSource) Key() string {
	return fmt.Sprintf("postgres:%s", s.Table)
}

// Query returns the SELECT statement for the corpus table.
func (s PostgresSource) Query() (string, []any, error) {
	return sq.Select(s.FileColumn, s.KeywordsColumn).
		From(s.Table).
		Where(sq.NotEq{s.KeywordsColumn: nil}).
		OrderBy(s.FileColumn).
		PlaceholderFormat(sq.Dollar).
		ToSql()
}

// Open renders the table as corpus CSV so the regular parser applies.
func (s PostgresSource) Open(ctx context.Context) (io.ReadCloser, error) {
	query, args, err := s.Query()
	if err != nil {
		return nil, fmt.Errorf("build corpus query: %w", err)
	}
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query corpus table %s: %w", s.Table, err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"file_name", "keywords"}); err != nil {
		return nil, err
	}
	for rows.Next() {
		var file, keywords string
		if err := rows.Scan(&file, &keywords); err != nil {
			return nil, fmt.Errorf("scan corpus row: %w", err)
		}
		if err := cw.Write([]string{file, keywords}); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read corpus table %s: %w", s.Table, err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

// NewPostgresPool connects to dsn.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}
