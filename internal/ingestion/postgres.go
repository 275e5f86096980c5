package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// PostgresSource streams title and plot columns from a table ordered by its
// id column, so repeated builds assign the same doc ids.
type PostgresSource struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
}

func NewPostgresSource(db *sql.DB, table string) *PostgresSource {
	return &PostgresSource{
		db:     db,
		table:  table,
		logger: slog.Default().With("component", "postgres-source", "table", table),
	}
}

func (s *PostgresSource) Name() string { return "postgres:" + s.table }

func (s *PostgresSource) query() string {
	return fmt.Sprintf(
		"SELECT COALESCE(title, ''), COALESCE(plot, '') FROM %s ORDER BY id",
		pq.QuoteIdentifier(s.table),
	)
}

func (s *PostgresSource) Records(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.QueryContext(ctx, s.query())
	if err != nil {
		return fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var n int
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Title, &rec.Plot); err != nil {
			return fmt.Errorf("scanning %s row %d: %w", s.table, n, err)
		}
		n++
		if err := fn(rec); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating %s: %w", s.table, err)
	}
	s.logger.Info("postgres source drained", "rows", n)
	return nil
}
