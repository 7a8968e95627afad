package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads prompt texts from the text_templates table.
type PostgresSource struct {
	db rowsQuerier
}

// NewPostgresSource wraps a pgx pool (or any pgx querier).
func NewPostgresSource(db rowsQuerier) *PostgresSource {
	if db == nil {
		panic("catalog: pgx querier required")
	}
	return &PostgresSource{db: db}
}

// Texts returns every stored key and body.
func (s *PostgresSource) Texts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, body FROM text_templates ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("catalog: query templates: %w", err)
	}
	defer rows.Close()

	texts := make(map[string]string)
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("catalog: scan template: %w", err)
		}
		texts[key] = body
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate templates: %w", err)
	}
	return texts, nil
}

// Load builds a catalog from the built-in defaults overlaid with stored texts.
func Load(ctx context.Context, src *PostgresSource) (*Catalog, error) {
	c := New(DefaultTexts())
	if src == nil {
		return c, nil
	}
	texts, err := src.Texts(ctx)
	if err != nil {
		return nil, err
	}
	c.Merge(texts)
	return c, nil
}
