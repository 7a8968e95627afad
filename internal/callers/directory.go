// Package callers resolves the identity behind an inbound call.
package callers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownCaller is returned when no subject matches the caller id.
var ErrUnknownCaller = errors.New("callers: unknown caller")

// Subject is a registered reporter, usually a teacher.
type Subject struct {
	ID   string
	Name string
}

// Directory maps a carrier caller id to a subject.
type Directory interface {
	Resolve(ctx context.Context, callerID string) (Subject, error)
}

// Normalize strips formatting so "+972 (50) 123-4567" and "972501234567" match.
func Normalize(callerID string) string {
	var b strings.Builder
	for _, r := range callerID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MemoryDirectory is a fixed caller table.
type MemoryDirectory struct {
	mu       sync.RWMutex
	subjects map[string]Subject
}

// NewMemoryDirectory builds a directory keyed by caller id.
func NewMemoryDirectory(entries map[string]Subject) *MemoryDirectory {
	d := &MemoryDirectory{subjects: make(map[string]Subject, len(entries))}
	for callerID, s := range entries {
		d.subjects[Normalize(callerID)] = s
	}
	return d
}

// Add registers a caller id.
func (d *MemoryDirectory) Add(callerID string, s Subject) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[Normalize(callerID)] = s
}

func (d *MemoryDirectory) Resolve(_ context.Context, callerID string) (Subject, error) {
	key := Normalize(callerID)
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.subjects[key]
	if !ok || key == "" {
		return Subject{}, ErrUnknownCaller
	}
	return s, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDirectory looks callers up in the subjects table.
type PostgresDirectory struct {
	db rowQuerier
}

// NewPostgresDirectory wraps a pgx pool (or any pgx querier).
func NewPostgresDirectory(db rowQuerier) *PostgresDirectory {
	if db == nil {
		panic("callers: pgx querier required")
	}
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, callerID string) (Subject, error) {
	key := Normalize(callerID)
	if key == "" {
		return Subject{}, ErrUnknownCaller
	}
	query := `
		SELECT id, display_name
		FROM subjects
		WHERE phone_digits = $1 AND active
		LIMIT 1
	`
	var s Subject
	if err := d.db.QueryRow(ctx, query, key).Scan(&s.ID, &s.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subject{}, ErrUnknownCaller
		}
		return Subject{}, fmt.Errorf("callers: resolve: %w", err)
	}
	return s, nil
}
