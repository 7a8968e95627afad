package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Summary is a past report as narrated to the caller.
type Summary struct {
	ReportType   string
	CommittedAt  time.Time
	AnswerCount  int
	SelectionIDs []string
}

// HistoryReader lists a subject's previous reports.
type HistoryReader interface {
	Recent(ctx context.Context, subjectID string, limit int) ([]Summary, error)
}

// History reads committed reports through database/sql.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

func (h *History) Recent(ctx context.Context, subjectID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
		SELECT report_type, committed_at, answer_count, selection_ids
		FROM committed_reports
		WHERE subject_id = $1
		ORDER BY committed_at DESC
		LIMIT $2
	`
	rows, err := h.db.QueryContext(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("reports: query history: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ReportType, &s.CommittedAt, &s.AnswerCount, pq.Array(&s.SelectionIDs)); err != nil {
			return nil, fmt.Errorf("reports: scan history: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reports: iterate history: %w", err)
	}
	return out, nil
}
