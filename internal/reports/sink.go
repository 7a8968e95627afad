// Package reports persists finished calls and reads them back for narration.
package reports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/report-ivr/internal/events"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// ErrAlreadyCommitted signals a second commit for the same call id. Callers treat it as success.
var ErrAlreadyCommitted = errors.New("reports: already committed")

// Answer is one stored question response.
type Answer struct {
	QuestionKey string `json:"question_key"`
	AnswerType  string `json:"answer_type"`
	Value       string `json:"value"`
	Input       string `json:"input"`
}

// Submission is what a confirmed call hands to the sink.
type Submission struct {
	CallID       string
	SubjectID    string
	ReportType   string
	Answers      []Answer
	SelectionIDs []string
}

// CommittedReport is the durable artifact of a call.
type CommittedReport struct {
	ID           uuid.UUID
	CallID       string
	SubjectID    string
	ReportType   string
	Answers      []Answer
	SelectionIDs []string
	CommittedAt  time.Time
}

// Sink commits a submission at most once per call id.
type Sink interface {
	Commit(ctx context.Context, sub Submission) (CommittedReport, error)
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresSink writes the report, its answers and an outbox event in one transaction.
type PostgresSink struct {
	db     txBeginner
	logger *logging.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewPostgresSink wraps a pgx pool (or any pgx transaction starter).
func NewPostgresSink(db txBeginner, logger *logging.Logger) *PostgresSink {
	if db == nil {
		panic("reports: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgresSink{
		db:     db,
		logger: logger,
		tracer: otel.Tracer("report-ivr.reports"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresSink) Commit(ctx context.Context, sub Submission) (CommittedReport, error) {
	ctx, span := s.tracer.Start(ctx, "reports.commit", trace.WithAttributes(
		attribute.String("call_id", sub.CallID),
		attribute.String("report_type", sub.ReportType),
		attribute.Int("answer_count", len(sub.Answers)),
	))
	defer span.End()

	report, err := s.commit(ctx, sub)
	if err != nil && !errors.Is(err, ErrAlreadyCommitted) {
		span.RecordError(err)
	}
	return report, err
}

func (s *PostgresSink) commit(ctx context.Context, sub Submission) (CommittedReport, error) {
	report := newReport(sub, s.now())

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return CommittedReport{}, fmt.Errorf("reports: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		INSERT INTO committed_reports (id, call_id, subject_id, report_type, selection_ids, answer_count, committed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (call_id) DO NOTHING
	`, report.ID, report.CallID, report.SubjectID, report.ReportType, report.SelectionIDs, len(report.Answers), report.CommittedAt)
	if err != nil {
		return CommittedReport{}, fmt.Errorf("reports: insert report: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return CommittedReport{}, ErrAlreadyCommitted
	}

	for i, a := range report.Answers {
		if err := insertAnswer(ctx, tx, report.ID, i, a); err != nil {
			return CommittedReport{}, err
		}
	}

	if _, err := events.Append(ctx, tx, report.CallID, events.EventReportCommittedV1, events.ReportCommittedV1{
		ReportID:     report.ID.String(),
		CallID:       report.CallID,
		SubjectID:    report.SubjectID,
		ReportType:   report.ReportType,
		AnswerCount:  len(report.Answers),
		SelectionIDs: report.SelectionIDs,
		CommittedAt:  report.CommittedAt,
	}); err != nil {
		return CommittedReport{}, fmt.Errorf("reports: append outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CommittedReport{}, fmt.Errorf("reports: commit tx: %w", err)
	}
	s.logger.Info("report committed", "call_id", report.CallID, "subject_id", report.SubjectID, "report_type", report.ReportType, "report_id", report.ID)
	return report, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAnswer(ctx context.Context, tx execer, reportID uuid.UUID, position int, a Answer) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO report_answers (report_id, position, question_key, answer_type, value, raw_input)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, reportID, position, a.QuestionKey, a.AnswerType, a.Value, a.Input)
	if err != nil {
		return fmt.Errorf("reports: insert answer %s: %w", a.QuestionKey, err)
	}
	return nil
}

func newReport(sub Submission, now time.Time) CommittedReport {
	ids := sub.SelectionIDs
	if ids == nil {
		ids = []string{}
	}
	return CommittedReport{
		ID:           uuid.New(),
		CallID:       sub.CallID,
		SubjectID:    sub.SubjectID,
		ReportType:   sub.ReportType,
		Answers:      append([]Answer(nil), sub.Answers...),
		SelectionIDs: append([]string{}, ids...),
		CommittedAt:  now,
	}
}

// MemorySink keeps reports in memory, keyed by call id.
type MemorySink struct {
	mu      sync.Mutex
	reports map[string]CommittedReport
	order   []string
	now     func() time.Time
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		reports: make(map[string]CommittedReport),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemorySink) Commit(_ context.Context, sub Submission) (CommittedReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[sub.CallID]; ok {
		return CommittedReport{}, ErrAlreadyCommitted
	}
	report := newReport(sub, s.now())
	s.reports[sub.CallID] = report
	s.order = append(s.order, sub.CallID)
	return report, nil
}

// WithClock overrides the commit timestamp source.
func (s *MemorySink) WithClock(now func() time.Time) *MemorySink {
	if now != nil {
		s.now = now
	}
	return s
}

// Reports returns committed reports in commit order.
func (s *MemorySink) Reports() []CommittedReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommittedReport, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.reports[id])
	}
	return out
}

// Recent implements HistoryReader for the subject's latest reports, newest first.
func (s *MemorySink) Recent(_ context.Context, subjectID string, limit int) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Summary
	for i := len(s.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r := s.reports[s.order[i]]
		if r.SubjectID != subjectID {
			continue
		}
		out = append(out, Summary{
			ReportType:   r.ReportType,
			CommittedAt:  r.CommittedAt,
			AnswerCount:  len(r.Answers),
			SelectionIDs: append([]string(nil), r.SelectionIDs...),
		})
	}
	return out, nil
}
