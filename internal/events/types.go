package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventReportCommittedV1 is emitted once per committed call.
const EventReportCommittedV1 = "report.committed.v1"

// ReportCommittedV1 notifies downstream consumers that a report was stored.
type ReportCommittedV1 struct {
	ReportID     string    `json:"report_id"`
	CallID       string    `json:"call_id"`
	SubjectID    string    `json:"subject_id"`
	ReportType   string    `json:"report_type"`
	AnswerCount  int       `json:"answer_count"`
	SelectionIDs []string  `json:"selection_ids,omitempty"`
	CommittedAt  time.Time `json:"committed_at"`
}

// Envelope wraps an event with routing metadata.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	Aggregate  string          `json:"aggregate"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
