// Package calllog records call lifecycle status in Redis. Answers are never written here.
package calllog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Entry is the lifecycle record of one call.
type Entry struct {
	CallID       string     `json:"call_id"`
	SubjectID    string     `json:"subject_id,omitempty"`
	Status       string     `json:"status"`
	State        string     `json:"state,omitempty"`
	ReportType   string     `json:"report_type,omitempty"`
	InvalidCount int        `json:"invalid_count"`
	StartedAt    time.Time  `json:"started_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
}

const (
	keyPrefix = "ivr:call:"
	entryTTL  = 24 * time.Hour

	StatusActive        = "active"
	StatusCommitted     = "committed"
	StatusAbandoned     = "abandoned"
	StatusUnknownCaller = "unknown_caller"
	StatusReviewed      = "reviewed"
	StatusFailed        = "failed"
)

// Store manages call lifecycle entries in Redis.
type Store struct {
	rdb    *redis.Client
	tracer trace.Tracer
}

// NewStore creates a call log backed by Redis.
func NewStore(rdb *redis.Client, tracer trace.Tracer) *Store {
	if tracer == nil {
		tracer = otel.Tracer("report-ivr.internal.calllog")
	}
	return &Store{rdb: rdb, tracer: tracer}
}

func key(callID string) string {
	return keyPrefix + callID
}

// Record upserts the entry, refreshing its TTL.
func (s *Store) Record(ctx context.Context, e Entry) error {
	ctx, span := s.tracer.Start(ctx, "calllog.record", trace.WithAttributes(
		attribute.String("call_id", e.CallID),
		attribute.String("status", e.Status),
	))
	defer span.End()

	if e.CallID == "" {
		return fmt.Errorf("calllog: call_id required")
	}
	data, err := json.Marshal(e)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("calllog: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, key(e.CallID), data, entryTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("calllog: set: %w", err)
	}
	return nil
}

// Get returns the entry for a call, or nil when none exists.
func (s *Store) Get(ctx context.Context, callID string) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "calllog.get")
	defer span.End()

	data, err := s.rdb.Get(ctx, key(callID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("calllog: get: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calllog: unmarshal: %w", err)
	}
	return &e, nil
}
