// Package calls routes carrier events to live dialog sessions.
package calls

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/report-ivr/internal/callers"
	"github.com/wolfman30/report-ivr/internal/calllog"
	"github.com/wolfman30/report-ivr/internal/catalog"
	"github.com/wolfman30/report-ivr/internal/dialog"
	"github.com/wolfman30/report-ivr/internal/observability/metrics"
	"github.com/wolfman30/report-ivr/internal/questions"
	"github.com/wolfman30/report-ivr/internal/reports"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

// ErrInvalidEvent is returned for events the router cannot interpret.
var ErrInvalidEvent = errors.New("calls: invalid event")

// fallbackText is spoken when even the system_error template cannot be rendered.
const fallbackText = "We are sorry, a technical problem occurred. Goodbye."

// EventType is the kind of carrier event.
type EventType string

const (
	EventCallStarted EventType = "call_started"
	EventDigits      EventType = "digits"
	EventHangUp      EventType = "hang_up"
)

// Event is one inbound carrier notification.
type Event struct {
	CallID     string
	EventID    string
	Type       EventType
	Digits     string
	CallerID   string
	OccurredAt time.Time
}

// Response is what the carrier should play next.
type Response struct {
	CallID    string `json:"call_id"`
	Prompt    string `json:"prompt"`
	MaxDigits int    `json:"max_digits"`
	Hangup    bool   `json:"hangup"`
}

// CallLog receives lifecycle updates. Failures are logged only.
type CallLog interface {
	Record(ctx context.Context, e calllog.Entry) error
}

// Config wires the router's collaborators.
type Config struct {
	Machine            *dialog.Machine
	Catalog            *catalog.Catalog
	Questions          questions.Provider
	Callers            callers.Directory
	Sink               reports.Sink
	History            reports.HistoryReader
	CallLog            CallLog
	Metrics            *metrics.CallMetrics
	Logger             *logging.Logger
	IdleTimeout        time.Duration
	EndedRetention     time.Duration
	MaxInvalidAttempts int
	HistoryLimit       int
	Location           *time.Location
	Now                func() time.Time
}

type entry struct {
	mu        sync.Mutex
	created   time.Time
	session   *dialog.Session
	lastEvent string
	lastResp  Response
	closed    bool
}

type tombstone struct {
	closingKey string
	endedAt    time.Time
}

// Router owns the live-session registry. The registry lock is never held while an entry lock is
// being acquired; an entry lock may be held while taking the registry lock.
type Router struct {
	cfg    Config
	logger *logging.Logger

	mu      sync.Mutex
	entries map[string]*entry
	ended   map[string]tombstone
}

// NewRouter validates the configuration and applies defaults.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Catalog == nil || cfg.Questions == nil || cfg.Callers == nil || cfg.Sink == nil {
		return nil, fmt.Errorf("calls: catalog, questions, callers and sink are required")
	}
	if cfg.Machine == nil {
		cfg.Machine = dialog.NewMachine(dialog.Config{})
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 90 * time.Second
	}
	if cfg.EndedRetention <= 0 {
		cfg.EndedRetention = 15 * time.Minute
	}
	if cfg.MaxInvalidAttempts <= 0 {
		cfg.MaxInvalidAttempts = 8
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 3
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		cfg:     cfg,
		logger:  cfg.Logger,
		entries: make(map[string]*entry),
		ended:   make(map[string]tombstone),
	}, nil
}

// Active returns the number of live sessions.
func (r *Router) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// OnCallEvent processes one event. Events for the same call are serialized; other calls proceed in parallel.
func (r *Router) OnCallEvent(ctx context.Context, ev Event) (Response, error) {
	ev.CallID = strings.TrimSpace(ev.CallID)
	if ev.CallID == "" {
		return Response{}, fmt.Errorf("%w: call_id required", ErrInvalidEvent)
	}
	switch ev.Type {
	case EventCallStarted, EventDigits, EventHangUp:
	default:
		return Response{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, ev.Type)
	}

	now := r.cfg.Now()
	r.mu.Lock()
	if tomb, ok := r.ended[ev.CallID]; ok && now.Sub(tomb.endedAt) < r.cfg.EndedRetention {
		r.mu.Unlock()
		r.cfg.Metrics.ObserveEvent(string(ev.Type), "ended")
		return r.closing(ev.CallID, tomb.closingKey), nil
	}
	e, ok := r.entries[ev.CallID]
	if !ok {
		if ev.Type == EventHangUp {
			r.mu.Unlock()
			r.cfg.Metrics.ObserveEvent(string(ev.Type), "ignored")
			return Response{CallID: ev.CallID, Hangup: true}, nil
		}
		e = &entry{created: now}
		r.entries[ev.CallID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return r.closingFor(ev.CallID), nil
	}
	if ev.EventID != "" && ev.EventID == e.lastEvent {
		r.cfg.Metrics.ObserveEvent(string(ev.Type), "duplicate")
		return e.lastResp, nil
	}

	resp := r.process(ctx, e, ev)
	e.lastEvent = ev.EventID
	e.lastResp = resp
	return resp, nil
}

// process runs one event against an entry whose lock is held. A panic ends only this call.
func (r *Router) process(ctx context.Context, e *entry, ev Event) (resp Response) {
	log := r.logger.WithCall(ev.CallID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("call processing panicked", "panic", rec, "stack", string(debug.Stack()))
			resp = r.fail(ctx, e, ev.CallID, log)
		}
	}()

	if e.session == nil {
		return r.start(ctx, e, ev, log)
	}

	s := e.session
	s.LastActivity = r.cfg.Now()

	var reply dialog.Reply
	switch ev.Type {
	case EventCallStarted:
		reply = r.cfg.Machine.Repeat(s)
	case EventHangUp:
		reply = r.cfg.Machine.Advance(s, dialog.Input{Kind: dialog.InputHangUp})
	default:
		reply = r.cfg.Machine.Advance(s, dialog.Digits(ev.Digits))
	}

	outcome := "ok"
	if reply.Invalid {
		outcome = "invalid"
		r.cfg.Metrics.ObserveInvalidInput(reply.Reason)
		log.Debug("invalid input", "state", s.State, "reason", reply.Reason, "retries", s.Retries, "invalid_total", s.Invalid)
		// The cap is the number of invalid inputs tolerated; the next one ends the call.
		if s.Invalid > r.cfg.MaxInvalidAttempts {
			s.State = dialog.StateAbandoned
			reply = dialog.Reply{Prompts: []dialog.Prompt{dialog.P("too_many_attempts")}, Hangup: true}
			log.Info("invalid attempt limit reached", "invalid_total", s.Invalid)
		}
	}

	switch reply.Effect {
	case dialog.EffectCommit:
		reply = r.commit(ctx, s, log)
	case dialog.EffectNarrate:
		reply = r.narrate(ctx, s, log)
	}
	r.cfg.Metrics.ObserveEvent(string(ev.Type), outcome)
	return r.respond(ctx, e, reply, log)
}

func (r *Router) start(ctx context.Context, e *entry, ev Event, log *logging.Logger) Response {
	if ev.Type == EventHangUp {
		r.finish(ctx, e, ev.CallID, calllog.StatusAbandoned, "goodbye")
		return Response{CallID: ev.CallID, Hangup: true}
	}

	subject, err := r.cfg.Callers.Resolve(ctx, ev.CallerID)
	if err != nil {
		if errors.Is(err, callers.ErrUnknownCaller) {
			log.Info("unknown caller", "caller_id", ev.CallerID)
			r.cfg.Metrics.ObserveEvent(string(ev.Type), "unknown_caller")
			r.finish(ctx, e, ev.CallID, calllog.StatusUnknownCaller, "unknown_caller")
			return r.closing(ev.CallID, "unknown_caller")
		}
		log.Error("caller lookup failed", "error", err)
		return r.fail(ctx, e, ev.CallID, log)
	}

	now := r.cfg.Now()
	script, err := questions.LoadScript(ctx, r.cfg.Questions, now.In(r.cfg.Location))
	if err != nil {
		log.Error("failed to load report definitions", "error", err, "subject_id", subject.ID)
		return r.fail(ctx, e, ev.CallID, log)
	}

	s := dialog.NewSession(ev.CallID, dialog.Caller{ID: subject.ID, Name: subject.Name}, script, now)
	e.session = s
	log.Info("call started", "subject_id", subject.ID)
	r.record(ctx, s, calllog.StatusActive, nil)
	r.cfg.Metrics.ObserveEvent(string(ev.Type), "started")
	r.cfg.Metrics.SetActiveSessions(r.Active())
	return r.respond(ctx, e, r.cfg.Machine.Start(s), log)
}

func (r *Router) commit(ctx context.Context, s *dialog.Session, log *logging.Logger) dialog.Reply {
	sub := reports.Submission{
		CallID:       s.CallID,
		SubjectID:    s.Caller.ID,
		ReportType:   s.ReportType.Key,
		SelectionIDs: s.SelectionIDs(),
	}
	for _, a := range s.Answers {
		sub.Answers = append(sub.Answers, reports.Answer{
			QuestionKey: a.Key,
			AnswerType:  string(a.Type),
			Value:       a.Value,
			Input:       a.Input,
		})
	}
	_, err := r.cfg.Sink.Commit(ctx, sub)
	switch {
	case err == nil:
		r.cfg.Metrics.ObserveCommit("ok")
	case errors.Is(err, reports.ErrAlreadyCommitted):
		r.cfg.Metrics.ObserveCommit("duplicate")
		log.Info("report already committed", "subject_id", s.Caller.ID)
	default:
		r.cfg.Metrics.ObserveCommit("failed")
		log.Error("report commit failed", "error", err, "subject_id", s.Caller.ID, "report_type", s.ReportType.Key)
		return r.cfg.Machine.CommitFailed(s)
	}
	return r.cfg.Machine.Committed(s)
}

func (r *Router) narrate(ctx context.Context, s *dialog.Session, log *logging.Logger) dialog.Reply {
	var summaries []dialog.Summary
	if r.cfg.History != nil {
		recent, err := r.cfg.History.Recent(ctx, s.Caller.ID, r.cfg.HistoryLimit)
		if err != nil {
			log.Error("failed to read previous reports", "error", err, "subject_id", s.Caller.ID)
			return dialog.Reply{Prompts: []dialog.Prompt{dialog.P("system_error")}, Hangup: true}
		}
		for _, rep := range recent {
			summaries = append(summaries, dialog.Summary{
				Date:        rep.CommittedAt.In(r.cfg.Location),
				ReportType:  rep.ReportType,
				AnswerCount: rep.AnswerCount,
			})
		}
	}
	return r.cfg.Machine.Narrate(s, summaries)
}

// respond renders the reply and closes the call if the session reached a terminal state.
func (r *Router) respond(ctx context.Context, e *entry, reply dialog.Reply, log *logging.Logger) Response {
	s := e.session
	text, err := r.render(reply.Prompts)
	if err != nil {
		log.Error("prompt rendering failed", "error", err, "state", s.State)
		return r.fail(ctx, e, s.CallID, log)
	}
	resp := Response{CallID: s.CallID, Prompt: text, MaxDigits: reply.MaxDigits, Hangup: reply.Hangup}
	if s.State.Terminal() {
		resp.Hangup = true
		resp.MaxDigits = 0
		status, closingKey := endStatus(s.State)
		r.finish(ctx, e, s.CallID, status, closingKey)
	} else {
		r.record(ctx, s, calllog.StatusActive, nil)
	}
	return resp
}

// fail ends the call with the generic error message.
func (r *Router) fail(ctx context.Context, e *entry, callID string, log *logging.Logger) Response {
	text, err := r.render([]dialog.Prompt{dialog.P("system_error")})
	if err != nil {
		log.Error("system_error prompt rendering failed", "error", err)
		text = fallbackText
	}
	if e.session != nil {
		e.session.State = dialog.StateAbandoned
	}
	r.cfg.Metrics.ObserveEvent("error", "failed")
	r.finish(ctx, e, callID, calllog.StatusFailed, "system_error")
	return Response{CallID: callID, Prompt: text, Hangup: true}
}

// finish removes the entry from the registry and leaves a tombstone. The entry lock must be held.
func (r *Router) finish(ctx context.Context, e *entry, callID, status, closingKey string) {
	if e.closed {
		return
	}
	e.closed = true
	now := r.cfg.Now()

	r.mu.Lock()
	delete(r.entries, callID)
	r.ended[callID] = tombstone{closingKey: closingKey, endedAt: now}
	active := len(r.entries)
	r.mu.Unlock()

	if e.session != nil {
		r.record(ctx, e.session, status, &now)
	} else if r.cfg.CallLog != nil {
		if err := r.cfg.CallLog.Record(ctx, calllog.Entry{CallID: callID, Status: status, StartedAt: now, UpdatedAt: now, EndedAt: &now}); err != nil {
			r.logger.Warn("call log update failed", "call_id", callID, "error", err)
		}
	}
	r.cfg.Metrics.ObserveCallEnded(status)
	r.cfg.Metrics.SetActiveSessions(active)
	r.logger.Info("call ended", "call_id", callID, "status", status)
}

func (r *Router) record(ctx context.Context, s *dialog.Session, status string, endedAt *time.Time) {
	if r.cfg.CallLog == nil {
		return
	}
	err := r.cfg.CallLog.Record(ctx, calllog.Entry{
		CallID:       s.CallID,
		SubjectID:    s.Caller.ID,
		Status:       status,
		State:        string(s.State),
		ReportType:   s.ReportType.Key,
		InvalidCount: s.Invalid,
		StartedAt:    s.CreatedAt,
		UpdatedAt:    r.cfg.Now(),
		EndedAt:      endedAt,
	})
	if err != nil {
		r.logger.Warn("call log update failed", "call_id", s.CallID, "error", err)
	}
}

func (r *Router) closing(callID, key string) Response {
	text, err := r.render([]dialog.Prompt{dialog.P(key)})
	if err != nil {
		r.logger.Error("closing prompt rendering failed", "call_id", callID, "key", key, "error", err)
		text = fallbackText
	}
	return Response{CallID: callID, Prompt: text, Hangup: true}
}

func (r *Router) closingFor(callID string) Response {
	r.mu.Lock()
	tomb, ok := r.ended[callID]
	r.mu.Unlock()
	if !ok {
		return Response{CallID: callID, Hangup: true}
	}
	return r.closing(callID, tomb.closingKey)
}

func endStatus(s dialog.State) (status, closingKey string) {
	switch s {
	case dialog.StateCommitted:
		return calllog.StatusCommitted, "report_saved"
	case dialog.StateReviewed:
		return calllog.StatusReviewed, "goodbye"
	}
	return calllog.StatusAbandoned, "goodbye"
}

func (r *Router) render(prompts []dialog.Prompt) (string, error) {
	parts := make([]string, 0, len(prompts))
	for _, p := range prompts {
		text, err := r.resolve(p)
		if err != nil {
			return "", err
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (r *Router) resolve(p dialog.Prompt) (string, error) {
	params := make(map[string]string, len(p.Params)+len(p.Lists))
	for k, v := range p.Params {
		params[k] = v
	}
	for name, items := range p.Lists {
		text, err := r.render(items)
		if err != nil {
			return "", err
		}
		params[name] = text
	}
	return r.cfg.Catalog.Resolve(p.Key, params)
}
