package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/report-ivr/internal/callers"
	"github.com/wolfman30/report-ivr/internal/calls"
	"github.com/wolfman30/report-ivr/internal/catalog"
	"github.com/wolfman30/report-ivr/internal/dialog"
	"github.com/wolfman30/report-ivr/internal/observability/metrics"
	"github.com/wolfman30/report-ivr/internal/questions"
	"github.com/wolfman30/report-ivr/internal/reports"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

type stubCallRouter struct {
	events []calls.Event
	resp   calls.Response
	err    error
}

func (s *stubCallRouter) OnCallEvent(_ context.Context, ev calls.Event) (calls.Response, error) {
	s.events = append(s.events, ev)
	return s.resp, s.err
}

func postEvent(h *CarrierWebhookHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/carrier/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func TestCarrierWebhook_ForwardsEvent(t *testing.T) {
	stub := &stubCallRouter{resp: calls.Response{CallID: "c-1", Prompt: "Hello Dana.", MaxDigits: 1}}
	h := NewCarrierWebhookHandler(CarrierWebhookConfig{
		Router:  stub,
		Metrics: metrics.NewCallMetrics(prometheus.NewRegistry()),
		Logger:  logging.Discard(),
	})

	rec := postEvent(h, `{"call_id":"c-1","event_id":"e-1","type":"digits","digits":"12#","caller_id":"+972501111111","occurred_at":"2026-03-10T09:00:00Z"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, stub.events, 1)
	ev := stub.events[0]
	assert.Equal(t, "c-1", ev.CallID)
	assert.Equal(t, "e-1", ev.EventID)
	assert.Equal(t, calls.EventDigits, ev.Type)
	assert.Equal(t, "12", ev.Digits)
	assert.Equal(t, 2026, ev.OccurredAt.Year())

	var got calls.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stub.resp, got)
}

func TestCarrierWebhook_RejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed json", body: `{"call_id":`, want: "invalid JSON payload"},
		{name: "missing call id", body: `{"type":"call_started"}`, want: "call_id failed required"},
		{name: "unknown type", body: `{"call_id":"c-1","type":"ringing"}`, want: "type failed oneof"},
		{name: "non dtmf digits", body: `{"call_id":"c-1","type":"digits","digits":"12a"}`, want: "digits failed dtmf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubCallRouter{}
			h := NewCarrierWebhookHandler(CarrierWebhookConfig{Router: stub, Logger: logging.Discard()})

			rec := postEvent(h, tc.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Empty(t, stub.events)
		})
	}
}

func TestCarrierWebhook_RouterErrors(t *testing.T) {
	stub := &stubCallRouter{err: calls.ErrInvalidEvent}
	h := NewCarrierWebhookHandler(CarrierWebhookConfig{Router: stub, Logger: logging.Discard()})
	rec := postEvent(h, `{"call_id":"c-1","type":"call_started"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub.err = errors.New("boom")
	rec = postEvent(h, `{"call_id":"c-1","type":"call_started"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestCarrierWebhook_EndToEndCall(t *testing.T) {
	sink := reports.NewMemorySink()
	router, err := calls.NewRouter(calls.Config{
		Machine:   dialog.NewMachine(dialog.Config{}),
		Catalog:   catalog.New(catalog.DefaultTexts()),
		Questions: questions.NewDefaultProvider(),
		Callers: callers.NewMemoryDirectory(map[string]callers.Subject{
			"+972501111111": {ID: "t-1", Name: "Dana"},
		}),
		Sink:    sink,
		History: sink,
		Logger:  logging.Discard(),
	})
	require.NoError(t, err)
	h := NewCarrierWebhookHandler(CarrierWebhookConfig{Router: router, Logger: logging.Discard()})

	steps := []struct {
		typ    string
		digits string
	}{
		{"call_started", ""},
		{"digits", "1"},  // attendance
		{"digits", "12"}, // students present
		{"digits", "3"},  // lessons taught
		{"digits", "1"},  // confirm
	}
	var last calls.Response
	for i, step := range steps {
		body, _ := json.Marshal(map[string]string{
			"call_id":   "e2e-1",
			"event_id":  "evt-" + string(rune('a'+i)),
			"type":      step.typ,
			"digits":    step.digits,
			"caller_id": "+972501111111",
		})
		rec := postEvent(h, string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &last))
	}

	assert.True(t, last.Hangup)
	assert.Equal(t, "Your report was saved. Goodbye.", last.Prompt)
	saved := sink.Reports()
	require.Len(t, saved, 1)
	assert.Equal(t, "t-1", saved[0].SubjectID)
	assert.Equal(t, questions.ReportAttendance, saved[0].ReportType)
}
