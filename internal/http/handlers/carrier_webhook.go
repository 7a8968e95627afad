package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/report-ivr/internal/calls"
	"github.com/wolfman30/report-ivr/internal/observability/metrics"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

const maxCarrierPayloadBytes = 64 << 10

// CallEventRouter is the part of the call router the webhook needs.
type CallEventRouter interface {
	OnCallEvent(ctx context.Context, ev calls.Event) (calls.Response, error)
}

// CarrierWebhookConfig holds dependencies for the carrier webhook handler.
type CarrierWebhookConfig struct {
	Router  CallEventRouter
	Metrics *metrics.CallMetrics
	Tracer  trace.Tracer
	Logger  *logging.Logger
}

// CarrierWebhookHandler translates carrier JSON events into dialog turns.
type CarrierWebhookHandler struct {
	router   CallEventRouter
	metrics  *metrics.CallMetrics
	tracer   trace.Tracer
	logger   *logging.Logger
	validate *validator.Validate
}

type carrierEventRequest struct {
	CallID     string     `json:"call_id" validate:"required,max=128"`
	EventID    string     `json:"event_id" validate:"max=128"`
	Type       string     `json:"type" validate:"required,oneof=call_started digits hang_up"`
	Digits     string     `json:"digits" validate:"max=32,dtmf"`
	CallerID   string     `json:"caller_id" validate:"max=32"`
	OccurredAt *time.Time `json:"occurred_at"`
}

func NewCarrierWebhookHandler(cfg CarrierWebhookConfig) *CarrierWebhookHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("report-ivr.carrier")
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	_ = v.RegisterValidation("dtmf", func(fl validator.FieldLevel) bool {
		return strings.Trim(fl.Field().String(), "0123456789*#") == ""
	})
	return &CarrierWebhookHandler{
		router:   cfg.Router,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		logger:   cfg.Logger,
		validate: v,
	}
}

// HandleEvent accepts one call event and replies with the next prompt to play.
func (h *CarrierWebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var req carrierEventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCarrierPayloadBytes)).Decode(&req); err != nil {
		h.logger.Warn("carrier webhook: invalid JSON payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.logger.Warn("carrier webhook: payload failed validation", "call_id", req.CallID, "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validationMessage(err)})
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "carrier.event",
		trace.WithAttributes(
			attribute.String("call.id", req.CallID),
			attribute.String("call.event_type", req.Type),
		),
	)
	defer span.End()

	ev := calls.Event{
		CallID:   req.CallID,
		EventID:  req.EventID,
		Type:     calls.EventType(req.Type),
		Digits:   strings.TrimSuffix(req.Digits, "#"),
		CallerID: req.CallerID,
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = *req.OccurredAt
	}

	resp, err := h.router.OnCallEvent(ctx, ev)
	h.metrics.ObserveWebhookLatency(req.Type, time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, calls.ErrInvalidEvent) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error("carrier webhook: event failed", "call_id", req.CallID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	span.SetAttributes(attribute.Bool("call.hangup", resp.Hangup))
	writeJSON(w, http.StatusOK, resp)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(fields, "; ")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
