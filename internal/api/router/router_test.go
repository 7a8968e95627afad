package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/report-ivr/internal/calls"
	"github.com/wolfman30/report-ivr/internal/http/handlers"
	"github.com/wolfman30/report-ivr/internal/observability/metrics"
	"github.com/wolfman30/report-ivr/pkg/logging"
)

const testSecret = "carrier-secret"

type echoCallRouter struct{}

func (echoCallRouter) OnCallEvent(_ context.Context, ev calls.Event) (calls.Response, error) {
	return calls.Response{CallID: ev.CallID, Prompt: "ok", MaxDigits: 1}, nil
}

type fixedSessions int

func (f fixedSessions) Active() int { return int(f) }

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func newTestRouter(t *testing.T, mutate func(*Config)) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	logger := logging.Discard()
	cfg := &Config{
		Logger: logger,
		CarrierWebhook: handlers.NewCarrierWebhookHandler(handlers.CarrierWebhookConfig{
			Router:  echoCallRouter{},
			Metrics: metrics.NewCallMetrics(reg),
			Logger:  logger,
		}),
		MetricsHandler:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Sessions:             fixedSessions(2),
		CarrierWebhookSecret: testSecret,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg)
}

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "carrier",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func eventRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/carrier/events",
		strings.NewReader(`{"call_id":"c-1","type":"call_started","caller_id":"+972501111111"}`))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.EqualValues(t, 2, resp["active_calls"])
}

func TestRouterHealthReportsDatabaseFailure(t *testing.T) {
	router := newTestRouter(t, func(c *Config) {
		c.Database = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "degraded")
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, eventRequest(signedToken(t, testSecret)))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "report_ivr_carrier_webhook_latency_seconds")
}

func TestRouterCarrierWebhookAuth(t *testing.T) {
	router := newTestRouter(t, nil)

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{name: "missing token", token: "", want: http.StatusUnauthorized},
		{name: "wrong secret", token: signedToken(t, "other"), want: http.StatusUnauthorized},
		{name: "valid token", token: signedToken(t, testSecret), want: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, eventRequest(tc.token))
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestRouterCarrierWebhookRateLimit(t *testing.T) {
	router := newTestRouter(t, func(c *Config) {
		c.CarrierWebhookSecret = ""
		c.WebhookRateLimit = 0.001
		c.WebhookRateBurst = 1
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, eventRequest(""))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, eventRequest(""))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestRouterWithoutWebhookHandler(t *testing.T) {
	router := newTestRouter(t, func(c *Config) { c.CarrierWebhook = nil })

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, eventRequest(""))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
