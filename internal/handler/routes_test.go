package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gowa-gateway/internal/metrics"
	"gowa-gateway/internal/ws"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cr3t"

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestSendMessageRequiresTokenWhenConfigured(t *testing.T) {
	g := newTestGateway(t, RouteConfig{JWTSecret: testSecret})
	g.makeReady(t)
	g.client.Registered["15551234567"] = true
	body := `{"number":"15551234567","message":"hi"}`

	rec := g.do(http.MethodPost, "/send-message", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, StatusError, decode(t, rec).Status)

	req := httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, "wrong"))
	rec = httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/send-message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec = httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, g.client.Sent(), 1)
}

func TestHealthStaysOpenWithToken(t *testing.T) {
	g := newTestGateway(t, RouteConfig{JWTSecret: testSecret})

	rec := g.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventsRequiresTokenWhenConfigured(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	g := newTestGateway(t, RouteConfig{JWTSecret: testSecret, Hub: hub})

	rec := g.do(http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	g := newTestGateway(t, RouteConfig{})

	rec := g.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "Endpoint not found", resp.Message)

	rec = g.do(http.MethodGet, "/send-message", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed for this endpoint", decode(t, rec).Message)
}

func TestMetricsRoute(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	g := newTestGateway(t, RouteConfig{Metrics: m})
	g.e.Use(m.Middleware())

	g.do(http.MethodPost, "/send-message", `{"number":"15551234567","message":"hi"}`)

	rec := g.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "whatsapp_session_ready")
}

func TestWebSocketHandlerRejectsPlainHTTP(t *testing.T) {
	hub := ws.NewHub(zerolog.Nop())
	g := newTestGateway(t, RouteConfig{Hub: hub})

	rec := g.do(http.MethodGet, "/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
