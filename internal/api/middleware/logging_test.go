package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqtracker/aqtracker/internal/api/middleware"
)

// logEntries decodes one JSON object per line.
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/v1/cities/{name}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"city":"Lyon"}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/cities/Lyon", http.NoBody)
	req.Header.Set("User-Agent", "aq-client/1.0")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logEntries(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/v1/cities/Lyon", entry["path"])
	assert.Equal(t, "/v1/cities/{name}", entry["route"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(len(`{"city":"Lyon"}`)), entry["bytes"])
	assert.Equal(t, "aq-client/1.0", entry["user_agent"])
	assert.Contains(t, entry, "duration")
	assert.NotContains(t, entry, "trace_id")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotModified, "info"},
		{http.StatusNotFound, "warn"},
		{http.StatusConflict, "warn"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/refresh", http.NoBody))

			entries := logEntries(t, &buf)
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0]["level"])
			assert.Equal(t, float64(tt.status), entries[0]["status"])
		})
	}
}

func TestLogger_DefaultStatusCode(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	entries := logEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(200), entries[0]["status"])
	assert.Equal(t, "unmatched", entries[0]["route"])
}

func TestLogger_IncludesTraceID(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	handler := middleware.Tracing(middleware.Logger(zerolog.New(&buf))(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/global", http.NoBody))

	entries := logEntries(t, &buf)
	require.Len(t, entries, 1)

	traceID, ok := entries[0]["trace_id"].(string)
	require.True(t, ok)
	assert.Len(t, traceID, 32)

	spanID, ok := entries[0]["span_id"].(string)
	require.True(t, ok)
	assert.Len(t, spanID, 16)
}

func TestLogger_ContextLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := middleware.RequestID(middleware.Logger(zerolog.New(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Info().Msg("from handler")
			w.WriteHeader(http.StatusOK)
		}),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/global", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req_ctx_logger")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logEntries(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "from handler", entries[0]["message"])
	assert.Equal(t, "req_ctx_logger", entries[0]["request_id"])
	assert.Equal(t, "req_ctx_logger", entries[1]["request_id"])
}
