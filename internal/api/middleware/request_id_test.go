package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqtracker/aqtracker/internal/api/middleware"
)

func serveRequestID(t *testing.T, header string) (contextID, responseID string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contextID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody)
	if header != "" {
		req.Header.Set(middleware.RequestIDHeader, header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return contextID, w.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	contextID, responseID := serveRequestID(t, "")

	assert.True(t, strings.HasPrefix(contextID, "req_"))
	assert.Len(t, contextID, len("req_")+36)
	assert.Equal(t, contextID, responseID)
}

func TestRequestID_ClientSuppliedIDs(t *testing.T) {
	tests := []struct {
		name   string
		header string
		kept   bool
	}{
		{"plain", "existing_request_id", true},
		{"uuid", "4f9a7d0e-8c1b-4c52-9d7e-1f0a2b3c4d5e", true},
		{"dotted", "gateway.7781", true},
		{"max length", strings.Repeat("a", 64), true},
		{"too long", strings.Repeat("a", 65), false},
		{"spaces", "id with spaces", false},
		{"header injection", "abc\r\nSet-Cookie: x", false},
		{"json breaking", `abc"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contextID, responseID := serveRequestID(t, tt.header)

			assert.Equal(t, contextID, responseID)
			if tt.kept {
				assert.Equal(t, tt.header, contextID)
			} else {
				assert.NotEqual(t, tt.header, contextID)
				assert.True(t, strings.HasPrefix(contextID, "req_"))
			}
		})
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/cities", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := serveRequestID(t, "")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
