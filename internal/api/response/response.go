// Package response writes JSON and problem responses for the API handlers.
package response

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aqtracker/aqtracker/internal/api/middleware"
	"github.com/aqtracker/aqtracker/internal/api/models"
)

// JSON writes data as JSON with the given status code and echoes the
// request id.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Tagged writes a 200 JSON response carrying tag as a weak ETag. Clients
// must revalidate before reuse.
func Tagged(w http.ResponseWriter, r *http.Request, tag string, data interface{}) {
	w.Header().Set("ETag", etag(tag))
	w.Header().Set("Cache-Control", "no-cache")
	JSON(w, r, http.StatusOK, data)
}

// NotModified answers a conditional GET whose If-None-Match names tag with
// 304 and reports whether it did.
func NotModified(w http.ResponseWriter, r *http.Request, tag string) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	if !matchesETag(r.Header.Get("If-None-Match"), etag(tag)) {
		return false
	}
	w.Header().Set("ETag", etag(tag))
	w.Header().Set("Cache-Control", "no-cache")
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNotModified)
	return true
}

func etag(tag string) string {
	return `W/"` + tag + `"`
}

// matchesETag applies the weak comparison of If-None-Match.
func matchesETag(header, want string) bool {
	if header == "" {
		return false
	}
	want = strings.TrimPrefix(want, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == want {
			return true
		}
	}
	return false
}

// Error writes problem for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
