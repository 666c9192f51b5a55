package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError describes one invalid query or body field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Field error codes.
const (
	FieldCodeInvalid    = "INVALID"
	FieldCodeRequired   = "REQUIRED"
	FieldCodeOutOfRange = "OUT_OF_RANGE"
)

// Problem type URIs, relative to the API root.
const (
	ProblemTypeValidation           = "/problems/validation-error"
	ProblemTypeNotFound             = "/problems/not-found"
	ProblemTypeConflict             = "/problems/refresh-in-progress"
	ProblemTypeUnsupportedMediaType = "/problems/unsupported-media-type"
	ProblemTypeTLSRequired          = "/problems/tls-required"
	ProblemTypeTooManyRequests      = "/problems/too-many-requests"
	ProblemTypeInternal             = "/problems/internal-error"
	ProblemTypeUnavailable          = "/problems/store-unavailable"
)

type problemKind struct {
	title  string
	status int
}

var problemKinds = map[string]problemKind{
	ProblemTypeValidation:           {"Validation error", http.StatusBadRequest},
	ProblemTypeNotFound:             {"Not found", http.StatusNotFound},
	ProblemTypeConflict:             {"Refresh in progress", http.StatusConflict},
	ProblemTypeUnsupportedMediaType: {"Unsupported media type", http.StatusUnsupportedMediaType},
	ProblemTypeTLSRequired:          {"TLS required", http.StatusForbidden},
	ProblemTypeTooManyRequests:      {"Too many requests", http.StatusTooManyRequests},
	ProblemTypeInternal:             {"Internal server error", http.StatusInternalServerError},
	ProblemTypeUnavailable:          {"Store unavailable", http.StatusServiceUnavailable},
}

// NewProblem creates a Problem of a known type. Unknown types become
// internal errors.
func NewProblem(problemType, traceID, detail string) *Problem {
	kind, ok := problemKinds[problemType]
	if !ok {
		problemType = ProblemTypeInternal
		kind = problemKinds[ProblemTypeInternal]
	}
	return &Problem{
		Type:    problemType,
		Title:   kind.title,
		Status:  kind.status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Write writes the Problem to w. Problems are never cached.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("Cache-Control", "no-store")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 problem listing the invalid fields.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := NewProblem(ProblemTypeValidation, traceID, detail)
	p.Errors = errors
	return p
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, traceID, detail)
}

// NewConflict creates a 409 problem for an overlapping refresh.
func NewConflict(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeConflict, traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem for an unreachable store.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, traceID, detail)
}
