package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqtracker/aqtracker/internal/api/models"
)

func TestNewProblem_KnownTypes(t *testing.T) {
	tests := []struct {
		problemType string
		title       string
		status      int
	}{
		{models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{models.ProblemTypeConflict, "Refresh in progress", http.StatusConflict},
		{models.ProblemTypeUnsupportedMediaType, "Unsupported media type", http.StatusUnsupportedMediaType},
		{models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{models.ProblemTypeUnavailable, "Store unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.problemType, func(t *testing.T) {
			p := models.NewProblem(tt.problemType, "req_test123", "detail")

			assert.Equal(t, tt.problemType, p.Type)
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, "detail", p.Detail)
			assert.Equal(t, "req_test123", p.TraceID)
			assert.Empty(t, p.Instance)
			assert.Nil(t, p.Errors)
		})
	}
}

func TestNewProblem_UnknownTypeIsInternal(t *testing.T) {
	p := models.NewProblem("/problems/made-up", "req_1", "")

	assert.Equal(t, models.ProblemTypeInternal, p.Type)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewBadRequest("req_test123", "invalid input", []models.FieldError{
		{Field: "aqi", Message: "must be an integer", Code: models.FieldCodeInvalid},
	})
	p.Instance = "/v1/advisory"

	w := httptest.NewRecorder()
	p.Write(w)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, "req_test123", w.Header().Get("X-Request-Id"))

	var result models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))

	assert.Equal(t, models.ProblemTypeValidation, result.Type)
	assert.Equal(t, "Validation error", result.Title)
	assert.Equal(t, http.StatusBadRequest, result.Status)
	assert.Equal(t, "invalid input", result.Detail)
	assert.Equal(t, "/v1/advisory", result.Instance)
	assert.Equal(t, "req_test123", result.TraceID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "aqi", result.Errors[0].Field)
	assert.Equal(t, models.FieldCodeInvalid, result.Errors[0].Code)
}

func TestProblem_WriteWithoutTraceID(t *testing.T) {
	w := httptest.NewRecorder()
	models.NewNotFound("", "city \"Atlantis\" not found").Write(w)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name   string
		p      *models.Problem
		status int
	}{
		{"not found", models.NewNotFound("req_1", "city not found"), http.StatusNotFound},
		{"conflict", models.NewConflict("req_1", "a refresh is already in progress"), http.StatusConflict},
		{"too many requests", models.NewTooManyRequests("req_1", "slow down"), http.StatusTooManyRequests},
		{"internal", models.NewInternalError("req_1", "boom"), http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "postgres is not reachable"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.p.Status)
			assert.Equal(t, "req_1", tt.p.TraceID)
			assert.NotEmpty(t, tt.p.Detail)
		})
	}
}
