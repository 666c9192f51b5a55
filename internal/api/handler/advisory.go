package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aqtracker/aqtracker/internal/advisory"
	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/api/models"
	"github.com/aqtracker/aqtracker/internal/api/response"
	"github.com/aqtracker/aqtracker/internal/aqi"
)

// AdvisoryHandler handles recommendation and advisory endpoints.
type AdvisoryHandler struct {
	airQuality *airquality.Service
	advisory   *advisory.Service
}

// NewAdvisoryHandler creates a new AdvisoryHandler.
func NewAdvisoryHandler(airQuality *airquality.Service, advisoryService *advisory.Service) *AdvisoryHandler {
	return &AdvisoryHandler{
		airQuality: airQuality,
		advisory:   advisoryService,
	}
}

// Recommendations handles GET /v1/cities/{name}/recommendations.
func (h *AdvisoryHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	record, err := h.airQuality.City(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rec := h.advisory.Recommendations(r.Context(), record)
	response.JSON(w, r, http.StatusOK, recommendationFromDomain(rec))
}

// Analysis handles GET /v1/cities/{name}/analysis.
func (h *AdvisoryHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	record, err := h.airQuality.City(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.Analysis{
		City:     record.City,
		Analysis: h.advisory.Analysis(r.Context(), record),
	})
}

// HealthAdvisory handles GET /v1/advisory?aqi=N.
func (h *AdvisoryHandler) HealthAdvisory(w http.ResponseWriter, r *http.Request) {
	value := 50
	if raw := r.URL.Query().Get("aqi"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > 500 {
			response.BadRequest(w, r, "aqi must be an integer between 0 and 500", []models.FieldError{
				{Field: "aqi", Message: "must be an integer between 0 and 500", Code: models.FieldCodeOutOfRange},
			})
			return
		}
		value = parsed
	}

	response.JSON(w, r, http.StatusOK, models.HealthAdvisory{
		AQI:      value,
		Category: aqi.Category(value),
		Advisory: h.advisory.HealthAdvisory(r.Context(), value),
	})
}
