// Package handler provides HTTP handlers for the air quality API.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/api/models"
	"github.com/aqtracker/aqtracker/internal/api/response"
)

// AirQualityHandler handles air quality read and refresh endpoints.
type AirQualityHandler struct {
	service *airquality.Service
}

// NewAirQualityHandler creates a new AirQualityHandler.
func NewAirQualityHandler(service *airquality.Service) *AirQualityHandler {
	return &AirQualityHandler{service: service}
}

// GlobalStats handles GET /v1/global.
func (h *AirQualityHandler) GlobalStats(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	stats, err := h.service.GlobalStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, statsFromDomain(stats))
}

// ListCities handles GET /v1/cities.
func (h *AirQualityHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	records, err := h.service.Cities(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// GetCity handles GET /v1/cities/{name}.
func (h *AirQualityHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	record, err := h.service.City(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, cityFromRecord(record))
}

// ListCountries handles GET /v1/countries.
func (h *AirQualityHandler) ListCountries(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	countries, err := h.service.Countries(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if countries == nil {
		countries = []string{}
	}
	response.Tagged(w, r, tag, countries)
}

// GetCountry handles GET /v1/countries/{name}.
func (h *AirQualityHandler) GetCountry(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	records, err := h.service.CountryCities(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// MostPolluted handles GET /v1/rankings/polluted?limit=N.
func (h *AirQualityHandler) MostPolluted(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	records, err := h.service.MostPolluted(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// Cleanest handles GET /v1/rankings/cleanest?limit=N.
func (h *AirQualityHandler) Cleanest(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	records, err := h.service.Cleanest(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// GoodAir handles GET /v1/filter/good.
func (h *AirQualityHandler) GoodAir(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	records, err := h.service.GoodAir(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// UnhealthyAir handles GET /v1/filter/unhealthy.
func (h *AirQualityHandler) UnhealthyAir(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	records, err := h.service.UnhealthyAir(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, citiesFromRecords(records))
}

// Estimate handles GET /v1/estimate?lat=&lon=.
func (h *AirQualityHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	tag, fresh := h.cachedRead(w, r)
	if fresh {
		return
	}
	var fieldErrors []models.FieldError
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lat", Message: "must be a number", Code: models.FieldCodeInvalid})
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		fieldErrors = append(fieldErrors, models.FieldError{Field: "lon", Message: "must be a number", Code: models.FieldCodeInvalid})
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "lat and lon query parameters are required", fieldErrors)
		return
	}

	estimate, err := h.service.Estimate(r.Context(), lat, lon)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.Tagged(w, r, tag, estimateFromDomain(estimate))
}

// Refresh handles POST /v1/refresh - manual data refresh.
func (h *AirQualityHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	message := fmt.Sprintf("Data refreshed successfully. %d records updated.", result.RecordsIngested)
	if result.RecordsFetched == 0 {
		message = "No data received from provider. Existing data kept."
	}
	response.JSON(w, r, http.StatusOK, models.RefreshResponse{
		Status:          "success",
		Message:         message,
		RecordsIngested: result.RecordsIngested,
		RecordsFetched:  result.RecordsFetched,
		Duration:        result.Duration.String(),
	})
}

// cachedRead captures the cache tag before reading so a refresh racing the
// read can only make the tag older than the body. It reports true when the
// client copy is current and a 304 has been written.
func (h *AirQualityHandler) cachedRead(w http.ResponseWriter, r *http.Request) (string, bool) {
	tag := h.service.CacheTag()
	return tag, response.NotModified(w, r, tag)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return airquality.DefaultRankingLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		response.BadRequest(w, r, "limit must be an integer", []models.FieldError{
			{Field: "limit", Message: "must be an integer", Code: models.FieldCodeInvalid},
		})
		return 0, false
	}
	return limit, true
}

// writeServiceError maps domain errors to problem responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, airquality.ErrCityNotFound):
		response.NotFound(w, r, fmt.Sprintf("city %q not found", chi.URLParam(r, "name")))
	case errors.Is(err, airquality.ErrCountryNotFound):
		response.NotFound(w, r, fmt.Sprintf("no cities found for country %q", chi.URLParam(r, "name")))
	case errors.Is(err, airquality.ErrInvalidPosition):
		response.BadRequest(w, r, "coordinates out of range", nil)
	case errors.Is(err, airquality.ErrNoCitiesInRange):
		response.NotFound(w, r, "no monitored cities near this position")
	case errors.Is(err, airquality.ErrRefreshInProgress):
		response.Conflict(w, r, "a refresh is already in progress")
	case errors.Is(err, airquality.ErrPersistence):
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("refresh failed")
		response.ServiceUnavailable(w, r, "failed to store refreshed data")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
