package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/api/models"
	"github.com/aqtracker/aqtracker/internal/api/response"
	"github.com/aqtracker/aqtracker/internal/provider/resilience"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsConfig holds dependencies for the ops endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Store is pinged by the readiness check. Nil means always ready.
	Store Pinger

	// StoreName labels the store subsystem in status output.
	StoreName string

	Registry   *resilience.Registry
	AirQuality *airquality.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version    string
	buildTime  string
	store      Pinger
	storeName  string
	registry   *resilience.Registry
	airQuality *airquality.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	storeName := cfg.StoreName
	if storeName == "" {
		storeName = "store"
	}
	return &OpsHandler{
		version:    cfg.Version,
		buildTime:  cfg.BuildTime,
		store:      cfg.Store,
		storeName:  storeName,
		registry:   cfg.Registry,
		airQuality: cfg.AirQuality,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.pingStore(r.Context()); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
		response.ServiceUnavailable(w, r, h.storeName+" is not reachable")
		return
	}
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.storeStatus(r.Context())},
		Providers:  []models.ProviderStatus{},
	}
	if status.Subsystems[0].Status != models.HealthStatusOK {
		status.Status = models.HealthStatusFail
	}

	if h.registry != nil {
		for _, p := range h.registry.GetAllHealth() {
			status.Providers = append(status.Providers, providerStatus(p))
		}
		if status.Status == models.HealthStatusOK && h.registry.Overall() != resilience.StatusHealthy {
			status.Status = models.HealthStatusDegraded
		}
	}

	if h.airQuality != nil {
		status.Refresh = refreshStatus(h.airQuality.Status())
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) pingStore(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.store.Ping(ctx)
}

func (h *OpsHandler) storeStatus(ctx context.Context) models.SubsystemStatus {
	s := models.SubsystemStatus{Name: h.storeName, Status: models.HealthStatusOK}
	if err := h.pingStore(ctx); err != nil {
		detail := err.Error()
		s.Status = models.HealthStatusFail
		s.Detail = &detail
	}
	return s
}

func providerStatus(p *resilience.ProviderHealth) models.ProviderStatus {
	out := models.ProviderStatus{
		Provider:     p.Name,
		CircuitState: p.CircuitState.String(),
	}
	switch p.Status() {
	case resilience.StatusHealthy:
		out.Status = models.HealthStatusOK
	case resilience.StatusDegraded:
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusFail
	}
	if p.LastSuccessAt != nil {
		ts := models.Timestamp(*p.LastSuccessAt)
		out.LastSuccessAt = &ts
	}
	if p.LastFailureAt != nil {
		ts := models.Timestamp(*p.LastFailureAt)
		out.LastFailureAt = &ts
	}
	if p.LastError != "" {
		msg := p.LastError
		out.Message = &msg
	}
	return out
}

func refreshStatus(s airquality.Status) models.RefreshStatus {
	out := models.RefreshStatus{
		Refreshing:      s.Refreshing,
		CacheGeneration: s.CacheGeneration,
		CachedEntries:   s.CachedEntries,
	}
	if !s.LastAttempt.IsZero() {
		ts := models.Timestamp(s.LastAttempt)
		out.LastAttemptAt = &ts
	}
	if s.LastRefresh != nil {
		ts := models.Timestamp(s.LastRefresh.StartedAt)
		out.LastRefreshAt = &ts
		out.RecordsIngested = s.LastRefresh.RecordsIngested
	}
	if s.LastError != "" {
		msg := s.LastError
		out.LastError = &msg
	}
	return out
}
