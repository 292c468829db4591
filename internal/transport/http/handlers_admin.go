package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safeharbor/internal/admin"
	"safeharbor/internal/systemconfig"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/httputil"
	"safeharbor/pkg/requestcontext"
)

type adminHandler struct {
	admin  *admin.Service
	logger *slog.Logger
}

func newAdminHandler(svc *admin.Service, logger *slog.Logger) *adminHandler {
	return &adminHandler{admin: svc, logger: logger}
}

func (h *adminHandler) register(r chi.Router) {
	r.Get("/admin/config", h.handleGetConfig)
	r.Put("/admin/config", h.handleReplaceConfig)
	r.Post("/admin/override", h.handleToggleOverride)
	r.Post("/admin/salt/rotate", h.handleRotateSalt)
	r.Post("/admin/assignments", h.handleAssign)
	r.Delete("/admin/assignments", h.handleUnassign)
}

// configBody carries durations as seconds on the wire.
type configBody struct {
	MaxReservationTimeSeconds        int64 `json:"max_reservation_time_seconds"`
	DefaultPriorityDecay             int   `json:"default_priority_decay"`
	MinimumCaseUpdateIntervalSeconds int64 `json:"minimum_case_update_interval_seconds"`
	PrivacyRetentionPeriodSeconds    int64 `json:"privacy_retention_period_seconds"`
	EmergencyOverrideEnabled         bool  `json:"emergency_override_enabled"`
}

func toConfigBody(cfg systemconfig.Config) configBody {
	return configBody{
		MaxReservationTimeSeconds:        int64(cfg.MaxReservationTime / time.Second),
		DefaultPriorityDecay:             cfg.DefaultPriorityDecay,
		MinimumCaseUpdateIntervalSeconds: int64(cfg.MinimumCaseUpdateInterval / time.Second),
		PrivacyRetentionPeriodSeconds:    int64(cfg.PrivacyRetentionPeriod / time.Second),
		EmergencyOverrideEnabled:         cfg.EmergencyOverrideEnabled,
	}
}

func (b configBody) toConfig() systemconfig.Config {
	return systemconfig.Config{
		MaxReservationTime:        time.Duration(b.MaxReservationTimeSeconds) * time.Second,
		DefaultPriorityDecay:      b.DefaultPriorityDecay,
		MinimumCaseUpdateInterval: time.Duration(b.MinimumCaseUpdateIntervalSeconds) * time.Second,
		PrivacyRetentionPeriod:    time.Duration(b.PrivacyRetentionPeriodSeconds) * time.Second,
		EmergencyOverrideEnabled:  b.EmergencyOverrideEnabled,
	}
}

func (h *adminHandler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.admin.GetConfig(ctx, requestcontext.Actor(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConfigBody(cfg))
}

func (h *adminHandler) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req configBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.admin.ReplaceConfig(ctx, requestcontext.Actor(ctx), req.toConfig()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleToggleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.admin.ToggleEmergencyOverride(ctx, requestcontext.Actor(ctx), req.Enabled); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleRotateSalt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.admin.RotateSalt(ctx, requestcontext.Actor(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignmentRequest struct {
	Worker     string `json:"worker"`
	ClientHash string `json:"client_hash"`
}

func (r assignmentRequest) parse() (domain.Actor, domain.ClientHash, error) {
	hash, err := domain.ParseClientHash(r.ClientHash)
	if err != nil {
		return "", hash, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash")
	}
	return domain.Actor(r.Worker), hash, nil
}

func (h *adminHandler) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	worker, hash, err := req.parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.admin.AssignWorker(ctx, requestcontext.Actor(ctx), worker, hash); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *adminHandler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req assignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}
	worker, hash, err := req.parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.admin.UnassignWorker(ctx, requestcontext.Actor(ctx), worker, hash); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
