package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safeharbor/internal/request"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/httputil"
	"safeharbor/pkg/requestcontext"
)

type requestHandler struct {
	requests *request.Service
	logger   *slog.Logger
}

func newRequestHandler(requests *request.Service, logger *slog.Logger) *requestHandler {
	return &requestHandler{requests: requests, logger: logger}
}

func (h *requestHandler) register(r chi.Router) {
	r.Post("/requests", h.handleCreate)
	r.Get("/requests/{id}", h.handleGet)
	r.Post("/requests/{id}/status", h.handleUpdateStatus)
}

type createRequestRequest struct {
	ClientHash          string             `json:"client_hash"`
	ProviderID          uint64             `json:"provider_id"`
	ResourceID          uint64             `json:"resource_id"`
	Type                domain.ServiceType `json:"type"`
	Priority            int                `json:"priority"`
	SpecialRequirements []string           `json:"special_requirements,omitempty"`
	RequestedTime       time.Time          `json:"requested_time"`
}

type requestResponse struct {
	ID                  uint64             `json:"id"`
	ClientHash          string             `json:"client_hash"`
	ProviderID          uint64             `json:"provider_id"`
	ResourceID          uint64             `json:"resource_id"`
	Type                domain.ServiceType `json:"type"`
	Status              domain.Status      `json:"status"`
	Priority            int                `json:"priority"`
	SpecialRequirements []string           `json:"special_requirements,omitempty"`
	RequestedTime       time.Time          `json:"requested_time"`
	CaseWorker          string             `json:"case_worker,omitempty"`
	Outcome             []byte             `json:"outcome,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
	ExpiresAt           time.Time          `json:"expires_at"`
}

func toRequestResponse(sr *request.ServiceRequest) requestResponse {
	return requestResponse{
		ID:                  uint64(sr.ID),
		ClientHash:          sr.ClientHash.String(),
		ProviderID:          uint64(sr.ProviderID),
		ResourceID:          uint64(sr.ResourceID),
		Type:                sr.Type,
		Status:              sr.Status,
		Priority:            sr.Priority,
		SpecialRequirements: sr.SpecialRequirements,
		RequestedTime:       sr.RequestedTime,
		CaseWorker:          string(sr.CaseWorker),
		Outcome:             sr.Outcome,
		CreatedAt:           sr.CreatedAt,
		UpdatedAt:           sr.UpdatedAt,
		ExpiresAt:           sr.ExpiresAt,
	}
}

func (h *requestHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	hash, err := domain.ParseClientHash(req.ClientHash)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash"))
		return
	}

	sr, err := h.requests.Create(ctx, requestcontext.Actor(ctx), request.CreateParams{
		ClientHash:          hash,
		ProviderID:          domain.ProviderID(req.ProviderID),
		ResourceID:          domain.ResourceID(req.ResourceID),
		Type:                req.Type,
		Priority:            req.Priority,
		SpecialRequirements: req.SpecialRequirements,
		RequestedTime:       req.RequestedTime,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(sr))
}

func (h *requestHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	sr, err := h.requests.Get(r.Context(), requestcontext.Actor(r.Context()), domain.RequestID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(sr))
}

func (h *requestHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		Status domain.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	sr, err := h.requests.UpdateStatus(ctx, requestcontext.Actor(ctx), domain.RequestID(id), req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(sr))
}
