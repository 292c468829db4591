package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safeharbor/internal/provider"
	"safeharbor/pkg/domain"
	"safeharbor/pkg/platform/httputil"
	"safeharbor/pkg/requestcontext"
)

type providerHandler struct {
	providers *provider.Service
	logger    *slog.Logger
}

func newProviderHandler(providers *provider.Service, logger *slog.Logger) *providerHandler {
	return &providerHandler{providers: providers, logger: logger}
}

func (h *providerHandler) register(r chi.Router) {
	r.Post("/providers", h.handleRegister)
	r.Get("/providers/{id}", h.handleGet)
	r.Put("/providers/{id}/capacity", h.handleUpdateCapacity)
	r.Post("/providers/{id}/resources", h.handleAddResource)
	r.Get("/resources/{id}", h.handleGetResource)
	r.Put("/resources/{id}/slots", h.handleSetSlots)
}

type registerProviderRequest struct {
	Name          string               `json:"name"`
	Contact       string               `json:"contact,omitempty"`
	Location      string               `json:"location,omitempty"`
	Services      []domain.ServiceType `json:"services"`
	TotalCapacity int                  `json:"total_capacity"`
}

type providerResponse struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Contact     string               `json:"contact,omitempty"`
	Location    string               `json:"location,omitempty"`
	Services    []domain.ServiceType `json:"services"`
	Total       int                  `json:"total_capacity"`
	Utilization int                  `json:"current_utilization"`
	Available   int                  `json:"available_capacity"`
	Reputation  int                  `json:"reputation"`
	Status      domain.Status        `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toProviderResponse(p *provider.Provider) providerResponse {
	return providerResponse{
		ID:          uint64(p.ID),
		Name:        p.Name,
		Contact:     p.Contact,
		Location:    p.Location,
		Services:    p.Services,
		Total:       p.Capacity.Total,
		Utilization: p.Capacity.Utilization,
		Available:   p.Capacity.Available,
		Reputation:  p.Reputation,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type resourceResponse struct {
	ID             uint64             `json:"id"`
	ProviderID     uint64             `json:"provider_id"`
	Type           domain.ServiceType `json:"type"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	TotalSlots     int                `json:"total_slots"`
	AvailableSlots int                `json:"available_slots"`
	ReservedSlots  int                `json:"reserved_slots"`
	ScheduleStart  time.Time          `json:"schedule_start"`
	ScheduleEnd    time.Time          `json:"schedule_end"`
	Requirements   []string           `json:"requirements,omitempty"`
	Cost           uint64             `json:"cost"`
	Status         domain.Status      `json:"status"`
}

func toResourceResponse(r *provider.Resource) resourceResponse {
	return resourceResponse{
		ID:             uint64(r.ID),
		ProviderID:     uint64(r.ProviderID),
		Type:           r.Type,
		Name:           r.Name,
		Description:    r.Description,
		TotalSlots:     r.Availability.TotalSlots,
		AvailableSlots: r.Availability.AvailableSlots,
		ReservedSlots:  r.Availability.ReservedSlots,
		ScheduleStart:  r.Schedule.Start,
		ScheduleEnd:    r.Schedule.End,
		Requirements:   r.Requirements,
		Cost:           r.Cost,
		Status:         r.Status,
	}
}

func (h *providerHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.providers.Register(ctx, requestcontext.Actor(ctx), provider.RegisterParams{
		Name:          req.Name,
		Contact:       req.Contact,
		Location:      req.Location,
		Services:      req.Services,
		TotalCapacity: req.TotalCapacity,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toProviderResponse(p))
}

func (h *providerHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.providers.GetProvider(r.Context(), domain.ProviderID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProviderResponse(p))
}

func (h *providerHandler) handleUpdateCapacity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		TotalCapacity int `json:"total_capacity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	p, err := h.providers.UpdateCapacity(ctx, requestcontext.Actor(ctx), domain.ProviderID(id), req.TotalCapacity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProviderResponse(p))
}

type addResourceRequest struct {
	Type          domain.ServiceType `json:"type"`
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	TotalSlots    int                `json:"total_slots"`
	ScheduleStart time.Time          `json:"schedule_start"`
	ScheduleEnd   time.Time          `json:"schedule_end"`
	Requirements  []string           `json:"requirements,omitempty"`
	Cost          uint64             `json:"cost,omitempty"`
}

func (h *providerHandler) handleAddResource(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req addResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	res, err := h.providers.AddResource(ctx, requestcontext.Actor(ctx), provider.AddResourceParams{
		ProviderID:  domain.ProviderID(id),
		Type:        req.Type,
		Name:        req.Name,
		Description: req.Description,
		TotalSlots:  req.TotalSlots,
		Schedule: provider.Schedule{
			Start: req.ScheduleStart,
			End:   req.ScheduleEnd,
		},
		Requirements: req.Requirements,
		Cost:         req.Cost,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toResourceResponse(res))
}

func (h *providerHandler) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.providers.GetResource(r.Context(), domain.ResourceID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResourceResponse(res))
}

func (h *providerHandler) handleSetSlots(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		AvailableSlots int `json:"available_slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if err := h.providers.SetAvailableSlots(ctx, requestcontext.Actor(ctx), domain.ResourceID(id), req.AvailableSlots); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.providers.GetResource(ctx, domain.ResourceID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResourceResponse(res))
}
