package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safeharbor/internal/caserecord"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/httputil"
	"safeharbor/pkg/requestcontext"
)

type caseHandler struct {
	cases  *caserecord.Service
	logger *slog.Logger
}

func newCaseHandler(cases *caserecord.Service, logger *slog.Logger) *caseHandler {
	return &caseHandler{cases: cases, logger: logger}
}

func (h *caseHandler) register(r chi.Router) {
	r.Post("/cases", h.handleCreate)
	r.Get("/cases/{id}", h.handleGet)
	r.Post("/cases/{id}/progress", h.handleAppendProgress)
	r.Post("/cases/{id}/interactions", h.handleRecordInteraction)
	r.Put("/cases/{id}/outcomes", h.handleSetOutcomes)
	r.Post("/cases/{id}/close", h.handleClose)
}

type createCaseRequest struct {
	ClientHash   string   `json:"client_hash"`
	ServicePlan  []byte   `json:"service_plan,omitempty"`
	Goals        []string `json:"goals,omitempty"`
	PrivacyLevel int      `json:"privacy_level"`
}

type progressNoteResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Worker    string    `json:"worker"`
	Note      string    `json:"note"`
}

type historyEntryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID uint64    `json:"request_id"`
	Summary   string    `json:"summary"`
}

type outcomeMetricsBody struct {
	HousingStability    int `json:"housing_stability"`
	EmploymentStatus    int `json:"employment_status"`
	HealthImprovements  int `json:"health_improvements"`
	ServiceSatisfaction int `json:"service_satisfaction"`
}

type caseResponse struct {
	ID            uint64                 `json:"id"`
	ClientHash    string                 `json:"client_hash"`
	Worker        string                 `json:"worker"`
	Status        domain.Status          `json:"status"`
	ServicePlan   []byte                 `json:"service_plan,omitempty"`
	Goals         []string               `json:"goals,omitempty"`
	ProgressNotes []progressNoteResponse `json:"progress_notes,omitempty"`
	History       []historyEntryResponse `json:"history,omitempty"`
	Outcomes      outcomeMetricsBody     `json:"outcomes"`
	PrivacyLevel  int                    `json:"privacy_level"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func toCaseResponse(c *caserecord.CaseRecord) caseResponse {
	notes := make([]progressNoteResponse, 0, len(c.ProgressNotes))
	for _, n := range c.ProgressNotes {
		notes = append(notes, progressNoteResponse{
			Timestamp: n.Timestamp,
			Worker:    string(n.Worker),
			Note:      n.Note,
		})
	}
	history := make([]historyEntryResponse, 0, len(c.History))
	for _, e := range c.History {
		history = append(history, historyEntryResponse{
			Timestamp: e.Timestamp,
			RequestID: uint64(e.RequestID),
			Summary:   e.Summary,
		})
	}
	return caseResponse{
		ID:          uint64(c.ID),
		ClientHash:  c.ClientHash.String(),
		Worker:      string(c.Worker),
		Status:      c.Status,
		ServicePlan: c.ServicePlan,
		Goals:       c.Goals,
		Outcomes: outcomeMetricsBody{
			HousingStability:    c.Outcomes.HousingStability,
			EmploymentStatus:    c.Outcomes.EmploymentStatus,
			HealthImprovements:  c.Outcomes.HealthImprovements,
			ServiceSatisfaction: c.Outcomes.ServiceSatisfaction,
		},
		ProgressNotes: notes,
		History:       history,
		PrivacyLevel:  c.PrivacyLevel,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (h *caseHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	hash, err := domain.ParseClientHash(req.ClientHash)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash"))
		return
	}

	c, err := h.cases.Create(ctx, requestcontext.Actor(ctx), caserecord.CreateParams{
		ClientHash:   hash,
		Goals:        req.Goals,
		PrivacyLevel: req.PrivacyLevel,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toCaseResponse(c))
}

func (h *caseHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.cases.Get(r.Context(), requestcontext.Actor(r.Context()), domain.CaseID(id))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *caseHandler) handleAppendProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	c, err := h.cases.AppendProgress(ctx, requestcontext.Actor(ctx), domain.CaseID(id), req.Note)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *caseHandler) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req struct {
		RequestID uint64 `json:"request_id"`
		Summary   string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	c, err := h.cases.RecordInteraction(ctx, requestcontext.Actor(ctx), domain.CaseID(id),
		domain.RequestID(req.RequestID), req.Summary)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *caseHandler) handleSetOutcomes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r, "id")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req outcomeMetricsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	c, err := h.cases.SetOutcomes(ctx, requestcontext.Actor(ctx), domain.CaseID(id), caserecord.OutcomeMetrics{
		HousingStability:    req.HousingStability,
		EmploymentStatus:    req.EmploymentStatus,
		HealthImprovements:  req.HealthImprovements,
		ServiceSatisfaction: req.ServiceSatisfaction,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

func (h *caseHandler) handleClose(w http.ResponseWriter, r *http.Request) {
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

	c, err := h.cases.Close(ctx, requestcontext.Actor(ctx), domain.CaseID(id), req.Status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}
