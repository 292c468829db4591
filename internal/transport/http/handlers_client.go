package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"safeharbor/internal/caserecord"
	"safeharbor/internal/client"
	"safeharbor/internal/request"
	"safeharbor/pkg/domain"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/httputil"
	"safeharbor/pkg/requestcontext"
)

type clientHandler struct {
	clients  *client.Service
	requests *request.Service
	cases    *caserecord.Service
	logger   *slog.Logger
}

func newClientHandler(clients *client.Service, requests *request.Service, cases *caserecord.Service, logger *slog.Logger) *clientHandler {
	return &clientHandler{clients: clients, requests: requests, cases: cases, logger: logger}
}

func (h *clientHandler) register(r chi.Router) {
	r.Post("/clients", h.handleRegister)
	r.Get("/clients/{hash}", h.handleGet)
	r.Get("/clients/{hash}/requests", h.handleListRequests)
	r.Get("/clients/{hash}/cases", h.handleListCases)
}

type registerClientRequest struct {
	RawIdentity        string               `json:"raw_identity"`
	RiskLevel          int                  `json:"risk_level"`
	PriorityScore      int                  `json:"priority_score"`
	PreferredServices  []domain.ServiceType `json:"preferred_services,omitempty"`
	AccessibilityNeeds []string             `json:"accessibility_needs,omitempty"`
	EmergencyContact   []byte               `json:"emergency_contact,omitempty"`
}

type clientResponse struct {
	Hash               string               `json:"hash"`
	CreatedAt          time.Time            `json:"created_at"`
	LastAccess         time.Time            `json:"last_access"`
	RiskLevel          int                  `json:"risk_level"`
	PriorityScore      int                  `json:"priority_score"`
	PreferredServices  []domain.ServiceType `json:"preferred_services,omitempty"`
	AccessibilityNeeds []string             `json:"accessibility_needs,omitempty"`
}

func toClientResponse(c *client.Client) clientResponse {
	return clientResponse{
		Hash:               c.Hash.String(),
		CreatedAt:          c.CreatedAt,
		LastAccess:         c.LastAccess,
		RiskLevel:          int(c.RiskLevel),
		PriorityScore:      c.PriorityScore,
		PreferredServices:  c.PreferredServices,
		AccessibilityNeeds: c.AccessibilityNeeds,
	}
}

func (h *clientHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req registerClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	c, err := h.clients.Register(ctx, requestcontext.Actor(ctx), []byte(req.RawIdentity), client.RegisterParams{
		RiskLevel:          client.RiskLevel(req.RiskLevel),
		PriorityScore:      req.PriorityScore,
		PreferredServices:  req.PreferredServices,
		AccessibilityNeeds: req.AccessibilityNeeds,
		EmergencyContact:   req.EmergencyContact,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toClientResponse(c))
}

func (h *clientHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, err := domain.ParseClientHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash"))
		return
	}

	c, err := h.clients.Get(ctx, requestcontext.Actor(ctx), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *clientHandler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, err := domain.ParseClientHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash"))
		return
	}

	out, err := h.requests.ListForClient(ctx, requestcontext.Actor(ctx), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := make([]requestResponse, 0, len(out))
	for _, sr := range out {
		resp = append(resp, toRequestResponse(sr))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *clientHandler) handleListCases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hash, err := domain.ParseClientHash(chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid client hash"))
		return
	}

	out, err := h.cases.ListForClient(ctx, requestcontext.Actor(ctx), hash)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := make([]caseResponse, 0, len(out))
	for _, c := range out {
		resp = append(resp, toCaseResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
