// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services, and encode; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safeharbor/internal/admin"
	"safeharbor/internal/caserecord"
	"safeharbor/internal/client"
	"safeharbor/internal/platform/metrics"
	"safeharbor/internal/platform/middleware"
	"safeharbor/internal/provider"
	"safeharbor/internal/request"
	dErrors "safeharbor/pkg/domain-errors"
	"safeharbor/pkg/platform/httputil"
)

// Services bundles the domain services the router exposes.
type Services struct {
	Clients   *client.Service
	Providers *provider.Service
	Requests  *request.Service
	Cases     *caserecord.Service
	Admin     *admin.Service
}

// NewRouter wires every endpoint behind the shared middleware chain. All
// routes except health and metrics require a bearer token; the token subject
// becomes the acting principal.
func NewRouter(svcs Services, signingKey []byte, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	if m != nil {
		r.Use(middleware.Latency(m))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(signingKey, logger))

		newClientHandler(svcs.Clients, svcs.Requests, svcs.Cases, logger).register(r)
		newProviderHandler(svcs.Providers, logger).register(r)
		newRequestHandler(svcs.Requests, logger).register(r)
		newCaseHandler(svcs.Cases, logger).register(r)
		newAdminHandler(svcs.Admin, logger).register(r)
	})

	return r
}

// pathID parses a numeric path parameter.
func pathID(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s %q", name, raw)
	}
	return id, nil
}

func writeInvalidBody(w http.ResponseWriter) {
	httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
}
