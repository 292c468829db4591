package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	ReservationsMade     prometheus.Counter
	ReservationsReleased prometheus.Counter
	ReservationConflicts prometheus.Counter
	RequestsCreated      prometheus.Counter
	RequestStatusChanges *prometheus.CounterVec
	ClientsRegistered    prometheus.Counter
	CasesCreated         prometheus.Counter
	CaseProgressAppended prometheus.Counter
	AccessDenied         prometheus.Counter
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New creates and registers all metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReservationsMade: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_reservations_made_total",
			Help: "Total slot reservations that succeeded.",
		}),
		ReservationsReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_reservations_released_total",
			Help: "Total slots released back on cancellation.",
		}),
		ReservationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_reservation_conflicts_total",
			Help: "Total reservation attempts rejected for exhausted slots.",
		}),
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_requests_created_total",
			Help: "Total service requests created.",
		}),
		RequestStatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safeharbor_request_status_changes_total",
			Help: "Service request status transitions by target status.",
		}, []string{"status"}),
		ClientsRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_clients_registered_total",
			Help: "Total anonymous clients registered.",
		}),
		CasesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_cases_created_total",
			Help: "Total case records opened.",
		}),
		CaseProgressAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_case_progress_appended_total",
			Help: "Total progress notes appended to case records.",
		}),
		AccessDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "safeharbor_access_denied_total",
			Help: "Total privacy-gated operations denied authorization.",
		}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "safeharbor_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// NewDefault registers against the global Prometheus registry.
func NewDefault() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
