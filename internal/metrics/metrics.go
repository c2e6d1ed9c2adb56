// Package metrics exposes Prometheus collectors for HTTP traffic and
// authorization decisions.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/yukikurage/project-management-api/internal/authz"
)

var (
	// AuthzDecisionsTotal counts pipeline outcomes. stage is the last stage
	// the request reached before the decision.
	AuthzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_authz_decisions_total",
			Help: "Authorization pipeline decisions",
		},
		[]string{"stage", "outcome", "code"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pm_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pm_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{AuthzDecisionsTotal, RequestsTotal, RequestDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// AuthzRecorder feeds pipeline decisions into AuthzDecisionsTotal.
type AuthzRecorder struct{}

func (AuthzRecorder) RecordDecision(stage authz.Stage, admitted bool, code string) {
	outcome := "rejected"
	if admitted {
		outcome = "admitted"
	}
	AuthzDecisionsTotal.WithLabelValues(stage.String(), outcome, code).Inc()
}

// ObserveRequest records one finished HTTP request.
func ObserveRequest(method, route string, status int, seconds float64) {
	RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(seconds)
}
