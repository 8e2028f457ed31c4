// Package metrics exposes Prometheus instrumentation for the broker: outbound calls to
// the ticketing and streaming providers, client token refreshes, per-stream registration
// outcomes, and inbound HTTP requests. Handler serves everything at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider names used as label values
const (
	ProviderPretix  = "pretix"
	ProviderJstream = "jstream"
)

// UpstreamRequests counts outbound provider calls by provider, operation, and result
var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keyticket_upstream_requests_total",
	Help: "Outbound requests to the ticketing and streaming providers.",
}, []string{"provider", "operation", "result"})

// UpstreamDuration tracks outbound provider call latency
var UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "keyticket_upstream_request_duration_seconds",
	Help:    "Outbound provider request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"provider", "operation"})

// StreamRegistrations counts per-stream registration outcomes at login
var StreamRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keyticket_stream_registrations_total",
	Help: "Per-stream user registrations attempted at login, by result.",
}, []string{"result"})

// HTTPRequests counts inbound requests by route template, method, and status code
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "keyticket_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"route", "method", "status"})

// ObserveUpstream records the outcome and latency of a single provider call
func ObserveUpstream(provider string, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	UpstreamRequests.WithLabelValues(provider, operation, result).Inc()
	UpstreamDuration.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}

// ObserveRegistration records whether a single stream registration succeeded
func ObserveRegistration(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	StreamRegistrations.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts each request handled by a mux router, labeled with the matched
// route's path template so that query strings and IDs don't explode cardinality
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: res, status: http.StatusOK}
		next.ServeHTTP(rec, req)

		route := "unmatched"
		if r := mux.CurrentRoute(req); r != nil {
			if tpl, err := r.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		HTTPRequests.WithLabelValues(route, req.Method, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
