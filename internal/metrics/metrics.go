// Package metrics exposes the service's Prometheus collectors. Collectors are
// registered once at package load on the default registry; the sampler and the
// auth layer feed them.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wgconsole_http_requests_total",
			Help: "HTTP requests served, by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	interfaces = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wgconsole_interfaces",
			Help: "Number of managed interfaces.",
		},
	)

	peersOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wgconsole_peers_online",
			Help: "Peers with a recent handshake, per interface.",
		},
		[]string{"interface"},
	)

	transferBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wgconsole_transfer_bytes_total",
			Help: "Cumulative transfer as reported by the kernel, per interface and direction.",
		},
		[]string{"interface", "direction"},
	)

	logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wgconsole_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"},
	)
)

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware counts every request under its chi route pattern so path
// parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

// RecordLogin counts a login attempt ("success", "failure", "rate_limited").
func RecordLogin(result string) {
	logins.WithLabelValues(result).Inc()
}

// SetInterfaceCount publishes the number of managed interfaces.
func SetInterfaceCount(n int) {
	interfaces.Set(float64(n))
}

// SetInterfaceStats publishes the per-interface gauges from a merged view.
func SetInterfaceStats(name string, online int, rx, tx int64) {
	peersOnline.WithLabelValues(name).Set(float64(online))
	transferBytes.WithLabelValues(name, "rx").Set(float64(rx))
	transferBytes.WithLabelValues(name, "tx").Set(float64(tx))
}

// ResetInterfaceSeries drops every per-interface series ahead of a refresh so
// deleted interfaces disappear from the scrape instead of going stale.
func ResetInterfaceSeries() {
	peersOnline.Reset()
	transferBytes.Reset()
}
