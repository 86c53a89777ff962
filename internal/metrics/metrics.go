package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and histograms for dispatch, resend and the HTTP surface.
// All methods are safe on a nil receiver.
type Metrics struct {
	dispatchTotal   *prometheus.CounterVec
	resendTotal     *prometheus.CounterVec
	gatewayLatency  prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDurationSec *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "result_messaging",
			Subsystem: "sms",
			Name:      "dispatch_total",
			Help:      "SMS send attempts by outcome.",
		}, []string{"status"}),
		resendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "result_messaging",
			Subsystem: "sms",
			Name:      "resend_total",
			Help:      "Resends of failed SMS records by outcome.",
		}, []string{"status"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "result_messaging",
			Subsystem: "sms",
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of HTTP requests to the SMS gateway.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "result_messaging",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status_code"}),
		httpDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "result_messaging",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchTotal, m.resendTotal, m.gatewayLatency, m.httpRequests, m.httpDurationSec)
	return m
}

func (m *Metrics) ObserveDispatch(sent bool) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(statusLabel(sent)).Inc()
}

func (m *Metrics) ObserveResend(status string) {
	if m == nil {
		return
	}
	m.resendTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveGatewayLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.Observe(d.Seconds())
}

// Middleware records request counts and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		path := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.httpDurationSec.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	})
}

func statusLabel(sent bool) string {
	if sent {
		return "sent"
	}
	return "failed"
}
