package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/dashboard-baker/baker/internal/jobs"
)

// Metrics collects the Prometheus metrics of the web process and of the
// list and dashboard components it hosts.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	listLoads       *prometheus.CounterVec
	listDuration    *prometheus.HistogramVec
	regionRefreshes *prometheus.CounterVec
	regionDuration  *prometheus.HistogramVec
	liveCharts      prometheus.Gauge
	liveViews       prometheus.Gauge
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises the registry and every collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baker_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "baker_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	listLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baker_list_loads_total",
		Help: "List page loads by screen and outcome.",
	}, []string{"screen", "outcome"})
	listDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "baker_list_load_duration_seconds",
		Help:    "Duration of list page loads, including superseded ones.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"screen"})
	regions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "baker_dashboard_region_refreshes_total",
		Help: "Dashboard region refreshes by board, region and final status.",
	}, []string{"board", "region", "status"})
	regionDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "baker_dashboard_region_duration_seconds",
		Help:    "Duration of dashboard region refreshes.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"board"})
	charts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baker_dashboard_live_charts",
		Help: "Rendered charts currently held by dashboard regions.",
	})
	views := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "baker_list_live_views",
		Help: "List views currently open across browser sessions.",
	})
	registry.MustRegister(
		requests, duration, listLoads, listDuration, regions, regionDuration, charts, views,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		listLoads:       listLoads,
		listDuration:    listDuration,
		regionRefreshes: regions,
		regionDuration:  regionDuration,
		liveCharts:      charts,
		liveViews:       views,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records every HTTP request under its chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveLoad implements listing.Observer.
func (m *Metrics) ObserveLoad(screen, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.listLoads.WithLabelValues(screen, outcome).Inc()
	m.listDuration.WithLabelValues(screen).Observe(d.Seconds())
}

// ObserveRegion implements dashboard.Observer.
func (m *Metrics) ObserveRegion(board, region, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.regionRefreshes.WithLabelValues(board, region, status).Inc()
	m.regionDuration.WithLabelValues(board).Observe(d.Seconds())
}

// SetLiveCharts is the dashboard chart pool callback.
func (m *Metrics) SetLiveCharts(n int64) {
	if m == nil {
		return
	}
	m.liveCharts.Set(float64(n))
}

// SetLiveViews reports the number of open list views.
func (m *Metrics) SetLiveViews(n int) {
	if m == nil {
		return
	}
	m.liveViews.Set(float64(n))
}

// Jobs returns the background job collectors.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for extra collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
