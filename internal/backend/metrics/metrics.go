package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the process registry and the instruments the server and
// the task worker record into.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tasksTotal      *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	cacheTotal      *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Count of handled HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "background_tasks_total",
			Help: "Count of executed background tasks.",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "background_task_duration_seconds",
			Help:    "Background task execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Count of cache lookups by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestsTotal,
		m.requestDuration,
		m.tasksTotal,
		m.taskDuration,
		m.cacheTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTask(task string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	m.tasksTotal.WithLabelValues(task, status).Inc()
	m.taskDuration.WithLabelValues(task).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCache(hit bool) {
	result := "hit"
	if !hit {
		result = "miss"
	}

	m.cacheTotal.WithLabelValues(result).Inc()
}
