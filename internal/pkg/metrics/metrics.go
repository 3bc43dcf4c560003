package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - prometheus-метрики сервиса. Все методы безопасны для nil-получателя.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	loadDuration      *prometheus.HistogramVec
	loadFailures      *prometheus.CounterVec
	aggregateDuration prometheus.Histogram
	datasetReady      prometheus.Gauge
	datasetRecords    prometheus.Gauge
	reloadEvents      *prometheus.CounterVec
}

// New создает метрики на собственном реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_map_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permit_map_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_map_cache_hits_total",
			Help: "Total cache hits by cache kind.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_map_cache_misses_total",
			Help: "Total cache misses by cache kind.",
		}, []string{"kind"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "permit_map_dataset_load_duration_seconds",
			Help:    "Histogram of dataset load durations by dataset.",
			Buckets: prometheus.DefBuckets,
		}, []string{"dataset"}),
		loadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_map_dataset_load_failures_total",
			Help: "Total dataset load failures by dataset.",
		}, []string{"dataset"}),
		aggregateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "permit_map_aggregation_duration_seconds",
			Help:    "Histogram of aggregate view computation durations.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		datasetReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "permit_map_dataset_ready",
			Help: "1 when permits, permit types and boundaries are loaded.",
		}),
		datasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "permit_map_dataset_records",
			Help: "Number of weekly permit records currently loaded.",
		}),
		reloadEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "permit_map_reload_events_total",
			Help: "Total reload events processed by the worker by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpDuration,
		m.cacheHits,
		m.cacheMisses,
		m.loadDuration,
		m.loadFailures,
		m.aggregateDuration,
		m.datasetReady,
		m.datasetRecords,
		m.reloadEvents,
	)

	return m
}

// Handler отдает метрики в формате prometheus
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Middleware считает запросы и длительность по шаблону маршрута
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if m == nil {
			return err
		}

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		method := c.Method()
		m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func (m *Metrics) CacheHit(kind string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) CacheMiss(kind string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(kind).Inc()
}

// DatasetLoad фиксирует загрузку одного набора данных
func (m *Metrics) DatasetLoad(dataset string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(dataset).Observe(duration.Seconds())
	if !success {
		m.loadFailures.WithLabelValues(dataset).Inc()
	}
}

func (m *Metrics) Aggregation(duration time.Duration) {
	if m == nil {
		return
	}
	m.aggregateDuration.Observe(duration.Seconds())
}

// DatasetState обновляет готовность и размер набора записей
func (m *Metrics) DatasetState(ready bool, records int) {
	if m == nil {
		return
	}
	if ready {
		m.datasetReady.Set(1)
	} else {
		m.datasetReady.Set(0)
	}
	m.datasetRecords.Set(float64(records))
}

func (m *Metrics) ReloadEvent(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.reloadEvents.WithLabelValues(result).Inc()
}
