package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "retailcrawler"

// Metrics collects crawl metrics on its own registry. It implements the
// fetch, extraction and crawl observers.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched   *prometheus.CounterVec
	fetchErrors    *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	blockedPages   *prometheus.CounterVec
	recordsEmitted *prometheus.CounterVec
	crawlPages     *prometheus.HistogramVec
	crawlDuration  *prometheus.HistogramVec
	published      *prometheus.CounterVec
}

// New creates a Metrics with Go runtime and process collectors registered
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched by retailer and status code",
		}, []string{"retailer", "status"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches by retailer",
		}, []string{"retailer"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Page fetch duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"retailer"}),
		blockedPages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocked_pages_total",
			Help:      "Pages detected as blocked by retailer and extractor kind",
		}, []string{"retailer", "kind"}),
		recordsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Records emitted by extractors",
		}, []string{"retailer", "kind"}),
		crawlPages: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_pages",
			Help:      "Pages fetched per crawl",
			Buckets:   []float64{1, 2, 5, 10, 20, 50},
		}, []string{"retailer"}),
		crawlDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Duration of one paginated crawl",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"retailer"}),
		published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_published_total",
			Help:      "Records published downstream",
		}, []string{"kind"}),
	}
}

// ObserveFetch records one fetch. A zero status means no response arrived.
func (m *Metrics) ObserveFetch(retailer string, status int, elapsed time.Duration, err error) {
	if status > 0 {
		m.pagesFetched.WithLabelValues(retailer, strconv.Itoa(status)).Inc()
	}
	if err != nil {
		m.fetchErrors.WithLabelValues(retailer).Inc()
	}
	m.fetchDuration.WithLabelValues(retailer).Observe(elapsed.Seconds())
}

// ObserveBlocked records a blocked page
func (m *Metrics) ObserveBlocked(retailer, kind, _ string) {
	m.blockedPages.WithLabelValues(retailer, kind).Inc()
}

// ObserveRecords records n emitted records
func (m *Metrics) ObserveRecords(retailer, kind string, n int) {
	m.recordsEmitted.WithLabelValues(retailer, kind).Add(float64(n))
}

// ObserveCrawl records a finished crawl
func (m *Metrics) ObserveCrawl(retailer string, pages int, elapsed time.Duration) {
	m.crawlPages.WithLabelValues(retailer).Observe(float64(pages))
	m.crawlDuration.WithLabelValues(retailer).Observe(elapsed.Seconds())
}

// ObservePublished records n published records of kind
func (m *Metrics) ObservePublished(kind string, n int) {
	m.published.WithLabelValues(kind).Add(float64(n))
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Router serves /metrics and /healthz. A nil health func always reports ok.
func (m *Metrics) Router(health func() error) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
