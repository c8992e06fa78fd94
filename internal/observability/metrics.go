package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	endpointDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets         = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the form engine.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Form lifecycle metrics
	FormMutationsTotal       *prometheus.CounterVec
	FormPublishFailuresTotal *prometheus.CounterVec

	// Validation metrics
	ValidationRunsTotal         *prometheus.CounterVec
	ValidationRuleFailuresTotal *prometheus.CounterVec

	// Options metrics
	OptionsRequestsTotal    *prometheus.CounterVec
	OptionsCacheHitsTotal   prometheus.Counter
	OptionsCacheMissesTotal prometheus.Counter
	EndpointRequestsTotal   *prometheus.CounterVec
	EndpointRequestDuration *prometheus.HistogramVec
	EndpointBreakerState    *prometheus.GaugeVec

	// Template and catalog metrics
	TemplateInstantiationsTotal *prometheus.CounterVec
	CatalogSeedTotal            *prometheus.CounterVec
	TemplatesLoaded             prometheus.Gauge

	// Store metrics
	StoreConflictsTotal *prometheus.CounterVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsmith_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsmith_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsmith_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Form lifecycle
		FormMutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_form_mutations_total",
			Help: "Total number of form mutations by action.",
		}, []string{"action"}),
		FormPublishFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_form_publish_failures_total",
			Help: "Total number of rejected publish attempts.",
		}, []string{"reason"}),

		// Validation
		ValidationRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_validation_runs_total",
			Help: "Total number of answer validation runs.",
		}, []string{"outcome"}),
		ValidationRuleFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_validation_rule_failures_total",
			Help: "Total number of failed validation rules by rule type.",
		}, []string{"rule_type"}),

		// Options
		OptionsRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_options_requests_total",
			Help: "Total number of option resolutions by source.",
		}, []string{"source", "status"}),
		OptionsCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsmith_options_cache_hits_total",
			Help: "Total option cache hits.",
		}),
		OptionsCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "formsmith_options_cache_misses_total",
			Help: "Total option cache misses.",
		}),
		EndpointRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_endpoint_requests_total",
			Help: "Total number of remote option endpoint requests.",
		}, []string{"endpoint", "status"}),
		EndpointRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "formsmith_endpoint_request_duration_seconds",
			Help:    "Remote option endpoint request duration in seconds.",
			Buckets: endpointDurationBuckets,
		}, []string{"endpoint"}),
		EndpointBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "formsmith_endpoint_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"endpoint"}),

		// Templates and catalog
		TemplateInstantiationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_template_instantiations_total",
			Help: "Total number of questions created from templates.",
		}, []string{"template_id"}),
		CatalogSeedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_catalog_seed_total",
			Help: "Total catalog seeding runs.",
		}, []string{"status"}),
		TemplatesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "formsmith_templates_loaded",
			Help: "Number of templates loaded from catalog packs.",
		}),

		// Store
		StoreConflictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "formsmith_store_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts.",
		}, []string{"entity"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		// Form lifecycle
		m.FormMutationsTotal,
		m.FormPublishFailuresTotal,
		// Validation
		m.ValidationRunsTotal,
		m.ValidationRuleFailuresTotal,
		// Options
		m.OptionsRequestsTotal,
		m.OptionsCacheHitsTotal,
		m.OptionsCacheMissesTotal,
		m.EndpointRequestsTotal,
		m.EndpointRequestDuration,
		m.EndpointBreakerState,
		// Templates and catalog
		m.TemplateInstantiationsTotal,
		m.CatalogSeedTotal,
		m.TemplatesLoaded,
		// Store
		m.StoreConflictsTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordFormMutation records a form lifecycle action (created, updated,
// published, unpublished, archived).
func (m *Metrics) RecordFormMutation(action string) {
	m.FormMutationsTotal.WithLabelValues(action).Inc()
}

// RecordFormPublishFailure records a rejected publish attempt.
func (m *Metrics) RecordFormPublishFailure(reason string) {
	m.FormPublishFailuresTotal.WithLabelValues(reason).Inc()
}

// RecordValidationRun records an answer validation run.
func (m *Metrics) RecordValidationRun(outcome string) {
	m.ValidationRunsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidationRuleFailure records a failed validation rule.
func (m *Metrics) RecordValidationRuleFailure(ruleType string) {
	m.ValidationRuleFailuresTotal.WithLabelValues(ruleType).Inc()
}

// RecordOptionsRequest records an option resolution.
func (m *Metrics) RecordOptionsRequest(source, status string) {
	m.OptionsRequestsTotal.WithLabelValues(source, status).Inc()
}

// RecordOptionsCacheHit records an option cache hit.
func (m *Metrics) RecordOptionsCacheHit() {
	m.OptionsCacheHitsTotal.Inc()
}

// RecordOptionsCacheMiss records an option cache miss.
func (m *Metrics) RecordOptionsCacheMiss() {
	m.OptionsCacheMissesTotal.Inc()
}

// RecordEndpointRequest records a remote option endpoint request.
func (m *Metrics) RecordEndpointRequest(endpoint string, status int, duration time.Duration) {
	m.EndpointRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.EndpointRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetEndpointBreakerState sets the circuit breaker state for an endpoint.
// State: 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetEndpointBreakerState(endpoint string, state float64) {
	m.EndpointBreakerState.WithLabelValues(endpoint).Set(state)
}

// RecordTemplateInstantiation records a question created from a template.
func (m *Metrics) RecordTemplateInstantiation(templateID string) {
	m.TemplateInstantiationsTotal.WithLabelValues(templateID).Inc()
}

// RecordCatalogSeed records a catalog seeding run.
func (m *Metrics) RecordCatalogSeed(status string) {
	m.CatalogSeedTotal.WithLabelValues(status).Inc()
}

// SetTemplatesLoaded sets the number of templates loaded from catalog packs.
func (m *Metrics) SetTemplatesLoaded(count float64) {
	m.TemplatesLoaded.Set(count)
}

// RecordStoreConflict records an optimistic concurrency conflict.
func (m *Metrics) RecordStoreConflict(entity string) {
	m.StoreConflictsTotal.WithLabelValues(entity).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
