// Package metrics exposes endpoint lifecycle counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "svclaunch"

// Collector implements launch.MetricsCollector on its own registry.
type Collector struct {
	launches     *prometheus.CounterVec
	restarts     *prometheus.CounterVec
	terminations *prometheus.CounterVec
	validations  *prometheus.CounterVec
	validateTime *prometheus.HistogramVec
	healthy      *prometheus.GaugeVec

	registry *prometheus.Registry
}

var _ launch.MetricsCollector = (*Collector)(nil)

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	c := &Collector{registry: prometheus.NewRegistry()}

	c.launches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_launches_total",
		Help:      "Total number of processes spawned per endpoint.",
	}, []string{"endpoint"})
	c.restarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_restarts_total",
		Help:      "Total number of successful endpoint restarts.",
	}, []string{"endpoint"})
	c.terminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_terminations_total",
		Help:      "Total number of endpoint processes terminated by the launcher.",
	}, []string{"endpoint"})
	c.validations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_validations_total",
		Help:      "Health validations per endpoint and result.",
	}, []string{"endpoint", "result"})
	c.validateTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "endpoint_validation_duration_seconds",
		Help:      "Duration of health validations.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})
	c.healthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "endpoint_healthy",
		Help:      "Result of the last validation (1=healthy, 0=unhealthy).",
	}, []string{"endpoint"})

	c.registry.MustRegister(c.launches, c.restarts, c.terminations, c.validations, c.validateTime, c.healthy)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) EndpointLaunched(endpoint string) {
	c.launches.WithLabelValues(endpoint).Inc()
}

func (c *Collector) EndpointRestarted(endpoint string) {
	c.restarts.WithLabelValues(endpoint).Inc()
}

func (c *Collector) EndpointValidated(endpoint string, duration time.Duration, err error) {
	result, healthy := "healthy", 1.0
	if err != nil {
		result, healthy = "unhealthy", 0
	}
	c.validations.WithLabelValues(endpoint, result).Inc()
	c.validateTime.WithLabelValues(endpoint).Observe(duration.Seconds())
	c.healthy.WithLabelValues(endpoint).Set(healthy)
}

func (c *Collector) EndpointTerminated(endpoint string) {
	c.terminations.WithLabelValues(endpoint).Inc()
}
