package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "sportclassifier"

// Metrics holds the collectors of one gateway instance on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	predictions *prometheus.CounterVec
	steps       *prometheus.CounterVec
	inference   prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction requests by response status and failure reason.",
		}, []string{"status", "reason"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependent_steps_total",
			Help:      "Outcomes of the storage and record steps.",
		}, []string{"step", "outcome"}),
		inference: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent decoding and classifying one image.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePrediction counts one finished request. reason is empty on success.
func (m *Metrics) ObservePrediction(status, reason string) {
	m.predictions.WithLabelValues(status, reason).Inc()
}

func (m *Metrics) ObserveStep(step, outcome string) {
	m.steps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) ObserveInference(d time.Duration) {
	m.inference.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler(log *zap.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      errorLogger{log: log},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

type errorLogger struct {
	log *zap.Logger
}

// Println implements promhttp.Logger.
func (l errorLogger) Println(v ...interface{}) {
	l.log.Error("Metrics exposition failed", zap.String("detail", fmt.Sprint(v...)))
}
