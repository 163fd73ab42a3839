package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
)

const namespace = "graphcat"

// Outcomes of catalog operations.
const (
	OutcomeOK            = "ok"
	OutcomeNotFound      = "not_found"
	OutcomeAlreadyExists = "already_exists"
	OutcomeForbidden     = "forbidden"
	OutcomeInvalid       = "invalid"
	OutcomeError         = "error"
)

// Metrics holds the collectors of one catalog on a registry of its own.
type Metrics struct {
	Registry *prometheus.Registry

	operations    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	namespaces    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "operations_total",
				Help:      "Catalog operations by operation, namespace and outcome.",
			},
			[]string{"op", "namespace", "outcome"},
		),
		storeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "catalog",
				Name:      "store_duration_seconds",
				Help:      "Duration of successful graph stores.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"namespace"},
		),
		namespaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "namespaces",
			Help:      "Registered namespaces, the session namespace included.",
		}),
	}

	m.Registry.MustRegister(m.operations, m.storeDuration, m.namespaces)

	return m
}

// Outcome classifies err by its error kind.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errs.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, errs.ErrAlreadyExists):
		return OutcomeAlreadyExists
	case errors.Is(err, errs.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, errs.ErrIllegalArgument),
		errors.Is(err, errs.ErrSchemaConflict),
		errors.Is(err, errs.ErrSchemaMismatch):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

func (m *Metrics) ObserveOperation(op, ns string, err error) {
	m.operations.WithLabelValues(op, ns, Outcome(err)).Inc()
}

func (m *Metrics) ObserveStore(ns string, d time.Duration) {
	m.storeDuration.WithLabelValues(ns).Observe(d.Seconds())
}

func (m *Metrics) SetNamespaces(n int) {
	m.namespaces.Set(float64(n))
}

func (m *Metrics) Operations() *prometheus.CounterVec {
	return m.operations
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
