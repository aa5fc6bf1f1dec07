package conduit

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeValid   = "valid"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// metrics holds the prometheus collectors updated after every dispatch.
type metrics struct {
	dispatches *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conduit",
		Name:      "dispatch_total",
		Help:      "Operation dispatches by controller entry point, operation and outcome.",
	}, []string{"verb", "operation", "outcome"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "conduit",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent in operation dispatches, including the responder.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"verb", "operation"})

	registeredDispatches, err := register(reg, dispatches)
	if err != nil {
		return nil, err
	}
	registeredDuration, err := register(reg, duration)
	if err != nil {
		return nil, err
	}

	return &metrics{
		dispatches: registeredDispatches,
		duration:   registeredDuration,
	}, nil
}

// register registers collector, reusing an identical collector that is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("registering collector : %w", err)
	}
	return collector, nil
}

func (m *metrics) observe(verb, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(verb, operation, outcome).Inc()
	m.duration.WithLabelValues(verb, operation).Observe(elapsed.Seconds())
}
