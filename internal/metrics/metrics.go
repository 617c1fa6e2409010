package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	serverStarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailauto",
			Subsystem: "server",
			Name:      "starts_total",
			Help:      "Number of successful Appium server starts.",
		},
	)
	serverStops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mailauto",
			Subsystem: "server",
			Name:      "stops_total",
			Help:      "Number of Appium server stops (graceful or kill).",
		},
	)
	serverStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailauto",
			Subsystem: "server",
			Name:      "start_failures_total",
			Help:      "Number of failed start attempts by reason.",
		}, []string{"reason"},
	)
	serverStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mailauto",
			Subsystem: "server",
			Name:      "start_duration_seconds",
			Help:      "Time from spawn until the first healthy probe.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	probeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailauto",
			Subsystem: "server",
			Name:      "probe_checks_total",
			Help:      "Health probe outcomes by probe kind and result.",
		}, []string{"probe", "result"},
	)
	automationRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailauto",
			Subsystem: "automation",
			Name:      "runs_total",
			Help:      "Completed automation runs by outcome.",
		}, []string{"outcome"},
	)
	automationStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mailauto",
			Subsystem: "automation",
			Name:      "step_duration_seconds",
			Help:      "Duration of individual automation steps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		serverStarts, serverStops, serverStartFailures, serverStartDuration,
		probeChecks, automationRuns, automationStepDuration,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// default gatherer. The caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers used by internal packages. They no-op until Register
// has been called.

func IncServerStart() {
	if regOK.Load() {
		serverStarts.Inc()
	}
}

func IncServerStop() {
	if regOK.Load() {
		serverStops.Inc()
	}
}

func IncStartFailure(reason string) {
	if regOK.Load() {
		serverStartFailures.WithLabelValues(reason).Inc()
	}
}

func ObserveStartDuration(seconds float64) {
	if regOK.Load() {
		serverStartDuration.Observe(seconds)
	}
}

func IncProbeCheck(probe, result string) {
	if regOK.Load() {
		probeChecks.WithLabelValues(probe, result).Inc()
	}
}

func IncRun(outcome string) {
	if regOK.Load() {
		automationRuns.WithLabelValues(outcome).Inc()
	}
}

func ObserveStep(step string, seconds float64) {
	if regOK.Load() {
		automationStepDuration.WithLabelValues(step).Observe(seconds)
	}
}
