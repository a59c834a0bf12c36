// Package metrics exports build timings in the Prometheus text format so CI
// machines can pick them up through the node exporter's textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/ngld/rackbuild/pkg/buildsys"
)

// Collector holds the metrics for a single run
type Collector struct {
	registry     *prometheus.Registry
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
	targets      *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// New creates a collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rackbuild_step_duration_seconds",
			Help:    "Duration of each build step.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"target", "step"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rackbuild_step_failures_total",
			Help: "Number of build steps that exited with a non-zero status.",
		}, []string{"target", "step"}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rackbuild_targets_total",
			Help: "Number of targets processed, by kind and outcome.",
		}, []string{"kind", "status"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rackbuild_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	c.registry.MustRegister(c.stepDuration, c.stepFailures, c.targets, c.lastRun)
	return c
}

// Observe records every step of the report. Skipped steps are ignored.
func (c *Collector) Observe(report *buildsys.Report) {
	for _, target := range report.Targets {
		c.targets.WithLabelValues(string(target.Kind), string(target.Status())).Inc()

		for _, step := range target.Steps {
			switch step.Status {
			case buildsys.StepOK:
				c.stepDuration.WithLabelValues(target.Name, step.Name).Observe(step.Duration.Seconds())
			case buildsys.StepFailed:
				c.stepDuration.WithLabelValues(target.Name, step.Name).Observe(step.Duration.Seconds())
				c.stepFailures.WithLabelValues(target.Name, step.Name).Inc()
			}
		}
	}

	if !report.Finished.IsZero() {
		c.lastRun.Set(float64(report.Finished.Unix()))
	}
}

// Gatherer exposes the underlying registry
func (c *Collector) Gatherer() prometheus.Gatherer {
	return c.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format
func (c *Collector) WriteTextfile(path string) error {
	err := prometheus.WriteToTextfile(path, c.registry)
	if err != nil {
		return eris.Wrapf(err, "Failed to write metrics to %s", path)
	}

	return nil
}
