package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var BuildPipeline = BuildPipelineExporter{
	histogram: promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "builder",
			Name:      "pipeline_step_duration_seconds",
			Help:      "How long it took to build an image, partitioned by step name, Rust version and status (success or failure).",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"step", "version", "status"},
	),
}

type BuildPipelineExporter struct {
	histogram *prometheus.HistogramVec
}

func (e *BuildPipelineExporter) Step(succeed bool, step string, version string, startedAt time.Time) {
	status := "success"
	if !succeed {
		status = "failure"
	}

	e.histogram.
		With(prometheus.Labels{
			"step":    step,
			"version": version,
			"status":  status,
		}).
		Observe(time.Since(startedAt).Seconds())
}
