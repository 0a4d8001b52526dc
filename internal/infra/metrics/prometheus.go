package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExamplesLoadedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_dataset_examples_loaded_total",
		Help: "Total number of dataset examples loaded, by dataset kind and outcome",
	}, []string{"dataset", "outcome"})

	LoadStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_dataset_load_stage_duration_seconds",
		Help:    "Duration of each example loading stage",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_dataset_frames_decoded_total",
		Help: "Total number of video frames decoded across all examples",
	})

	ExportJobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_clip_export_jobs_processed_total",
		Help: "Total number of clip export jobs processed, by status",
	}, []string{"status"})

	ExportStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_clip_export_stage_duration_seconds",
		Help:    "Duration of clip export pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_clip_export_active_workers",
		Help: "Number of workers currently exporting clips",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_clip_export_retry_total",
		Help: "Total number of clip export retries",
	}, []string{"attempt"})
)
