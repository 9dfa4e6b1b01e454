package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsense_jobs_processed_total",
		Help: "Total number of analysis jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidsense_job_processing_duration_seconds",
		Help:    "Duration of the video analysis pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	KeyFramesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidsense_key_frames_selected_total",
		Help: "Total number of key frames selected across all jobs",
	})

	FramesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidsense_frames_skipped_total",
		Help: "Total number of undecodable frames skipped across all jobs",
	})

	AnnotationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidsense_annotation_failures_total",
		Help: "Total number of key frames the annotator failed to label",
	})

	AlignmentQualityLevel = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsense_alignment_quality_total",
		Help: "Completed alignments by reported quality level",
	}, []string{"level"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidsense_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidsense_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
