package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ImportTasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "tasks_created_total",
		Help:      "Import tasks accepted through the upload endpoint.",
	})

	ImportTasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "tasks_claimed_total",
		Help:      "Import tasks claimed by a worker.",
	})

	// ImportTasksFinished is labelled by outcome: completed, ingestion_failed or reaped.
	ImportTasksFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "tasks_finished_total",
		Help:      "Import tasks moved to finished, by outcome.",
	}, []string{"outcome"})

	ImportTaskErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "task_errors_total",
		Help:      "Import tasks aborted by an infrastructure error and left processing.",
	})

	ImportEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "entries_total",
		Help:      "Staging entries resolved, by status.",
	}, []string{"status"})

	ImportBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mcatalog",
		Subsystem: "import",
		Name:      "batch_duration_seconds",
		Help:      "Time spent staging and matching one batch.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

const (
	OutcomeCompleted       = "completed"
	OutcomeIngestionFailed = "ingestion_failed"
	OutcomeReaped          = "reaped"
)
