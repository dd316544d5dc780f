package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TreesOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bandtree_trees_open",
		Help: "Number of tree sessions currently open.",
	})

	CommandsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bandtree_commands_applied_total",
		Help: "Total number of tree commands applied, labelled by kind and status.",
	}, []string{"kind", "status"})

	CommandsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bandtree_commands_rejected_total",
		Help: "Total number of commands rejected because a tree's queue was full.",
	})

	NodesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bandtree_nodes_created_total",
		Help: "Total number of nodes created, roots included.",
	})

	NodesDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bandtree_nodes_deleted_total",
		Help: "Total number of nodes removed by cascading deletes.",
	})

	DraftsCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bandtree_question_drafts_committed_total",
		Help: "Total number of debounced question drafts committed.",
	})

	ValidationRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bandtree_validation_runs_total",
		Help: "Total number of tree validations, labelled by result.",
	}, []string{"result"})

	ProjectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bandtree_projection_duration_ms",
		Help:    "Time to project and validate a tree after a mutation, in milliseconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bandtree_queue_utilization",
		Help: "Queued commands over total queue capacity across open trees (0-1).",
	})

	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bandtree_stream_subscribers",
		Help: "Number of live snapshot stream subscribers.",
	})
)
