package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salestory_questions_total",
			Help: "Total number of natural-language questions processed.",
		},
	)
	sqlValidationRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salestory_sql_validation_rejections_total",
			Help: "Total number of generated queries rejected by the safety policy.",
		},
	)
	queryExecutionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salestory_query_execution_failures_total",
			Help: "Total number of validated queries that failed at the storage layer.",
		},
	)
	columnReconciliationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salestory_column_reconciliations_total",
			Help: "Total number of result sets whose claimed column names needed correction.",
		},
	)
	narrativeFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salestory_narrative_fallbacks_total",
			Help: "Total number of degraded narratives by kind (fallback or error).",
		},
		[]string{"kind"},
	)
	queryRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salestory_query_rows_returned",
			Help:    "Row counts of successfully executed queries.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)
	pipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "salestory_pipeline_stage_duration_seconds",
			Help:    "Latency of pipeline stages (sql_generation, execution, narrative).",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		sqlValidationRejectionsTotal,
		queryExecutionFailuresTotal,
		columnReconciliationsTotal,
		narrativeFallbacksTotal,
		queryRowsReturned,
		pipelineDurationSeconds,
	)
}

func ObserveQuestion() {
	questionsTotal.Inc()
}

func ObserveValidationRejection() {
	sqlValidationRejectionsTotal.Inc()
}

func ObserveExecutionFailure() {
	queryExecutionFailuresTotal.Inc()
}

func ObserveColumnReconciliation() {
	columnReconciliationsTotal.Inc()
}

func ObserveNarrativeFallback(kind string) {
	narrativeFallbacksTotal.WithLabelValues(kind).Inc()
}

func ObserveQueryRows(rows int) {
	queryRowsReturned.Observe(float64(rows))
}

func ObserveStageDuration(stage string, elapsed time.Duration) {
	pipelineDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}
