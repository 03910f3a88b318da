package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	batchesTotalCounter    *prometheus.CounterVec
	recordsWrittenCounter  *prometheus.CounterVec
	batchDurationMetric    prometheus.Histogram
	evalExecutionsCounter  *prometheus.CounterVec
	evalRetriesCounter     prometheus.Counter
	messagesDroppedCounter *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		batchesTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_batches_total",
				Help: "Total number of processed ingestion batches by outcome.",
			},
			[]string{"outcome"},
		)

		recordsWrittenCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_written_total",
				Help: "Total number of records written to the columnar store by table.",
			},
			[]string{"table"},
		)

		batchDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingestion_batch_duration_seconds",
				Help:    "Duration of ingestion batch processing in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		evalExecutionsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eval_executions_total",
				Help: "Total number of handled eval executions by outcome.",
			},
			[]string{"outcome"},
		)

		evalRetriesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eval_retries_total",
				Help: "Total number of re-enqueued eval execution attempts.",
			},
		)

		messagesDroppedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messages_dropped_total",
				Help: "Total number of queue messages deleted without success by queue.",
			},
			[]string{"queue"},
		)

		prometheus.MustRegister(
			batchesTotalCounter,
			recordsWrittenCounter,
			batchDurationMetric,
			evalExecutionsCounter,
			evalRetriesCounter,
			messagesDroppedCounter,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, outcome := range []string{"ok", "invalid", "error"} {
			batchesTotalCounter.WithLabelValues(outcome)
		}
		for _, table := range []string{"traces", "observations", "scores"} {
			recordsWrittenCounter.WithLabelValues(table)
		}
		for _, outcome := range []string{"completed", "cancelled", "failed"} {
			evalExecutionsCounter.WithLabelValues(outcome)
		}
	})
}

func IncBatch(outcome string) {
	Init()
	batchesTotalCounter.WithLabelValues(outcome).Inc()
}

func AddRecordsWritten(table string, n int) {
	Init()
	recordsWrittenCounter.WithLabelValues(table).Add(float64(n))
}

func ObserveBatchDuration(d time.Duration) {
	Init()
	batchDurationMetric.Observe(d.Seconds())
}

func IncEvalExecution(outcome string) {
	Init()
	evalExecutionsCounter.WithLabelValues(outcome).Inc()
}

func IncEvalRetries() {
	Init()
	evalRetriesCounter.Inc()
}

func IncMessagesDropped(queue string) {
	Init()
	messagesDroppedCounter.WithLabelValues(queue).Inc()
}
