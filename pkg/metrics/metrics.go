package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AssetsTotal is the count of assets by status (present/missing/
	// outdated/incomplete/deleted), refreshed by the Collector on its
	// periodic tick.
	AssetsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gembsctl_assets_total",
			Help: "Total number of assets by status",
		},
		[]string{"status"},
	)

	// TasksTotal is the count of tasks by status (waiting/ready/
	// running/complete).
	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gembsctl_tasks_total",
			Help: "Total number of tasks by status",
		},
		[]string{"status"},
	)

	// RunningLedgerSize is the number of entries currently recorded in
	// the running-task ledger, across all cooperating controllers.
	RunningLedgerSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gembsctl_running_ledger_size",
			Help: "Number of tasks currently recorded as running in the ledger",
		},
	)

	// SchedulingLatency is the time the scheduler spends dispatching a
	// task it has selected: building its pipeline spec, registering it
	// in the running ledger and handing it to a worker. Failed
	// dispatches are not recorded.
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gembsctl_scheduling_latency_seconds",
			Help:    "Time spent dispatching a selected task to a worker",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TasksScheduled is the count of tasks successfully dispatched to a
	// worker.
	TasksScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gembsctl_tasks_scheduled_total",
			Help: "Total number of tasks dispatched to a worker",
		},
	)

	// TasksFailed is the count of tasks whose pipeline run returned an
	// error.
	TasksFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gembsctl_tasks_failed_total",
			Help: "Total number of tasks whose pipeline run failed",
		},
	)

	// TaskRunDuration is how long a task's pipeline ran for, from
	// dispatch to reap.
	TaskRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gembsctl_task_run_duration_seconds",
			Help:    "Task pipeline run duration in seconds by command kind",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 3600, 10800},
		},
		[]string{"command"},
	)

	// LockWaitDuration is how long WaitFor spent contending for the
	// primary lock before acquiring it (or giving up).
	LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gembsctl_lock_wait_duration_seconds",
			Help:    "Time spent waiting to acquire the primary file lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PipelineFailuresTotal is the count of pipeline.Run failures by
	// the 1-indexed stage that failed.
	PipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gembsctl_pipeline_failures_total",
			Help: "Total number of pipeline runs that failed, by failing stage",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(AssetsTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(RunningLedgerSize)
	prometheus.MustRegister(SchedulingLatency)
	prometheus.MustRegister(TasksScheduled)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(TaskRunDuration)
	prometheus.MustRegister(LockWaitDuration)
	prometheus.MustRegister(PipelineFailuresTotal)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
