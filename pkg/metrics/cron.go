package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// CronJobMetrics tracks scheduled job runs: outcome counts, run time and the
// last time each job finished cleanly.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	now         func() time.Time
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	m := &CronJobMetrics{now: time.Now}
	if reg == nil {
		return m
	}
	m.runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by outcome.",
	}, []string{"job", "outcome"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_duration_seconds",
		Help:      "Scheduled job run time.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"job"})
	m.lastSuccess = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run.",
	}, []string{"job"})
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// ObserveRun records one finished run of job; a nil err counts as success.
func (m *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, outcomeFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, outcomeSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(m.now().Unix()))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
