package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_760_000_000, 0) }

	m.ObserveRun("overdue-invoices", 250*time.Millisecond, nil)
	m.ObserveRun("overdue-invoices", 100*time.Millisecond, errors.New("db down"))
	m.ObserveRun("low-stock", time.Second, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_cron_job_runs_total", "job", "overdue-invoices", "outcome", "success"); err != nil || got != 1 {
		t.Fatalf("expected 1 success, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_cron_job_runs_total", "job", "overdue-invoices", "outcome", "failure"); err != nil || got != 1 {
		t.Fatalf("expected 1 failure, got %f err=%v", got, err)
	}

	hist, err := findSeries(mfs, "shopfloor_cron_job_duration_seconds", "job", "overdue-invoices")
	if err != nil {
		t.Fatalf("duration: %v", err)
	}
	if hist.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected both runs timed, got %d", hist.GetHistogram().GetSampleCount())
	}

	gauge, err := findSeries(mfs, "shopfloor_cron_job_last_success_timestamp_seconds", "job", "low-stock")
	if err != nil {
		t.Fatalf("last success: %v", err)
	}
	if gauge.GetGauge().GetValue() != 1_760_000_000 {
		t.Fatalf("unexpected last success %f", gauge.GetGauge().GetValue())
	}
}

func TestCronJobMetricsWithoutRegistererIsNoop(t *testing.T) {
	NewCronJobMetrics(nil).ObserveRun("low-stock", time.Second, nil)
	var m *CronJobMetrics
	m.ObserveRun("low-stock", time.Second, errors.New("x"))
}
