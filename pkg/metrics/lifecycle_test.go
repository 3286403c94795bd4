package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLifecycleMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycleMetrics(reg)

	m.IncTransition("pending", "in-progress")
	m.IncTransition("pending", "in-progress")
	m.IncRejected("INSUFFICIENT_STOCK")
	m.IncStockShortage("BP-100")
	m.IncInvoiceCreated()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_work_orders_transitions_total", "to", "in-progress"); err != nil || got != 2 {
		t.Fatalf("expected 2 transitions, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_work_orders_transitions_rejected_total", "code", "INSUFFICIENT_STOCK"); err != nil || got != 1 {
		t.Fatalf("expected 1 rejection, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_inventory_stock_shortages_total", "sku", "BP-100"); err != nil || got != 1 {
		t.Fatalf("expected 1 shortage, got %f err=%v", got, err)
	}
	mf := findMetricFamily(mfs, "shopfloor_invoices_created_total")
	if mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected invoices created counter of 1")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var lifecycle *LifecycleMetrics
	lifecycle.IncTransition("a", "b")
	lifecycle.IncInvoiceCreated()

	unregistered := NewOutboxMetrics(nil)
	unregistered.IncPublished("invoice_created")
	unregistered.IncDeadLettered("invoice_created", "max_attempts")
}

func TestOutboxMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("invoice_created")
	m.IncFailed("invoice_created")
	m.IncDeadLettered("invoice_created", "non_retryable")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_outbox_dead_lettered_total", "reason", "non_retryable"); err != nil || got != 1 {
		t.Fatalf("expected 1 dead letter, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "shopfloor_outbox_published_total", "event_type", "invoice_created"); err != nil || got != 1 {
		t.Fatalf("expected 1 publish, got %f err=%v", got, err)
	}
}
