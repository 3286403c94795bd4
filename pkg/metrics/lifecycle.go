package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics tracks work order transitions and the inventory coupling
// they drive.
type LifecycleMetrics struct {
	transitions     *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	stockShortages  *prometheus.CounterVec
	invoicesCreated prometheus.Counter
}

// NewLifecycleMetrics registers the lifecycle metrics on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "work_orders",
		Name:      "transitions_total",
		Help:      "Accepted work order status transitions.",
	}, []string{"from", "to"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "work_orders",
		Name:      "transitions_rejected_total",
		Help:      "Work order transitions rejected, by error code.",
	}, []string{"code"})
	shortages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "stock_shortages_total",
		Help:      "Inventory lines that could not be reserved.",
	}, []string{"sku"})
	invoices := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "invoices",
		Name:      "created_total",
		Help:      "Invoices created.",
	})
	reg.MustRegister(transitions, rejected, shortages, invoices)
	return &LifecycleMetrics{
		transitions:     transitions,
		rejected:        rejected,
		stockShortages:  shortages,
		invoicesCreated: invoices,
	}
}

func (m *LifecycleMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *LifecycleMetrics) IncRejected(code string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *LifecycleMetrics) IncStockShortage(sku string) {
	if m == nil || m.stockShortages == nil {
		return
	}
	m.stockShortages.WithLabelValues(normalizeLabel(sku)).Inc()
}

func (m *LifecycleMetrics) IncInvoiceCreated() {
	if m == nil || m.invoicesCreated == nil {
		return
	}
	m.invoicesCreated.Inc()
}
