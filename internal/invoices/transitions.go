package invoices

import "github.com/angelmondragon/shopfloor-backend/pkg/enums"

var statusTransitions = map[enums.InvoiceStatus][]enums.InvoiceStatus{
	enums.InvoiceStatusDraft:   {enums.InvoiceStatusPending, enums.InvoiceStatusCancelled},
	enums.InvoiceStatusPending: {enums.InvoiceStatusPaid, enums.InvoiceStatusOverdue, enums.InvoiceStatusCancelled},
	enums.InvoiceStatusOverdue: {enums.InvoiceStatusPaid, enums.InvoiceStatusCancelled},
}

// CanTransition reports whether an invoice may move from one status to another.
func CanTransition(from, to enums.InvoiceStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
