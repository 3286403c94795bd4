package enums

import "fmt"

// InvoiceStatus tracks the billing lifecycle of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

var validInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusPending,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// String implements fmt.Stringer.
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known InvoiceStatus.
func (s InvoiceStatus) IsValid() bool {
	for _, candidate := range validInvoiceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// ParseInvoiceStatus converts raw input into an InvoiceStatus.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	for _, candidate := range validInvoiceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice status %q", value)
}
