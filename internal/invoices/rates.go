package invoices

import (
	"context"

	"github.com/google/uuid"
)

// LaborRateProvider resolves the hourly labor rate, in cents, for an employee.
type LaborRateProvider interface {
	LaborRateCents(ctx context.Context, employeeID uuid.UUID) (int64, error)
}

// FlatLaborRate bills every employee at the shop rate.
type FlatLaborRate int64

func (r FlatLaborRate) LaborRateCents(context.Context, uuid.UUID) (int64, error) {
	return int64(r), nil
}
