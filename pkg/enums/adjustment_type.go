package enums

import "fmt"

// AdjustmentType labels a row in the append-only inventory ledger.
type AdjustmentType string

const (
	AdjustmentReserve AdjustmentType = "reserve"
	AdjustmentConsume AdjustmentType = "consume"
	AdjustmentReturn  AdjustmentType = "return"
	AdjustmentRestock AdjustmentType = "restock"
)

var validAdjustmentTypes = []AdjustmentType{
	AdjustmentReserve,
	AdjustmentConsume,
	AdjustmentReturn,
	AdjustmentRestock,
}

func (a AdjustmentType) String() string {
	return string(a)
}

func (a AdjustmentType) IsValid() bool {
	for _, candidate := range validAdjustmentTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// StockDelta returns the signed on-hand effect of n units of this adjustment.
func (a AdjustmentType) StockDelta(n int) int {
	switch a {
	case AdjustmentReserve:
		return -n
	case AdjustmentReturn, AdjustmentRestock:
		return n
	default:
		return 0
	}
}

func ParseAdjustmentType(value string) (AdjustmentType, error) {
	for _, candidate := range validAdjustmentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid adjustment type %q", value)
}
