package models

// NumberSequence backs human readable document numbers (WO-1042, INV-311).
type NumberSequence struct {
	Name  string `gorm:"column:name;primaryKey"`
	Value int64  `gorm:"column:value;not null"`
}

func (NumberSequence) TableName() string { return "number_sequences" }

// All lists every persisted model, in dependency order, for test harnesses
// that build the schema with AutoMigrate.
func All() []any {
	return []any{
		&NumberSequence{},
		&InventoryItem{},
		&WorkOrder{},
		&WorkOrderPart{},
		&WorkOrderActivity{},
		&InventoryAdjustment{},
		&TimeEntry{},
		&Invoice{},
		&InvoiceLineItem{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

// PartialIndexes lists the partial unique indexes AutoMigrate cannot express.
// They mirror the goose migrations and are portable between postgres and sqlite.
func PartialIndexes() []string {
	return []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_time_entries_active_timer
			ON time_entries (work_order_id, employee_id) WHERE end_time IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_invoices_active_work_order
			ON invoices (work_order_id) WHERE work_order_id IS NOT NULL AND status <> 'cancelled'`,
	}
}
