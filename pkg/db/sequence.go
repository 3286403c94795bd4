package db

import (
	"fmt"

	"gorm.io/gorm"
)

const upsertSequenceSQL = `
INSERT INTO number_sequences (name, value) VALUES (?, 1)
ON CONFLICT (name) DO UPDATE SET value = number_sequences.value + 1
RETURNING value`

// NextSequence increments the named counter inside tx and returns the new value.
// The row lock taken by the upsert serialises concurrent callers.
func NextSequence(tx *gorm.DB, name string) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction required")
	}
	var value int64
	if err := tx.Raw(upsertSequenceSQL, name).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("next %s sequence: no value returned", name)
	}
	return value, nil
}

// NextNumber formats the next value of the named counter as PREFIX-n.
func NextNumber(tx *gorm.DB, name, prefix string) (string, error) {
	value, err := NextSequence(tx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d", prefix, value), nil
}
