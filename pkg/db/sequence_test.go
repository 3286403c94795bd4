package db

import (
	"testing"

	"gorm.io/gorm"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfloor-backend/pkg/db/sqlitetest"
)

func TestNextNumberIncrementsPerName(t *testing.T) {
	conn := sqlitetest.Open(t)

	var got []string
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
			number, err := NextNumber(tx, "work_orders", "WO")
			if err != nil {
				return err
			}
			got = append(got, number)
			return nil
		}))
	}
	require.Equal(t, []string{"WO-1", "WO-2", "WO-3"}, got)

	inv, err := NextNumber(conn, "invoices", "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-1", inv)
}

func TestNextSequenceRequiresTx(t *testing.T) {
	_, err := NextSequence(nil, "work_orders")
	require.Error(t, err)
}
