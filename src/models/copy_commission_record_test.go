package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSplitCommission(t *testing.T) {
	t.Run("twenty percent of a 1000 profit with a 30 percent admin share", func(t *testing.T) {
		total, admin, master := SplitCommission(decimal.NewFromInt(1000), 20, 30)
		assert.Equal(t, "200", total.String())
		assert.Equal(t, "60", admin.String())
		assert.Equal(t, "140", master.String())
	})

	t.Run("shares always sum to the total", func(t *testing.T) {
		profits := []string{"0.01", "33.33", "1234.567", "99999.99"}
		for _, p := range profits {
			total, admin, master := SplitCommission(decimal.RequireFromString(p), 17.5, 33.3)
			assert.True(t, admin.Add(master).Equal(total), p)
		}
	})
}
