package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAccountFreeMargin(t *testing.T) {
	acc := &Account{
		Balance: decimal.NewFromInt(1000),
		Credit:  decimal.NewFromInt(200),
		Status:  AccountStatusActive,
	}

	t.Run("no open trades leaves balance plus credit", func(t *testing.T) {
		assert.True(t, acc.FreeMargin(nil).Equal(decimal.NewFromInt(1200)))
	})

	t.Run("margin of open trades is subtracted", func(t *testing.T) {
		trades := []*Trade{{MarginUsed: 300}, {MarginUsed: 150.5}}
		assert.Equal(t, "749.5", acc.FreeMargin(trades).String())
	})

	t.Run("suspended account is not active", func(t *testing.T) {
		suspended := &Account{Status: AccountStatusSuspended}
		assert.False(t, suspended.IsActive())
		assert.True(t, acc.IsActive())
	})
}
