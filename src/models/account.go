package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "Active"
	AccountStatusSuspended AccountStatus = "Suspended"
	AccountStatusClosed    AccountStatus = "Closed"
)

// Account is a live trading account. Balance is only ever changed through
// the atomic delta primitives of IAccountStore.
type Account struct {
	gorm.Model
	UserID   uint            `gorm:"column:user_id;not null;index"`
	Balance  decimal.Decimal `gorm:"column:balance;type:numeric;not null;default:0"`
	Credit   decimal.Decimal `gorm:"column:credit;type:numeric;not null;default:0"`
	Leverage float64         `gorm:"column:leverage;type:numeric;not null;default:100"`
	Status   AccountStatus   `gorm:"column:status;type:text;not null"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// FreeMargin is balance plus credit minus the margin held by the given open trades.
func (a *Account) FreeMargin(openTrades []*Trade) decimal.Decimal {
	used := decimal.Zero
	for _, t := range openTrades {
		used = used.Add(decimal.NewFromFloat(t.MarginUsed))
	}

	return a.Balance.Add(a.Credit).Sub(used)
}
