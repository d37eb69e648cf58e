package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type IBWallet struct {
	gorm.Model
	IBUserID          uint            `gorm:"column:ib_user_id;not null;uniqueIndex"`
	Balance           decimal.Decimal `gorm:"column:balance;type:numeric;not null;default:0"`
	TotalEarned       decimal.Decimal `gorm:"column:total_earned;type:numeric;not null;default:0"`
	TotalWithdrawn    decimal.Decimal `gorm:"column:total_withdrawn;type:numeric;not null;default:0"`
	PendingWithdrawal decimal.Decimal `gorm:"column:pending_withdrawal;type:numeric;not null;default:0"`
}

// IBWithdrawal is the outcome of moving IB wallet funds to the main wallet.
type IBWithdrawal struct {
	Amount               decimal.Decimal `json:"amount"`
	NewIBWalletBalance   decimal.Decimal `json:"new_ib_wallet_balance"`
	NewMainWalletBalance decimal.Decimal `json:"new_main_wallet_balance"`
}
