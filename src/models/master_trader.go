package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MasterTraderStatus string

const (
	MasterTraderStatusPending   MasterTraderStatus = "PENDING"
	MasterTraderStatusActive    MasterTraderStatus = "ACTIVE"
	MasterTraderStatusSuspended MasterTraderStatus = "SUSPENDED"
	MasterTraderStatusBanned    MasterTraderStatus = "BANNED"
)

type MasterTrader struct {
	gorm.Model
	UserID                       uint               `gorm:"column:user_id;not null;index"`
	TradingAccountID             uint               `gorm:"column:trading_account_id;not null;uniqueIndex"`
	Status                       MasterTraderStatus `gorm:"column:status;type:text;not null"`
	ApprovedCommissionPercentage float64            `gorm:"column:approved_commission_percentage;type:numeric;not null;default:0"`
	AdminSharePercentage         *float64           `gorm:"column:admin_share_percentage;type:numeric"`
	PendingCommission            decimal.Decimal    `gorm:"column:pending_commission;type:numeric;not null;default:0"`
	TotalCommissionEarned        decimal.Decimal    `gorm:"column:total_commission_earned;type:numeric;not null;default:0"`
	TotalCommissionWithdrawn     decimal.Decimal    `gorm:"column:total_commission_withdrawn;type:numeric;not null;default:0"`
	TotalCopiedVolume            float64            `gorm:"column:total_copied_volume;type:numeric;not null;default:0"`
}

func (m *MasterTrader) IsActive() bool {
	return m.Status == MasterTraderStatusActive
}

// AdminShareOrDefault returns the master's admin share, falling back to the platform default.
func (m *MasterTrader) AdminShareOrDefault(defaultPercent float64) float64 {
	if m.AdminSharePercentage == nil {
		return defaultPercent
	}

	return *m.AdminSharePercentage
}

// MasterWithdrawal is the outcome of moving pending commission into the master's trading account.
type MasterWithdrawal struct {
	Amount               decimal.Decimal `json:"amount"`
	NewPendingCommission decimal.Decimal `json:"new_pending_commission"`
	NewAccountBalance    decimal.Decimal `json:"new_account_balance"`
}
