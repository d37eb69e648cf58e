package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CopyCommissionStatus string

const (
	CopyCommissionStatusDeducted CopyCommissionStatus = "DEDUCTED"
	CopyCommissionStatusFailed   CopyCommissionStatus = "FAILED"
)

// CopyCommissionRecord is the daily profit-share ledger row for one master/follower pair.
type CopyCommissionRecord struct {
	gorm.Model
	MasterID             uint                 `gorm:"column:master_id;not null;index"`
	FollowerID           uint                 `gorm:"column:follower_id;not null;index"`
	FollowerUserID       uint                 `gorm:"column:follower_user_id;not null"`
	FollowerAccountID    uint                 `gorm:"column:follower_account_id;not null"`
	TradingDay           string               `gorm:"column:trading_day;type:text;not null;index"`
	DailyProfit          decimal.Decimal      `gorm:"column:daily_profit;type:numeric;not null"`
	CommissionPercentage float64              `gorm:"column:commission_percentage;type:numeric;not null"`
	AdminSharePercentage float64              `gorm:"column:admin_share_percentage;type:numeric;not null"`
	TotalCommission      decimal.Decimal      `gorm:"column:total_commission;type:numeric;not null"`
	AdminShare           decimal.Decimal      `gorm:"column:admin_share;type:numeric;not null"`
	MasterShare          decimal.Decimal      `gorm:"column:master_share;type:numeric;not null"`
	Status               CopyCommissionStatus `gorm:"column:status;type:text;not null"`
	DeductionError       string               `gorm:"column:deduction_error;type:text"`
	DeductedAt           *time.Time           `gorm:"column:deducted_at;type:timestamp"`
}

// SplitCommission computes the profit share of a day and splits it between admin
// and master. The master share is the remainder, so the two always sum to the total.
func SplitCommission(dailyProfit decimal.Decimal, commissionPercentage, adminSharePercentage float64) (total, adminShare, masterShare decimal.Decimal) {
	hundred := decimal.NewFromInt(100)

	total = dailyProfit.Mul(decimal.NewFromFloat(commissionPercentage)).Div(hundred)
	adminShare = total.Mul(decimal.NewFromFloat(adminSharePercentage)).Div(hundred)
	masterShare = total.Sub(adminShare)

	return total, adminShare, masterShare
}

type CopySettings struct {
	gorm.Model
	AdminCopyPool               decimal.Decimal `gorm:"column:admin_copy_pool;type:numeric;not null;default:0"`
	MinPayoutAmount             decimal.Decimal `gorm:"column:min_payout_amount;type:numeric;not null;default:0"`
	DefaultAdminSharePercentage float64         `gorm:"column:default_admin_share_percentage;type:numeric;not null;default:30"`
}
