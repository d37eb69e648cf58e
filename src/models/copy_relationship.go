package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CopyRelationshipStatus string

const (
	CopyRelationshipStatusActive  CopyRelationshipStatus = "ACTIVE"
	CopyRelationshipStatusPaused  CopyRelationshipStatus = "PAUSED"
	CopyRelationshipStatusStopped CopyRelationshipStatus = "STOPPED"
)

type CopyMode string

const (
	CopyModeFixedLot      CopyMode = "FIXED_LOT"
	CopyModeLotMultiplier CopyMode = "LOT_MULTIPLIER"
)

const DefaultMaxLotSize = 10.0

// CopyRelationship binds a follower account to a master.
type CopyRelationship struct {
	gorm.Model
	FollowerUserID      uint                   `gorm:"column:follower_user_id;not null;uniqueIndex:idx_copy_follow"`
	MasterID            uint                   `gorm:"column:master_id;not null;uniqueIndex:idx_copy_follow;index:idx_copy_master_status"`
	FollowerAccountID   uint                   `gorm:"column:follower_account_id;not null;uniqueIndex:idx_copy_follow"`
	Status              CopyRelationshipStatus `gorm:"column:status;type:text;not null;index:idx_copy_master_status"`
	CopyMode            CopyMode               `gorm:"column:copy_mode;type:text;not null"`
	CopyValue           float64                `gorm:"column:copy_value;type:numeric;not null"`
	MaxLotSize          float64                `gorm:"column:max_lot_size;type:numeric;not null;default:10"`
	MaxDailyLoss        *float64               `gorm:"column:max_daily_loss;type:numeric"`
	TotalCopiedTrades   int                    `gorm:"column:total_copied_trades;not null;default:0"`
	ActiveCopiedTrades  int                    `gorm:"column:active_copied_trades;not null;default:0"`
	TotalProfit         float64                `gorm:"column:total_profit;type:numeric;not null;default:0"`
	TotalLoss           float64                `gorm:"column:total_loss;type:numeric;not null;default:0"`
	TotalCommissionPaid decimal.Decimal        `gorm:"column:total_commission_paid;type:numeric;not null;default:0"`
	DailyProfit         float64                `gorm:"column:daily_profit;type:numeric;not null;default:0"`
	DailyLoss           float64                `gorm:"column:daily_loss;type:numeric;not null;default:0"`
	LastDailyReset      time.Time              `gorm:"column:last_daily_reset;type:timestamp"`
	StartedAt           time.Time              `gorm:"column:started_at;type:timestamp;not null"`
	PausedAt            *time.Time             `gorm:"column:paused_at;type:timestamp"`
	StoppedAt           *time.Time             `gorm:"column:stopped_at;type:timestamp"`
}

// FollowerLotSize applies the copy policy to a master lot: fixed lot or multiplier,
// clamped to the follower's max lot and rounded to two decimals.
func (r *CopyRelationship) FollowerLotSize(masterLotSize float64) float64 {
	return CalculateFollowerLotSize(masterLotSize, r.CopyMode, r.CopyValue, r.MaxLotSize)
}

func (r *CopyRelationship) DailyLossLimitReached() bool {
	if r.MaxDailyLoss == nil || *r.MaxDailyLoss <= 0 {
		return false
	}

	return r.DailyLoss >= *r.MaxDailyLoss
}

func CalculateFollowerLotSize(masterLotSize float64, mode CopyMode, copyValue, maxLotSize float64) float64 {
	var lot float64
	switch mode {
	case CopyModeFixedLot:
		lot = copyValue
	case CopyModeLotMultiplier:
		lot = masterLotSize * copyValue
	default:
		lot = masterLotSize
	}

	if maxLotSize <= 0 {
		maxLotSize = DefaultMaxLotSize
	}

	lot = math.Min(lot, maxLotSize)

	return math.Round(lot*100) / 100
}

// FollowerStatsDelta is applied to a relationship as atomic increments.
type FollowerStatsDelta struct {
	TotalCopiedTrades   int
	ActiveCopiedTrades  int
	TotalProfit         float64
	TotalLoss           float64
	DailyProfit         float64
	DailyLoss           float64
	TotalCommissionPaid decimal.Decimal
}

// NewCloseStatsDelta books a realized follower PnL into the profit or loss buckets.
func NewCloseStatsDelta(pnl float64) FollowerStatsDelta {
	delta := FollowerStatsDelta{ActiveCopiedTrades: -1}
	if pnl >= 0 {
		delta.TotalProfit = pnl
		delta.DailyProfit = pnl
	} else {
		delta.TotalLoss = math.Abs(pnl)
		delta.DailyLoss = math.Abs(pnl)
	}

	return delta
}
