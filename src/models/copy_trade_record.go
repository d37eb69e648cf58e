package models

import (
	"time"

	"gorm.io/gorm"
)

type CopyTradeStatus string

const (
	CopyTradeStatusPending CopyTradeStatus = "PENDING"
	CopyTradeStatusOpen    CopyTradeStatus = "OPEN"
	CopyTradeStatusClosed  CopyTradeStatus = "CLOSED"
	CopyTradeStatusFailed  CopyTradeStatus = "FAILED"
)

const TradingDayLayout = "2006-01-02"

// CopyTradeRecord links a master trade to the follower trade opened from it.
// (MasterTradeID, FollowerID) is unique whatever the status.
type CopyTradeRecord struct {
	gorm.Model
	MasterTradeID      uint            `gorm:"column:master_trade_id;not null;uniqueIndex:idx_copy_trade_master_follower;index:idx_copy_trade_master"`
	MasterID           uint            `gorm:"column:master_id;not null;index:idx_copy_trade_master"`
	FollowerTradeID    *uint           `gorm:"column:follower_trade_id"`
	FollowerID         uint            `gorm:"column:follower_id;not null;uniqueIndex:idx_copy_trade_master_follower"`
	FollowerUserID     uint            `gorm:"column:follower_user_id;not null"`
	FollowerAccountID  uint            `gorm:"column:follower_account_id;not null"`
	Symbol             string          `gorm:"column:symbol;type:text;not null"`
	Side               TradeSide       `gorm:"column:side;type:text;not null"`
	MasterLotSize      float64         `gorm:"column:master_lot_size;type:numeric;not null"`
	FollowerLotSize    float64         `gorm:"column:follower_lot_size;type:numeric;not null"`
	CopyMode           CopyMode        `gorm:"column:copy_mode;type:text;not null"`
	CopyValue          float64         `gorm:"column:copy_value;type:numeric;not null"`
	MasterOpenPrice    float64         `gorm:"column:master_open_price;type:numeric;not null"`
	FollowerOpenPrice  float64         `gorm:"column:follower_open_price;type:numeric"`
	MasterClosePrice   *float64        `gorm:"column:master_close_price;type:numeric"`
	FollowerClosePrice *float64        `gorm:"column:follower_close_price;type:numeric"`
	FollowerPnl        float64         `gorm:"column:follower_pnl;type:numeric;not null;default:0"`
	Status             CopyTradeStatus `gorm:"column:status;type:text;not null;index:idx_copy_trade_settlement"`
	FailureReason      string          `gorm:"column:failure_reason;type:text"`
	CommissionApplied  bool            `gorm:"column:commission_applied;not null;default:false;index:idx_copy_trade_settlement"`
	TradingDay         string          `gorm:"column:trading_day;type:text;not null;index:idx_copy_trade_settlement"`
	ClosedAt           *time.Time      `gorm:"column:closed_at;type:timestamp"`
}

// CopyTradeClose carries the fields written when a follower copy closes.
type CopyTradeClose struct {
	MasterClosePrice   *float64
	FollowerClosePrice float64
	FollowerPnl        float64
	ClosedAt           time.Time
}

func TradingDayOf(t time.Time) string {
	return t.UTC().Format(TradingDayLayout)
}
