package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CommissionStatus string

const (
	CommissionStatusCredited CommissionStatus = "CREDITED"
	CommissionStatusReversed CommissionStatus = "REVERSED"
)

// CommissionRecord is one level of the waterfall for one trade.
type CommissionRecord struct {
	gorm.Model
	TradeID          uint             `gorm:"column:trade_id;not null;uniqueIndex:idx_commission_trade_ib_level"`
	IBUserID         uint             `gorm:"column:ib_user_id;not null;uniqueIndex:idx_commission_trade_ib_level;index"`
	Level            int              `gorm:"column:level;not null;uniqueIndex:idx_commission_trade_ib_level"`
	TraderUserID     uint             `gorm:"column:trader_user_id;not null"`
	BaseAmount       float64          `gorm:"column:base_amount;type:numeric;not null"`
	CommissionAmount decimal.Decimal  `gorm:"column:commission_amount;type:numeric;not null"`
	Symbol           string           `gorm:"column:symbol;type:text;not null"`
	TradeLotSize     float64          `gorm:"column:trade_lot_size;type:numeric;not null"`
	ContractSize     float64          `gorm:"column:contract_size;type:numeric;not null"`
	CommissionType   CommissionType   `gorm:"column:commission_type;type:text;not null"`
	Status           CommissionStatus `gorm:"column:status;type:text;not null"`
	ReversedAt       *time.Time       `gorm:"column:reversed_at;type:timestamp"`
	ReversedBy       *uint            `gorm:"column:reversed_by"`
	ReversalReason   string           `gorm:"column:reversal_reason;type:text"`
}

type CommissionReversal struct {
	ReversedBy uint
	Reason     string
	ReversedAt time.Time
}
