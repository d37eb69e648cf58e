package models

import (
	"math"
	"time"

	"gorm.io/gorm"
)

type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "OPEN"
	TradeStatusClosed TradeStatus = "CLOSED"
)

type AccountKind string

const (
	AccountKindTrading   AccountKind = "TRADING"
	AccountKindChallenge AccountKind = "CHALLENGE"
)

const (
	ClosedByUser   = "USER"
	ClosedByMaster = "MASTER"
	ClosedByAdmin  = "ADMIN"
	ClosedByRisk   = "RISK"
	ClosedBySL     = "SL"
	ClosedByTP     = "TP"
)

type Trade struct {
	gorm.Model
	UserID            uint        `gorm:"column:user_id;not null;index"`
	AccountID         uint        `gorm:"column:account_id;not null;index:idx_trade_account_status"`
	AccountKind       AccountKind `gorm:"column:account_kind;type:text;not null;index:idx_trade_account_status"`
	Symbol            string      `gorm:"column:symbol;type:text;not null"`
	Segment           string      `gorm:"column:segment;type:text"`
	Side              TradeSide   `gorm:"column:side;type:text;not null"`
	OrderType         string      `gorm:"column:order_type;type:text;not null"`
	Quantity          float64     `gorm:"column:quantity;type:numeric;not null"`
	OpenPrice         float64     `gorm:"column:open_price;type:numeric;not null"`
	ClosePrice        float64     `gorm:"column:close_price;type:numeric"`
	StopLoss          *float64    `gorm:"column:stop_loss;type:numeric"`
	TakeProfit        *float64    `gorm:"column:take_profit;type:numeric"`
	MarginUsed        float64     `gorm:"column:margin_used;type:numeric;not null"`
	RealizedPnl       float64     `gorm:"column:realized_pnl;type:numeric"`
	ContractSize      float64     `gorm:"column:contract_size;type:numeric;not null"`
	Leverage          float64     `gorm:"column:leverage;type:numeric;not null"`
	Status            TradeStatus `gorm:"column:status;type:text;not null;index:idx_trade_account_status"`
	ClosedBy          string      `gorm:"column:closed_by;type:text"`
	OpenedAt          time.Time   `gorm:"column:opened_at;type:timestamp;not null"`
	ClosedAt          *time.Time  `gorm:"column:closed_at;type:timestamp"`
	CopiedFromTradeID *uint       `gorm:"column:copied_from_trade_id;index"`
}

func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

func (t *Trade) IsCopy() bool {
	return t.CopiedFromTradeID != nil
}

// ExitPrice is the side of the quote a position is closed against.
func (t *Trade) ExitPrice(price Price) float64 {
	if t.Side == TradeSideBuy {
		return price.Bid
	}

	return price.Ask
}

func (t *Trade) PnlAt(closePrice float64) float64 {
	diff := closePrice - t.OpenPrice
	if t.Side == TradeSideSell {
		diff = -diff
	}

	return diff * t.Quantity * t.ContractSize
}

func (t *Trade) UnrealizedPnl(price Price) float64 {
	return t.PnlAt(t.ExitPrice(price))
}

// NotionalValue is quantity x contract size x open price.
func (t *Trade) NotionalValue() float64 {
	return math.Abs(t.Quantity * t.ContractSize * t.OpenPrice)
}

type OpenTradeRequest struct {
	UserID            uint
	AccountID         uint
	AccountKind       AccountKind
	Symbol            string
	Segment           string
	Side              TradeSide
	OrderType         string
	Quantity          float64
	Bid               float64
	Ask               float64
	StopLoss          *float64
	TakeProfit        *float64
	Leverage          float64
	CopiedFromTradeID *uint
}

// TradeClose carries the fields written when a trade closes.
type TradeClose struct {
	ClosePrice  float64
	RealizedPnl float64
	ClosedBy    string
	ClosedAt    time.Time
}

type CloseTradeResult struct {
	Trade       *Trade
	RealizedPnl float64
}
