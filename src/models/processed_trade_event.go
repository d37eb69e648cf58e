package models

import "gorm.io/gorm"

type TradeEventType string

const (
	TradeEventTypeOpened TradeEventType = "OPENED"
	TradeEventTypeClosed TradeEventType = "CLOSED"
)

// ProcessedTradeEvent is a claim that a lifecycle hook has run for a trade.
type ProcessedTradeEvent struct {
	gorm.Model
	TradeID   uint           `gorm:"column:trade_id;not null;uniqueIndex:idx_processed_trade_event"`
	EventType TradeEventType `gorm:"column:event_type;type:text;not null;uniqueIndex:idx_processed_trade_event"`
}
