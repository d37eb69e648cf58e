package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	TradeOpenedTopic   = "trade.opened"
	TradeClosedTopic   = "trade.closed"
	TradeModifiedTopic = "trade.modified"
)

type TradeOpenedEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	Trade      *Trade    `json:"trade"`
	OccurredAt time.Time `json:"occurred_at"`
	// SpanContext links consumer spans to the request that produced the event.
	SpanContext []byte `json:"span_context,omitempty"`
}

type TradeClosedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Trade       *Trade    `json:"trade"`
	RealizedPnl float64   `json:"realized_pnl"`
	OccurredAt  time.Time `json:"occurred_at"`
	SpanContext []byte    `json:"span_context,omitempty"`
}

type TradeModifiedEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	Trade       *Trade    `json:"trade"`
	StopLoss    *float64  `json:"stop_loss"`
	TakeProfit  *float64  `json:"take_profit"`
	OccurredAt  time.Time `json:"occurred_at"`
	SpanContext []byte    `json:"span_context,omitempty"`
}

type IEventPublisher interface {
	Publish(topic string, event interface{})
}
