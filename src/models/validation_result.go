package models

import "time"

// ValidationResult is a rule decision for the trading UI. A rejection is a value, not an error.
type ValidationResult struct {
	Valid            bool       `json:"valid"`
	Code             string     `json:"code,omitempty"`
	Error            string     `json:"error,omitempty"`
	UIAction         UIAction   `json:"ui_action,omitempty"`
	MaxAllowedLoss   *float64   `json:"max_allowed_loss,omitempty"`
	RemainingSeconds *int       `json:"remaining_seconds,omitempty"`
	CanCloseAt       *time.Time `json:"can_close_at,omitempty"`
}

func NewValidResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

func NewRejection(code string, uiAction UIAction, message string) *ValidationResult {
	return &ValidationResult{
		Valid:    false,
		Code:     code,
		UIAction: uiAction,
		Error:    message,
	}
}

type TradeOpenParams struct {
	Symbol     string    `json:"symbol" validate:"required"`
	Segment    string    `json:"segment"`
	Side       TradeSide `json:"side" validate:"required,oneof=BUY SELL"`
	Quantity   float64   `json:"quantity" validate:"gt=0"`
	Price      float64   `json:"price" validate:"gt=0"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Leverage   float64   `json:"leverage" validate:"min=0"`
}

type ViolationTrackResult struct {
	Failed            bool   `json:"failed"`
	Reason            string `json:"reason,omitempty"`
	WarningCount      int    `json:"warning_count"`
	SameRuleCount     int    `json:"same_rule_count"`
	RemainingWarnings int    `json:"remaining_warnings"`
}
