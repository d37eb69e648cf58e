package models

import (
	"gorm.io/gorm"
)

const (
	DefaultProfitTargetPhase1Percent = 8.0
	DefaultProfitTargetPhase2Percent = 5.0
	DefaultChallengeMaxLeverage      = 100.0
	DefaultChallengeExpiryDays       = 30
	DefaultProfitSplitPercent        = 80.0
)

type ChallengeRules struct {
	MaxDailyDrawdownPercent   float64  `json:"max_daily_drawdown_percent" validate:"min=0,max=100"`
	MaxOverallDrawdownPercent float64  `json:"max_overall_drawdown_percent" validate:"min=0,max=100"`
	ProfitTargetPhase1Percent float64  `json:"profit_target_phase1_percent" validate:"min=0"`
	ProfitTargetPhase2Percent float64  `json:"profit_target_phase2_percent" validate:"min=0"`
	MaxTradesPerDay           int      `json:"max_trades_per_day" validate:"min=0"`
	MaxConcurrentTrades       int      `json:"max_concurrent_trades" validate:"min=0"`
	StopLossMandatory         bool     `json:"stop_loss_mandatory"`
	AllowedSymbols            []string `json:"allowed_symbols"`
	AllowedSegments           []string `json:"allowed_segments"`
	MaxLossPerTradePercent    float64  `json:"max_loss_per_trade_percent" validate:"min=0,max=100"`
	MinTradeHoldTimeSeconds   int      `json:"min_trade_hold_time_seconds" validate:"min=0"`
	MaxLeverage               float64  `json:"max_leverage" validate:"min=0"`
	ChallengeExpiryDays       int      `json:"challenge_expiry_days" validate:"min=0"`
	TradingDaysRequired       int      `json:"trading_days_required" validate:"min=0"`
}

// ProfitTargetForPhase returns the target of a phase. Phase 1 has its own target,
// every later phase shares the phase 2 target.
func (r ChallengeRules) ProfitTargetForPhase(phase int) float64 {
	if phase <= 1 {
		if r.ProfitTargetPhase1Percent > 0 {
			return r.ProfitTargetPhase1Percent
		}
		return DefaultProfitTargetPhase1Percent
	}

	if r.ProfitTargetPhase2Percent > 0 {
		return r.ProfitTargetPhase2Percent
	}

	return DefaultProfitTargetPhase2Percent
}

func (r ChallengeRules) LeverageOrDefault() float64 {
	if r.MaxLeverage > 0 {
		return r.MaxLeverage
	}

	return DefaultChallengeMaxLeverage
}

func (r ChallengeRules) ExpiryDaysOrDefault() int {
	if r.ChallengeExpiryDays > 0 {
		return r.ChallengeExpiryDays
	}

	return DefaultChallengeExpiryDays
}

// Challenge is a purchasable evaluation product.
type Challenge struct {
	gorm.Model
	Name               string         `gorm:"column:name;type:text;not null"`
	FundSize           float64        `gorm:"column:fund_size;type:numeric;not null"`
	StepsCount         int            `gorm:"column:steps_count;not null;default:2"`
	IsActive           bool           `gorm:"column:is_active;not null;default:true"`
	Rules              ChallengeRules `gorm:"column:rules;type:jsonb;serializer:json"`
	ProfitSplitPercent float64        `gorm:"column:profit_split_percent;type:numeric;not null;default:80"`
}

func (c *Challenge) ProfitSplitOrDefault() float64 {
	if c.ProfitSplitPercent > 0 {
		return c.ProfitSplitPercent
	}

	return DefaultProfitSplitPercent
}
