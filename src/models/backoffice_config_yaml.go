package models

import (
	"fmt"
	"strings"
)

type BackofficeConfigYAML struct {
	Commission    CommissionConfigYAML  `yaml:"commission" validate:"required"`
	CopyTrading   CopyTradingConfigYAML `yaml:"copy_trading" validate:"required"`
	ContractSizes []ContractSizeYAML    `yaml:"contract_sizes" validate:"dive"`
	Settlement    SettlementConfigYAML  `yaml:"settlement" validate:"required"`
	PriceFeed     PriceFeedConfigYAML   `yaml:"price_feed"`
}

type CommissionConfigYAML struct {
	MaxDepth    int               `yaml:"max_depth" validate:"min=1,max=20"`
	DefaultPlan CommissionPlanDTO `yaml:"default_plan" validate:"required"`
}

type CopyTradingConfigYAML struct {
	DefaultAdminSharePercentage float64 `yaml:"default_admin_share_percentage" validate:"min=0,max=100"`
	MinPayoutAmount             float64 `yaml:"min_payout_amount" validate:"min=0"`
	DefaultMaxLotSize           float64 `yaml:"default_max_lot_size" validate:"gt=0"`
}

type ContractSizeYAML struct {
	Symbol       string  `yaml:"symbol" validate:"required"`
	ContractSize float64 `yaml:"contract_size" validate:"gt=0"`
}

// SettlementConfigYAML.RunAt is a UTC wall-clock time, hh:mm.
type SettlementConfigYAML struct {
	RunAt string `yaml:"run_at" validate:"required"`
}

type PriceFeedConfigYAML struct {
	URL     string   `yaml:"url" validate:"omitempty,url"`
	Symbols []string `yaml:"symbols"`
}

func (c *BackofficeConfigYAML) ContractSizeOverrides() map[string]float64 {
	out := make(map[string]float64, len(c.ContractSizes))
	for _, cs := range c.ContractSizes {
		out[strings.ToUpper(cs.Symbol)] = cs.ContractSize
	}

	return out
}

// SettlementTime parses RunAt into hour and minute.
func (c *SettlementConfigYAML) SettlementTime() (hour int, minute int, err error) {
	if _, err = fmt.Sscanf(c.RunAt, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("SettlementConfigYAML: invalid run_at %q: %w", c.RunAt, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("SettlementConfigYAML: run_at %q out of range", c.RunAt)
	}

	return hour, minute, nil
}
