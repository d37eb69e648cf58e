package models

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

type CommissionType string

const (
	CommissionTypePerLot     CommissionType = "PER_LOT"
	CommissionTypePercentage CommissionType = "PERCENTAGE"
)

const DefaultCommissionMaxLevels = 5

type LevelRate struct {
	Level int     `json:"level" yaml:"level" validate:"min=1"`
	Rate  float64 `json:"rate" yaml:"rate" validate:"min=0"`
}

// CommissionPlan holds per-level rates as an ordered list, level 1 first.
type CommissionPlan struct {
	gorm.Model
	Name           string         `gorm:"column:name;type:text;not null"`
	CommissionType CommissionType `gorm:"column:commission_type;type:text;not null"`
	MaxLevels      int            `gorm:"column:max_levels;not null;default:5"`
	Levels         []LevelRate    `gorm:"column:levels;type:jsonb;serializer:json"`
	IsDefault      bool           `gorm:"column:is_default;not null;default:false"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
}

// RateForLevel returns 0 when the plan has no rate for the level.
func (p *CommissionPlan) RateForLevel(level int) float64 {
	for _, l := range p.Levels {
		if l.Level == level {
			return l.Rate
		}
	}

	return 0
}

// CommissionAmount prices one level of the waterfall for a closed trade.
func (p *CommissionPlan) CommissionAmount(level int, quantity, contractSize, openPrice float64) float64 {
	rate := p.RateForLevel(level)
	if rate <= 0 {
		return 0
	}

	switch p.CommissionType {
	case CommissionTypePerLot:
		return quantity * rate
	case CommissionTypePercentage:
		return quantity * contractSize * openPrice * rate / 100
	default:
		return 0
	}
}

// CommissionPlanDTO is the wire shape of a plan. Rates may arrive either as a
// levels array or as a sparse level1..levelN map.
type CommissionPlanDTO struct {
	Name           string             `json:"name" yaml:"name" validate:"required"`
	CommissionType CommissionType     `json:"commission_type" yaml:"commission_type" validate:"required,oneof=PER_LOT PERCENTAGE"`
	MaxLevels      int                `json:"max_levels" yaml:"max_levels" validate:"min=0,max=20"`
	Levels         []LevelRate        `json:"levels,omitempty" yaml:"levels,omitempty" validate:"dive"`
	LevelRates     map[string]float64 `json:"level_rates,omitempty" yaml:"level_rates,omitempty"`
	IsDefault      bool               `json:"is_default" yaml:"is_default"`
}

func (dto *CommissionPlanDTO) ToPlan() (*CommissionPlan, error) {
	levels, err := normalizeLevels(dto.Levels, dto.LevelRates)
	if err != nil {
		return nil, fmt.Errorf("CommissionPlanDTO.ToPlan: %w", err)
	}

	maxLevels := dto.MaxLevels
	if maxLevels <= 0 {
		maxLevels = DefaultCommissionMaxLevels
	}

	return &CommissionPlan{
		Name:           dto.Name,
		CommissionType: dto.CommissionType,
		MaxLevels:      maxLevels,
		Levels:         levels,
		IsDefault:      dto.IsDefault,
		IsActive:       true,
	}, nil
}

func normalizeLevels(levels []LevelRate, levelRates map[string]float64) ([]LevelRate, error) {
	byLevel := make(map[int]float64)
	for _, l := range levels {
		if l.Level < 1 {
			return nil, fmt.Errorf("invalid level %d: %w", l.Level, ErrValidation)
		}
		byLevel[l.Level] = l.Rate
	}

	for key, rate := range levelRates {
		var level int
		if _, err := fmt.Sscanf(key, "level%d", &level); err != nil || level < 1 {
			return nil, fmt.Errorf("invalid level key %q: %w", key, ErrValidation)
		}
		byLevel[level] = rate
	}

	out := make([]LevelRate, 0, len(byLevel))
	for level, rate := range byLevel {
		out = append(out, LevelRate{Level: level, Rate: rate})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Level < out[j].Level
	})

	return out, nil
}
