package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type IBStatus string

const (
	IBStatusPending IBStatus = "PENDING"
	IBStatusActive  IBStatus = "ACTIVE"
	IBStatusBlocked IBStatus = "BLOCKED"
)

// IBUser is a node of the referral chain. ParentIBID points one level up.
type IBUser struct {
	gorm.Model
	UserID        uint            `gorm:"column:user_id;not null;uniqueIndex"`
	FirstName     string          `gorm:"column:first_name;type:text"`
	Email         string          `gorm:"column:email;type:text"`
	IsIB          bool            `gorm:"column:is_ib;not null;default:false"`
	IBStatus      IBStatus        `gorm:"column:ib_status;type:text"`
	ReferralCode  *string         `gorm:"column:referral_code;type:text;uniqueIndex"`
	ReferredBy    *string         `gorm:"column:referred_by;type:text"`
	ParentIBID    *uint           `gorm:"column:parent_ib_id;index"`
	IBLevel       int             `gorm:"column:ib_level;not null;default:0"`
	IBPlanID      *uint           `gorm:"column:ib_plan_id"`
	WalletBalance decimal.Decimal `gorm:"column:wallet_balance;type:numeric;not null;default:0"`
}

// IsActiveIB reports whether the user earns commission on its downline.
func (u *IBUser) IsActiveIB() bool {
	return u.IsIB && u.IBStatus == IBStatusActive
}

type IBChainNode struct {
	Level int     `json:"level"`
	IB    *IBUser `json:"ib"`
}
