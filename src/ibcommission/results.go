package ibcommission

import (
	"github.com/shopspring/decimal"

	"github.com/jiaming2012/backoffice/src/models"
)

type LevelStatus string

const (
	LevelStatusCredited  LevelStatus = "CREDITED"
	LevelStatusSkipped   LevelStatus = "SKIPPED"
	LevelStatusDuplicate LevelStatus = "DUPLICATE"
	LevelStatusFailed    LevelStatus = "FAILED"
)

type LevelCommissionResult struct {
	Level            int             `json:"level"`
	IBUserID         uint            `json:"ib_user_id"`
	IBName           string          `json:"ib_name,omitempty"`
	PlanID           uint            `json:"plan_id,omitempty"`
	BaseAmount       float64         `json:"base_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	CommissionID     uint            `json:"commission_id,omitempty"`
	Status           LevelStatus     `json:"status"`
	Reason           string          `json:"reason,omitempty"`
}

type TradeCommissionResult struct {
	TradeID              uint                    `json:"trade_id"`
	TraderUserID         uint                    `json:"trader_user_id"`
	Processed            bool                    `json:"processed"`
	Reason               string                  `json:"reason,omitempty"`
	CommissionsGenerated int                     `json:"commissions_generated"`
	TotalCommission      decimal.Decimal         `json:"total_commission"`
	Levels               []LevelCommissionResult `json:"levels"`
}

type IBWalletSummary struct {
	Balance           decimal.Decimal `json:"balance"`
	TotalEarned       decimal.Decimal `json:"total_earned"`
	TotalWithdrawn    decimal.Decimal `json:"total_withdrawn"`
	PendingWithdrawal decimal.Decimal `json:"pending_withdrawal"`
}

type IBStats struct {
	UserID           uint            `json:"user_id"`
	FirstName        string          `json:"first_name"`
	Email            string          `json:"email"`
	ReferralCode     string          `json:"referral_code"`
	IBStatus         models.IBStatus `json:"ib_status"`
	IBLevel          int             `json:"ib_level"`
	Wallet           IBWalletSummary `json:"wallet"`
	DirectReferrals  int             `json:"direct_referrals"`
	TotalDownline    int             `json:"total_downline"`
	TotalCommission  decimal.Decimal `json:"total_commission"`
	TotalTrades      int             `json:"total_trades"`
	ReversedCount    int             `json:"reversed_count"`
	ActiveTraders30d int             `json:"active_traders_30d"`
}
