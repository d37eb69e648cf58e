package challenge

import "github.com/jiaming2012/backoffice/src/models"

type TradeClosedOutcome struct {
	Account        *models.ChallengeAccount `json:"account"`
	Duplicate      bool                     `json:"duplicate,omitempty"`
	Failed         bool                     `json:"failed"`
	Rule           string                   `json:"rule,omitempty"`
	Reason         string                   `json:"reason,omitempty"`
	PhaseCompleted bool                     `json:"phase_completed"`
	NextPhase      int                      `json:"next_phase,omitempty"`
	FundedAccount  *models.ChallengeAccount `json:"funded_account,omitempty"`
}

type EquityUpdate struct {
	Account         *models.ChallengeAccount `json:"account"`
	Breached        bool                     `json:"breached"`
	Expired         bool                     `json:"expired,omitempty"`
	Rule            string                   `json:"rule,omitempty"`
	Reason          string                   `json:"reason,omitempty"`
	DailyDrawdown   float64                  `json:"daily_drawdown"`
	OverallDrawdown float64                  `json:"overall_drawdown"`
	ProfitPercent   float64                  `json:"profit_percent"`
}

type ProfitTargetResult struct {
	Account       *models.ChallengeAccount `json:"account"`
	TargetReached bool                     `json:"target_reached"`
	NextPhase     int                      `json:"next_phase,omitempty"`
	FundedAccount *models.ChallengeAccount `json:"funded_account,omitempty"`
}

// TradeAttemptOutcome is a rejected open with the warning it produced.
type TradeAttemptOutcome struct {
	*models.ValidationResult
	AccountFailed     bool   `json:"account_failed,omitempty"`
	FailReason        string `json:"fail_reason,omitempty"`
	WarningCount      int    `json:"warning_count"`
	RemainingWarnings int    `json:"remaining_warnings"`
}

type TriggeredClose struct {
	TradeID       uint    `json:"trade_id"`
	AccountID     uint    `json:"account_id"`
	Reason        string  `json:"reason"`
	ClosePrice    float64 `json:"close_price"`
	Pnl           float64 `json:"pnl"`
	AccountFailed bool    `json:"account_failed,omitempty"`
	Error         string  `json:"error,omitempty"`
}

type AdminOverride struct {
	Account       *models.ChallengeAccount `json:"account"`
	FundedAccount *models.ChallengeAccount `json:"funded_account,omitempty"`
}
