package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

type ChallengeAccountType string

const (
	ChallengeAccountTypeChallenge ChallengeAccountType = "CHALLENGE"
	ChallengeAccountTypeFunded    ChallengeAccountType = "FUNDED"
)

type ChallengeAccountStatus string

const (
	ChallengeAccountStatusActive  ChallengeAccountStatus = "ACTIVE"
	ChallengeAccountStatusPassed  ChallengeAccountStatus = "PASSED"
	ChallengeAccountStatusFunded  ChallengeAccountStatus = "FUNDED"
	ChallengeAccountStatusFailed  ChallengeAccountStatus = "FAILED"
	ChallengeAccountStatusExpired ChallengeAccountStatus = "EXPIRED"
)

const fundedAccountLifetime = 365 * 24 * time.Hour

// ChallengeAccount tracks an evaluation (or funded) account through its phases.
// Every save is conditional on Version.
type ChallengeAccount struct {
	gorm.Model
	UserID                        uint                   `gorm:"column:user_id;not null;index"`
	ChallengeID                   uint                   `gorm:"column:challenge_id;not null;index"`
	AccountNumber                 string                 `gorm:"column:account_number;type:text;not null;uniqueIndex"`
	AccountType                   ChallengeAccountType   `gorm:"column:account_type;type:text;not null"`
	CurrentPhase                  int                    `gorm:"column:current_phase;not null"`
	TotalPhases                   int                    `gorm:"column:total_phases;not null"`
	Status                        ChallengeAccountStatus `gorm:"column:status;type:text;not null;index"`
	InitialBalance                float64                `gorm:"column:initial_balance;type:numeric;not null"`
	CurrentBalance                float64                `gorm:"column:current_balance;type:numeric;not null"`
	CurrentEquity                 float64                `gorm:"column:current_equity;type:numeric;not null"`
	PhaseStartBalance             float64                `gorm:"column:phase_start_balance;type:numeric;not null"`
	DayStartEquity                float64                `gorm:"column:day_start_equity;type:numeric;not null"`
	LowestEquityToday             float64                `gorm:"column:lowest_equity_today;type:numeric;not null"`
	LowestEquityOverall           float64                `gorm:"column:lowest_equity_overall;type:numeric;not null"`
	HighestEquity                 float64                `gorm:"column:highest_equity;type:numeric;not null"`
	CurrentDailyDrawdownPercent   float64                `gorm:"column:current_daily_drawdown_percent;type:numeric;not null;default:0"`
	CurrentOverallDrawdownPercent float64                `gorm:"column:current_overall_drawdown_percent;type:numeric;not null;default:0"`
	MaxDailyDrawdownHit           float64                `gorm:"column:max_daily_drawdown_hit;type:numeric;not null;default:0"`
	MaxOverallDrawdownHit         float64                `gorm:"column:max_overall_drawdown_hit;type:numeric;not null;default:0"`
	CurrentProfitPercent          float64                `gorm:"column:current_profit_percent;type:numeric;not null;default:0"`
	TotalProfitLoss               float64                `gorm:"column:total_profit_loss;type:numeric;not null;default:0"`
	Violations                    []Violation            `gorm:"column:violations;type:jsonb;serializer:json"`
	TradesToday                   int                    `gorm:"column:trades_today;not null;default:0"`
	OpenTradesCount               int                    `gorm:"column:open_trades_count;not null;default:0"`
	TotalTrades                   int                    `gorm:"column:total_trades;not null;default:0"`
	TradingDaysCount              int                    `gorm:"column:trading_days_count;not null;default:0"`
	WarningsCount                 int                    `gorm:"column:warnings_count;not null;default:0"`
	LastTradingDay                string                 `gorm:"column:last_trading_day;type:text"`
	DayStartedAt                  time.Time              `gorm:"column:day_started_at;type:timestamp"`
	ExpiresAt                     time.Time              `gorm:"column:expires_at;type:timestamp;not null"`
	PassedAt                      *time.Time             `gorm:"column:passed_at;type:timestamp"`
	FailedAt                      *time.Time             `gorm:"column:failed_at;type:timestamp"`
	FailReason                    string                 `gorm:"column:fail_reason;type:text"`
	FundedAccountID               *uint                  `gorm:"column:funded_account_id"`
	FundedFromID                  *uint                  `gorm:"column:funded_from_id"`
	ProfitSplitPercent            float64                `gorm:"column:profit_split_percent;type:numeric;not null;default:80"`
	Version                       int                    `gorm:"column:version;not null;default:1"`
}

func NewChallengeAccount(userID uint, challenge *Challenge, accountNumber string, now time.Time) *ChallengeAccount {
	phase := 1
	if challenge.StepsCount == 0 {
		phase = 0
	}

	acc := newAccountAt(challenge.FundSize, now)
	acc.UserID = userID
	acc.ChallengeID = challenge.ID
	acc.AccountNumber = accountNumber
	acc.AccountType = ChallengeAccountTypeChallenge
	acc.CurrentPhase = phase
	acc.TotalPhases = challenge.StepsCount
	acc.Status = ChallengeAccountStatusActive
	acc.ProfitSplitPercent = challenge.ProfitSplitOrDefault()
	acc.ExpiresAt = now.AddDate(0, 0, challenge.Rules.ExpiryDaysOrDefault())

	return acc
}

// NewFundedAccount builds the funded account spawned by a passed evaluation.
func NewFundedAccount(from *ChallengeAccount, challenge *Challenge, accountNumber string, now time.Time) *ChallengeAccount {
	fromID := from.ID

	acc := newAccountAt(challenge.FundSize, now)
	acc.UserID = from.UserID
	acc.ChallengeID = from.ChallengeID
	acc.AccountNumber = accountNumber
	acc.AccountType = ChallengeAccountTypeFunded
	acc.Status = ChallengeAccountStatusFunded
	acc.ProfitSplitPercent = challenge.ProfitSplitOrDefault()
	acc.ExpiresAt = now.Add(fundedAccountLifetime)
	acc.FundedFromID = &fromID

	return acc
}

func newAccountAt(fundSize float64, now time.Time) *ChallengeAccount {
	return &ChallengeAccount{
		InitialBalance:      fundSize,
		CurrentBalance:      fundSize,
		CurrentEquity:       fundSize,
		PhaseStartBalance:   fundSize,
		DayStartEquity:      fundSize,
		LowestEquityToday:   fundSize,
		LowestEquityOverall: fundSize,
		HighestEquity:       fundSize,
		Violations:          []Violation{},
		DayStartedAt:        now,
		Version:             1,
	}
}

// IsTradable is true for accounts that may open and hold positions.
func (a *ChallengeAccount) IsTradable() bool {
	return a.Status == ChallengeAccountStatusActive || a.Status == ChallengeAccountStatusFunded
}

func (a *ChallengeAccount) IsTerminal() bool {
	switch a.Status {
	case ChallengeAccountStatusFailed, ChallengeAccountStatusExpired, ChallengeAccountStatusPassed:
		return true
	default:
		return false
	}
}

func (a *ChallengeAccount) HasFailViolation() bool {
	for _, v := range a.Violations {
		if v.Severity == ViolationSeverityFail {
			return true
		}
	}

	return false
}

func (a *ChallengeAccount) WarningCount(rule string) int {
	count := 0
	for _, v := range a.Violations {
		if v.Rule == rule && v.Severity == ViolationSeverityWarning {
			count++
		}
	}

	return count
}

func (a *ChallengeAccount) AddViolation(rule, description string, severity ViolationSeverity, now time.Time) {
	a.Violations = append(a.Violations, Violation{
		Rule:        rule,
		Description: description,
		Severity:    severity,
		Timestamp:   now,
	})
}

// ExpireIfDue moves a tradable account past its expiry to EXPIRED.
func (a *ChallengeAccount) ExpireIfDue(now time.Time) bool {
	if !a.IsTradable() || a.ExpiresAt.IsZero() || !now.After(a.ExpiresAt) {
		return false
	}

	a.Status = ChallengeAccountStatusExpired
	return true
}

// RollDailyBaseline resets the daily drawdown baseline on the first touch of a new UTC day.
// The overall baseline is never reset.
func (a *ChallengeAccount) RollDailyBaseline(now time.Time) bool {
	if TradingDayOf(a.DayStartedAt) == TradingDayOf(now) {
		return false
	}

	a.DayStartEquity = a.CurrentEquity
	a.LowestEquityToday = a.CurrentEquity
	a.CurrentDailyDrawdownPercent = 0
	a.DayStartedAt = now
	return true
}

// TradesTodayAt ignores a count left over from a previous day.
func (a *ChallengeAccount) TradesTodayAt(now time.Time) int {
	if a.LastTradingDay != TradingDayOf(now) {
		return 0
	}

	return a.TradesToday
}

func (a *ChallengeAccount) RecordTradeOpened(now time.Time) {
	day := TradingDayOf(now)
	if a.LastTradingDay != day {
		a.TradesToday = 0
		a.TradingDaysCount++
		a.LastTradingDay = day
	}

	a.RollDailyBaseline(now)

	a.TradesToday++
	a.OpenTradesCount++
	a.TotalTrades++
}

func (a *ChallengeAccount) RecordTradeClosed(pnl float64, now time.Time) {
	a.RollDailyBaseline(now)

	a.CurrentBalance += pnl
	a.TotalProfitLoss += pnl
	a.OpenTradesCount--
	if a.OpenTradesCount < 0 {
		a.OpenTradesCount = 0
	}

	a.ApplyEquity(a.CurrentBalance)
}

// ApplyEquity records a new equity reading and recomputes drawdown and profit.
func (a *ChallengeAccount) ApplyEquity(equity float64) {
	a.CurrentEquity = equity
	a.LowestEquityToday = math.Min(a.LowestEquityToday, equity)
	a.LowestEquityOverall = math.Min(a.LowestEquityOverall, equity)
	a.HighestEquity = math.Max(a.HighestEquity, equity)

	a.CurrentDailyDrawdownPercent = drawdownPercent(a.DayStartEquity, a.LowestEquityToday)
	a.CurrentOverallDrawdownPercent = drawdownPercent(a.InitialBalance, a.LowestEquityOverall)
	a.MaxDailyDrawdownHit = math.Max(a.MaxDailyDrawdownHit, a.CurrentDailyDrawdownPercent)
	a.MaxOverallDrawdownHit = math.Max(a.MaxOverallDrawdownHit, a.CurrentOverallDrawdownPercent)

	if a.PhaseStartBalance > 0 {
		a.CurrentProfitPercent = (equity - a.PhaseStartBalance) / a.PhaseStartBalance * 100
	}
}

func drawdownPercent(baseline, lowest float64) float64 {
	if baseline <= 0 || lowest >= baseline {
		return 0
	}

	return (baseline - lowest) / baseline * 100
}

// DrawdownBreach checks the daily limit first, then the overall limit. Reaching a
// limit counts as a breach. A zero limit is not enforced.
func (a *ChallengeAccount) DrawdownBreach(rules ChallengeRules) (rule string, description string, breached bool) {
	if rules.MaxDailyDrawdownPercent > 0 && a.CurrentDailyDrawdownPercent >= rules.MaxDailyDrawdownPercent {
		return RuleDailyDrawdownBreach,
			fmt.Sprintf("Daily drawdown of %.2f%% exceeded limit of %v%%", a.CurrentDailyDrawdownPercent, rules.MaxDailyDrawdownPercent),
			true
	}

	if rules.MaxOverallDrawdownPercent > 0 && a.CurrentOverallDrawdownPercent >= rules.MaxOverallDrawdownPercent {
		return RuleOverallDrawdownBreach,
			fmt.Sprintf("Overall drawdown of %.2f%% exceeded limit of %v%%", a.CurrentOverallDrawdownPercent, rules.MaxOverallDrawdownPercent),
			true
	}

	return "", "", false
}

// Fail is terminal. A FAIL violation is appended with the reason.
func (a *ChallengeAccount) Fail(rule, reason string, now time.Time) {
	a.Status = ChallengeAccountStatusFailed
	a.FailedAt = &now
	a.FailReason = reason
	a.AddViolation(rule, reason, ViolationSeverityFail, now)
}

func (a *ChallengeAccount) IsFinalPhase() bool {
	return a.CurrentPhase >= a.TotalPhases
}

func (a *ChallengeAccount) AdvancePhase() {
	a.CurrentPhase++
	a.PhaseStartBalance = a.CurrentEquity
	a.CurrentProfitPercent = 0
	a.CurrentDailyDrawdownPercent = 0
	a.MaxDailyDrawdownHit = 0
}

func (a *ChallengeAccount) MarkPassed(now time.Time) {
	a.Status = ChallengeAccountStatusPassed
	a.PassedAt = &now
}

// Reset puts the account back at the start of phase one with a fresh fund.
func (a *ChallengeAccount) Reset(challenge *Challenge, description string, now time.Time) {
	fresh := NewChallengeAccount(a.UserID, challenge, a.AccountNumber, now)

	fresh.Model = a.Model
	fresh.Version = a.Version
	fresh.FundedAccountID = a.FundedAccountID
	fresh.FundedFromID = a.FundedFromID
	fresh.AddViolation(RuleAdminReset, description, ViolationSeverityWarning, now)

	*a = *fresh
}

func (a *ChallengeAccount) RemainingTime(now time.Time) time.Duration {
	if now.After(a.ExpiresAt) {
		return 0
	}

	return a.ExpiresAt.Sub(now)
}
