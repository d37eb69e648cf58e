package models

import "time"

type ViolationSeverity string

const (
	ViolationSeverityWarning ViolationSeverity = "WARNING"
	ViolationSeverityFail    ViolationSeverity = "FAIL"
)

// MaxSameRuleWarnings is the number of warnings of one rule that fails an account.
const MaxSameRuleWarnings = 3

const (
	RuleAccountNotFound       = "ACCOUNT_NOT_FOUND"
	RuleAccountNotActive      = "ACCOUNT_NOT_ACTIVE"
	RuleAccountFailed         = "ACCOUNT_FAILED"
	RuleAccountExpired        = "ACCOUNT_EXPIRED"
	RuleSlMandatory           = "SL_MANDATORY"
	RuleMaxTradesPerDay       = "MAX_TRADES_PER_DAY"
	RuleMaxConcurrentTrades   = "MAX_CONCURRENT_TRADES"
	RuleSymbolNotAllowed      = "SYMBOL_NOT_ALLOWED"
	RuleSegmentNotAllowed     = "SEGMENT_NOT_ALLOWED"
	RuleMaxLossPerTrade       = "MAX_LOSS_PER_TRADE"
	RuleMinHoldTime           = "MIN_HOLD_TIME"
	RuleDailyDrawdownBreach   = "DAILY_DRAWDOWN_BREACH"
	RuleOverallDrawdownBreach = "OVERALL_DRAWDOWN_BREACH"
	RuleInsufficientMargin    = "INSUFFICIENT_MARGIN"
	RuleAdminForcePass        = "ADMIN_FORCE_PASS"
	RuleAdminForceFail        = "ADMIN_FORCE_FAIL"
	RuleAdminExtendTime       = "ADMIN_EXTEND_TIME"
	RuleAdminReset            = "ADMIN_RESET"
)

type UIAction string

const (
	UIActionShowSlPopup        UIAction = "SHOW_SL_POPUP"
	UIActionDisableTradeButton UIAction = "DISABLE_TRADE_BUTTON"
	UIActionShowSymbolWarning  UIAction = "SHOW_SYMBOL_WARNING"
	UIActionShowSegmentWarning UIAction = "SHOW_SEGMENT_WARNING"
	UIActionShowLossWarning    UIAction = "SHOW_LOSS_WARNING"
	UIActionShowMarginWarning  UIAction = "SHOW_MARGIN_WARNING"
	UIActionDisableCloseButton UIAction = "DISABLE_CLOSE_BUTTON"
)

type Violation struct {
	Rule        string            `json:"rule"`
	Description string            `json:"description"`
	Severity    ViolationSeverity `json:"severity"`
	Timestamp   time.Time         `json:"timestamp"`
}
