package copytrade

import "github.com/shopspring/decimal"

type ResultStatus string

const (
	ResultStatusSuccess      ResultStatus = "SUCCESS"
	ResultStatusFailed       ResultStatus = "FAILED"
	ResultStatusSkipped      ResultStatus = "SKIPPED"
	ResultStatusDeducted     ResultStatus = "DEDUCTED"
	ResultStatusNoCommission ResultStatus = "NO_COMMISSION"
)

type FollowerCopyResult struct {
	FollowerID      uint         `json:"follower_id"`
	FollowerUserID  uint         `json:"follower_user_id"`
	CopyTradeID     uint         `json:"copy_trade_id,omitempty"`
	FollowerTradeID *uint        `json:"follower_trade_id,omitempty"`
	LotSize         float64      `json:"lot_size"`
	Status          ResultStatus `json:"status"`
	Reason          string       `json:"reason,omitempty"`
}

// CopyActionResult reports a modify or close applied to one follower copy.
type CopyActionResult struct {
	CopyTradeID     uint         `json:"copy_trade_id"`
	FollowerID      uint         `json:"follower_id"`
	FollowerTradeID uint         `json:"follower_trade_id"`
	Pnl             float64      `json:"pnl"`
	Status          ResultStatus `json:"status"`
	Reason          string       `json:"reason,omitempty"`
}

type SettlementResult struct {
	MasterID       uint            `json:"master_id" csv:"master_id"`
	FollowerID     uint            `json:"follower_id" csv:"follower_id"`
	FollowerUserID uint            `json:"follower_user_id" csv:"follower_user_id"`
	TradingDay     string          `json:"trading_day" csv:"trading_day"`
	TradeCount     int             `json:"trade_count" csv:"trade_count"`
	DailyProfit    decimal.Decimal `json:"daily_profit" csv:"daily_profit"`
	Commission     decimal.Decimal `json:"commission" csv:"commission"`
	AdminShare     decimal.Decimal `json:"admin_share" csv:"admin_share"`
	MasterShare    decimal.Decimal `json:"master_share" csv:"master_share"`
	RecordID       uint            `json:"record_id,omitempty" csv:"record_id"`
	Status         ResultStatus    `json:"status" csv:"status"`
	Reason         string          `json:"reason,omitempty" csv:"reason"`
}
