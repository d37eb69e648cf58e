package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// IAccountStore owns trading accounts and positions. Balances change only
// through atomic deltas.
type IAccountStore interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id uint) (*Account, error)
	AdjustAccountBalance(ctx context.Context, id uint, delta decimal.Decimal) (*Account, error)
	CreateTrade(ctx context.Context, trade *Trade) error
	GetTrade(ctx context.Context, id uint) (*Trade, error)
	ListOpenTrades(ctx context.Context, accountID uint, kind AccountKind) ([]*Trade, error)
	ListOpenTradesByKind(ctx context.Context, kind AccountKind) ([]*Trade, error)
	// CloseTrade flips OPEN to CLOSED. Realized PnL of a TRADING account trade is
	// applied to the account balance in the same transaction.
	CloseTrade(ctx context.Context, id uint, close TradeClose) (*Trade, error)
	UpdateTradeStops(ctx context.Context, id uint, stopLoss, takeProfit *float64) (*Trade, error)
}

type ICopyTradeStore interface {
	CreateMasterTrader(ctx context.Context, master *MasterTrader) error
	GetMasterTrader(ctx context.Context, id uint) (*MasterTrader, error)
	GetMasterTraderByAccount(ctx context.Context, accountID uint) (*MasterTrader, error)
	SetMasterTraderStatus(ctx context.Context, id uint, status MasterTraderStatus) error
	AddMasterCopiedVolume(ctx context.Context, id uint, volume float64) error
	WithdrawMasterCommission(ctx context.Context, id uint, amount decimal.Decimal) (*MasterWithdrawal, error)

	CreateCopyRelationship(ctx context.Context, relationship *CopyRelationship) error
	GetCopyRelationship(ctx context.Context, id uint) (*CopyRelationship, error)
	ListActiveFollowers(ctx context.Context, masterID uint) ([]*CopyRelationship, error)
	TransitionCopyRelationship(ctx context.Context, id uint, from []CopyRelationshipStatus, to CopyRelationshipStatus, at time.Time) (*CopyRelationship, error)
	ApplyFollowerStats(ctx context.Context, id uint, delta FollowerStatsDelta) error
	ResetFollowerDailyStats(ctx context.Context, resetAt time.Time) (int64, error)

	CopyTradeExists(ctx context.Context, masterTradeID, masterID uint) (bool, error)
	GetCopyTradeRecord(ctx context.Context, masterTradeID, followerID uint) (*CopyTradeRecord, error)
	// InsertCopyTradeRecord returns ErrDuplicateRecord when the master trade was
	// already copied to the follower.
	InsertCopyTradeRecord(ctx context.Context, record *CopyTradeRecord) error
	MarkCopyTradeOpen(ctx context.Context, id uint, followerTradeID uint, followerOpenPrice float64) error
	MarkCopyTradeFailed(ctx context.Context, id uint, reason string) error
	ListOpenCopyTrades(ctx context.Context, masterTradeID uint) ([]*CopyTradeRecord, error)
	ListOpenCopyTradesByMaster(ctx context.Context, masterID uint) ([]*CopyTradeRecord, error)
	CloseCopyTrade(ctx context.Context, id uint, close CopyTradeClose) error
	ListClosedCopyTradesByMaster(ctx context.Context, masterID uint) ([]*CopyTradeRecord, error)

	ListUnsettledCopyTrades(ctx context.Context, tradingDay string) ([]*CopyTradeRecord, error)
	// ClaimCopyTradesForSettlement marks every trade as commission applied, or none of them.
	ClaimCopyTradesForSettlement(ctx context.Context, ids []uint) error
	// SettleCopyCommission debits the follower and credits master and admin pool in
	// one transaction. When the follower cannot cover the fee a FAILED row is written instead.
	SettleCopyCommission(ctx context.Context, record *CopyCommissionRecord) (*CopyCommissionRecord, error)
	ListCopyCommissionRecords(ctx context.Context, tradingDay string) ([]*CopyCommissionRecord, error)
	GetCopySettings(ctx context.Context) (*CopySettings, error)
	SaveCopySettings(ctx context.Context, settings *CopySettings) error
}

type ICommissionStore interface {
	CreateIBUser(ctx context.Context, user *IBUser) error
	GetIBUser(ctx context.Context, userID uint) (*IBUser, error)
	GetIBUserByReferralCode(ctx context.Context, code string) (*IBUser, error)
	SaveIBUser(ctx context.Context, user *IBUser) error
	TransitionIBStatus(ctx context.Context, userID uint, from []IBStatus, to IBStatus, planID *uint) (*IBUser, error)
	ListDirectReferrals(ctx context.Context, parentUserID uint) ([]*IBUser, error)

	CreateCommissionPlan(ctx context.Context, plan *CommissionPlan) error
	GetCommissionPlan(ctx context.Context, id uint) (*CommissionPlan, error)
	GetDefaultCommissionPlan(ctx context.Context) (*CommissionPlan, error)

	CommissionRecordExists(ctx context.Context, tradeID, ibUserID uint, level int) (bool, error)
	// CreditCommission inserts the record and credits the IB wallet together.
	// A record that already exists for (trade, IB, level) yields ErrDuplicateRecord.
	CreditCommission(ctx context.Context, record *CommissionRecord) error
	GetCommissionRecord(ctx context.Context, id uint) (*CommissionRecord, error)
	ReverseCommission(ctx context.Context, id uint, reversal CommissionReversal) (*CommissionRecord, error)
	ListCommissionRecordsByIB(ctx context.Context, ibUserID uint) ([]*CommissionRecord, error)

	GetIBWallet(ctx context.Context, ibUserID uint) (*IBWallet, error)
	WithdrawIBWallet(ctx context.Context, ibUserID uint, amount decimal.Decimal) (*IBWithdrawal, error)
}

type IChallengeStore interface {
	CreateChallenge(ctx context.Context, challenge *Challenge) error
	GetChallenge(ctx context.Context, id uint) (*Challenge, error)
	CreateChallengeAccount(ctx context.Context, account *ChallengeAccount) error
	GetChallengeAccount(ctx context.Context, id uint) (*ChallengeAccount, error)
	ListChallengeAccounts(ctx context.Context, statuses ...ChallengeAccountStatus) ([]*ChallengeAccount, error)
	// SaveChallengeAccount succeeds only if the stored version matches, then bumps it.
	// A mismatch yields ErrStaleChallengeAccount.
	SaveChallengeAccount(ctx context.Context, account *ChallengeAccount) error
	FundChallengeAccount(ctx context.Context, passed *ChallengeAccount, funded *ChallengeAccount) error

	ClaimTradeEvent(ctx context.Context, tradeID uint, eventType TradeEventType) error
	ReleaseTradeEvent(ctx context.Context, tradeID uint, eventType TradeEventType) error
}

type IDatabaseService interface {
	IAccountStore
	ICopyTradeStore
	ICommissionStore
	IChallengeStore
}

// ITradeEngine executes positions. Margin and PnL primitives live here.
type ITradeEngine interface {
	OpenTrade(ctx context.Context, req OpenTradeRequest) (*Trade, error)
	CloseTrade(ctx context.Context, tradeID uint, bid, ask float64, closedBy string) (*CloseTradeResult, error)
	ModifyTrade(ctx context.Context, tradeID uint, stopLoss, takeProfit *float64) (*Trade, error)
	GetContractSize(symbol string) float64
	CalculateMargin(quantity, price, leverage, contractSize float64) float64
}
