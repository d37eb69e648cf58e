package router

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/ibcommission"
	"github.com/jiaming2012/backoffice/src/models"
)

type CopyTrading interface {
	Follow(ctx context.Context, req copytrade.FollowRequest) (*models.CopyRelationship, error)
	Pause(ctx context.Context, followerID uint) (*models.CopyRelationship, error)
	Resume(ctx context.Context, followerID uint) (*models.CopyRelationship, error)
	Stop(ctx context.Context, followerID uint) (*models.CopyRelationship, error)
	MasterStats(ctx context.Context, masterID uint) (*copytrade.MasterPerformance, error)
	ProcessMasterWithdrawal(ctx context.Context, masterID uint, amount decimal.Decimal, adminID uint) (*models.MasterWithdrawal, error)
	BanMaster(ctx context.Context, masterID uint, prices models.PriceMap) ([]copytrade.CopyActionResult, error)
	CloseAllMasterFollowerTrades(ctx context.Context, masterID uint, prices models.PriceMap) ([]copytrade.CopyActionResult, error)
	CalculateDailyCommission(ctx context.Context, tradingDay string) ([]copytrade.SettlementResult, error)
}

type IBNetwork interface {
	ApplyForIB(ctx context.Context, userID uint) (*models.IBUser, error)
	ApproveIB(ctx context.Context, userID uint, planID *uint) (*models.IBUser, error)
	BlockIB(ctx context.Context, userID uint, reason string) (*models.IBUser, error)
	UnblockIB(ctx context.Context, userID uint) (*models.IBUser, error)
	ChangePlan(ctx context.Context, userID uint, planID uint) (*models.IBUser, error)
	RegisterWithReferral(ctx context.Context, userID uint, referralCode string) (*models.IBUser, *models.IBUser, error)
	WithdrawToWallet(ctx context.Context, ibUserID uint, amount decimal.Decimal) (*models.IBWithdrawal, error)
	IBStats(ctx context.Context, ibUserID uint) (*ibcommission.IBStats, error)
	GetIBChain(ctx context.Context, traderUserID uint, maxLevels int) ([]models.IBChainNode, error)
	ReverseCommission(ctx context.Context, commissionID uint, adminID uint, reason string) (*models.CommissionRecord, error)
}

type Challenges interface {
	CreateChallengeAccount(ctx context.Context, userID uint, challengeID uint) (*models.ChallengeAccount, error)
	GetAccount(ctx context.Context, accountID uint) (*models.ChallengeAccount, error)
	Dashboard(ctx context.Context, accountID uint) (*challenge.Dashboard, error)
	OpenTrade(ctx context.Context, accountID uint, req challenge.OpenTradeRequest) (*models.Trade, *challenge.TradeAttemptOutcome, error)
	CloseTrade(ctx context.Context, accountID uint, tradeID uint, price models.Price) (*challenge.TradeClosedOutcome, *models.ValidationResult, error)
	ForcePass(ctx context.Context, accountID uint, adminID uint) (*challenge.AdminOverride, error)
	ForceFail(ctx context.Context, accountID uint, adminID uint, reason string) (*models.ChallengeAccount, error)
	ExtendTime(ctx context.Context, accountID uint, days int, adminID uint) (*models.ChallengeAccount, error)
	ResetChallenge(ctx context.Context, accountID uint, adminID uint) (*models.ChallengeAccount, error)
}

// Ledger serves read-only queries straight from storage.
type Ledger interface {
	GetTrade(ctx context.Context, id uint) (*models.Trade, error)
	ListCopyCommissionRecords(ctx context.Context, tradingDay string) ([]*models.CopyCommissionRecord, error)
	ListCommissionRecordsByIB(ctx context.Context, ibUserID uint) ([]*models.CommissionRecord, error)
}

type PriceSource interface {
	Snapshot() models.PriceMap
}

type Handler struct {
	copyTrading CopyTrading
	ib          IBNetwork
	challenges  Challenges
	engine      models.ITradeEngine
	ledger      Ledger
	prices      PriceSource
}

func NewHandler(copyTrading CopyTrading, ib IBNetwork, challenges Challenges, engine models.ITradeEngine, ledger Ledger, prices PriceSource) *Handler {
	return &Handler{
		copyTrading: copyTrading,
		ib:          ib,
		challenges:  challenges,
		engine:      engine,
		ledger:      ledger,
		prices:      prices,
	}
}

// handleFunc registers f with the route pattern recorded as http.route on its span.
func handleFunc(router *mux.Router, method, path string, f func(http.ResponseWriter, *http.Request)) {
	handler := otelhttp.WithRouteTag(path, http.HandlerFunc(f))
	router.Handle(path, handler).Methods(method)
}

func SetupHandler(router *mux.Router, h *Handler) {
	handleFunc(router, http.MethodPost, "/trades", h.handleOpenTrade)
	handleFunc(router, http.MethodPost, "/trades/{tradeID}/close", h.handleCloseTrade)
	handleFunc(router, http.MethodPut, "/trades/{tradeID}/sltp", h.handleModifyTrade)

	handleFunc(router, http.MethodPost, "/copy-trading/follow", h.handleFollow)
	handleFunc(router, http.MethodPost, "/copy-trading/followers/{followerID}/{action:pause|resume|stop}", h.handleFollowerAction)
	handleFunc(router, http.MethodGet, "/copy-trading/masters/{masterID}/stats", h.handleMasterStats)
	handleFunc(router, http.MethodPost, "/copy-trading/masters/{masterID}/withdrawals", h.handleMasterWithdrawal)
	handleFunc(router, http.MethodPost, "/copy-trading/masters/{masterID}/ban", h.handleBanMaster)
	handleFunc(router, http.MethodPost, "/copy-trading/masters/{masterID}/close-all", h.handleCloseAllFollowerTrades)
	handleFunc(router, http.MethodPost, "/copy-trading/settlements", h.handleSettle)
	handleFunc(router, http.MethodGet, "/copy-trading/settlements", h.handleListSettlements)

	handleFunc(router, http.MethodPost, "/ib/apply", h.handleApplyForIB)
	handleFunc(router, http.MethodPost, "/ib/register", h.handleRegisterWithReferral)
	handleFunc(router, http.MethodPost, "/ib/users/{userID}/approve", h.handleApproveIB)
	handleFunc(router, http.MethodPost, "/ib/users/{userID}/block", h.handleBlockIB)
	handleFunc(router, http.MethodPost, "/ib/users/{userID}/unblock", h.handleUnblockIB)
	handleFunc(router, http.MethodPut, "/ib/users/{userID}/plan", h.handleChangePlan)
	handleFunc(router, http.MethodPost, "/ib/users/{userID}/withdrawals", h.handleIBWithdrawal)
	handleFunc(router, http.MethodGet, "/ib/users/{userID}/stats", h.handleIBStats)
	handleFunc(router, http.MethodGet, "/ib/users/{userID}/commissions", h.handleListIBCommissions)
	handleFunc(router, http.MethodGet, "/ib/chain/{userID}", h.handleIBChain)
	handleFunc(router, http.MethodPost, "/ib/commissions/{commissionID}/reverse", h.handleReverseCommission)

	handleFunc(router, http.MethodPost, "/challenges/{challengeID}/accounts", h.handleCreateChallengeAccount)
	handleFunc(router, http.MethodGet, "/challenge-accounts/{accountID}", h.handleGetChallengeAccount)
	handleFunc(router, http.MethodGet, "/challenge-accounts/{accountID}/dashboard", h.handleDashboard)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/trades", h.handleOpenChallengeTrade)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/trades/{tradeID}/close", h.handleCloseChallengeTrade)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/force-pass", h.handleForcePass)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/force-fail", h.handleForceFail)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/extend", h.handleExtendTime)
	handleFunc(router, http.MethodPost, "/challenge-accounts/{accountID}/reset", h.handleResetChallenge)
}

// quote prefers the prices sent with a request and falls back to the live book.
func (h *Handler) quote(symbol string, bid, ask float64) (models.Price, error) {
	if bid > 0 || ask > 0 {
		return models.Price{Bid: bid, Ask: ask}, nil
	}

	if h.prices != nil {
		if price, found := h.prices.Snapshot().Get(strings.ToUpper(symbol)); found {
			return price, nil
		}
	}

	return models.Price{}, models.NewWebError(http.StatusUnprocessableEntity, "no price available", models.ErrNoPriceAvailable)
}

func (h *Handler) snapshot() models.PriceMap {
	if h.prices == nil {
		return models.PriceMap{}
	}

	return h.prices.Snapshot()
}
