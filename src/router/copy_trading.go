package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/models"
)

type MasterWithdrawalRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	AdminID uint            `json:"admin_id" validate:"required"`
}

type SettleRequest struct {
	TradingDay string `json:"trading_day" validate:"required,datetime=2006-01-02"`
}

type ListSettlementsQuery struct {
	TradingDay string `schema:"trading_day" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) handleFollow(w http.ResponseWriter, r *http.Request) {
	var req copytrade.FollowRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleFollow: invalid request", err, w)
		return
	}

	follower, err := h.copyTrading.Follow(r.Context(), req)
	if err != nil {
		setErrorResponse("handleFollow: failed to follow", err, w)
		return
	}

	if err := setResponseWithStatus(http.StatusCreated, follower, w); err != nil {
		setErrorResponse("handleFollow: failed to set response", err, w)
	}
}

func (h *Handler) handleFollowerAction(w http.ResponseWriter, r *http.Request) {
	followerID, err := pathID(r, "followerID")
	if err != nil {
		setErrorResponse("handleFollowerAction: invalid follower id", err, w)
		return
	}

	var follower *models.CopyRelationship
	switch mux.Vars(r)["action"] {
	case "pause":
		follower, err = h.copyTrading.Pause(r.Context(), followerID)
	case "resume":
		follower, err = h.copyTrading.Resume(r.Context(), followerID)
	default:
		follower, err = h.copyTrading.Stop(r.Context(), followerID)
	}

	if err != nil {
		setErrorResponse("handleFollowerAction: failed to update follower", err, w)
		return
	}

	if err := setResponse(follower, w); err != nil {
		setErrorResponse("handleFollowerAction: failed to set response", err, w)
	}
}

func (h *Handler) handleMasterStats(w http.ResponseWriter, r *http.Request) {
	masterID, err := pathID(r, "masterID")
	if err != nil {
		setErrorResponse("handleMasterStats: invalid master id", err, w)
		return
	}

	stats, err := h.copyTrading.MasterStats(r.Context(), masterID)
	if err != nil {
		setErrorResponse("handleMasterStats: failed to compute stats", err, w)
		return
	}

	if err := setResponse(stats, w); err != nil {
		setErrorResponse("handleMasterStats: failed to set response", err, w)
	}
}

func (h *Handler) handleMasterWithdrawal(w http.ResponseWriter, r *http.Request) {
	masterID, err := pathID(r, "masterID")
	if err != nil {
		setErrorResponse("handleMasterWithdrawal: invalid master id", err, w)
		return
	}

	var req MasterWithdrawalRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleMasterWithdrawal: invalid request", err, w)
		return
	}

	withdrawal, err := h.copyTrading.ProcessMasterWithdrawal(r.Context(), masterID, req.Amount, req.AdminID)
	if err != nil {
		setErrorResponse("handleMasterWithdrawal: failed to withdraw", err, w)
		return
	}

	if err := setResponse(withdrawal, w); err != nil {
		setErrorResponse("handleMasterWithdrawal: failed to set response", err, w)
	}
}

func (h *Handler) handleBanMaster(w http.ResponseWriter, r *http.Request) {
	masterID, err := pathID(r, "masterID")
	if err != nil {
		setErrorResponse("handleBanMaster: invalid master id", err, w)
		return
	}

	results, err := h.copyTrading.BanMaster(r.Context(), masterID, h.snapshot())
	if err != nil {
		setErrorResponse("handleBanMaster: failed to ban master", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"closed": results}, w); err != nil {
		setErrorResponse("handleBanMaster: failed to set response", err, w)
	}
}

func (h *Handler) handleCloseAllFollowerTrades(w http.ResponseWriter, r *http.Request) {
	masterID, err := pathID(r, "masterID")
	if err != nil {
		setErrorResponse("handleCloseAllFollowerTrades: invalid master id", err, w)
		return
	}

	results, err := h.copyTrading.CloseAllMasterFollowerTrades(r.Context(), masterID, h.snapshot())
	if err != nil {
		setErrorResponse("handleCloseAllFollowerTrades: failed to close follower trades", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"closed": results}, w); err != nil {
		setErrorResponse("handleCloseAllFollowerTrades: failed to set response", err, w)
	}
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleSettle: invalid request", err, w)
		return
	}

	results, err := h.copyTrading.CalculateDailyCommission(r.Context(), req.TradingDay)
	if err != nil {
		setErrorResponse("handleSettle: failed to settle", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"results": results}, w); err != nil {
		setErrorResponse("handleSettle: failed to set response", err, w)
	}
}

func (h *Handler) handleListSettlements(w http.ResponseWriter, r *http.Request) {
	var query ListSettlementsQuery
	if err := decodeQuery(r, &query); err != nil {
		setErrorResponse("handleListSettlements: invalid query", err, w)
		return
	}

	records, err := h.ledger.ListCopyCommissionRecords(r.Context(), query.TradingDay)
	if err != nil {
		setErrorResponse("handleListSettlements: failed to list records", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"records": records}, w); err != nil {
		setErrorResponse("handleListSettlements: failed to set response", err, w)
	}
}
