package router

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jiaming2012/backoffice/src/models"
)

type ApplyForIBRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

type RegisterWithReferralRequest struct {
	UserID       uint   `json:"user_id" validate:"required"`
	ReferralCode string `json:"referral_code" validate:"required"`
}

type ApproveIBRequest struct {
	PlanID *uint `json:"plan_id,omitempty"`
}

type BlockIBRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type ChangePlanRequest struct {
	PlanID uint `json:"plan_id" validate:"required"`
}

type IBWithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type ReverseCommissionRequest struct {
	AdminID uint   `json:"admin_id" validate:"required"`
	Reason  string `json:"reason" validate:"required"`
}

type IBChainQuery struct {
	MaxLevels int `schema:"max_levels" validate:"min=0,max=20"`
}

func (h *Handler) handleApplyForIB(w http.ResponseWriter, r *http.Request) {
	var req ApplyForIBRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleApplyForIB: invalid request", err, w)
		return
	}

	user, err := h.ib.ApplyForIB(r.Context(), req.UserID)
	if err != nil {
		setErrorResponse("handleApplyForIB: failed to apply", err, w)
		return
	}

	if err := setResponseWithStatus(http.StatusCreated, user, w); err != nil {
		setErrorResponse("handleApplyForIB: failed to set response", err, w)
	}
}

func (h *Handler) handleRegisterWithReferral(w http.ResponseWriter, r *http.Request) {
	var req RegisterWithReferralRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleRegisterWithReferral: invalid request", err, w)
		return
	}

	user, parent, err := h.ib.RegisterWithReferral(r.Context(), req.UserID, req.ReferralCode)
	if err != nil {
		setErrorResponse("handleRegisterWithReferral: failed to register", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"user": user, "parent": parent}, w); err != nil {
		setErrorResponse("handleRegisterWithReferral: failed to set response", err, w)
	}
}

func (h *Handler) handleApproveIB(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleApproveIB: invalid user id", err, w)
		return
	}

	var req ApproveIBRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleApproveIB: invalid request", err, w)
		return
	}

	user, err := h.ib.ApproveIB(r.Context(), userID, req.PlanID)
	if err != nil {
		setErrorResponse("handleApproveIB: failed to approve", err, w)
		return
	}

	if err := setResponse(user, w); err != nil {
		setErrorResponse("handleApproveIB: failed to set response", err, w)
	}
}

func (h *Handler) handleBlockIB(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleBlockIB: invalid user id", err, w)
		return
	}

	var req BlockIBRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleBlockIB: invalid request", err, w)
		return
	}

	user, err := h.ib.BlockIB(r.Context(), userID, req.Reason)
	if err != nil {
		setErrorResponse("handleBlockIB: failed to block", err, w)
		return
	}

	if err := setResponse(user, w); err != nil {
		setErrorResponse("handleBlockIB: failed to set response", err, w)
	}
}

func (h *Handler) handleUnblockIB(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleUnblockIB: invalid user id", err, w)
		return
	}

	user, err := h.ib.UnblockIB(r.Context(), userID)
	if err != nil {
		setErrorResponse("handleUnblockIB: failed to unblock", err, w)
		return
	}

	if err := setResponse(user, w); err != nil {
		setErrorResponse("handleUnblockIB: failed to set response", err, w)
	}
}

func (h *Handler) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleChangePlan: invalid user id", err, w)
		return
	}

	var req ChangePlanRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleChangePlan: invalid request", err, w)
		return
	}

	user, err := h.ib.ChangePlan(r.Context(), userID, req.PlanID)
	if err != nil {
		setErrorResponse("handleChangePlan: failed to change plan", err, w)
		return
	}

	if err := setResponse(user, w); err != nil {
		setErrorResponse("handleChangePlan: failed to set response", err, w)
	}
}

func (h *Handler) handleIBWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleIBWithdrawal: invalid user id", err, w)
		return
	}

	var req IBWithdrawalRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleIBWithdrawal: invalid request", err, w)
		return
	}

	withdrawal, err := h.ib.WithdrawToWallet(r.Context(), userID, req.Amount)
	if err != nil {
		setErrorResponse("handleIBWithdrawal: failed to withdraw", err, w)
		return
	}

	if err := setResponse(withdrawal, w); err != nil {
		setErrorResponse("handleIBWithdrawal: failed to set response", err, w)
	}
}

func (h *Handler) handleIBStats(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleIBStats: invalid user id", err, w)
		return
	}

	stats, err := h.ib.IBStats(r.Context(), userID)
	if err != nil {
		setErrorResponse("handleIBStats: failed to get stats", err, w)
		return
	}

	if err := setResponse(stats, w); err != nil {
		setErrorResponse("handleIBStats: failed to set response", err, w)
	}
}

func (h *Handler) handleListIBCommissions(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleListIBCommissions: invalid user id", err, w)
		return
	}

	records, err := h.ledger.ListCommissionRecordsByIB(r.Context(), userID)
	if err != nil {
		setErrorResponse("handleListIBCommissions: failed to list commissions", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"commissions": records}, w); err != nil {
		setErrorResponse("handleListIBCommissions: failed to set response", err, w)
	}
}

func (h *Handler) handleIBChain(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		setErrorResponse("handleIBChain: invalid user id", err, w)
		return
	}

	var query IBChainQuery
	if err := decodeQuery(r, &query); err != nil {
		setErrorResponse("handleIBChain: invalid query", err, w)
		return
	}

	maxLevels := query.MaxLevels
	if maxLevels == 0 {
		maxLevels = models.DefaultCommissionMaxLevels
	}

	chain, err := h.ib.GetIBChain(r.Context(), userID, maxLevels)
	if err != nil {
		setErrorResponse("handleIBChain: failed to get chain", err, w)
		return
	}

	if err := setResponse(map[string]interface{}{"chain": chain}, w); err != nil {
		setErrorResponse("handleIBChain: failed to set response", err, w)
	}
}

func (h *Handler) handleReverseCommission(w http.ResponseWriter, r *http.Request) {
	commissionID, err := pathID(r, "commissionID")
	if err != nil {
		setErrorResponse("handleReverseCommission: invalid commission id", err, w)
		return
	}

	var req ReverseCommissionRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleReverseCommission: invalid request", err, w)
		return
	}

	record, err := h.ib.ReverseCommission(r.Context(), commissionID, req.AdminID, req.Reason)
	if err != nil {
		setErrorResponse("handleReverseCommission: failed to reverse", err, w)
		return
	}

	if err := setResponse(record, w); err != nil {
		setErrorResponse("handleReverseCommission: failed to set response", err, w)
	}
}
