package router

import (
	"net/http"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/models"
)

type CreateChallengeAccountRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

type ChallengeTradeRequest struct {
	UserID     uint             `json:"user_id" validate:"required"`
	Symbol     string           `json:"symbol" validate:"required"`
	Segment    string           `json:"segment"`
	Side       models.TradeSide `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType  string           `json:"order_type"`
	Quantity   float64          `json:"quantity" validate:"gt=0"`
	Bid        float64          `json:"bid" validate:"min=0"`
	Ask        float64          `json:"ask" validate:"min=0"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
}

type AdminRequest struct {
	AdminID uint `json:"admin_id" validate:"required"`
}

type ForceFailRequest struct {
	AdminID uint   `json:"admin_id" validate:"required"`
	Reason  string `json:"reason"`
}

type ExtendTimeRequest struct {
	AdminID uint `json:"admin_id" validate:"required"`
	Days    int  `json:"days" validate:"gt=0"`
}

func (h *Handler) handleCreateChallengeAccount(w http.ResponseWriter, r *http.Request) {
	challengeID, err := pathID(r, "challengeID")
	if err != nil {
		setErrorResponse("handleCreateChallengeAccount: invalid challenge id", err, w)
		return
	}

	var req CreateChallengeAccountRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleCreateChallengeAccount: invalid request", err, w)
		return
	}

	acc, err := h.challenges.CreateChallengeAccount(r.Context(), req.UserID, challengeID)
	if err != nil {
		setErrorResponse("handleCreateChallengeAccount: failed to create account", err, w)
		return
	}

	if err := setResponseWithStatus(http.StatusCreated, acc, w); err != nil {
		setErrorResponse("handleCreateChallengeAccount: failed to set response", err, w)
	}
}

func (h *Handler) handleGetChallengeAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleGetChallengeAccount: invalid account id", err, w)
		return
	}

	acc, err := h.challenges.GetAccount(r.Context(), accountID)
	if err != nil {
		setErrorResponse("handleGetChallengeAccount: failed to get account", err, w)
		return
	}

	if err := setResponse(acc, w); err != nil {
		setErrorResponse("handleGetChallengeAccount: failed to set response", err, w)
	}
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleDashboard: invalid account id", err, w)
		return
	}

	dashboard, err := h.challenges.Dashboard(r.Context(), accountID)
	if err != nil {
		setErrorResponse("handleDashboard: failed to build dashboard", err, w)
		return
	}

	if err := setResponse(dashboard, w); err != nil {
		setErrorResponse("handleDashboard: failed to set response", err, w)
	}
}

// handleOpenChallengeTrade answers a rule rejection with 422 and the warning it produced.
func (h *Handler) handleOpenChallengeTrade(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleOpenChallengeTrade: invalid account id", err, w)
		return
	}

	var req ChallengeTradeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleOpenChallengeTrade: invalid request", err, w)
		return
	}

	price, err := h.quote(req.Symbol, req.Bid, req.Ask)
	if err != nil {
		setErrorResponse("handleOpenChallengeTrade: failed to price trade", err, w)
		return
	}

	trade, outcome, err := h.challenges.OpenTrade(r.Context(), accountID, challenge.OpenTradeRequest{
		UserID:     req.UserID,
		Symbol:     req.Symbol,
		Segment:    req.Segment,
		Side:       req.Side,
		OrderType:  req.OrderType,
		Quantity:   req.Quantity,
		Bid:        price.Bid,
		Ask:        price.Ask,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		setErrorResponse("handleOpenChallengeTrade: failed to open trade", err, w)
		return
	}

	if trade == nil {
		if err := setResponseWithStatus(http.StatusUnprocessableEntity, outcome, w); err != nil {
			setErrorResponse("handleOpenChallengeTrade: failed to set response", err, w)
		}
		return
	}

	if err := setResponseWithStatus(http.StatusCreated, trade, w); err != nil {
		setErrorResponse("handleOpenChallengeTrade: failed to set response", err, w)
	}
}

func (h *Handler) handleCloseChallengeTrade(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleCloseChallengeTrade: invalid account id", err, w)
		return
	}

	tradeID, err := pathID(r, "tradeID")
	if err != nil {
		setErrorResponse("handleCloseChallengeTrade: invalid trade id", err, w)
		return
	}

	var req CloseTradeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleCloseChallengeTrade: invalid request", err, w)
		return
	}

	trade, err := h.ledger.GetTrade(r.Context(), tradeID)
	if err != nil {
		setErrorResponse("handleCloseChallengeTrade: failed to get trade", err, w)
		return
	}

	price, err := h.quote(trade.Symbol, req.Bid, req.Ask)
	if err != nil {
		setErrorResponse("handleCloseChallengeTrade: failed to price trade", err, w)
		return
	}

	outcome, validation, err := h.challenges.CloseTrade(r.Context(), accountID, tradeID, price)
	if err != nil {
		setErrorResponse("handleCloseChallengeTrade: failed to close trade", err, w)
		return
	}

	if validation != nil && !validation.Valid {
		if err := setResponseWithStatus(http.StatusUnprocessableEntity, validation, w); err != nil {
			setErrorResponse("handleCloseChallengeTrade: failed to set response", err, w)
		}
		return
	}

	if err := setResponse(outcome, w); err != nil {
		setErrorResponse("handleCloseChallengeTrade: failed to set response", err, w)
	}
}

func (h *Handler) handleForcePass(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleForcePass: invalid account id", err, w)
		return
	}

	var req AdminRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleForcePass: invalid request", err, w)
		return
	}

	result, err := h.challenges.ForcePass(r.Context(), accountID, req.AdminID)
	if err != nil {
		setErrorResponse("handleForcePass: failed to pass account", err, w)
		return
	}

	if err := setResponse(result, w); err != nil {
		setErrorResponse("handleForcePass: failed to set response", err, w)
	}
}

func (h *Handler) handleForceFail(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleForceFail: invalid account id", err, w)
		return
	}

	var req ForceFailRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleForceFail: invalid request", err, w)
		return
	}

	acc, err := h.challenges.ForceFail(r.Context(), accountID, req.AdminID, req.Reason)
	if err != nil {
		setErrorResponse("handleForceFail: failed to fail account", err, w)
		return
	}

	if err := setResponse(acc, w); err != nil {
		setErrorResponse("handleForceFail: failed to set response", err, w)
	}
}

func (h *Handler) handleExtendTime(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleExtendTime: invalid account id", err, w)
		return
	}

	var req ExtendTimeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleExtendTime: invalid request", err, w)
		return
	}

	acc, err := h.challenges.ExtendTime(r.Context(), accountID, req.Days, req.AdminID)
	if err != nil {
		setErrorResponse("handleExtendTime: failed to extend", err, w)
		return
	}

	if err := setResponse(acc, w); err != nil {
		setErrorResponse("handleExtendTime: failed to set response", err, w)
	}
}

func (h *Handler) handleResetChallenge(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		setErrorResponse("handleResetChallenge: invalid account id", err, w)
		return
	}

	var req AdminRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleResetChallenge: invalid request", err, w)
		return
	}

	acc, err := h.challenges.ResetChallenge(r.Context(), accountID, req.AdminID)
	if err != nil {
		setErrorResponse("handleResetChallenge: failed to reset", err, w)
		return
	}

	if err := setResponse(acc, w); err != nil {
		setErrorResponse("handleResetChallenge: failed to set response", err, w)
	}
}
