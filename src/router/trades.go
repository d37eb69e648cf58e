package router

import (
	"net/http"

	"github.com/jiaming2012/backoffice/src/models"
)

type OpenTradeRequest struct {
	UserID     uint             `json:"user_id" validate:"required"`
	AccountID  uint             `json:"account_id" validate:"required"`
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

type CloseTradeRequest struct {
	Bid float64 `json:"bid" validate:"min=0"`
	Ask float64 `json:"ask" validate:"min=0"`
}

type ModifyTradeRequest struct {
	StopLoss   *float64 `json:"stop_loss,omitempty" validate:"omitempty,gt=0"`
	TakeProfit *float64 `json:"take_profit,omitempty" validate:"omitempty,gt=0"`
}

func (h *Handler) handleOpenTrade(w http.ResponseWriter, r *http.Request) {
	var req OpenTradeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleOpenTrade: invalid request", err, w)
		return
	}

	price, err := h.quote(req.Symbol, req.Bid, req.Ask)
	if err != nil {
		setErrorResponse("handleOpenTrade: failed to price trade", err, w)
		return
	}

	trade, err := h.engine.OpenTrade(r.Context(), models.OpenTradeRequest{
		UserID:      req.UserID,
		AccountID:   req.AccountID,
		AccountKind: models.AccountKindTrading,
		Symbol:      req.Symbol,
		Segment:     req.Segment,
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		Bid:         price.Bid,
		Ask:         price.Ask,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
	})
	if err != nil {
		setErrorResponse("handleOpenTrade: failed to open trade", err, w)
		return
	}

	if err := setResponseWithStatus(http.StatusCreated, trade, w); err != nil {
		setErrorResponse("handleOpenTrade: failed to set response", err, w)
	}
}

func (h *Handler) handleCloseTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := pathID(r, "tradeID")
	if err != nil {
		setErrorResponse("handleCloseTrade: invalid trade id", err, w)
		return
	}

	var req CloseTradeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleCloseTrade: invalid request", err, w)
		return
	}

	trade, err := h.ledger.GetTrade(r.Context(), tradeID)
	if err != nil {
		setErrorResponse("handleCloseTrade: failed to get trade", err, w)
		return
	}

	if trade.AccountKind != models.AccountKindTrading {
		setErrorResponse("handleCloseTrade: not a trading account trade", models.NewWebError(http.StatusBadRequest, "use the challenge account route", models.ErrValidation), w)
		return
	}

	price, err := h.quote(trade.Symbol, req.Bid, req.Ask)
	if err != nil {
		setErrorResponse("handleCloseTrade: failed to price trade", err, w)
		return
	}

	result, err := h.engine.CloseTrade(r.Context(), tradeID, price.Bid, price.Ask, models.ClosedByUser)
	if err != nil {
		setErrorResponse("handleCloseTrade: failed to close trade", err, w)
		return
	}

	if err := setResponse(result, w); err != nil {
		setErrorResponse("handleCloseTrade: failed to set response", err, w)
	}
}

func (h *Handler) handleModifyTrade(w http.ResponseWriter, r *http.Request) {
	tradeID, err := pathID(r, "tradeID")
	if err != nil {
		setErrorResponse("handleModifyTrade: invalid trade id", err, w)
		return
	}

	var req ModifyTradeRequest
	if err := decodeRequest(r, &req); err != nil {
		setErrorResponse("handleModifyTrade: invalid request", err, w)
		return
	}

	trade, err := h.engine.ModifyTrade(r.Context(), tradeID, req.StopLoss, req.TakeProfit)
	if err != nil {
		setErrorResponse("handleModifyTrade: failed to modify trade", err, w)
		return
	}

	if err := setResponse(trade, w); err != nil {
		setErrorResponse("handleModifyTrade: failed to set response", err, w)
	}
}
