package challenge

import (
	"context"
	"fmt"

	"github.com/jiaming2012/backoffice/src/models"
)

type OpenTradeRequest struct {
	UserID     uint             `json:"user_id" validate:"required"`
	Symbol     string           `json:"symbol" validate:"required"`
	Segment    string           `json:"segment"`
	Side       models.TradeSide `json:"side" validate:"required,oneof=BUY SELL"`
	OrderType  string           `json:"order_type"`
	Quantity   float64          `json:"quantity" validate:"gt=0"`
	Bid        float64          `json:"bid" validate:"gt=0"`
	Ask        float64          `json:"ask" validate:"gt=0"`
	StopLoss   *float64         `json:"stop_loss,omitempty"`
	TakeProfit *float64         `json:"take_profit,omitempty"`
}

// OpenTrade validates an open against the challenge rules, tracks a rejection as a
// warning, and otherwise opens the position through the trade engine.
func (s *Service) OpenTrade(ctx context.Context, accountID uint, req OpenTradeRequest) (*models.Trade, *TradeAttemptOutcome, error) {
	price := req.Ask
	if req.Side == models.TradeSideSell {
		price = req.Bid
	}

	outcome, err := s.ValidateAndTrack(ctx, accountID, models.TradeOpenParams{
		Symbol:     req.Symbol,
		Segment:    req.Segment,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Price:      price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("OpenTrade: %w", err)
	}

	if !outcome.Valid {
		return nil, outcome, nil
	}

	acc, err := s.db.GetChallengeAccount(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenTrade: %w", err)
	}

	if acc.UserID != req.UserID {
		return nil, nil, fmt.Errorf("OpenTrade: account %d does not belong to user %d: %w", accountID, req.UserID, models.ErrValidation)
	}

	ch, err := s.db.GetChallenge(ctx, acc.ChallengeID)
	if err != nil {
		return nil, nil, fmt.Errorf("OpenTrade: %w", err)
	}

	trade, err := s.engine.OpenTrade(ctx, models.OpenTradeRequest{
		UserID:      req.UserID,
		AccountID:   accountID,
		AccountKind: models.AccountKindChallenge,
		Symbol:      req.Symbol,
		Segment:     NormalizeSegment(req.Segment),
		Side:        req.Side,
		OrderType:   req.OrderType,
		Quantity:    req.Quantity,
		Bid:         req.Bid,
		Ask:         req.Ask,
		StopLoss:    req.StopLoss,
		TakeProfit:  req.TakeProfit,
		Leverage:    ch.Rules.LeverageOrDefault(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("OpenTrade: %w", err)
	}

	if _, err := s.OnTradeOpened(ctx, trade); err != nil {
		return trade, outcome, fmt.Errorf("OpenTrade: trade %d opened but not booked: %w", trade.ID, err)
	}

	return trade, outcome, nil
}

// CloseTrade closes a challenge trade once its minimum hold time has passed.
func (s *Service) CloseTrade(ctx context.Context, accountID uint, tradeID uint, price models.Price) (*TradeClosedOutcome, *models.ValidationResult, error) {
	validation, err := s.ValidateTradeClose(ctx, accountID, tradeID)
	if err != nil {
		return nil, nil, fmt.Errorf("CloseTrade: %w", err)
	}

	if !validation.Valid {
		return nil, validation, nil
	}

	closed, err := s.engine.CloseTrade(ctx, tradeID, price.Bid, price.Ask, models.ClosedByUser)
	if err != nil {
		return nil, nil, fmt.Errorf("CloseTrade: %w", err)
	}

	outcome, err := s.OnTradeClosed(ctx, closed.Trade, closed.RealizedPnl)
	if err != nil {
		return nil, nil, fmt.Errorf("CloseTrade: %w", err)
	}

	return outcome, validation, nil
}
