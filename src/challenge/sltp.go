package challenge

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/jiaming2012/backoffice/src/models"
)

// slTpTrigger reports which protective level a quote hits. BUY positions are checked
// against the bid, SELL positions against the ask.
func slTpTrigger(trade *models.Trade, price models.Price) (string, bool) {
	if trade.Side == models.TradeSideBuy {
		switch {
		case trade.StopLoss != nil && price.Bid <= *trade.StopLoss:
			return models.ClosedBySL, true
		case trade.TakeProfit != nil && price.Bid >= *trade.TakeProfit:
			return models.ClosedByTP, true
		}
		return "", false
	}

	switch {
	case trade.StopLoss != nil && price.Ask >= *trade.StopLoss:
		return models.ClosedBySL, true
	case trade.TakeProfit != nil && price.Ask <= *trade.TakeProfit:
		return models.ClosedByTP, true
	}

	return "", false
}

// CheckSlTpForAllTrades closes every open challenge trade whose stop loss or take
// profit is hit by the current quotes.
func (s *Service) CheckSlTpForAllTrades(ctx context.Context, prices models.PriceMap) ([]TriggeredClose, error) {
	ctx, span := otel.Tracer("challenge").Start(ctx, "Service.CheckSlTpForAllTrades")
	defer span.End()

	trades, err := s.db.ListOpenTradesByKind(ctx, models.AccountKindChallenge)
	if err != nil {
		return nil, fmt.Errorf("CheckSlTpForAllTrades: %w", err)
	}

	closed := make([]TriggeredClose, 0)
	for _, trade := range trades {
		price, found := prices.Get(trade.Symbol)
		if !found {
			continue
		}

		reason, hit := slTpTrigger(trade, price)
		if !hit {
			continue
		}

		closed = append(closed, s.closeChallengeTrade(ctx, trade, price, reason))
	}

	return closed, nil
}

// LiquidateAccount closes all open trades of a challenge account at market.
func (s *Service) LiquidateAccount(ctx context.Context, accountID uint, prices models.PriceMap) ([]TriggeredClose, error) {
	trades, err := s.db.ListOpenTrades(ctx, accountID, models.AccountKindChallenge)
	if err != nil {
		return nil, fmt.Errorf("LiquidateAccount: %w", err)
	}

	closed := make([]TriggeredClose, 0, len(trades))
	for _, trade := range trades {
		price, found := prices.Get(trade.Symbol)
		if !found {
			closed = append(closed, TriggeredClose{
				TradeID:   trade.ID,
				AccountID: accountID,
				Reason:    models.ClosedByRisk,
				Error:     fmt.Sprintf("no price for %s", trade.Symbol),
			})
			continue
		}

		closed = append(closed, s.closeChallengeTrade(ctx, trade, price, models.ClosedByRisk))
	}

	return closed, nil
}

func (s *Service) closeChallengeTrade(ctx context.Context, trade *models.Trade, price models.Price, reason string) TriggeredClose {
	result := TriggeredClose{
		TradeID:    trade.ID,
		AccountID:  trade.AccountID,
		Reason:     reason,
		ClosePrice: trade.ExitPrice(price),
	}

	closed, err := s.engine.CloseTrade(ctx, trade.ID, price.Bid, price.Ask, reason)
	if err != nil {
		log.WithContext(ctx).Warnf("closeChallengeTrade: trade %d: %v", trade.ID, err)
		result.Error = err.Error()
		return result
	}

	result.Pnl = closed.RealizedPnl

	outcome, err := s.OnTradeClosed(ctx, closed.Trade, closed.RealizedPnl)
	if err != nil {
		log.WithContext(ctx).Errorf("closeChallengeTrade: trade %d closed but not booked: %v", trade.ID, err)
		result.Error = err.Error()
		return result
	}

	if outcome != nil {
		result.AccountFailed = outcome.Failed
	}

	return result
}

// Equity marks an account's open challenge trades to market. Trades without a quote
// are carried at zero unrealized PnL.
func (s *Service) Equity(ctx context.Context, acc *models.ChallengeAccount, prices models.PriceMap) (float64, error) {
	trades, err := s.db.ListOpenTrades(ctx, acc.ID, models.AccountKindChallenge)
	if err != nil {
		return 0, fmt.Errorf("Equity: %w", err)
	}

	equity := acc.CurrentBalance
	for _, trade := range trades {
		if price, found := prices.Get(trade.Symbol); found {
			equity += trade.UnrealizedPnl(price)
		}
	}

	return equity, nil
}
