package challenge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/tradeengine"
)

const userID = uint(42)

type fixture struct {
	ctx       context.Context
	now       time.Time
	db        *models.MockDatabase
	engine    *tradeengine.Engine
	svc       *Service
	challenge *models.Challenge
}

func defaultRules() models.ChallengeRules {
	return models.ChallengeRules{
		MaxDailyDrawdownPercent:   5,
		MaxOverallDrawdownPercent: 10,
		ProfitTargetPhase1Percent: 8,
		ProfitTargetPhase2Percent: 5,
		MaxTradesPerDay:           3,
		MaxConcurrentTrades:       2,
		StopLossMandatory:         true,
		AllowedSymbols:            []string{"EURUSD", "xauusd"},
		AllowedSegments:           []string{"Forex", "COMMODITIES"},
		MaxLossPerTradePercent:    2,
		MinTradeHoldTimeSeconds:   60,
		ChallengeExpiryDays:       30,
	}
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		ctx: context.Background(),
		now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		db:  models.NewMockDatabase(),
	}

	clock := func() time.Time { return f.now }

	f.engine = tradeengine.NewEngine(f.db, nil, nil)
	f.engine.SetClock(clock)
	f.svc = NewService(f.db, f.engine)
	f.svc.SetClock(clock)

	f.challenge = f.addChallenge(t, 2, defaultRules())

	return f
}

func (f *fixture) addChallenge(t *testing.T, steps int, rules models.ChallengeRules) *models.Challenge {
	ch := &models.Challenge{
		Name:       "10K Challenge",
		FundSize:   10000,
		StepsCount: steps,
		IsActive:   true,
		Rules:      rules,
	}
	require.NoError(t, f.db.CreateChallenge(f.ctx, ch))
	return ch
}

func (f *fixture) addAccount(t *testing.T) *models.ChallengeAccount {
	return f.addAccountFor(t, f.challenge)
}

func (f *fixture) addAccountFor(t *testing.T, ch *models.Challenge) *models.ChallengeAccount {
	acc, err := f.svc.CreateChallengeAccount(f.ctx, userID, ch.ID)
	require.NoError(t, err)
	return acc
}

func (f *fixture) account(t *testing.T, id uint) *models.ChallengeAccount {
	acc, err := f.db.GetChallengeAccount(f.ctx, id)
	require.NoError(t, err)
	return acc
}

// openTrade opens a challenge position through the engine and books it.
func (f *fixture) openTrade(t *testing.T, acc *models.ChallengeAccount, symbol string, side models.TradeSide, quantity, price float64, stopLoss, takeProfit *float64) *models.Trade {
	trade, err := f.engine.OpenTrade(f.ctx, models.OpenTradeRequest{
		UserID:      acc.UserID,
		AccountID:   acc.ID,
		AccountKind: models.AccountKindChallenge,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Bid:         price,
		Ask:         price,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
	})
	require.NoError(t, err)

	_, err = f.svc.OnTradeOpened(f.ctx, trade)
	require.NoError(t, err)

	return trade
}

func (f *fixture) closeTrade(t *testing.T, trade *models.Trade, price float64) *TradeClosedOutcome {
	closed, err := f.engine.CloseTrade(f.ctx, trade.ID, price, price, models.ClosedByUser)
	require.NoError(t, err)

	outcome, err := f.svc.OnTradeClosed(f.ctx, closed.Trade, closed.RealizedPnl)
	require.NoError(t, err)

	return outcome
}

func ptr(v float64) *float64 {
	return &v
}

func eurusd(quantity, stopLoss float64) models.TradeOpenParams {
	return models.TradeOpenParams{
		Symbol:   "EURUSD",
		Segment:  "Forex",
		Side:     models.TradeSideBuy,
		Quantity: quantity,
		Price:    1.1,
		StopLoss: ptr(stopLoss),
	}
}
