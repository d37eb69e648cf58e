package copytrade

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/tradeengine"
)

type fixture struct {
	ctx           context.Context
	now           time.Time
	db            *models.MockDatabase
	engine        *tradeengine.Engine
	svc           *Service
	master        *models.MasterTrader
	masterAccount *models.Account
	nextUserID    uint
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		ctx:        context.Background(),
		now:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		db:         models.NewMockDatabase(),
		nextUserID: 100,
	}

	clock := func() time.Time { return f.now }

	f.engine = tradeengine.NewEngine(f.db, nil, nil)
	f.engine.SetClock(clock)
	f.svc = NewService(f.db, f.engine)
	f.svc.SetClock(clock)

	f.masterAccount = f.addAccount(t, 100000)
	f.master = &models.MasterTrader{
		UserID:                       f.masterAccount.UserID,
		TradingAccountID:             f.masterAccount.ID,
		Status:                       models.MasterTraderStatusActive,
		ApprovedCommissionPercentage: 20,
	}
	require.NoError(t, f.db.CreateMasterTrader(f.ctx, f.master))

	return f
}

func (f *fixture) addAccount(t *testing.T, balance int64) *models.Account {
	f.nextUserID++
	acc := &models.Account{
		UserID:   f.nextUserID,
		Balance:  decimal.NewFromInt(balance),
		Leverage: 100,
		Status:   models.AccountStatusActive,
	}
	require.NoError(t, f.db.CreateAccount(f.ctx, acc))
	return acc
}

func (f *fixture) addFollower(t *testing.T, balance int64, mode models.CopyMode, value float64) (*models.Account, *models.CopyRelationship) {
	acc := f.addAccount(t, balance)
	rel, err := f.svc.Follow(f.ctx, FollowRequest{
		FollowerUserID:    acc.UserID,
		FollowerAccountID: acc.ID,
		MasterID:          f.master.ID,
		CopyMode:          mode,
		CopyValue:         value,
	})
	require.NoError(t, err)
	return acc, rel
}

func (f *fixture) openMasterTrade(t *testing.T, symbol string, side models.TradeSide, quantity, price float64) *models.Trade {
	trade, err := f.engine.OpenTrade(f.ctx, models.OpenTradeRequest{
		UserID:      f.masterAccount.UserID,
		AccountID:   f.masterAccount.ID,
		AccountKind: models.AccountKindTrading,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Bid:         price,
		Ask:         price,
	})
	require.NoError(t, err)
	return trade
}

func (f *fixture) balance(t *testing.T, accountID uint) string {
	acc, err := f.db.GetAccount(f.ctx, accountID)
	require.NoError(t, err)
	return acc.Balance.String()
}
