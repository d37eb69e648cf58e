package ibcommission

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/tradeengine"
)

type fixture struct {
	ctx         context.Context
	db          *models.MockDatabase
	svc         *Service
	perLot      *models.CommissionPlan
	nextTradeID uint
}

func newFixture(t *testing.T, cfg Config) *fixture {
	f := &fixture{
		ctx: context.Background(),
		db:  models.NewMockDatabase(),
	}

	f.perLot = &models.CommissionPlan{
		Name:           "standard",
		CommissionType: models.CommissionTypePerLot,
		MaxLevels:      5,
		Levels: []models.LevelRate{
			{Level: 1, Rate: 10},
			{Level: 2, Rate: 5},
			{Level: 3, Rate: 2},
		},
		IsActive: true,
	}
	require.NoError(t, f.db.CreateCommissionPlan(f.ctx, f.perLot))

	f.svc = NewService(f.db, tradeengine.NewEngine(f.db, nil, nil), cfg)
	f.svc.SetClock(func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) })

	return f
}

func (f *fixture) addUser(t *testing.T, userID uint, parent *models.IBUser) *models.IBUser {
	user := &models.IBUser{UserID: userID, FirstName: "user"}
	if parent != nil {
		user.ParentIBID = &parent.UserID
		user.IBLevel = parent.IBLevel + 1
	}

	require.NoError(t, f.db.CreateIBUser(f.ctx, user))
	return user
}

func (f *fixture) addIB(t *testing.T, userID uint, parent *models.IBUser, status models.IBStatus, plan *models.CommissionPlan) *models.IBUser {
	code := fmt.Sprintf("IBTEST%d", userID)
	user := &models.IBUser{
		UserID:       userID,
		FirstName:    "ib",
		IsIB:         true,
		IBStatus:     status,
		ReferralCode: &code,
		IBLevel:      1,
	}

	if parent != nil {
		user.ParentIBID = &parent.UserID
		user.IBLevel = parent.IBLevel + 1
	}

	if plan != nil {
		user.IBPlanID = &plan.ID
	}

	require.NoError(t, f.db.CreateIBUser(f.ctx, user))
	return user
}

// chain builds trader(1) -> ib 2 -> ib 3 -> ... with every IB active on the per-lot plan.
func (f *fixture) chain(t *testing.T, depth int) (*models.IBUser, []*models.IBUser) {
	ibs := make([]*models.IBUser, depth)
	var parent *models.IBUser
	for i := depth - 1; i >= 0; i-- {
		ibs[i] = f.addIB(t, uint(i+2), parent, models.IBStatusActive, f.perLot)
		parent = ibs[i]
	}

	return f.addUser(t, 1, parent), ibs
}

func (f *fixture) closedTrade(traderID uint, symbol string, quantity, openPrice, contractSize float64) *models.Trade {
	f.nextTradeID++
	closedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trade := &models.Trade{
		UserID:       traderID,
		Symbol:       symbol,
		Side:         models.TradeSideBuy,
		Quantity:     quantity,
		OpenPrice:    openPrice,
		ContractSize: contractSize,
		Status:       models.TradeStatusClosed,
		ClosedAt:     &closedAt,
	}
	trade.ID = 1000 + f.nextTradeID
	return trade
}

func (f *fixture) walletBalance(t *testing.T, ibUserID uint) string {
	wallet, err := f.db.GetIBWallet(f.ctx, ibUserID)
	require.NoError(t, err)
	return wallet.Balance.String()
}
