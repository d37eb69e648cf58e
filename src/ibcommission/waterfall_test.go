package ibcommission

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestGetIBChain(t *testing.T) {
	t.Run("walks the upline in level order", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 3)

		chain, err := f.svc.GetIBChain(f.ctx, trader.UserID, 5)
		require.NoError(t, err)
		require.Len(t, chain, 3)
		for i, node := range chain {
			assert.Equal(t, i+1, node.Level)
			assert.Equal(t, ibs[i].UserID, node.IB.UserID)
		}
	})

	t.Run("stops at the first inactive ancestor", func(t *testing.T) {
		f := newFixture(t, Config{})
		top := f.addIB(t, 4, nil, models.IBStatusActive, f.perLot)
		blocked := f.addIB(t, 3, top, models.IBStatusBlocked, f.perLot)
		direct := f.addIB(t, 2, blocked, models.IBStatusActive, f.perLot)
		trader := f.addUser(t, 1, direct)

		chain, err := f.svc.GetIBChain(f.ctx, trader.UserID, 5)
		require.NoError(t, err)
		require.Len(t, chain, 1)
		assert.Equal(t, direct.UserID, chain[0].IB.UserID)
	})

	t.Run("stops at a missing ancestor", func(t *testing.T) {
		f := newFixture(t, Config{})
		ghost := &models.IBUser{UserID: 99}
		direct := f.addIB(t, 2, ghost, models.IBStatusActive, f.perLot)
		trader := f.addUser(t, 1, direct)

		chain, err := f.svc.GetIBChain(f.ctx, trader.UserID, 5)
		require.NoError(t, err)
		assert.Len(t, chain, 1)
	})

	t.Run("respects the depth limit", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, _ := f.chain(t, 7)

		chain, err := f.svc.GetIBChain(f.ctx, trader.UserID, 5)
		require.NoError(t, err)
		assert.Len(t, chain, 5)
	})

	t.Run("unknown trader has no chain", func(t *testing.T) {
		f := newFixture(t, Config{})

		chain, err := f.svc.GetIBChain(f.ctx, 42, 5)
		require.NoError(t, err)
		assert.Empty(t, chain)
	})
}

func TestProcessTradeCommission(t *testing.T) {
	t.Run("per lot rates are paid per level", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 3)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 2, 1.1, 100000))
		require.NoError(t, err)
		assert.True(t, result.Processed)
		assert.Equal(t, 3, result.CommissionsGenerated)
		assert.Equal(t, "34", result.TotalCommission.String())

		assert.Equal(t, "20", f.walletBalance(t, ibs[0].UserID))
		assert.Equal(t, "10", f.walletBalance(t, ibs[1].UserID))
		assert.Equal(t, "4", f.walletBalance(t, ibs[2].UserID))
	})

	t.Run("percentage plans price the notional value", func(t *testing.T) {
		f := newFixture(t, Config{})
		plan := &models.CommissionPlan{
			Name:           "pct",
			CommissionType: models.CommissionTypePercentage,
			MaxLevels:      1,
			Levels:         []models.LevelRate{{Level: 1, Rate: 0.1}},
			IsActive:       true,
		}
		require.NoError(t, f.db.CreateCommissionPlan(f.ctx, plan))

		ib := f.addIB(t, 2, nil, models.IBStatusActive, plan)
		trader := f.addUser(t, 1, ib)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "XAUUSD", 0.5, 2000, 100))
		require.NoError(t, err)
		require.Len(t, result.Levels, 1)

		amount, _ := result.Levels[0].CommissionAmount.Float64()
		assert.InDelta(t, 100.0, amount, 1e-9)
		assert.Equal(t, LevelStatusCredited, result.Levels[0].Status)
	})

	t.Run("levels beyond the plan max are skipped", func(t *testing.T) {
		f := newFixture(t, Config{})
		shallow := &models.CommissionPlan{
			Name:           "two levels",
			CommissionType: models.CommissionTypePerLot,
			MaxLevels:      2,
			Levels:         f.perLot.Levels,
			IsActive:       true,
		}
		require.NoError(t, f.db.CreateCommissionPlan(f.ctx, shallow))

		top := f.addIB(t, 4, nil, models.IBStatusActive, shallow)
		mid := f.addIB(t, 3, top, models.IBStatusActive, shallow)
		direct := f.addIB(t, 2, mid, models.IBStatusActive, shallow)
		trader := f.addUser(t, 1, direct)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		require.Len(t, result.Levels, 3)
		assert.Equal(t, LevelStatusSkipped, result.Levels[2].Status)
		assert.Equal(t, 2, result.CommissionsGenerated)

		_, err = f.db.GetIBWallet(f.ctx, top.UserID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("a blocked ancestor ends the waterfall", func(t *testing.T) {
		f := newFixture(t, Config{})
		top := f.addIB(t, 4, nil, models.IBStatusActive, f.perLot)
		blocked := f.addIB(t, 3, top, models.IBStatusBlocked, f.perLot)
		direct := f.addIB(t, 2, blocked, models.IBStatusActive, f.perLot)
		trader := f.addUser(t, 1, direct)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		assert.Equal(t, 1, result.CommissionsGenerated)

		_, err = f.db.GetIBWallet(f.ctx, top.UserID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("a trader without upline is not processed", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader := f.addUser(t, 1, nil)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		assert.False(t, result.Processed)
		assert.Equal(t, "No IB chain found for trader", result.Reason)
	})

	t.Run("an ib without a plan falls back to the configured default", func(t *testing.T) {
		fallback := &models.CommissionPlan{
			Name:           "configured",
			CommissionType: models.CommissionTypePerLot,
			MaxLevels:      5,
			Levels:         []models.LevelRate{{Level: 1, Rate: 3}},
			IsActive:       true,
		}
		f := newFixture(t, Config{DefaultPlan: fallback})
		ib := f.addIB(t, 2, nil, models.IBStatusActive, nil)
		trader := f.addUser(t, 1, ib)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 2, 1.1, 100000))
		require.NoError(t, err)
		assert.Equal(t, "6", result.TotalCommission.String())
	})

	t.Run("an ib without a plan uses the stored default before the configured one", func(t *testing.T) {
		fallback := &models.CommissionPlan{
			Name:           "configured",
			CommissionType: models.CommissionTypePerLot,
			MaxLevels:      5,
			Levels:         []models.LevelRate{{Level: 1, Rate: 3}},
			IsActive:       true,
		}
		f := newFixture(t, Config{DefaultPlan: fallback})
		stored := &models.CommissionPlan{
			Name:           "stored default",
			CommissionType: models.CommissionTypePerLot,
			MaxLevels:      5,
			Levels:         []models.LevelRate{{Level: 1, Rate: 7}},
			IsDefault:      true,
			IsActive:       true,
		}
		require.NoError(t, f.db.CreateCommissionPlan(f.ctx, stored))

		ib := f.addIB(t, 2, nil, models.IBStatusActive, nil)
		trader := f.addUser(t, 1, ib)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		assert.Equal(t, "7", result.TotalCommission.String())
	})

	t.Run("a failing level does not stop the others", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 2)
		f.db.FailNext("CreditCommission", fmt.Errorf("connection reset"))

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		require.Len(t, result.Levels, 2)
		assert.Equal(t, LevelStatusFailed, result.Levels[0].Status)
		assert.Equal(t, LevelStatusCredited, result.Levels[1].Status)
		assert.Equal(t, "5", f.walletBalance(t, ibs[1].UserID))
	})

	t.Run("reprocessing a trade pays nothing twice", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 2)
		trade := f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000)

		_, err := f.svc.ProcessTradeCommission(f.ctx, trade)
		require.NoError(t, err)

		again, err := f.svc.ProcessTradeCommission(f.ctx, trade)
		require.NoError(t, err)
		assert.Equal(t, 0, again.CommissionsGenerated)
		for _, level := range again.Levels {
			assert.Equal(t, LevelStatusDuplicate, level.Status)
		}

		assert.Equal(t, "10", f.walletBalance(t, ibs[0].UserID))
	})

	t.Run("concurrent processing credits each level once", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 3)
		trade := f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.svc.ProcessTradeCommission(f.ctx, trade)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		for _, ib := range ibs {
			records, err := f.db.ListCommissionRecordsByIB(f.ctx, ib.UserID)
			require.NoError(t, err)
			assert.Len(t, records, 1)
		}

		assert.Equal(t, "10", f.walletBalance(t, ibs[0].UserID))
		assert.Equal(t, "5", f.walletBalance(t, ibs[1].UserID))
		assert.Equal(t, "2", f.walletBalance(t, ibs[2].UserID))
	})

	t.Run("open trades are not processed", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, _ := f.chain(t, 1)
		trade := f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000)
		trade.Status = models.TradeStatusOpen

		result, err := f.svc.ProcessTradeCommission(f.ctx, trade)
		require.NoError(t, err)
		assert.False(t, result.Processed)
	})
}

func TestReverseCommission(t *testing.T) {
	t.Run("reversal debits the wallet once", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 1)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 1, 1.1, 100000))
		require.NoError(t, err)
		commissionID := result.Levels[0].CommissionID

		reversed, err := f.svc.ReverseCommission(f.ctx, commissionID, 7, "chargeback")
		require.NoError(t, err)
		assert.Equal(t, models.CommissionStatusReversed, reversed.Status)
		assert.Equal(t, "chargeback", reversed.ReversalReason)
		assert.Equal(t, uint(7), *reversed.ReversedBy)
		assert.Equal(t, "10", reversed.CommissionAmount.String())
		assert.Equal(t, "0", f.walletBalance(t, ibs[0].UserID))

		_, err = f.svc.ReverseCommission(f.ctx, commissionID, 7, "again")
		assert.ErrorIs(t, err, models.ErrCommissionAlreadyReversed)
		assert.Equal(t, "0", f.walletBalance(t, ibs[0].UserID))
	})

	t.Run("concurrent reversals debit once", func(t *testing.T) {
		f := newFixture(t, Config{})
		trader, ibs := f.chain(t, 1)

		result, err := f.svc.ProcessTradeCommission(f.ctx, f.closedTrade(trader.UserID, "EURUSD", 3, 1.1, 100000))
		require.NoError(t, err)
		commissionID := result.Levels[0].CommissionID

		var wg sync.WaitGroup
		var mu sync.Mutex
		succeeded := 0
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.svc.ReverseCommission(f.ctx, commissionID, 1, "fraud"); err == nil {
					mu.Lock()
					succeeded++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded)
		assert.Equal(t, "0", f.walletBalance(t, ibs[0].UserID))
	})

	t.Run("missing commission is an error", func(t *testing.T) {
		f := newFixture(t, Config{})

		_, err := f.svc.ReverseCommission(f.ctx, 12345, 1, "")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
