package copytrade

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestCopyTradeToFollowers(t *testing.T) {
	t.Run("multiplier follower copies at the master price", func(t *testing.T) {
		f := newFixture(t)
		followerAcc, rel := f.addFollower(t, 10000, models.CopyModeLotMultiplier, 2)

		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 0.5, 1.1)

		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ResultStatusSuccess, results[0].Status)
		assert.Equal(t, 1.0, results[0].LotSize)

		openTrades, err := f.db.ListOpenTrades(f.ctx, followerAcc.ID, models.AccountKindTrading)
		require.NoError(t, err)
		require.Len(t, openTrades, 1)
		assert.Equal(t, 1.0, openTrades[0].Quantity)
		assert.Equal(t, 1.1, openTrades[0].OpenPrice)
		require.NotNil(t, openTrades[0].CopiedFromTradeID)
		assert.Equal(t, masterTrade.ID, *openTrades[0].CopiedFromTradeID)

		record, err := f.db.GetCopyTradeRecord(f.ctx, masterTrade.ID, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyTradeStatusOpen, record.Status)
		assert.Equal(t, openTrades[0].ID, *record.FollowerTradeID)

		stored, err := f.db.GetCopyRelationship(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.TotalCopiedTrades)
		assert.Equal(t, 1, stored.ActiveCopiedTrades)

		master, err := f.db.GetMasterTrader(f.ctx, f.master.ID)
		require.NoError(t, err)
		assert.Equal(t, 1.0, master.TotalCopiedVolume)
	})

	t.Run("second invocation for the same master trade does nothing", func(t *testing.T) {
		f := newFixture(t)
		followerAcc, _ := f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideSell, 1, 1.1)

		_, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)

		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		assert.Empty(t, results)

		openTrades, err := f.db.ListOpenTrades(f.ctx, followerAcc.ID, models.AccountKindTrading)
		require.NoError(t, err)
		assert.Len(t, openTrades, 1)
	})

	t.Run("concurrent invocations open exactly one follower trade", func(t *testing.T) {
		f := newFixture(t)
		followerAcc, _ := f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
			}()
		}
		wg.Wait()

		openTrades, err := f.db.ListOpenTrades(f.ctx, followerAcc.ID, models.AccountKindTrading)
		require.NoError(t, err)
		assert.Len(t, openTrades, 1)
	})

	t.Run("follower without free margin gets a failed record and no trade", func(t *testing.T) {
		f := newFixture(t)
		followerAcc, rel := f.addFollower(t, 500, models.CopyModeFixedLot, 1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ResultStatusFailed, results[0].Status)
		assert.Contains(t, results[0].Reason, "Insufficient margin")

		record, err := f.db.GetCopyTradeRecord(f.ctx, masterTrade.ID, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyTradeStatusFailed, record.Status)

		openTrades, err := f.db.ListOpenTrades(f.ctx, followerAcc.ID, models.AccountKindTrading)
		require.NoError(t, err)
		assert.Empty(t, openTrades)
	})

	t.Run("one failing follower does not abort the others", func(t *testing.T) {
		f := newFixture(t)
		_, _ = f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		_, _ = f.addFollower(t, 10, models.CopyModeFixedLot, 0.1)
		_, _ = f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, ResultStatusSuccess, results[0].Status)
		assert.Equal(t, ResultStatusFailed, results[1].Status)
		assert.Equal(t, ResultStatusSuccess, results[2].Status)
	})

	t.Run("follower over its daily loss cap is not copied", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)

		limit := 50.0
		acc := f.addAccount(t, 10000)
		capped, err := f.svc.Follow(f.ctx, FollowRequest{
			FollowerUserID: acc.UserID, FollowerAccountID: acc.ID, MasterID: f.master.ID,
			CopyMode: models.CopyModeFixedLot, CopyValue: 0.1, MaxDailyLoss: &limit,
		})
		require.NoError(t, err)
		require.NoError(t, f.db.ApplyFollowerStats(f.ctx, capped.ID, models.FollowerStatsDelta{DailyLoss: 60}))

		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)
		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, rel.ID, results[0].FollowerID)
		assert.Equal(t, ResultStatusSuccess, results[0].Status)
		assert.Equal(t, "daily loss limit reached", results[1].Reason)
	})

	t.Run("paused followers are not copied", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		_, err := f.svc.Pause(f.ctx, rel.ID)
		require.NoError(t, err)

		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)
		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("inactive master is rejected", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.db.SetMasterTraderStatus(f.ctx, f.master.ID, models.MasterTraderStatusSuspended))
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		_, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		assert.True(t, errors.Is(err, models.ErrMasterNotActive))
	})
}
