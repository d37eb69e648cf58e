package copytrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestFollowerTrades(t *testing.T) {
	t.Run("master close closes follower copies and books their pnl", func(t *testing.T) {
		f := newFixture(t)
		followerAcc, rel := f.addFollower(t, 10000, models.CopyModeFixedLot, 1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		_, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)

		results, err := f.svc.CloseFollowerTrades(f.ctx, masterTrade.ID, 1.105)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, ResultStatusSuccess, results[0].Status)
		assert.InDelta(t, 500.0, results[0].Pnl, 1e-6)

		record, err := f.db.GetCopyTradeRecord(f.ctx, masterTrade.ID, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyTradeStatusClosed, record.Status)
		require.NotNil(t, record.MasterClosePrice)
		assert.Equal(t, 1.105, *record.MasterClosePrice)
		assert.Equal(t, "2024-03-01", record.TradingDay)

		stored, err := f.db.GetCopyRelationship(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.ActiveCopiedTrades)
		assert.InDelta(t, 500.0, stored.TotalProfit, 1e-6)
		assert.InDelta(t, 500.0, stored.DailyProfit, 1e-6)

		acc, err := f.db.GetAccount(f.ctx, followerAcc.ID)
		require.NoError(t, err)
		balance, _ := acc.Balance.Float64()
		assert.InDelta(t, 10500.0, balance, 1e-6)

		again, err := f.svc.CloseFollowerTrades(f.ctx, masterTrade.ID, 1.105)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("a follower closed by its own stop is booked once", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 10000, models.CopyModeFixedLot, 1)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		results, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)

		closed, err := f.engine.CloseTrade(f.ctx, *results[0].FollowerTradeID, 1.099, 1.099, models.ClosedBySL)
		require.NoError(t, err)
		require.NoError(t, f.svc.SyncFollowerClose(f.ctx, closed.Trade))
		require.NoError(t, f.svc.SyncFollowerClose(f.ctx, closed.Trade))

		stored, err := f.db.GetCopyRelationship(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.ActiveCopiedTrades)
		assert.InDelta(t, 100.0, stored.TotalLoss, 1e-6)

		again, err := f.svc.CloseFollowerTrades(f.ctx, masterTrade.ID, 1.2)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("stop loss and take profit changes are mirrored", func(t *testing.T) {
		f := newFixture(t)
		_, _ = f.addFollower(t, 10000, models.CopyModeFixedLot, 0.1)
		_, _ = f.addFollower(t, 10000, models.CopyModeFixedLot, 0.2)
		masterTrade := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)

		copies, err := f.svc.CopyTradeToFollowers(f.ctx, masterTrade, f.master.ID)
		require.NoError(t, err)

		sl, tp := 1.09, 1.12
		results, err := f.svc.MirrorSlTpModification(f.ctx, masterTrade.ID, &sl, &tp)
		require.NoError(t, err)
		require.Len(t, results, 2)

		for _, c := range copies {
			trade, err := f.db.GetTrade(f.ctx, *c.FollowerTradeID)
			require.NoError(t, err)
			assert.Equal(t, sl, *trade.StopLoss)
			assert.Equal(t, tp, *trade.TakeProfit)
		}
	})

	t.Run("banning a master closes copies that have a quote", func(t *testing.T) {
		f := newFixture(t)
		_, _ = f.addFollower(t, 100000, models.CopyModeFixedLot, 0.1)

		eur := f.openMasterTrade(t, "EURUSD", models.TradeSideBuy, 1, 1.1)
		gold := f.openMasterTrade(t, "XAUUSD", models.TradeSideSell, 1, 2000)
		_, err := f.svc.CopyTradeToFollowers(f.ctx, eur, f.master.ID)
		require.NoError(t, err)
		_, err = f.svc.CopyTradeToFollowers(f.ctx, gold, f.master.ID)
		require.NoError(t, err)

		results, err := f.svc.BanMaster(f.ctx, f.master.ID, models.PriceMap{"EURUSD": {Bid: 1.1, Ask: 1.1001}})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, ResultStatusSuccess, results[0].Status)
		assert.Equal(t, ResultStatusSkipped, results[1].Status)

		master, err := f.db.GetMasterTrader(f.ctx, f.master.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MasterTraderStatusBanned, master.Status)
	})
}
