package copytrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestCopyRelationshipLifecycle(t *testing.T) {
	t.Run("pause resume and stop", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 1000, models.CopyModeLotMultiplier, 1)
		assert.Equal(t, models.DefaultMaxLotSize, rel.MaxLotSize)

		paused, err := f.svc.Pause(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyRelationshipStatusPaused, paused.Status)
		assert.NotNil(t, paused.PausedAt)

		_, err = f.svc.Pause(f.ctx, rel.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)

		resumed, err := f.svc.Resume(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyRelationshipStatusActive, resumed.Status)

		stopped, err := f.svc.Stop(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CopyRelationshipStatusStopped, stopped.Status)

		_, err = f.svc.Resume(f.ctx, rel.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("configured default max lot applies when the request names none", func(t *testing.T) {
		f := newFixture(t)
		f.svc.SetDefaultMaxLotSize(2.5)

		_, rel := f.addFollower(t, 1000, models.CopyModeLotMultiplier, 1)
		assert.Equal(t, 2.5, rel.MaxLotSize)
	})

	t.Run("following your own master account is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.Follow(f.ctx, FollowRequest{
			FollowerUserID:    f.masterAccount.UserID,
			FollowerAccountID: f.masterAccount.ID,
			MasterID:          f.master.ID,
			CopyMode:          models.CopyModeFixedLot,
			CopyValue:         1,
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("following with someone else's account is rejected", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t, 1000)

		_, err := f.svc.Follow(f.ctx, FollowRequest{
			FollowerUserID:    acc.UserID + 1000,
			FollowerAccountID: acc.ID,
			MasterID:          f.master.ID,
			CopyMode:          models.CopyModeFixedLot,
			CopyValue:         1,
		})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("daily stats reset once per day", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 1000, models.CopyModeFixedLot, 1)
		require.NoError(t, f.db.ApplyFollowerStats(f.ctx, rel.ID, models.NewCloseStatsDelta(-40)))

		count, err := f.svc.ResetDailyStats(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		f.now = f.now.AddDate(0, 0, 1)
		count, err = f.svc.ResetDailyStats(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		stored, err := f.db.GetCopyRelationship(f.ctx, rel.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.DailyLoss)
		assert.Equal(t, 40.0, stored.TotalLoss)
	})
}

func TestMasterStats(t *testing.T) {
	t.Run("no closed copies gives zeroes", func(t *testing.T) {
		f := newFixture(t)

		perf, err := f.svc.MasterStats(f.ctx, f.master.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, perf.ClosedCopies)
		assert.Zero(t, perf.MeanPnl)
	})

	t.Run("summarizes closed copy pnl", func(t *testing.T) {
		f := newFixture(t)
		_, rel := f.addFollower(t, 1000, models.CopyModeFixedLot, 1)
		f.addClosedCopy(t, rel, 1, 100)
		f.addClosedCopy(t, rel, 2, -50)
		f.addClosedCopy(t, rel, 3, 250)

		perf, err := f.svc.MasterStats(f.ctx, f.master.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, perf.ClosedCopies)
		assert.InDelta(t, 66.666, perf.WinRate, 0.01)
		assert.InDelta(t, 300.0, perf.TotalPnl, 1e-9)
		assert.InDelta(t, 100.0, perf.MeanPnl, 1e-9)
		assert.InDelta(t, 100.0, perf.MedianPnl, 1e-9)
		assert.Equal(t, 250.0, perf.BestPnl)
		assert.Equal(t, -50.0, perf.WorstPnl)
	})
}
