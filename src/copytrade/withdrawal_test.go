package copytrade

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestProcessMasterWithdrawal(t *testing.T) {
	setup := func(t *testing.T) *fixture {
		f := newFixture(t)
		_, rel := f.addFollower(t, 5000, models.CopyModeFixedLot, 0.1)
		f.addClosedCopy(t, rel, 1, 1000)

		_, err := f.svc.CalculateDailyCommission(f.ctx, tradingDay)
		require.NoError(t, err)
		return f
	}

	t.Run("pending commission moves to the master trading account", func(t *testing.T) {
		f := setup(t)

		withdrawal, err := f.svc.ProcessMasterWithdrawal(f.ctx, f.master.ID, decimal.NewFromInt(100), 1)
		require.NoError(t, err)
		assert.Equal(t, "40", withdrawal.NewPendingCommission.String())
		assert.Equal(t, "100100", withdrawal.NewAccountBalance.String())

		master, err := f.db.GetMasterTrader(f.ctx, f.master.ID)
		require.NoError(t, err)
		assert.Equal(t, "100", master.TotalCommissionWithdrawn.String())
		assert.Equal(t, "100100", f.balance(t, f.masterAccount.ID))
	})

	t.Run("more than pending is rejected", func(t *testing.T) {
		f := setup(t)

		_, err := f.svc.ProcessMasterWithdrawal(f.ctx, f.master.ID, decimal.NewFromInt(141), 1)
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.Equal(t, "100000", f.balance(t, f.masterAccount.ID))
	})

	t.Run("non positive amount is rejected", func(t *testing.T) {
		f := setup(t)

		_, err := f.svc.ProcessMasterWithdrawal(f.ctx, f.master.ID, decimal.Zero, 1)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("amount below the minimum payout is rejected", func(t *testing.T) {
		f := setup(t)

		settings, err := f.db.GetCopySettings(f.ctx)
		require.NoError(t, err)
		settings.MinPayoutAmount = decimal.NewFromInt(50)
		require.NoError(t, f.db.SaveCopySettings(f.ctx, settings))

		_, err = f.svc.ProcessMasterWithdrawal(f.ctx, f.master.ID, decimal.NewFromInt(20), 1)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}
