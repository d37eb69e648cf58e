package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestValidateAndTrack(t *testing.T) {
	t.Run("fails the account on the third warning of one rule", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t)

		params := eurusd(0.1, 1.099)
		params.Symbol = "GBPUSD"

		first, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, params)
		require.NoError(t, err)
		assert.Equal(t, models.RuleSymbolNotAllowed, first.Code)
		assert.False(t, first.AccountFailed)
		assert.Equal(t, 1, first.WarningCount)
		assert.Equal(t, 2, first.RemainingWarnings)

		second, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, params)
		require.NoError(t, err)
		assert.Equal(t, 1, second.RemainingWarnings)

		third, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, params)
		require.NoError(t, err)
		assert.True(t, third.AccountFailed)
		assert.Equal(t, "Account failed: Exceeded maximum warnings for SYMBOL_NOT_ALLOWED", third.FailReason)
		assert.Equal(t, 0, third.RemainingWarnings)

		stored := f.account(t, acc.ID)
		assert.Equal(t, models.ChallengeAccountStatusFailed, stored.Status)
		assert.Equal(t, "Repeated rule violation: Symbol GBPUSD is not allowed for this challenge", stored.FailReason)
		assert.Equal(t, 3, stored.WarningsCount)
		assert.True(t, stored.HasFailViolation())

		fourth, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, params)
		require.NoError(t, err)
		assert.Equal(t, models.RuleAccountFailed, fourth.Code)
		assert.Equal(t, 3, f.account(t, acc.ID).WarningsCount)
	})

	t.Run("counts warnings per rule", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t)

		noStop := eurusd(0.1, 1.099)
		noStop.StopLoss = nil
		badSymbol := eurusd(0.1, 1.099)
		badSymbol.Symbol = "GBPUSD"

		for _, params := range []models.TradeOpenParams{noStop, badSymbol, noStop, badSymbol} {
			outcome, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, params)
			require.NoError(t, err)
			assert.False(t, outcome.AccountFailed)
		}

		stored := f.account(t, acc.ID)
		assert.Equal(t, models.ChallengeAccountStatusActive, stored.Status)
		assert.Equal(t, 4, stored.WarningsCount)
		assert.Equal(t, 2, stored.WarningCount(models.RuleSlMandatory))
	})

	t.Run("does not track a valid attempt", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t)

		outcome, err := f.svc.ValidateAndTrack(f.ctx, acc.ID, eurusd(0.1, 1.099))
		require.NoError(t, err)
		assert.True(t, outcome.Valid)
		assert.Equal(t, models.MaxSameRuleWarnings, outcome.RemainingWarnings)
		assert.Empty(t, f.account(t, acc.ID).Violations)
	})

	t.Run("does not track account state rejections", func(t *testing.T) {
		f := newFixture(t)

		outcome, err := f.svc.ValidateAndTrack(f.ctx, 999, eurusd(0.1, 1.099))
		require.NoError(t, err)
		assert.Equal(t, models.RuleAccountNotFound, outcome.Code)
		assert.False(t, outcome.AccountFailed)
	})
}

func TestTrackRuleViolation(t *testing.T) {
	t.Run("leaves a terminal account unchanged", func(t *testing.T) {
		f := newFixture(t)
		acc := f.addAccount(t)
		_, err := f.svc.ForceFail(f.ctx, acc.ID, 1, "fraud")
		require.NoError(t, err)
		before := f.account(t, acc.ID)

		result, err := f.svc.TrackRuleViolation(f.ctx, acc.ID, models.RuleSlMandatory, "no stop")
		require.NoError(t, err)
		assert.True(t, result.Failed)

		after := f.account(t, acc.ID)
		assert.Equal(t, before.Version, after.Version)
		assert.Len(t, after.Violations, len(before.Violations))
	})

	t.Run("returns not found for an unknown account", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.TrackRuleViolation(f.ctx, 999, models.RuleSlMandatory, "no stop")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
