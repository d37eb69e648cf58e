package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

const validConfig = `
commission:
  max_depth: 5
  default_plan:
    name: standard
    commission_type: PER_LOT
    max_levels: 3
    level_rates:
      level1: 5
      level2: 3
      level3: 1
copy_trading:
  default_admin_share_percentage: 30
  min_payout_amount: 50
  default_max_lot_size: 10
contract_sizes:
  - symbol: xauusd
    contract_size: 100
settlement:
  run_at: "00:05"
price_feed:
  url: ws://localhost:8080/prices
`

func TestParseBackofficeConfig(t *testing.T) {
	t.Run("a complete config parses", func(t *testing.T) {
		cfg, err := ParseBackofficeConfig([]byte(validConfig))
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Commission.MaxDepth)
		assert.Equal(t, 30.0, cfg.CopyTrading.DefaultAdminSharePercentage)
		assert.Equal(t, map[string]float64{"XAUUSD": 100}, cfg.ContractSizeOverrides())

		plan, err := cfg.Commission.DefaultPlan.ToPlan()
		require.NoError(t, err)
		assert.Equal(t, 3.0, plan.RateForLevel(2))
	})

	t.Run("a malformed settlement time is rejected", func(t *testing.T) {
		data := []byte(strings.Replace(validConfig, `run_at: "00:05"`, `run_at: "25:00"`, 1))

		_, err := ParseBackofficeConfig(data)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("depth beyond twenty levels is rejected", func(t *testing.T) {
		data := []byte(strings.Replace(validConfig, "max_depth: 5", "max_depth: 21", 1))

		_, err := ParseBackofficeConfig(data)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("an unknown commission type is rejected", func(t *testing.T) {
		data := []byte(strings.Replace(validConfig, "commission_type: PER_LOT", "commission_type: FLAT", 1))

		_, err := ParseBackofficeConfig(data)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("config loads from disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), BACKOFFICE_CONFIG_FILENAME)
		require.NoError(t, os.WriteFile(path, []byte(validConfig), 0644))

		cfg, err := LoadBackofficeConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "00:05", cfg.Settlement.RunAt)

		_, err = LoadBackofficeConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
