package copytrade

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

// ProcessMasterWithdrawal moves pending commission into the master's trading account.
func (s *Service) ProcessMasterWithdrawal(ctx context.Context, masterID uint, amount decimal.Decimal, adminID uint) (*models.MasterWithdrawal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: amount must be positive: %w", models.ErrValidation)
	}

	master, err := s.db.GetMasterTrader(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: failed to get master: %w", err)
	}

	settings, err := s.db.GetCopySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: failed to get settings: %w", err)
	}

	if amount.LessThan(settings.MinPayoutAmount) {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: amount %s below minimum payout %s: %w", amount, settings.MinPayoutAmount, models.ErrValidation)
	}

	if amount.GreaterThan(master.PendingCommission) {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: amount %s exceeds pending commission %s: %w", amount, master.PendingCommission, models.ErrInsufficientFunds)
	}

	if _, err := s.db.GetAccount(ctx, master.TradingAccountID); err != nil {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: master trading account: %w", err)
	}

	withdrawal, err := s.db.WithdrawMasterCommission(ctx, masterID, amount)
	if err != nil {
		return nil, fmt.Errorf("ProcessMasterWithdrawal: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"master_id": masterID,
		"admin_id":  adminID,
		"amount":    amount.String(),
	}).Info("master commission withdrawn")

	return withdrawal, nil
}
