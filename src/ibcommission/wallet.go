package ibcommission

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

const activeTraderWindowDays = 30

// WithdrawToWallet moves IB wallet funds into the user's main wallet.
func (s *Service) WithdrawToWallet(ctx context.Context, ibUserID uint, amount decimal.Decimal) (*models.IBWithdrawal, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("WithdrawToWallet: amount must be positive: %w", models.ErrValidation)
	}

	user, err := s.db.GetIBUser(ctx, ibUserID)
	if err != nil {
		return nil, fmt.Errorf("WithdrawToWallet: %w", err)
	}

	if !user.IsIB {
		return nil, fmt.Errorf("WithdrawToWallet: user %d is not an IB: %w", ibUserID, models.ErrValidation)
	}

	withdrawal, err := s.db.WithdrawIBWallet(ctx, ibUserID, amount)
	if err != nil {
		return nil, fmt.Errorf("WithdrawToWallet: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"ib":     ibUserID,
		"amount": amount.String(),
	}).Info("ib wallet withdrawn to main wallet")

	return withdrawal, nil
}

// IBStats summarizes an IB's wallet, downline and credited commissions.
func (s *Service) IBStats(ctx context.Context, ibUserID uint) (*IBStats, error) {
	user, err := s.db.GetIBUser(ctx, ibUserID)
	if err != nil {
		return nil, fmt.Errorf("IBStats: %w", err)
	}

	if !user.IsIB {
		return nil, fmt.Errorf("IBStats: user %d is not an IB: %w", ibUserID, models.ErrNotFound)
	}

	out := &IBStats{
		UserID:          user.UserID,
		FirstName:       user.FirstName,
		Email:           user.Email,
		IBStatus:        user.IBStatus,
		IBLevel:         user.IBLevel,
		TotalCommission: decimal.Zero,
	}

	if user.ReferralCode != nil {
		out.ReferralCode = *user.ReferralCode
	}

	wallet, err := s.db.GetIBWallet(ctx, ibUserID)
	switch {
	case err == nil:
		out.Wallet = IBWalletSummary{
			Balance:           wallet.Balance,
			TotalEarned:       wallet.TotalEarned,
			TotalWithdrawn:    wallet.TotalWithdrawn,
			PendingWithdrawal: wallet.PendingWithdrawal,
		}
	case errors.Is(err, models.ErrNotFound):
	default:
		return nil, fmt.Errorf("IBStats: %w", err)
	}

	direct, err := s.db.ListDirectReferrals(ctx, ibUserID)
	if err != nil {
		return nil, fmt.Errorf("IBStats: %w", err)
	}

	out.DirectReferrals = len(direct)

	if out.TotalDownline, err = s.countDownline(ctx, direct, s.maxDepth); err != nil {
		return nil, fmt.Errorf("IBStats: %w", err)
	}

	records, err := s.db.ListCommissionRecordsByIB(ctx, ibUserID)
	if err != nil {
		return nil, fmt.Errorf("IBStats: %w", err)
	}

	since := s.now().AddDate(0, 0, -activeTraderWindowDays)
	traders := make(map[uint]struct{})
	for _, r := range records {
		if r.CreatedAt.After(since) {
			traders[r.TraderUserID] = struct{}{}
		}

		if r.Status == models.CommissionStatusReversed {
			out.ReversedCount++
			continue
		}

		out.TotalTrades++
		out.TotalCommission = out.TotalCommission.Add(r.CommissionAmount)
	}

	out.ActiveTraders30d = len(traders)

	return out, nil
}

func (s *Service) countDownline(ctx context.Context, level []*models.IBUser, depth int) (int, error) {
	total := 0
	for d := 1; d <= depth && len(level) > 0; d++ {
		total += len(level)

		next := make([]*models.IBUser, 0)
		for _, u := range level {
			children, err := s.db.ListDirectReferrals(ctx, u.UserID)
			if err != nil {
				return 0, err
			}
			next = append(next, children...)
		}

		level = next
	}

	return total, nil
}
