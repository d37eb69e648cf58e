package challenge

import (
	"context"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

// CreateChallengeAccount starts a purchased challenge for a user.
func (s *Service) CreateChallengeAccount(ctx context.Context, userID uint, challengeID uint) (*models.ChallengeAccount, error) {
	ch, err := s.db.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, fmt.Errorf("CreateChallengeAccount: %w", err)
	}

	if !ch.IsActive {
		return nil, fmt.Errorf("CreateChallengeAccount: challenge %d is inactive: %w", challengeID, models.ErrValidation)
	}

	acc := models.NewChallengeAccount(userID, ch, newAccountNumber("CH"), s.now())
	if err := s.db.CreateChallengeAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("CreateChallengeAccount: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"user_id":        userID,
		"challenge_id":   challengeID,
		"account_number": acc.AccountNumber,
	}).Info("challenge account created")

	return acc, nil
}

// GetAccount returns an account after applying a due expiry.
func (s *Service) GetAccount(ctx context.Context, accountID uint) (*models.ChallengeAccount, error) {
	acc, err := s.db.GetChallengeAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if acc.IsTradable() && s.now().After(acc.ExpiresAt) {
		if err := s.expire(ctx, accountID); err != nil {
			return nil, err
		}
		return s.db.GetChallengeAccount(ctx, accountID)
	}

	return acc, nil
}

func (s *Service) ForcePass(ctx context.Context, accountID uint, adminID uint) (*AdminOverride, error) {
	acc, funded, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		if acc.AccountType != models.ChallengeAccountTypeChallenge || acc.FundedAccountID != nil {
			return nil, fmt.Errorf("account %d cannot be passed: %w", acc.ID, models.ErrInvalidTransition)
		}

		acc.MarkPassed(now)
		acc.AddViolation(models.RuleAdminForcePass, fmt.Sprintf("Forced pass by admin %d", adminID), models.ViolationSeverityWarning, now)

		return models.NewFundedAccount(acc, ch, newAccountNumber("FND"), now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("ForcePass: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"challenge_account": accountID,
		"admin_id":          adminID,
	}).Warn("challenge force passed")

	return &AdminOverride{Account: acc, FundedAccount: funded}, nil
}

func (s *Service) ForceFail(ctx context.Context, accountID uint, adminID uint, reason string) (*models.ChallengeAccount, error) {
	if reason == "" {
		reason = "Admin force fail"
	}

	acc, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, _ *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		if acc.Status == models.ChallengeAccountStatusFailed {
			return nil, fmt.Errorf("account %d already failed: %w", acc.ID, models.ErrInvalidTransition)
		}

		acc.Fail(models.RuleAdminForceFail, fmt.Sprintf("Forced fail by admin %d: %s", adminID, reason), now)
		acc.FailReason = reason
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ForceFail: %w", err)
	}

	s.countViolation(ctx, models.RuleAdminForceFail, models.ViolationSeverityFail)

	return acc, nil
}

// ExtendTime pushes the expiry out. An expired account whose new expiry lies in the
// future becomes tradable again.
func (s *Service) ExtendTime(ctx context.Context, accountID uint, days int, adminID uint) (*models.ChallengeAccount, error) {
	if days <= 0 {
		return nil, fmt.Errorf("ExtendTime: days must be positive: %w", models.ErrValidation)
	}

	acc, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, _ *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		acc.ExpiresAt = acc.ExpiresAt.AddDate(0, 0, days)
		acc.AddViolation(models.RuleAdminExtendTime, fmt.Sprintf("Extended %d days by admin %d", days, adminID), models.ViolationSeverityWarning, now)

		if acc.Status == models.ChallengeAccountStatusExpired && acc.ExpiresAt.After(now) {
			acc.Status = models.ChallengeAccountStatusActive
			if acc.AccountType == models.ChallengeAccountTypeFunded {
				acc.Status = models.ChallengeAccountStatusFunded
			}
		}

		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ExtendTime: %w", err)
	}

	return acc, nil
}

// ResetChallenge restarts an account at phase one with the full fund size.
func (s *Service) ResetChallenge(ctx context.Context, accountID uint, adminID uint) (*models.ChallengeAccount, error) {
	acc, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		acc.Reset(ch, fmt.Sprintf("Challenge reset by admin %d", adminID), now)
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ResetChallenge: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"challenge_account": accountID,
		"admin_id":          adminID,
	}).Warn("challenge reset")

	return acc, nil
}

type Dashboard struct {
	Account struct {
		ID            uint                          `json:"id"`
		AccountNumber string                        `json:"account_number"`
		AccountType   models.ChallengeAccountType   `json:"account_type"`
		Status        models.ChallengeAccountStatus `json:"status"`
		CurrentPhase  int                           `json:"current_phase"`
		TotalPhases   int                           `json:"total_phases"`
	} `json:"account"`
	Balance struct {
		Initial    float64 `json:"initial"`
		Current    float64 `json:"current"`
		Equity     float64 `json:"equity"`
		ProfitLoss float64 `json:"profit_loss"`
	} `json:"balance"`
	Drawdown struct {
		DailyUsed        float64 `json:"daily_used"`
		DailyMax         float64 `json:"daily_max"`
		DailyRemaining   float64 `json:"daily_remaining"`
		OverallUsed      float64 `json:"overall_used"`
		OverallMax       float64 `json:"overall_max"`
		OverallRemaining float64 `json:"overall_remaining"`
	} `json:"drawdown"`
	Profit struct {
		CurrentPercent float64 `json:"current_percent"`
		TargetPercent  float64 `json:"target_percent"`
		TargetProgress float64 `json:"target_progress"`
		AmountToTarget float64 `json:"amount_to_target"`
	} `json:"profit"`
	Trades struct {
		Today         int `json:"today"`
		MaxPerDay     int `json:"max_per_day"`
		OpenCount     int `json:"open_count"`
		MaxConcurrent int `json:"max_concurrent"`
		Total         int `json:"total"`
		TradingDays   int `json:"trading_days"`
		RequiredDays  int `json:"required_days"`
	} `json:"trades"`
	Time struct {
		ExpiresAt     time.Time `json:"expires_at"`
		RemainingDays int       `json:"remaining_days"`
		CreatedAt     time.Time `json:"created_at"`
	} `json:"time"`
	Violations    []models.Violation `json:"violations"`
	WarningsCount int                `json:"warnings_count"`
	Challenge     struct {
		ID         uint    `json:"id"`
		Name       string  `json:"name"`
		FundSize   float64 `json:"fund_size"`
		StepsCount int     `json:"steps_count"`
	} `json:"challenge"`
}

func (s *Service) Dashboard(ctx context.Context, accountID uint) (*Dashboard, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}

	ch, err := s.db.GetChallenge(ctx, acc.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("Dashboard: %w", err)
	}

	now := s.now()
	rules := ch.Rules

	d := &Dashboard{}
	d.Account.ID = acc.ID
	d.Account.AccountNumber = acc.AccountNumber
	d.Account.AccountType = acc.AccountType
	d.Account.Status = acc.Status
	d.Account.CurrentPhase = acc.CurrentPhase
	d.Account.TotalPhases = acc.TotalPhases

	d.Balance.Initial = acc.InitialBalance
	d.Balance.Current = acc.CurrentBalance
	d.Balance.Equity = acc.CurrentEquity
	d.Balance.ProfitLoss = acc.TotalProfitLoss

	d.Drawdown.DailyUsed = acc.CurrentDailyDrawdownPercent
	d.Drawdown.DailyMax = rules.MaxDailyDrawdownPercent
	d.Drawdown.DailyRemaining = math.Max(0, rules.MaxDailyDrawdownPercent-acc.CurrentDailyDrawdownPercent)
	d.Drawdown.OverallUsed = acc.CurrentOverallDrawdownPercent
	d.Drawdown.OverallMax = rules.MaxOverallDrawdownPercent
	d.Drawdown.OverallRemaining = math.Max(0, rules.MaxOverallDrawdownPercent-acc.CurrentOverallDrawdownPercent)

	d.Profit.CurrentPercent = acc.CurrentProfitPercent
	if ch.StepsCount > 0 && acc.AccountType == models.ChallengeAccountTypeChallenge {
		target := rules.ProfitTargetForPhase(acc.CurrentPhase)
		d.Profit.TargetPercent = target
		d.Profit.TargetProgress = math.Max(0, math.Min(100, acc.CurrentProfitPercent/target*100))
		d.Profit.AmountToTarget = math.Max(0, target/100*acc.PhaseStartBalance-(acc.CurrentEquity-acc.PhaseStartBalance))
	}

	d.Trades.Today = acc.TradesTodayAt(now)
	d.Trades.MaxPerDay = rules.MaxTradesPerDay
	d.Trades.OpenCount = acc.OpenTradesCount
	d.Trades.MaxConcurrent = rules.MaxConcurrentTrades
	d.Trades.Total = acc.TotalTrades
	d.Trades.TradingDays = acc.TradingDaysCount
	d.Trades.RequiredDays = rules.TradingDaysRequired

	d.Time.ExpiresAt = acc.ExpiresAt
	d.Time.RemainingDays = int(math.Ceil(acc.RemainingTime(now).Hours() / 24))
	d.Time.CreatedAt = acc.CreatedAt

	d.Violations = acc.Violations
	d.WarningsCount = acc.WarningsCount

	d.Challenge.ID = ch.ID
	d.Challenge.Name = ch.Name
	d.Challenge.FundSize = ch.FundSize
	d.Challenge.StepsCount = ch.StepsCount

	return d, nil
}
