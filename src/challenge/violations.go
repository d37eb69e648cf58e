package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

// accountStateCodes describe the account, not a trading rule, and are never tracked.
var accountStateCodes = map[string]bool{
	models.RuleAccountNotFound:  true,
	models.RuleAccountNotActive: true,
	models.RuleAccountFailed:    true,
	models.RuleAccountExpired:   true,
}

// TrackRuleViolation records a WARNING. The third warning of the same rule fails the account.
func (s *Service) TrackRuleViolation(ctx context.Context, accountID uint, rule, description string) (*models.ViolationTrackResult, error) {
	var result models.ViolationTrackResult
	_, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, _ *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		result = models.ViolationTrackResult{}

		if acc.IsTerminal() {
			result.Failed = acc.Status == models.ChallengeAccountStatusFailed
			result.Reason = fmt.Sprintf("account is %s", acc.Status)
			result.WarningCount = acc.WarningsCount
			return nil, errNoChange
		}

		acc.AddViolation(rule, description, models.ViolationSeverityWarning, now)
		acc.WarningsCount++

		same := acc.WarningCount(rule)
		result.WarningCount = acc.WarningsCount
		result.SameRuleCount = same

		if same >= models.MaxSameRuleWarnings {
			acc.Fail(rule, fmt.Sprintf("Account failed due to repeated violations (%d times)", same), now)
			acc.FailReason = fmt.Sprintf("Repeated rule violation: %s", description)

			result.Failed = true
			result.Reason = fmt.Sprintf("Account failed: Exceeded maximum warnings for %s", rule)
			return nil, nil
		}

		result.RemainingWarnings = models.MaxSameRuleWarnings - same
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("TrackRuleViolation: %w", err)
	}

	severity := models.ViolationSeverityWarning
	if result.Failed && result.SameRuleCount >= models.MaxSameRuleWarnings {
		severity = models.ViolationSeverityFail
		log.WithContext(ctx).WithFields(log.Fields{
			"challenge_account": accountID,
			"rule":              rule,
		}).Warn(result.Reason)
	}

	if result.SameRuleCount > 0 {
		s.countViolation(ctx, rule, severity)
	}

	return &result, nil
}

// HandleTradeAttemptViolation turns a rejected open into a tracked warning.
func (s *Service) HandleTradeAttemptViolation(ctx context.Context, accountID uint, validation *models.ValidationResult) (*TradeAttemptOutcome, error) {
	outcome := &TradeAttemptOutcome{
		ValidationResult:  validation,
		RemainingWarnings: models.MaxSameRuleWarnings,
	}

	if validation.Valid || validation.Code == "" || accountStateCodes[validation.Code] {
		return outcome, nil
	}

	tracked, err := s.TrackRuleViolation(ctx, accountID, validation.Code, validation.Error)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return outcome, nil
		}
		return nil, fmt.Errorf("HandleTradeAttemptViolation: %w", err)
	}

	if tracked.Failed {
		outcome.AccountFailed = true
		outcome.FailReason = tracked.Reason
		outcome.RemainingWarnings = 0
	} else {
		outcome.RemainingWarnings = tracked.RemainingWarnings
	}

	outcome.WarningCount = tracked.WarningCount

	return outcome, nil
}

// ValidateAndTrack validates an open and records a warning for a rule rejection.
func (s *Service) ValidateAndTrack(ctx context.Context, accountID uint, params models.TradeOpenParams) (*TradeAttemptOutcome, error) {
	validation, err := s.ValidateTradeOpen(ctx, accountID, params)
	if err != nil {
		return nil, err
	}

	return s.HandleTradeAttemptViolation(ctx, accountID, validation)
}
