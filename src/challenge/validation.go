package challenge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jiaming2012/backoffice/src/models"
)

// marginEquityRatio is the share of equity a single trade's margin may use.
const marginEquityRatio = 0.9

var segmentAliases = map[string]string{
	"Forex":   "FOREX",
	"Crypto":  "CRYPTO",
	"Metals":  "COMMODITIES",
	"Stocks":  "STOCKS",
	"Indices": "INDICES",
}

// NormalizeSegment maps display segment names to stored segment codes.
func NormalizeSegment(segment string) string {
	if code, found := segmentAliases[segment]; found {
		return code
	}

	return strings.ToUpper(strings.TrimSpace(segment))
}

func contains(list []string, value string, normalize func(string) string) bool {
	for _, item := range list {
		if normalize(item) == value {
			return true
		}
	}

	return false
}

// ValidateTradeOpen runs the open rules in order and returns the first rejection.
// The only write is the lazy move to EXPIRED.
func (s *Service) ValidateTradeOpen(ctx context.Context, accountID uint, params models.TradeOpenParams) (*models.ValidationResult, error) {
	acc, err := s.db.GetChallengeAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewRejection(models.RuleAccountNotFound, "", "Challenge account not found"), nil
		}
		return nil, fmt.Errorf("ValidateTradeOpen: %w", err)
	}

	ch, err := s.db.GetChallenge(ctx, acc.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("ValidateTradeOpen: failed to get challenge: %w", err)
	}

	switch acc.Status {
	case models.ChallengeAccountStatusFailed:
		return models.NewRejection(models.RuleAccountFailed, "", "Challenge account has failed"), nil
	case models.ChallengeAccountStatusExpired:
		return models.NewRejection(models.RuleAccountExpired, "", "Challenge has expired"), nil
	}

	if !acc.IsTradable() {
		return models.NewRejection(models.RuleAccountNotActive, "", "Challenge account is not active"), nil
	}

	now := s.now()
	if now.After(acc.ExpiresAt) {
		if err := s.expire(ctx, accountID); err != nil {
			return nil, fmt.Errorf("ValidateTradeOpen: %w", err)
		}
		return models.NewRejection(models.RuleAccountExpired, "", "Challenge has expired"), nil
	}

	rules := ch.Rules

	if rules.StopLossMandatory && params.StopLoss == nil {
		return models.NewRejection(models.RuleSlMandatory, models.UIActionShowSlPopup, "Stop Loss is mandatory for this challenge"), nil
	}

	if rules.MaxTradesPerDay > 0 && acc.TradesTodayAt(now) >= rules.MaxTradesPerDay {
		return models.NewRejection(models.RuleMaxTradesPerDay, models.UIActionDisableTradeButton,
			fmt.Sprintf("Maximum %d trades per day allowed", rules.MaxTradesPerDay)), nil
	}

	if rules.MaxConcurrentTrades > 0 && acc.OpenTradesCount >= rules.MaxConcurrentTrades {
		return models.NewRejection(models.RuleMaxConcurrentTrades, models.UIActionDisableTradeButton,
			fmt.Sprintf("Maximum %d concurrent trades allowed", rules.MaxConcurrentTrades)), nil
	}

	symbol := strings.ToUpper(params.Symbol)
	if len(rules.AllowedSymbols) > 0 && !contains(rules.AllowedSymbols, symbol, strings.ToUpper) {
		return models.NewRejection(models.RuleSymbolNotAllowed, models.UIActionShowSymbolWarning,
			fmt.Sprintf("Symbol %s is not allowed for this challenge", params.Symbol)), nil
	}

	if len(rules.AllowedSegments) > 0 && !contains(rules.AllowedSegments, NormalizeSegment(params.Segment), NormalizeSegment) {
		return models.NewRejection(models.RuleSegmentNotAllowed, models.UIActionShowSegmentWarning,
			fmt.Sprintf("Segment %s is not allowed for this challenge", params.Segment)), nil
	}

	contractSize := s.engine.GetContractSize(symbol)

	if params.StopLoss != nil && rules.MaxLossPerTradePercent > 0 {
		potentialLoss := math.Abs(params.Price-*params.StopLoss) * params.Quantity * contractSize
		maxLoss := rules.MaxLossPerTradePercent / 100 * acc.CurrentEquity

		if potentialLoss > maxLoss {
			result := models.NewRejection(models.RuleMaxLossPerTrade, models.UIActionShowLossWarning,
				fmt.Sprintf("Potential loss exceeds %v%% limit. Adjust your stop loss.", rules.MaxLossPerTradePercent))
			result.MaxAllowedLoss = &maxLoss
			return result, nil
		}
	}

	leverage := rules.LeverageOrDefault()
	if params.Leverage > 0 && params.Leverage < leverage {
		leverage = params.Leverage
	}

	margin := s.engine.CalculateMargin(params.Quantity, params.Price, leverage, contractSize)
	if margin > acc.CurrentEquity*marginEquityRatio {
		return models.NewRejection(models.RuleInsufficientMargin, models.UIActionShowMarginWarning, "Insufficient margin for this trade"), nil
	}

	return models.NewValidResult(), nil
}

// ValidateTradeClose enforces the minimum hold time of a challenge trade.
func (s *Service) ValidateTradeClose(ctx context.Context, accountID uint, tradeID uint) (*models.ValidationResult, error) {
	acc, err := s.db.GetChallengeAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewRejection(models.RuleAccountNotFound, "", "Challenge account not found"), nil
		}
		return nil, fmt.Errorf("ValidateTradeClose: %w", err)
	}

	trade, err := s.db.GetTrade(ctx, tradeID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.ValidationResult{Valid: false, Error: "Trade not found"}, nil
		}
		return nil, fmt.Errorf("ValidateTradeClose: %w", err)
	}

	if trade.AccountKind != models.AccountKindChallenge || trade.AccountID != acc.ID {
		return &models.ValidationResult{Valid: false, Error: "Trade does not belong to this account"}, nil
	}

	ch, err := s.db.GetChallenge(ctx, acc.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("ValidateTradeClose: failed to get challenge: %w", err)
	}

	hold := time.Duration(ch.Rules.MinTradeHoldTimeSeconds) * time.Second
	if hold <= 0 {
		return models.NewValidResult(), nil
	}

	canCloseAt := trade.OpenedAt.Add(hold)
	remaining := canCloseAt.Sub(s.now())
	if remaining <= 0 {
		return models.NewValidResult(), nil
	}

	remainingSeconds := int(math.Ceil(remaining.Seconds()))
	result := models.NewRejection(models.RuleMinHoldTime, models.UIActionDisableCloseButton,
		fmt.Sprintf("Minimum hold time not met. Wait %d more seconds.", remainingSeconds))
	result.RemainingSeconds = &remainingSeconds
	result.CanCloseAt = &canCloseAt

	return result, nil
}

// expire persists the lazy ACTIVE or FUNDED to EXPIRED transition.
func (s *Service) expire(ctx context.Context, accountID uint) error {
	_, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, _ *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		if !acc.ExpireIfDue(now) {
			return nil, errNoChange
		}
		return nil, nil
	})

	return err
}
