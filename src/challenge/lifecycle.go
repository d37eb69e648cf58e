package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/jiaming2012/backoffice/src/models"
)

// OnTradeOpened books an opened challenge trade once per trade.
func (s *Service) OnTradeOpened(ctx context.Context, trade *models.Trade) (*models.ChallengeAccount, error) {
	if trade.AccountKind != models.AccountKindChallenge {
		return nil, nil
	}

	if err := s.db.ClaimTradeEvent(ctx, trade.ID, models.TradeEventTypeOpened); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return s.db.GetChallengeAccount(ctx, trade.AccountID)
		}
		return nil, fmt.Errorf("OnTradeOpened: failed to claim trade %d: %w", trade.ID, err)
	}

	acc, _, err := s.mutate(ctx, trade.AccountID, func(acc *models.ChallengeAccount, _ *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		acc.RecordTradeOpened(now)
		return nil, nil
	})
	if err != nil {
		s.release(ctx, trade.ID, models.TradeEventTypeOpened)
		return nil, fmt.Errorf("OnTradeOpened: trade %d: %w", trade.ID, err)
	}

	return acc, nil
}

// OnTradeClosed applies realized PnL to a challenge account once per trade, then fails
// the account on a drawdown breach or moves it through its phases on a reached target.
func (s *Service) OnTradeClosed(ctx context.Context, trade *models.Trade, pnl float64) (*TradeClosedOutcome, error) {
	ctx, span := otel.Tracer("challenge").Start(ctx, "Service.OnTradeClosed")
	defer span.End()

	if trade.AccountKind != models.AccountKindChallenge {
		return nil, nil
	}

	if err := s.db.ClaimTradeEvent(ctx, trade.ID, models.TradeEventTypeClosed); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			acc, err := s.db.GetChallengeAccount(ctx, trade.AccountID)
			if err != nil {
				return nil, fmt.Errorf("OnTradeClosed: %w", err)
			}
			return &TradeClosedOutcome{Account: acc, Duplicate: true, Failed: acc.Status == models.ChallengeAccountStatusFailed}, nil
		}
		return nil, fmt.Errorf("OnTradeClosed: failed to claim trade %d: %w", trade.ID, err)
	}

	var outcome TradeClosedOutcome
	acc, funded, err := s.mutate(ctx, trade.AccountID, func(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		outcome = TradeClosedOutcome{}

		acc.RecordTradeClosed(pnl, now)

		if rule, reason, breached := s.failOnBreach(ctx, acc, ch.Rules, now); breached {
			outcome.Failed = true
			outcome.Rule = rule
			outcome.Reason = reason
			return nil, nil
		}

		completed, funded := checkProfitTarget(acc, ch, now)
		if completed {
			outcome.PhaseCompleted = true
			outcome.NextPhase = acc.CurrentPhase
		}

		return funded, nil
	})
	if err != nil {
		s.release(ctx, trade.ID, models.TradeEventTypeClosed)
		return nil, fmt.Errorf("OnTradeClosed: trade %d: %w", trade.ID, err)
	}

	outcome.Account = acc
	outcome.FundedAccount = funded

	logger := log.WithContext(ctx).WithFields(log.Fields{
		"challenge_account": acc.ID,
		"trade_id":          trade.ID,
		"pnl":               pnl,
	})

	switch {
	case outcome.Failed:
		logger.Warnf("challenge account failed: %s", outcome.Reason)
	case funded != nil:
		logger.Infof("challenge passed, funded account %s created", funded.AccountNumber)
	case outcome.PhaseCompleted:
		logger.Infof("challenge phase completed, now in phase %d", outcome.NextPhase)
	}

	return &outcome, nil
}

// UpdateRealTimeEquity records a mark-to-market equity reading. A breach fails the
// account and is reported so the caller can close its remaining positions.
func (s *Service) UpdateRealTimeEquity(ctx context.Context, accountID uint, equity float64) (*EquityUpdate, error) {
	var update EquityUpdate
	acc, _, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		update = EquityUpdate{}

		if !acc.IsTradable() {
			return nil, errNoChange
		}

		if acc.ExpireIfDue(now) {
			update.Expired = true
			return nil, nil
		}

		acc.RollDailyBaseline(now)
		acc.ApplyEquity(equity)

		if rule, reason, breached := s.failOnBreach(ctx, acc, ch.Rules, now); breached {
			update.Breached = true
			update.Rule = rule
			update.Reason = reason
		}

		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateRealTimeEquity: %w", err)
	}

	update.Account = acc
	update.DailyDrawdown = acc.CurrentDailyDrawdownPercent
	update.OverallDrawdown = acc.CurrentOverallDrawdownPercent
	update.ProfitPercent = acc.CurrentProfitPercent

	if update.Breached {
		log.WithContext(ctx).WithField("challenge_account", accountID).Warnf("drawdown breach on tick: %s", update.Reason)
	}

	return &update, nil
}

// CheckProfitTarget advances or passes an account whose phase target is met.
func (s *Service) CheckProfitTarget(ctx context.Context, accountID uint) (*ProfitTargetResult, error) {
	var reached bool
	acc, funded, err := s.mutate(ctx, accountID, func(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (*models.ChallengeAccount, error) {
		completed, funded := checkProfitTarget(acc, ch, now)
		reached = completed
		if !completed {
			return nil, errNoChange
		}
		return funded, nil
	})
	if err != nil {
		return nil, fmt.Errorf("CheckProfitTarget: %w", err)
	}

	result := &ProfitTargetResult{
		Account:       acc,
		TargetReached: reached,
		FundedAccount: funded,
	}

	if reached && funded == nil {
		result.NextPhase = acc.CurrentPhase
	}

	return result, nil
}

func (s *Service) release(ctx context.Context, tradeID uint, eventType models.TradeEventType) {
	if err := s.db.ReleaseTradeEvent(ctx, tradeID, eventType); err != nil {
		log.WithContext(ctx).Errorf("failed to release %s claim of trade %d: %v", eventType, tradeID, err)
	}
}
