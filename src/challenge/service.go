package challenge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/backoffice/src/models"
)

const maxSaveAttempts = 5

// errNoChange ends a mutation without saving.
var errNoChange = errors.New("no change")

type Store interface {
	models.IAccountStore
	models.IChallengeStore
}

// Service enforces challenge rules and drives the phase state machine of challenge accounts.
type Service struct {
	db               Store
	engine           models.ITradeEngine
	now              func() time.Time
	violationCounter metric.Int64Counter
}

func NewService(db Store, engine models.ITradeEngine) *Service {
	counter, err := otel.Meter("challenge").Int64Counter("challenge.violations", metric.WithDescription("rule violations by rule and severity"))
	if err != nil {
		log.Warnf("challenge: failed to create violation counter: %v", err)
	}

	return &Service{
		db:               db,
		engine:           engine,
		now:              time.Now,
		violationCounter: counter,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// mutation edits a loaded account in place. It may return a funded account that is
// created together with the save, or errNoChange to skip the save.
type mutation func(acc *models.ChallengeAccount, challenge *models.Challenge, now time.Time) (*models.ChallengeAccount, error)

// mutate applies fn to a fresh copy of the account and saves it conditionally on its
// version, reloading and reapplying on a conflict.
func (s *Service) mutate(ctx context.Context, accountID uint, fn mutation) (*models.ChallengeAccount, *models.ChallengeAccount, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		acc, err := s.db.GetChallengeAccount(ctx, accountID)
		if err != nil {
			return nil, nil, err
		}

		ch, err := s.db.GetChallenge(ctx, acc.ChallengeID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get challenge %d: %w", acc.ChallengeID, err)
		}

		funded, err := fn(acc, ch, s.now())
		if errors.Is(err, errNoChange) {
			return acc, nil, nil
		}

		if err != nil {
			return nil, nil, err
		}

		if funded != nil {
			err = s.db.FundChallengeAccount(ctx, acc, funded)
		} else {
			err = s.db.SaveChallengeAccount(ctx, acc)
		}

		if err == nil {
			return acc, funded, nil
		}

		if !errors.Is(err, models.ErrStaleChallengeAccount) {
			return nil, nil, err
		}

		lastErr = err
		log.WithContext(ctx).Debugf("challenge account %d changed concurrently, attempt %d", accountID, attempt)
	}

	return nil, nil, fmt.Errorf("challenge account %d: gave up after %d attempts: %w", accountID, maxSaveAttempts, lastErr)
}

func newAccountNumber(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + strings.ToUpper(id[:10])
}

// failOnBreach fails a tradable account whose drawdown reached a limit.
func (s *Service) failOnBreach(ctx context.Context, acc *models.ChallengeAccount, rules models.ChallengeRules, now time.Time) (string, string, bool) {
	if !acc.IsTradable() {
		return "", "", false
	}

	rule, description, breached := acc.DrawdownBreach(rules)
	if !breached {
		return "", "", false
	}

	acc.Fail(rule, description, now)
	s.countViolation(ctx, rule, models.ViolationSeverityFail)

	return rule, description, true
}

// checkProfitTarget advances the phase, or passes the account and builds its funded
// account, when the phase target is reached without a FAIL violation.
func checkProfitTarget(acc *models.ChallengeAccount, ch *models.Challenge, now time.Time) (bool, *models.ChallengeAccount) {
	if ch.StepsCount == 0 || acc.AccountType != models.ChallengeAccountTypeChallenge || acc.Status != models.ChallengeAccountStatusActive {
		return false, nil
	}

	if acc.CurrentProfitPercent < ch.Rules.ProfitTargetForPhase(acc.CurrentPhase) || acc.HasFailViolation() {
		return false, nil
	}

	if !acc.IsFinalPhase() {
		acc.AdvancePhase()
		return true, nil
	}

	acc.MarkPassed(now)
	return true, models.NewFundedAccount(acc, ch, newAccountNumber("FND"), now)
}

func (s *Service) countViolation(ctx context.Context, rule string, severity models.ViolationSeverity) {
	if s.violationCounter == nil {
		return
	}

	s.violationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("rule", rule),
		attribute.String("severity", string(severity)),
	))
}
