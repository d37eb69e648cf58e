package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/models"
)

type Settler interface {
	CalculateDailyCommission(ctx context.Context, tradingDay string) ([]copytrade.SettlementResult, error)
	ResetDailyStats(ctx context.Context) (int64, error)
}

// SettlementScheduler runs the copy trading profit share once a day at a fixed UTC time.
type SettlementScheduler struct {
	wg       *sync.WaitGroup
	settler  Settler
	hour     int
	minute   int
	now      func() time.Time
	notifier Notifier
}

func NewSettlementScheduler(wg *sync.WaitGroup, settler Settler, cfg models.SettlementConfigYAML) (*SettlementScheduler, error) {
	hour, minute, err := cfg.SettlementTime()
	if err != nil {
		return nil, fmt.Errorf("NewSettlementScheduler: %w", err)
	}

	return &SettlementScheduler{
		wg:      wg,
		settler: settler,
		hour:    hour,
		minute:  minute,
		now:     time.Now,
	}, nil
}

func (s *SettlementScheduler) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SettlementScheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// NextRun is the first scheduled time strictly after now.
func (s *SettlementScheduler) NextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// RunOnce settles the UTC day before runAt, then resets follower daily stats.
func (s *SettlementScheduler) RunOnce(ctx context.Context, runAt time.Time) ([]copytrade.SettlementResult, error) {
	tradingDay := models.TradingDayOf(runAt.AddDate(0, 0, -1))

	results, err := s.settler.CalculateDailyCommission(ctx, tradingDay)
	if err != nil {
		notify(ctx, s.notifier, fmt.Sprintf("copy trading settlement of %s failed: %v", tradingDay, err))
		return nil, fmt.Errorf("SettlementScheduler.RunOnce: %w", err)
	}

	notify(ctx, s.notifier, SettlementSummary(tradingDay, results))

	reset, err := s.settler.ResetDailyStats(ctx)
	if err != nil {
		return results, fmt.Errorf("SettlementScheduler.RunOnce: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"trading_day":     tradingDay,
		"groups":          len(results),
		"followers_reset": reset,
	}).Info("daily settlement finished")

	return results, nil
}

// SettlementSummary counts groups by outcome and totals the collected commission.
func SettlementSummary(tradingDay string, results []copytrade.SettlementResult) string {
	counts := make(map[copytrade.ResultStatus]int)
	collected := decimal.Zero
	for _, r := range results {
		counts[r.Status]++
		if r.Status == copytrade.ResultStatusDeducted {
			collected = collected.Add(r.Commission)
		}
	}

	return fmt.Sprintf("copy trading settlement %s: %d groups, %d deducted, %d failed, %d without commission, %s collected",
		tradingDay, len(results), counts[copytrade.ResultStatusDeducted], counts[copytrade.ResultStatusFailed],
		counts[copytrade.ResultStatusNoCommission], collected.StringFixed(2))
}

func (s *SettlementScheduler) Start(ctx context.Context) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		for {
			next := s.NextRun(s.now())
			log.Infof("next copy trading settlement at %s", next.Format(time.RFC3339))

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				log.Info("stopping SettlementScheduler")
				return
			case <-timer.C:
				if _, err := s.RunOnce(ctx, next); err != nil {
					log.Errorf("SettlementScheduler: %v", err)
				}
			}
		}
	}()
}
