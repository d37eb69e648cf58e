package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/models"
)

type ChallengeAccountLister interface {
	ListChallengeAccounts(ctx context.Context, statuses ...models.ChallengeAccountStatus) ([]*models.ChallengeAccount, error)
}

type ChallengeRisk interface {
	CheckSlTpForAllTrades(ctx context.Context, prices models.PriceMap) ([]challenge.TriggeredClose, error)
	Equity(ctx context.Context, acc *models.ChallengeAccount, prices models.PriceMap) (float64, error)
	UpdateRealTimeEquity(ctx context.Context, accountID uint, equity float64) (*challenge.EquityUpdate, error)
	LiquidateAccount(ctx context.Context, accountID uint, prices models.PriceMap) ([]challenge.TriggeredClose, error)
}

type TickReport struct {
	Triggered  []challenge.TriggeredClose
	Breached   []uint
	Expired    []uint
	Liquidated []challenge.TriggeredClose
	Errors     []error
}

// TickProcessor marks challenge accounts to market on every price update: stop loss
// and take profit first, then equity and drawdown, liquidating breached accounts.
type TickProcessor struct {
	wg          *sync.WaitGroup
	accounts    ChallengeAccountLister
	risk        ChallengeRisk
	book        *PriceBook
	minInterval time.Duration
	notifier    Notifier
}

func NewTickProcessor(wg *sync.WaitGroup, accounts ChallengeAccountLister, risk ChallengeRisk, book *PriceBook, minInterval time.Duration) *TickProcessor {
	return &TickProcessor{
		wg:          wg,
		accounts:    accounts,
		risk:        risk,
		book:        book,
		minInterval: minInterval,
	}
}

func (p *TickProcessor) SetNotifier(n Notifier) {
	p.notifier = n
}

func (p *TickProcessor) ProcessTick(ctx context.Context, prices models.PriceMap) (*TickReport, error) {
	ctx, span := otel.Tracer("worker").Start(ctx, "TickProcessor.ProcessTick")
	defer span.End()

	report := &TickReport{}

	triggered, err := p.risk.CheckSlTpForAllTrades(ctx, prices)
	if err != nil {
		return nil, fmt.Errorf("ProcessTick: %w", err)
	}
	report.Triggered = triggered

	accounts, err := p.accounts.ListChallengeAccounts(ctx, models.ChallengeAccountStatusActive, models.ChallengeAccountStatusFunded)
	if err != nil {
		return nil, fmt.Errorf("ProcessTick: failed to list accounts: %w", err)
	}

	for _, acc := range accounts {
		equity, err := p.risk.Equity(ctx, acc, prices)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}

		update, err := p.risk.UpdateRealTimeEquity(ctx, acc.ID, equity)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}

		if update.Expired {
			report.Expired = append(report.Expired, acc.ID)
		}

		if !update.Breached {
			continue
		}

		report.Breached = append(report.Breached, acc.ID)

		closed, err := p.risk.LiquidateAccount(ctx, acc.ID, prices)
		if err != nil {
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Liquidated = append(report.Liquidated, closed...)

		notify(ctx, p.notifier, fmt.Sprintf("challenge account %s (%d) breached drawdown at equity %.2f: %d trades liquidated",
			acc.AccountNumber, acc.ID, equity, len(closed)))
	}

	for _, err := range report.Errors {
		log.WithContext(ctx).Warnf("ProcessTick: %v", err)
	}

	return report, nil
}

// Start processes the book after each update, at most once per minInterval.
func (p *TickProcessor) Start(ctx context.Context, updates <-chan struct{}) {
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		var last time.Time
		for {
			select {
			case <-ctx.Done():
				log.Info("stopping TickProcessor")
				return
			case <-updates:
				if time.Since(last) < p.minInterval {
					continue
				}
				last = time.Now()

				if _, err := p.ProcessTick(ctx, p.book.Snapshot()); err != nil {
					log.Errorf("TickProcessor: %v", err)
				}
			}
		}
	}()
}
