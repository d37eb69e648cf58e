package eventconsumers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/jiaming2012/backoffice/src/challenge"
	"github.com/jiaming2012/backoffice/src/copytrade"
	"github.com/jiaming2012/backoffice/src/eventpubsub"
	"github.com/jiaming2012/backoffice/src/ibcommission"
	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/utils"
)

type MasterDirectory interface {
	GetMasterTraderByAccount(ctx context.Context, accountID uint) (*models.MasterTrader, error)
}

type CopyReplicator interface {
	CopyTradeToFollowers(ctx context.Context, masterTrade *models.Trade, masterID uint) ([]copytrade.FollowerCopyResult, error)
	CloseFollowerTrades(ctx context.Context, masterTradeID uint, masterClosePrice float64) ([]copytrade.CopyActionResult, error)
	MirrorSlTpModification(ctx context.Context, masterTradeID uint, stopLoss, takeProfit *float64) ([]copytrade.CopyActionResult, error)
	SyncFollowerClose(ctx context.Context, followerTrade *models.Trade) error
}

type CommissionWaterfall interface {
	ProcessTradeCommission(ctx context.Context, trade *models.Trade) (*ibcommission.TradeCommissionResult, error)
}

type ChallengeHooks interface {
	OnTradeOpened(ctx context.Context, trade *models.Trade) (*models.ChallengeAccount, error)
	OnTradeClosed(ctx context.Context, trade *models.Trade, pnl float64) (*challenge.TradeClosedOutcome, error)
}

// TradeLifecycleConsumer routes trade engine events to the copy replicator, the
// commission waterfall and the challenge risk engine.
type TradeLifecycleConsumer struct {
	wg         *sync.WaitGroup
	masters    MasterDirectory
	copier     CopyReplicator
	waterfall  CommissionWaterfall
	challenges ChallengeHooks
}

func NewTradeLifecycleConsumer(wg *sync.WaitGroup, masters MasterDirectory, copier CopyReplicator, waterfall CommissionWaterfall, challenges ChallengeHooks) *TradeLifecycleConsumer {
	return &TradeLifecycleConsumer{
		wg:         wg,
		masters:    masters,
		copier:     copier,
		waterfall:  waterfall,
		challenges: challenges,
	}
}

// Start subscribes the consumer to the trade topics of the bus.
func (c *TradeLifecycleConsumer) Start(ctx context.Context, bus *eventpubsub.Bus) error {
	subscriptions := map[string]interface{}{
		models.TradeOpenedTopic: func(ev models.TradeOpenedEvent) {
			c.run(ctx, ev.SpanContext, "HandleTradeOpened", func(ctx context.Context) error { return c.HandleTradeOpened(ctx, ev) })
		},
		models.TradeClosedTopic: func(ev models.TradeClosedEvent) {
			c.run(ctx, ev.SpanContext, "HandleTradeClosed", func(ctx context.Context) error { return c.HandleTradeClosed(ctx, ev) })
		},
		models.TradeModifiedTopic: func(ev models.TradeModifiedEvent) {
			c.run(ctx, ev.SpanContext, "HandleTradeModified", func(ctx context.Context) error { return c.HandleTradeModified(ctx, ev) })
		},
	}

	for topic, handler := range subscriptions {
		if err := bus.Subscribe("TradeLifecycleConsumer", topic, handler); err != nil {
			return fmt.Errorf("TradeLifecycleConsumer.Start: %w", err)
		}
	}

	return nil
}

func (c *TradeLifecycleConsumer) run(ctx context.Context, spanContext []byte, name string, fn func(ctx context.Context) error) {
	c.wg.Add(1)
	defer c.wg.Done()

	ctx, err := utils.ContextWithEncodedSpan(ctx, spanContext)
	if err != nil {
		log.WithContext(ctx).Warnf("TradeLifecycleConsumer.%s: failed to restore trace context: %v", name, err)
	}

	ctx, span := otel.Tracer("eventconsumers").Start(ctx, "TradeLifecycleConsumer."+name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		log.WithContext(ctx).Errorf("TradeLifecycleConsumer.%s: %v", name, err)
	}
}

// masterOf returns the active master owning the trade's account, or nil.
func (c *TradeLifecycleConsumer) masterOf(ctx context.Context, trade *models.Trade) (*models.MasterTrader, error) {
	if trade.AccountKind != models.AccountKindTrading || trade.IsCopy() {
		return nil, nil
	}

	master, err := c.masters.GetMasterTraderByAccount(ctx, trade.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up master of account %d: %w", trade.AccountID, err)
	}

	return master, nil
}

func (c *TradeLifecycleConsumer) HandleTradeOpened(ctx context.Context, ev models.TradeOpenedEvent) error {
	trade := ev.Trade

	if trade.AccountKind == models.AccountKindChallenge {
		if _, err := c.challenges.OnTradeOpened(ctx, trade); err != nil {
			return fmt.Errorf("HandleTradeOpened: %w", err)
		}
		return nil
	}

	master, err := c.masterOf(ctx, trade)
	if err != nil {
		return fmt.Errorf("HandleTradeOpened: %w", err)
	}

	if master == nil || !master.IsActive() {
		return nil
	}

	results, err := c.copier.CopyTradeToFollowers(ctx, trade, master.ID)
	if err != nil {
		return fmt.Errorf("HandleTradeOpened: %w", err)
	}

	log.WithContext(ctx).Debugf("trade %d replicated to %d followers", trade.ID, len(results))

	return nil
}

// HandleTradeClosed runs every close hook. A failing hook does not stop the others.
func (c *TradeLifecycleConsumer) HandleTradeClosed(ctx context.Context, ev models.TradeClosedEvent) error {
	trade := ev.Trade

	if trade.AccountKind == models.AccountKindChallenge {
		if _, err := c.challenges.OnTradeClosed(ctx, trade, ev.RealizedPnl); err != nil {
			return fmt.Errorf("HandleTradeClosed: %w", err)
		}
		return nil
	}

	var errs []error

	if trade.IsCopy() {
		if err := c.copier.SyncFollowerClose(ctx, trade); err != nil {
			errs = append(errs, err)
		}
	} else {
		master, err := c.masterOf(ctx, trade)
		if err != nil {
			errs = append(errs, err)
		} else if master != nil {
			if _, err := c.copier.CloseFollowerTrades(ctx, trade.ID, trade.ClosePrice); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if _, err := c.waterfall.ProcessTradeCommission(ctx, trade); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("HandleTradeClosed: trade %d: %w", trade.ID, err)
	}

	return nil
}

func (c *TradeLifecycleConsumer) HandleTradeModified(ctx context.Context, ev models.TradeModifiedEvent) error {
	master, err := c.masterOf(ctx, ev.Trade)
	if err != nil {
		return fmt.Errorf("HandleTradeModified: %w", err)
	}

	if master == nil {
		return nil
	}

	if _, err := c.copier.MirrorSlTpModification(ctx, ev.Trade.ID, ev.StopLoss, ev.TakeProfit); err != nil {
		return fmt.Errorf("HandleTradeModified: %w", err)
	}

	return nil
}
