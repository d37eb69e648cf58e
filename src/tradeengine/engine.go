package tradeengine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jiaming2012/backoffice/src/models"
	"github.com/jiaming2012/backoffice/src/utils"
)

const defaultChallengeLeverage = 100.0

// Engine is a paper execution venue: positions fill at the quoted price and
// PnL is the price delta times quantity times contract size.
type Engine struct {
	db            models.IAccountStore
	publisher     models.IEventPublisher
	contractSizes map[string]float64
	now           func() time.Time
}

var _ models.ITradeEngine = (*Engine)(nil)

func NewEngine(db models.IAccountStore, publisher models.IEventPublisher, contractSizeOverrides map[string]float64) *Engine {
	return &Engine{
		db:            db,
		publisher:     publisher,
		contractSizes: contractSizeOverrides,
		now:           time.Now,
	}
}

func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

func (e *Engine) GetContractSize(symbol string) float64 {
	return ContractSize(symbol, e.contractSizes)
}

func (e *Engine) CalculateMargin(quantity, price, leverage, contractSize float64) float64 {
	return CalculateMargin(quantity, price, leverage, contractSize)
}

func validateOpenRequest(req models.OpenTradeRequest) error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("symbol is required: %w", models.ErrValidation)
	}

	if req.Side != models.TradeSideBuy && req.Side != models.TradeSideSell {
		return fmt.Errorf("invalid side %q: %w", req.Side, models.ErrValidation)
	}

	if req.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive: %w", models.ErrValidation)
	}

	return nil
}

func (e *Engine) OpenTrade(ctx context.Context, req models.OpenTradeRequest) (*models.Trade, error) {
	ctx, span := otel.Tracer("tradeengine").Start(ctx, "Engine.OpenTrade")
	defer span.End()

	span.SetAttributes(attribute.String("symbol", req.Symbol), attribute.Int("account_id", int(req.AccountID)))

	if err := validateOpenRequest(req); err != nil {
		return nil, fmt.Errorf("Engine.OpenTrade: %w", err)
	}

	price := req.Ask
	if req.Side == models.TradeSideSell {
		price = req.Bid
	}

	if price <= 0 {
		return nil, fmt.Errorf("Engine.OpenTrade: %s: %w", req.Symbol, models.ErrNoPriceAvailable)
	}

	contractSize := e.GetContractSize(req.Symbol)
	leverage := req.Leverage

	if req.AccountKind == models.AccountKindTrading {
		account, err := e.db.GetAccount(ctx, req.AccountID)
		if err != nil {
			return nil, fmt.Errorf("Engine.OpenTrade: failed to get account: %w", err)
		}

		if !account.IsActive() {
			return nil, fmt.Errorf("Engine.OpenTrade: account %d: %w", account.ID, models.ErrAccountNotActive)
		}

		if leverage <= 0 {
			leverage = account.Leverage
		}

		openTrades, err := e.db.ListOpenTrades(ctx, account.ID, models.AccountKindTrading)
		if err != nil {
			return nil, fmt.Errorf("Engine.OpenTrade: failed to list open trades: %w", err)
		}

		margin := e.CalculateMargin(req.Quantity, price, leverage, contractSize)
		if account.FreeMargin(openTrades).LessThan(decimal.NewFromFloat(margin)) {
			return nil, fmt.Errorf("Engine.OpenTrade: margin %.2f: %w", margin, models.ErrInsufficientFreeMargin)
		}
	}

	if leverage <= 0 {
		leverage = defaultChallengeLeverage
	}

	trade := &models.Trade{
		UserID:            req.UserID,
		AccountID:         req.AccountID,
		AccountKind:       req.AccountKind,
		Symbol:            strings.ToUpper(req.Symbol),
		Segment:           req.Segment,
		Side:              req.Side,
		OrderType:         orderTypeOrDefault(req.OrderType),
		Quantity:          req.Quantity,
		OpenPrice:         price,
		StopLoss:          req.StopLoss,
		TakeProfit:        req.TakeProfit,
		MarginUsed:        e.CalculateMargin(req.Quantity, price, leverage, contractSize),
		ContractSize:      contractSize,
		Leverage:          leverage,
		Status:            models.TradeStatusOpen,
		OpenedAt:          e.now(),
		CopiedFromTradeID: req.CopiedFromTradeID,
	}

	if err := e.db.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("Engine.OpenTrade: failed to create trade: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"trade_id":   trade.ID,
		"account_id": trade.AccountID,
		"symbol":     trade.Symbol,
		"side":       trade.Side,
		"quantity":   trade.Quantity,
	}).Infof("opened trade at %v", trade.OpenPrice)

	e.publish(models.TradeOpenedTopic, models.TradeOpenedEvent{
		EventID:    uuid.New(),
		Trade:       trade,
		OccurredAt:  trade.OpenedAt,
		SpanContext: spanContextOf(ctx),
	})

	return trade, nil
}

func orderTypeOrDefault(orderType string) string {
	if orderType == "" {
		return "MARKET"
	}

	return orderType
}

func (e *Engine) CloseTrade(ctx context.Context, tradeID uint, bid, ask float64, closedBy string) (*models.CloseTradeResult, error) {
	ctx, span := otel.Tracer("tradeengine").Start(ctx, "Engine.CloseTrade")
	defer span.End()

	trade, err := e.db.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("Engine.CloseTrade: failed to get trade: %w", err)
	}

	if !trade.IsOpen() {
		return nil, fmt.Errorf("Engine.CloseTrade: trade %d: %w", tradeID, models.ErrTradeNotOpen)
	}

	closePrice := trade.ExitPrice(models.Price{Bid: bid, Ask: ask})
	if closePrice <= 0 {
		return nil, fmt.Errorf("Engine.CloseTrade: %s: %w", trade.Symbol, models.ErrNoPriceAvailable)
	}

	pnl := trade.PnlAt(closePrice)

	closed, err := e.db.CloseTrade(ctx, tradeID, models.TradeClose{
		ClosePrice:  closePrice,
		RealizedPnl: pnl,
		ClosedBy:    closedBy,
		ClosedAt:    e.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("Engine.CloseTrade: failed to close trade: %w", err)
	}

	log.WithContext(ctx).WithFields(log.Fields{
		"trade_id":  closed.ID,
		"closed_by": closedBy,
		"pnl":       pnl,
	}).Infof("closed trade at %v", closePrice)

	e.publish(models.TradeClosedTopic, models.TradeClosedEvent{
		EventID:     uuid.New(),
		Trade:       closed,
		RealizedPnl: pnl,
		OccurredAt:  *closed.ClosedAt,
		SpanContext: spanContextOf(ctx),
	})

	return &models.CloseTradeResult{Trade: closed, RealizedPnl: pnl}, nil
}

func (e *Engine) ModifyTrade(ctx context.Context, tradeID uint, stopLoss, takeProfit *float64) (*models.Trade, error) {
	trade, err := e.db.UpdateTradeStops(ctx, tradeID, stopLoss, takeProfit)
	if err != nil {
		return nil, fmt.Errorf("Engine.ModifyTrade: %w", err)
	}

	e.publish(models.TradeModifiedTopic, models.TradeModifiedEvent{
		EventID:     uuid.New(),
		Trade:       trade,
		StopLoss:    stopLoss,
		TakeProfit:  takeProfit,
		OccurredAt:  e.now(),
		SpanContext: spanContextOf(ctx),
	})

	return trade, nil
}

func spanContextOf(ctx context.Context) []byte {
	data, err := utils.EncodeSpanContext(ctx)
	if err != nil {
		log.WithContext(ctx).Warnf("Engine: failed to serialize trace context: %v", err)
		return nil
	}

	return data
}

func (e *Engine) publish(topic string, event interface{}) {
	if e.publisher == nil {
		return
	}

	e.publisher.Publish(topic, event)
}
