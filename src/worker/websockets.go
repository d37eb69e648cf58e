package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

const (
	readTimeout    = 30 * time.Second
	reconnectDelay = 2 * time.Second
)

type QuoteDTO struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Timestamp time.Time `json:"timestamp"`
}

type SubscribeDTO struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
}

// PriceFeed streams quotes from a websocket into a PriceBook and signals every update.
type PriceFeed struct {
	wg      *sync.WaitGroup
	url     string
	symbols []string
	book    *PriceBook
	updates chan struct{}
	dialer  *websocket.Dialer
}

func NewPriceFeed(wg *sync.WaitGroup, url string, symbols []string, book *PriceBook) *PriceFeed {
	return &PriceFeed{
		wg:      wg,
		url:     url,
		symbols: symbols,
		book:    book,
		updates: make(chan struct{}, 1),
		dialer:  websocket.DefaultDialer,
	}
}

// Updates receives a signal after quotes changed. Signals coalesce while nobody reads.
func (f *PriceFeed) Updates() <-chan struct{} {
	return f.updates
}

func (f *PriceFeed) connect(ctx context.Context) (*websocket.Conn, error) {
	log.Infof("connecting to %s", f.url)

	c, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("PriceFeed: failed to dial %s: %w", f.url, err)
	}

	payload := SubscribeDTO{Type: "subscribe", Symbols: f.symbols}
	if err := c.WriteJSON(payload); err != nil {
		c.Close()
		return nil, fmt.Errorf("PriceFeed: failed to write subscription %v: %w", payload, err)
	}

	return c, nil
}

func (f *PriceFeed) handleMessage(message []byte) error {
	var quote QuoteDTO
	if err := json.Unmarshal(message, &quote); err != nil {
		return fmt.Errorf("PriceFeed: failed to unmarshal json: %w", err)
	}

	if quote.Type != "" && quote.Type != "quote" {
		return nil
	}

	if quote.Symbol == "" || (quote.Bid <= 0 && quote.Ask <= 0) {
		return fmt.Errorf("PriceFeed: invalid quote %+v", quote)
	}

	at := quote.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}

	f.book.Update(quote.Symbol, models.Price{Bid: quote.Bid, Ask: quote.Ask}, at)

	select {
	case f.updates <- struct{}{}:
	default:
	}

	return nil
}

// Start reads quotes until ctx is done, reconnecting after read errors.
func (f *PriceFeed) Start(ctx context.Context) {
	f.wg.Add(1)

	go func() {
		defer f.wg.Done()

		for {
			c, err := f.connect(ctx)
			if err != nil {
				log.Errorf("PriceFeed: %v", err)
				if !sleep(ctx, reconnectDelay) {
					log.Info("stopping PriceFeed")
					return
				}
				continue
			}

			f.read(ctx, c)

			if ctx.Err() != nil || !sleep(ctx, reconnectDelay) {
				log.Info("stopping PriceFeed")
				return
			}
		}
	}()
}

// read consumes one connection until it fails or ctx is done.
func (f *PriceFeed) read(ctx context.Context, c *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		c.Close()
	}()

	for {
		c.SetReadDeadline(time.Now().UTC().Add(readTimeout))
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Errorf("PriceFeed: ReadMessage(): %v", err)
			}
			return
		}

		if err := f.handleMessage(message); err != nil {
			log.Warn(err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
