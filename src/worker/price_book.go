package worker

import (
	"strings"
	"sync"
	"time"

	"github.com/jiaming2012/backoffice/src/models"
)

// PriceBook holds the latest quote of every symbol seen on the feed.
type PriceBook struct {
	mu        sync.RWMutex
	prices    models.PriceMap
	updatedAt time.Time
}

func NewPriceBook() *PriceBook {
	return &PriceBook{prices: make(models.PriceMap)}
}

func (b *PriceBook) Update(symbol string, price models.Price, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prices[strings.ToUpper(symbol)] = price
	b.updatedAt = at
}

// Snapshot returns a copy that is safe to read while the feed keeps updating.
func (b *PriceBook) Snapshot() models.PriceMap {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(models.PriceMap, len(b.prices))
	for symbol, price := range b.prices {
		out[symbol] = price
	}

	return out
}

func (b *PriceBook) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.updatedAt
}
