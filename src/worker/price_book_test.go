package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestPriceBook(t *testing.T) {
	t.Run("keys quotes by upper case symbol", func(t *testing.T) {
		book := NewPriceBook()
		at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		book.Update("eurusd", models.Price{Bid: 1.1, Ask: 1.1002}, at)

		price, found := book.Snapshot().Get("EURUSD")
		assert.True(t, found)
		assert.Equal(t, 1.1, price.Bid)
		assert.Equal(t, at, book.UpdatedAt())
	})

	t.Run("snapshot is detached from later updates", func(t *testing.T) {
		book := NewPriceBook()
		book.Update("XAUUSD", models.Price{Bid: 2000, Ask: 2000.5}, time.Now())

		snapshot := book.Snapshot()
		book.Update("XAUUSD", models.Price{Bid: 2010, Ask: 2010.5}, time.Now())

		assert.Equal(t, 2000.0, snapshot["XAUUSD"].Bid)
		assert.Equal(t, 2010.0, book.Snapshot()["XAUUSD"].Bid)
	})
}
