package eventpubsub

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/backoffice/src/models"
)

func TestBus(t *testing.T) {
	t.Run("delivers events to async subscribers", func(t *testing.T) {
		bus := NewBus("test")

		var mu sync.Mutex
		var received []uint
		err := bus.Subscribe("recorder", models.TradeOpenedTopic, func(ev models.TradeOpenedEvent) {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, ev.Trade.ID)
		})
		require.NoError(t, err)

		trade := &models.Trade{}
		trade.ID = 7
		bus.Publish(models.TradeOpenedTopic, models.TradeOpenedEvent{Trade: trade})
		bus.WaitAsync()

		assert.Equal(t, []uint{7}, received)
	})

	t.Run("runs sync subscribers inside publish", func(t *testing.T) {
		bus := NewBus("test")

		calls := 0
		require.NoError(t, bus.SubscribeSync("counter", models.TradeClosedTopic, func(models.TradeClosedEvent) { calls++ }))

		bus.Publish(models.TradeClosedTopic, models.TradeClosedEvent{})
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects a handler that is not a function", func(t *testing.T) {
		bus := NewBus("test")

		err := bus.Subscribe("broken", models.TradeClosedTopic, 42)
		assert.Error(t, err)
	})
}
