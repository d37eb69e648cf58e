package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuoteServer(t *testing.T, subscriptions chan<- SubscribeDTO, messages ...string) *httptest.Server {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer c.Close()

		var sub SubscribeDTO
		if err := c.ReadJSON(&sub); err != nil {
			return
		}
		subscriptions <- sub

		for _, msg := range messages {
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}

		// hold the connection until the client goes away
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestPriceFeed(t *testing.T) {
	t.Run("subscribes and fills the book from quote messages", func(t *testing.T) {
		subscriptions := make(chan SubscribeDTO, 1)
		srv := newQuoteServer(t, subscriptions,
			`{"type":"heartbeat"}`,
			`{"type":"quote","symbol":"eurusd","bid":1.1,"ask":1.1002}`,
			`{"symbol":"XAUUSD","bid":2000,"ask":2000.5,"timestamp":"2024-03-01T10:00:00Z"}`,
		)

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		book := NewPriceBook()
		feed := NewPriceFeed(&wg, "ws"+strings.TrimPrefix(srv.URL, "http"), []string{"EURUSD", "XAUUSD"}, book)

		feed.Start(ctx)

		select {
		case sub := <-subscriptions:
			assert.Equal(t, "subscribe", sub.Type)
			assert.Equal(t, []string{"EURUSD", "XAUUSD"}, sub.Symbols)
		case <-time.After(5 * time.Second):
			t.Fatal("no subscription received")
		}

		require.Eventually(t, func() bool {
			return len(book.Snapshot()) == 2
		}, 5*time.Second, 10*time.Millisecond)

		prices := book.Snapshot()
		assert.Equal(t, 1.1002, prices["EURUSD"].Ask)
		assert.Equal(t, 2000.0, prices["XAUUSD"].Bid)

		select {
		case <-feed.Updates():
		default:
			t.Fatal("expected an update signal")
		}

		cancel()
		wg.Wait()
	})
}

func TestPriceFeedHandleMessage(t *testing.T) {
	newFeed := func() *PriceFeed {
		return NewPriceFeed(&sync.WaitGroup{}, "ws://unused", nil, NewPriceBook())
	}

	t.Run("rejects malformed json", func(t *testing.T) {
		assert.Error(t, newFeed().handleMessage([]byte("{")))
	})

	t.Run("rejects a quote without prices", func(t *testing.T) {
		feed := newFeed()
		assert.Error(t, feed.handleMessage([]byte(`{"symbol":"EURUSD","bid":0,"ask":0}`)))
		assert.Empty(t, feed.book.Snapshot())
	})

	t.Run("ignores other message types", func(t *testing.T) {
		feed := newFeed()
		assert.NoError(t, feed.handleMessage([]byte(`{"type":"status","symbol":"EURUSD","bid":1,"ask":1}`)))
		assert.Empty(t, feed.book.Snapshot())
	})

	t.Run("coalesces signals while nobody reads", func(t *testing.T) {
		feed := newFeed()
		require.NoError(t, feed.handleMessage([]byte(`{"symbol":"EURUSD","bid":1.1,"ask":1.1}`)))
		require.NoError(t, feed.handleMessage([]byte(`{"symbol":"EURUSD","bid":1.2,"ask":1.2}`)))

		assert.Len(t, feed.updates, 1)
		assert.Equal(t, 1.2, feed.book.Snapshot()["EURUSD"].Bid)
	})
}
