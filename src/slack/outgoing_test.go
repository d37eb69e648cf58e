package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook(t *testing.T) {
	t.Run("the message is posted as channel text", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.Write([]byte("ok"))
		}))
		defer srv.Close()

		require.NoError(t, NewWebhook(srv.URL).Notify(context.Background(), "account 7 liquidated"))
		assert.Equal(t, "account 7 liquidated", got["text"])
		assert.Equal(t, "in_channel", got["response_type"])
	})

	t.Run("an error status surfaces the message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"msg":"invalid_token"}`))
		}))
		defer srv.Close()

		err := NewWebhook(srv.URL).Notify(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_token")
	})

	t.Run("a plain text error body is kept", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("no_service"))
		}))
		defer srv.Close()

		err := NewWebhook(srv.URL).Notify(context.Background(), "hello")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no_service")
	})
}
