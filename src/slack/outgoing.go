package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type errorDTO struct {
	Msg string `json:"msg"`
}

// Webhook posts operational messages to a Slack incoming webhook.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (w *Webhook) Notify(ctx context.Context, msg string) error {
	body := map[string]interface{}{
		"text":          msg,
		"response_type": "in_channel",
	}

	if _, err := PostJSON(ctx, w.client, w.url, body); err != nil {
		return fmt.Errorf("Webhook.Notify: %w", err)
	}

	return nil
}

func PostJSON(ctx context.Context, client *http.Client, url string, body map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (Marshal): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("PostJSON (NewRequest): %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (Do): %w", err)
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("PostJSON (ReadAll): %w", err)
	}

	if res.StatusCode >= 400 {
		var errDTO errorDTO
		if jsonErr := json.Unmarshal(bodyBytes, &errDTO); jsonErr != nil || errDTO.Msg == "" {
			return nil, fmt.Errorf("PostJSON: status %d: %s", res.StatusCode, string(bodyBytes))
		}

		return nil, fmt.Errorf("PostJSON: status %d: %v", res.StatusCode, errDTO.Msg)
	}

	return bodyBytes, nil
}
