package worker

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Notifier delivers operator alerts, such as liquidations and settlement summaries.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

func notify(ctx context.Context, n Notifier, msg string) {
	if n == nil {
		return
	}

	if err := n.Notify(ctx, msg); err != nil {
		log.WithContext(ctx).Warnf("failed to send notification: %v", err)
	}
}
