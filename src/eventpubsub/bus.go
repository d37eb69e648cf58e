package eventpubsub

import (
	"fmt"

	"github.com/asaskevich/EventBus"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/backoffice/src/models"
)

// Bus carries trade lifecycle events from the trade engine to the consumers.
type Bus struct {
	name string
	bus  EventBus.Bus
}

var _ models.IEventPublisher = (*Bus)(nil)

func NewBus(name string) *Bus {
	return &Bus{
		name: name,
		bus:  EventBus.New(),
	}
}

func (b *Bus) Publish(topic string, event interface{}) {
	log.Debugf("[%v] Published to topic %s", b.name, topic)
	b.bus.Publish(topic, event)
}

// Subscribe registers an asynchronous handler. Handlers of one topic run
// concurrently with each other.
func (b *Bus) Subscribe(subscriberName string, topic string, callbackFn interface{}) error {
	if err := b.bus.SubscribeAsync(topic, callbackFn, false); err != nil {
		return fmt.Errorf("Bus.Subscribe: [%v] failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Infof("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}

// SubscribeSync registers a handler that runs inside Publish.
func (b *Bus) SubscribeSync(subscriberName string, topic string, callbackFn interface{}) error {
	if err := b.bus.Subscribe(topic, callbackFn); err != nil {
		return fmt.Errorf("Bus.SubscribeSync: [%v] failed to subscribe to %s: %w", subscriberName, topic, err)
	}

	log.Infof("[%v] Subscribed to topic %s", subscriberName, topic)
	return nil
}

// WaitAsync blocks until every asynchronous handler has returned.
func (b *Bus) WaitAsync() {
	b.bus.WaitAsync()
}
