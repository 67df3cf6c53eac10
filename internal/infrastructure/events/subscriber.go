package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Handler receives one raw event payload from a channel
type Handler func(channel string, payload []byte)

// Subscriber fans Redis pub/sub events out to in-process handlers. The
// websocket hub and the snapshot cache invalidator both attach here, so one
// API instance hears bids committed by any other instance.
type Subscriber struct {
	client  *redis.Client
	logger  *zap.Logger
	handler Handler
}

// NewSubscriber creates a subscriber delivering events to handler
func NewSubscriber(client *redis.Client, handler Handler, logger *zap.Logger) *Subscriber {
	return &Subscriber{client: client, logger: logger, handler: handler}
}

// Run subscribes to the auction channels and dispatches until the context
// is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, ChannelBidPlaced, ChannelTransactionState)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handler(msg.Channel, []byte(msg.Payload))
		}
	}
}
