package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bidhaus/auction-backend/internal/service/bidding"
	"github.com/bidhaus/auction-backend/internal/service/settlement"
)

// Redis pub/sub channels carrying auction domain events. Subscribers
// include the websocket live feed and the snapshot cache invalidator.
const (
	ChannelBidPlaced        = "auction.bid_placed"
	ChannelTransactionState = "auction.transaction_state"
)

// Publisher emits domain events over Redis pub/sub. It implements the
// bidding and settlement EventPublisher interfaces.
type Publisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewPublisher creates a Redis event publisher
func NewPublisher(client *redis.Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// PublishBidPlaced announces a committed bid
func (p *Publisher) PublishBidPlaced(ctx context.Context, event bidding.BidPlacedEvent) error {
	return p.publish(ctx, ChannelBidPlaced, event)
}

// PublishTransactionStateChanged announces a settlement transition.
// The bidding service emits the same shape when buy-now or close opens a
// transaction; both satisfy their service's interface through this method.
func (p *Publisher) PublishTransactionStateChanged(ctx context.Context, event settlement.TransactionStateChangedEvent) error {
	return p.publish(ctx, ChannelTransactionState, event)
}

func (p *Publisher) publish(ctx context.Context, channel string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("event marshal failed: %w", err)
	}

	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Error("event publish failed",
			zap.String("channel", channel),
			zap.Error(err))
		return fmt.Errorf("event publish failed: %w", err)
	}
	return nil
}

// biddingPublisher adapts Publisher to the bidding service's event
// interface, which names the transaction event type from its own package
type biddingPublisher struct {
	*Publisher
}

// ForBidding returns the publisher shaped for the bidding service
func (p *Publisher) ForBidding() bidding.EventPublisher {
	return biddingPublisher{p}
}

func (b biddingPublisher) PublishTransactionStateChanged(ctx context.Context, event bidding.TransactionStateChangedEvent) error {
	return b.publish(ctx, ChannelTransactionState, event)
}
