package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bidhaus/auction-backend/internal/domain/values"
	"github.com/bidhaus/auction-backend/internal/service/bidding"
)

func TestPublisherAndSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	var (
		mu       sync.Mutex
		received []string
		payloads [][]byte
	)
	ready := make(chan struct{}, 2)

	sub := NewSubscriber(client, func(channel string, payload []byte) {
		mu.Lock()
		received = append(received, channel)
		payloads = append(payloads, payload)
		mu.Unlock()
		ready <- struct{}{}
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	// Give the subscription a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	pub := NewPublisher(client, zap.NewNop())
	itemID := uuid.New()
	leader := uuid.New()

	err := pub.ForBidding().PublishBidPlaced(ctx, bidding.BidPlacedEvent{
		ItemID:   itemID,
		NewPrice: values.MustNewMoneyFromFloat(130, values.USD),
		LeaderID: &leader,
		EndTime:  time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	err = pub.ForBidding().PublishTransactionStateChanged(ctx, bidding.TransactionStateChangedEvent{
		TransactionID: uuid.New(),
		ItemID:        itemID,
		Status:        "pending_payment",
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{ChannelBidPlaced, ChannelTransactionState}, received)

	for i, channel := range received {
		if channel != ChannelBidPlaced {
			continue
		}
		var event bidding.BidPlacedEvent
		require.NoError(t, json.Unmarshal(payloads[i], &event))
		assert.Equal(t, itemID, event.ItemID)
		require.NotNil(t, event.LeaderID)
		assert.Equal(t, leader, *event.LeaderID)
	}
}
