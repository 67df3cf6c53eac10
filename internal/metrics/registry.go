package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the auction domain instruments. It implements the bidding
// service's MetricsCollector interface.
type Registry struct {
	bidsPlaced     metric.Int64Counter
	bidsRejected   metric.Int64Counter
	bidLatency     metric.Float64Histogram
	extensions     metric.Int64Counter
	auctionsClosed metric.Int64Counter
}

// NewRegistry creates the instruments on the global meter provider
func NewRegistry() (*Registry, error) {
	meter := otel.Meter("auction-backend")

	bidsPlaced, err := meter.Int64Counter("auction.bids.placed",
		metric.WithDescription("Bids admitted to the ledger"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	bidsRejected, err := meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Bids rejected at admission, by reason code"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	bidLatency, err := meter.Float64Histogram("auction.bids.latency",
		metric.WithDescription("Bid admission latency from lock acquisition to commit"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}

	extensions, err := meter.Int64Counter("auction.antisnipe.extensions",
		metric.WithDescription("Deadline extensions triggered by late bids"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	auctionsClosed, err := meter.Int64Counter("auction.closed",
		metric.WithDescription("Auctions settled past their deadline"))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return &Registry{
		bidsPlaced:     bidsPlaced,
		bidsRejected:   bidsRejected,
		bidLatency:     bidLatency,
		extensions:     extensions,
		auctionsClosed: auctionsClosed,
	}, nil
}

// RecordBidPlaced counts an admitted bid and its admission latency
func (r *Registry) RecordBidPlaced(ctx context.Context, itemID uuid.UUID, duration time.Duration) {
	r.bidsPlaced.Add(ctx, 1)
	r.bidLatency.Record(ctx, float64(duration.Milliseconds()))
}

// RecordBidRejected counts a rejected bid by reason code
func (r *Registry) RecordBidRejected(ctx context.Context, code string) {
	r.bidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", code)))
}

// RecordExtension counts an anti-sniping extension
func (r *Registry) RecordExtension(ctx context.Context, itemID uuid.UUID) {
	r.extensions.Add(ctx, 1)
}

// RecordAuctionClosed counts a settled auction
func (r *Registry) RecordAuctionClosed(ctx context.Context, sold bool) {
	r.auctionsClosed.Add(ctx, 1, metric.WithAttributes(attribute.Bool("sold", sold)))
}
