package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/transaction"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// Service is the proxy bidding engine surface
type Service interface {
	// CreateListing opens a new auction item
	CreateListing(ctx context.Context, req *CreateListingRequest) (*auction.Item, error)
	// PlaceBid admits a proxy bid and returns the authoritative outcome
	PlaceBid(ctx context.Context, req *PlaceBidRequest) (*PlaceBidResult, error)
	// GetMyAutoBid returns the caller's standing maximum on an item, if any
	GetMyAutoBid(ctx context.Context, itemID, bidderID uuid.UUID) (*values.Money, error)
	// BanBidder excludes a bidder from an item and recomputes the leader
	BanBidder(ctx context.Context, itemID, bidderID, actingSellerID uuid.UUID, reason string) error
	// GetBannedStatus reports whether a bidder is banned from an item
	GetBannedStatus(ctx context.Context, itemID, bidderID uuid.UUID) (bool, error)
	// BuyNow closes the item immediately at its buy-now price
	BuyNow(ctx context.Context, itemID, bidderID uuid.UUID) (*transaction.Transaction, error)
	// GetBidHistory renders the full append-only ledger for an item
	GetBidHistory(ctx context.Context, itemID uuid.UUID) ([]*auction.ProxyBid, error)
	// GetItem returns the item's current pricing state
	GetItem(ctx context.Context, itemID uuid.UUID) (*auction.Item, error)
	// ListSellerItems returns the seller's open listings
	ListSellerItems(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error)
	// CloseAuction settles one item past its deadline
	CloseAuction(ctx context.Context, itemID uuid.UUID) (*transaction.Transaction, error)
	// SweepExpired settles every Active item past its deadline
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ItemRepository defines the interface for auction item storage
type ItemRepository interface {
	Create(ctx context.Context, item *auction.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error)
	Update(ctx context.Context, item *auction.Item) error
	// ListExpiredActive returns Active items whose end time has passed
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*auction.Item, error)
	// ListActiveBySeller returns a seller's open listings
	ListActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error)
}

// LedgerRepository defines the interface for the append-only bid ledger
type LedgerRepository interface {
	Append(ctx context.Context, bid *auction.ProxyBid) error
	// ListByItem returns the ledger in append order
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*auction.ProxyBid, error)
}

// BanRepository defines the interface for per-item ban storage
type BanRepository interface {
	Add(ctx context.Context, ban *auction.Ban) error
	IsBanned(ctx context.Context, itemID, bidderID uuid.UUID) (bool, error)
	BannedSet(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]struct{}, error)
}

// TransactionRepository creates settlement transactions at auction close
type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
}

// Transactor runs a function inside one durable storage transaction.
// The item lock is only released after the commit, so readers never see
// a resolved-but-unpersisted state.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuctionSettings is the operator-tunable policy snapshot, read fresh on
// every bid since an admin may change it at any time
type AuctionSettings struct {
	TriggerWindow   time.Duration
	Extension       time.Duration
	HighlightWindow time.Duration
}

// SettingsProvider supplies the current admin settings
type SettingsProvider interface {
	AuctionSettings(ctx context.Context) (AuctionSettings, error)
}

// RatingSummary is a bidder's rating totals from the identity collaborator
type RatingSummary struct {
	Positive int
	Negative int
}

// Total returns the number of ratings received
func (r RatingSummary) Total() int {
	return r.Positive + r.Negative
}

// PositiveRatio returns the share of positive ratings, zero when unrated
func (r RatingSummary) PositiveRatio() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Positive) / float64(r.Total())
}

// BidderDirectory resolves bidder reputation for admission checks
type BidderDirectory interface {
	RatingSummary(ctx context.Context, bidderID uuid.UUID) (RatingSummary, error)
}

// EventPublisher emits domain events for external collaborators
type EventPublisher interface {
	PublishBidPlaced(ctx context.Context, event BidPlacedEvent) error
	PublishTransactionStateChanged(ctx context.Context, event TransactionStateChangedEvent) error
}

// MetricsCollector defines the interface for bidding metrics
type MetricsCollector interface {
	RecordBidPlaced(ctx context.Context, itemID uuid.UUID, duration time.Duration)
	RecordBidRejected(ctx context.Context, code string)
	RecordExtension(ctx context.Context, itemID uuid.UUID)
	RecordAuctionClosed(ctx context.Context, sold bool)
}

// CreateListingRequest describes a new auction listing
type CreateListingRequest struct {
	SellerID              uuid.UUID
	Title                 string
	StartPrice            values.Money
	StepPrice             values.Money
	BuyNowPrice           *values.Money
	EndTime               time.Time
	AllowUnratedBidders   bool
	AllowLowRatingBidders bool
}

// PlaceBidRequest represents a bid admission request
type PlaceBidRequest struct {
	ItemID    uuid.UUID
	BidderID  uuid.UUID
	MaxAmount values.Money
}

// PlaceBidResult is the user-visible outcome of an admitted bid
type PlaceBidResult struct {
	CurrentPrice values.Money `json:"current_price"`
	IsLeader     bool         `json:"is_leader"`
	Extended     bool         `json:"extended"`
	EndTime      time.Time    `json:"end_time"`
}

// BidPlacedEvent is emitted after every committed bid
type BidPlacedEvent struct {
	ItemID   uuid.UUID    `json:"item_id"`
	NewPrice values.Money `json:"new_price"`
	LeaderID *uuid.UUID   `json:"leader_id,omitempty"`
	Extended bool         `json:"extended"`
	EndTime  time.Time    `json:"end_time"`
}

// TransactionStateChangedEvent is emitted when settlement state moves
type TransactionStateChangedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Status        string    `json:"status"`
}
