package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// ProxyBid is one entry in the append-only bid ledger: a bidder's declared
// maximum at a point in time. Entries are never mutated. A bidder raising
// their ceiling appends a new entry that supersedes the old one for
// resolution; the full history stays on record for audit and UI.
type ProxyBid struct {
	ID        uuid.UUID    `json:"id"`
	ItemID    uuid.UUID    `json:"item_id"`
	BidderID  uuid.UUID    `json:"bidder_id"`
	MaxAmount values.Money `json:"max_amount"`
	PlacedAt  time.Time    `json:"placed_at"`
}

// NewProxyBid creates a ledger entry stamped with the given admission time.
// Admission order at the item lock decides placedAt, not client timestamps.
func NewProxyBid(itemID, bidderID uuid.UUID, maxAmount values.Money, placedAt time.Time) (*ProxyBid, error) {
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("item ID cannot be nil")
	}
	if bidderID == uuid.Nil {
		return nil, fmt.Errorf("bidder ID cannot be nil")
	}
	if !maxAmount.IsPositive() {
		return nil, fmt.Errorf("max amount must be positive")
	}

	return &ProxyBid{
		ID:        uuid.New(),
		ItemID:    itemID,
		BidderID:  bidderID,
		MaxAmount: maxAmount,
		PlacedAt:  placedAt,
	}, nil
}

// LatestPerBidder folds the ledger down to each bidder's standing proxy:
// the last entry in ledger order wins. Input must be in append order.
// The returned slice preserves the order in which each bidder's superseding
// entry was appended, so tie-breaks on PlacedAt stay deterministic.
func LatestPerBidder(ledger []*ProxyBid) []*ProxyBid {
	latest := make(map[uuid.UUID]int, len(ledger))
	out := make([]*ProxyBid, 0, len(ledger))

	for _, b := range ledger {
		if idx, seen := latest[b.BidderID]; seen {
			out[idx] = nil
		}
		latest[b.BidderID] = len(out)
		out = append(out, b)
	}

	compact := out[:0]
	for _, b := range out {
		if b != nil {
			compact = append(compact, b)
		}
	}
	return compact
}

// ActiveMaxFor returns the bidder's standing maximum, or nil if the bidder
// has no entry in the ledger
func ActiveMaxFor(ledger []*ProxyBid, bidderID uuid.UUID) *values.Money {
	var max *values.Money
	for _, b := range ledger {
		if b.BidderID == bidderID {
			amount := b.MaxAmount
			max = &amount
		}
	}
	return max
}

// ExcludeBanned filters out entries from banned bidders
func ExcludeBanned(ledger []*ProxyBid, banned map[uuid.UUID]struct{}) []*ProxyBid {
	if len(banned) == 0 {
		return ledger
	}

	out := make([]*ProxyBid, 0, len(ledger))
	for _, b := range ledger {
		if _, isBanned := banned[b.BidderID]; !isBanned {
			out = append(out, b)
		}
	}
	return out
}
