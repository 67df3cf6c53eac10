package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// Item is the durable pricing state of one auction listing. All mutation
// goes through BidService under the per-item lock; the entity itself only
// enforces local invariants (monotonic price, legal status transitions).
type Item struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Title    string    `json:"title"`

	StartPrice  values.Money  `json:"start_price"`
	StepPrice   values.Money  `json:"step_price"`
	BuyNowPrice *values.Money `json:"buy_now_price,omitempty"`

	CurrentPrice    values.Money `json:"current_price"`
	CurrentLeaderID *uuid.UUID   `json:"current_leader_id,omitempty"`

	EndTime time.Time `json:"end_time"`
	Status  Status    `json:"status"`

	AllowUnratedBidders   bool `json:"allow_unrated_bidders"`
	AllowLowRatingBidders bool `json:"allow_low_rating_bidders"`

	// New-listing highlight badge window, set once at creation
	HighlightedUntil time.Time `json:"highlighted_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusActive Status = iota
	StatusSold
	StatusExpired
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSold:
		return "sold"
	case StatusExpired:
		return "expired"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to a Status
func ParseStatus(s string) Status {
	switch s {
	case "active":
		return StatusActive
	case "sold":
		return StatusSold
	case "expired":
		return StatusExpired
	case "removed":
		return StatusRemoved
	default:
		return StatusActive
	}
}

// NewItem creates a listing with its opening pricing state
func NewItem(sellerID uuid.UUID, title string, startPrice, stepPrice values.Money, buyNowPrice *values.Money, endTime time.Time, highlightWindow time.Duration) (*Item, error) {
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("seller ID cannot be nil")
	}
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if startPrice.IsNegative() {
		return nil, fmt.Errorf("start price cannot be negative")
	}
	if !stepPrice.IsPositive() {
		return nil, fmt.Errorf("step price must be positive")
	}
	if stepPrice.Currency() != startPrice.Currency() {
		return nil, fmt.Errorf("step price currency %s does not match start price currency %s", stepPrice.Currency(), startPrice.Currency())
	}
	if buyNowPrice != nil && buyNowPrice.Currency() != startPrice.Currency() {
		return nil, fmt.Errorf("buy-now price currency %s does not match start price currency %s", buyNowPrice.Currency(), startPrice.Currency())
	}
	if buyNowPrice != nil && !buyNowPrice.GreaterThan(startPrice) {
		return nil, fmt.Errorf("buy-now price must exceed start price")
	}

	now := clock.Now()
	if !endTime.After(now) {
		return nil, fmt.Errorf("end time must be in the future")
	}

	return &Item{
		ID:               uuid.New(),
		SellerID:         sellerID,
		Title:            title,
		StartPrice:       startPrice,
		StepPrice:        stepPrice,
		BuyNowPrice:      buyNowPrice,
		CurrentPrice:     startPrice,
		EndTime:          endTime,
		Status:           StatusActive,
		HighlightedUntil: now.Add(highlightWindow),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsOpenForBidding reports whether the item still admits bids at the given
// instant. Callers must re-check this after acquiring the item lock, since
// the clock may cross EndTime while a bid waits for the lock.
func (i *Item) IsOpenForBidding(now time.Time) bool {
	return i.Status == StatusActive && now.Before(i.EndTime)
}

// ApplyResolution writes a recomputed price and leader onto the item.
// The current price never decreases over the item's lifetime; a ban that
// demotes the leader keeps the already-reached price floor.
func (i *Item) ApplyResolution(res Resolution) error {
	if i.Status != StatusActive {
		return fmt.Errorf("cannot reprice item in status %s", i.Status)
	}

	price := res.CurrentPrice
	if price.LessThan(i.CurrentPrice) {
		price = i.CurrentPrice
	}

	i.CurrentPrice = price
	i.CurrentLeaderID = res.LeaderID
	i.UpdatedAt = clock.Now()
	return nil
}

// ExtendEndTime pushes out the auction deadline (anti-sniping)
func (i *Item) ExtendEndTime(newEnd time.Time) error {
	if i.Status != StatusActive {
		return fmt.Errorf("cannot extend item in status %s", i.Status)
	}
	if newEnd.Before(i.EndTime) {
		return fmt.Errorf("end time cannot move backwards")
	}

	i.EndTime = newEnd
	i.UpdatedAt = clock.Now()
	return nil
}

// MarkSold closes the item with a winner at the given final price
func (i *Item) MarkSold(winnerID uuid.UUID, finalPrice values.Money) error {
	if i.Status != StatusActive {
		return fmt.Errorf("cannot sell item in status %s", i.Status)
	}
	if winnerID == uuid.Nil {
		return fmt.Errorf("winner ID cannot be nil")
	}
	if finalPrice.LessThan(i.CurrentPrice) {
		return fmt.Errorf("final price cannot be below current price")
	}

	i.Status = StatusSold
	i.CurrentPrice = finalPrice
	i.CurrentLeaderID = &winnerID
	i.UpdatedAt = clock.Now()
	return nil
}

// MarkExpired closes the item without a winner
func (i *Item) MarkExpired() error {
	if i.Status != StatusActive {
		return fmt.Errorf("cannot expire item in status %s", i.Status)
	}

	i.Status = StatusExpired
	i.UpdatedAt = clock.Now()
	return nil
}

// Remove takes the item off the marketplace; in-flight bids become void
func (i *Item) Remove() error {
	if i.Status == StatusSold {
		return fmt.Errorf("cannot remove a sold item")
	}

	i.Status = StatusRemoved
	i.CurrentLeaderID = nil
	i.UpdatedAt = clock.Now()
	return nil
}
