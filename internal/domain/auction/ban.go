package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ban excludes a bidder from one item's auction. From the moment a ban is
// recorded the bidder's ledger entries stop counting toward resolution;
// banning the current leader therefore forces an immediate recompute.
type Ban struct {
	ItemID    uuid.UUID `json:"item_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBan records a seller banning a bidder from their item
func NewBan(itemID, bidderID, sellerID uuid.UUID, reason string) (*Ban, error) {
	if itemID == uuid.Nil {
		return nil, fmt.Errorf("item ID cannot be nil")
	}
	if bidderID == uuid.Nil {
		return nil, fmt.Errorf("bidder ID cannot be nil")
	}
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("seller ID cannot be nil")
	}
	if bidderID == sellerID {
		return nil, fmt.Errorf("seller cannot ban themselves")
	}

	return &Ban{
		ItemID:    itemID,
		BidderID:  bidderID,
		SellerID:  sellerID,
		Reason:    reason,
		CreatedAt: clock.Now(),
	}, nil
}
