package auction

import (
	"sort"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// Resolution is the authoritative pricing outcome for one item: the price
// the marketplace displays and the bidder currently winning at it.
type Resolution struct {
	CurrentPrice values.Money
	LeaderID     *uuid.UUID
	SecondMax    *values.Money
}

// Resolve computes the current price and leader from the active proxy bids
// on an item. Classic English-auction proxy resolution:
//
//   - zero standing bids: price = startPrice, no leader
//   - one standing bid: price = startPrice, that bidder leads (the price
//     only rises once a second competitor appears)
//   - two or more: the highest maximum leads; the price is the second
//     maximum plus one step, capped at the leader's own maximum
//
// Equal maximums go to the earlier bid, so a newcomer matching the leader's
// ceiling exactly does not dethrone them.
//
// Resolve is pure and never rejects: admission checks (minimum increments,
// bans, deadlines) belong to the caller. The ledger must be in append order
// and already filtered of banned bidders.
func Resolve(ledger []*ProxyBid, stepPrice, startPrice values.Money) Resolution {
	active := LatestPerBidder(ledger)

	switch len(active) {
	case 0:
		return Resolution{CurrentPrice: startPrice}
	case 1:
		leader := active[0].BidderID
		return Resolution{CurrentPrice: startPrice, LeaderID: &leader}
	}

	sort.SliceStable(active, func(i, j int) bool {
		cmp := active[i].MaxAmount.Compare(active[j].MaxAmount)
		if cmp != 0 {
			return cmp > 0
		}
		return active[i].PlacedAt.Before(active[j].PlacedAt)
	})

	highest, second := active[0], active[1]
	leader := highest.BidderID
	secondMax := second.MaxAmount

	price := second.MaxAmount.MustAdd(stepPrice).Min(highest.MaxAmount)
	if price.LessThan(startPrice) {
		price = startPrice
	}

	return Resolution{
		CurrentPrice: price,
		LeaderID:     &leader,
		SecondMax:    &secondMax,
	}
}

// MinimumLeadingBid is the smallest maximum a new challenger must declare
// to be admitted while someone else leads: current price plus one step.
func MinimumLeadingBid(currentPrice, stepPrice values.Money) values.Money {
	return currentPrice.MustAdd(stepPrice)
}
