package auction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidhaus/auction-backend/internal/domain/values"
)

func usd(amount float64) values.Money {
	return values.MustNewMoneyFromFloat(amount, values.USD)
}

func ledgerEntry(itemID, bidderID uuid.UUID, max float64, placedAt time.Time) *ProxyBid {
	b, err := NewProxyBid(itemID, bidderID, usd(max), placedAt)
	if err != nil {
		panic(err)
	}
	return b
}

func TestResolve(t *testing.T) {
	itemID := uuid.New()
	bidderA := uuid.New()
	bidderB := uuid.New()
	bidderC := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	step := usd(10)
	start := usd(50)

	tests := []struct {
		name       string
		ledger     []*ProxyBid
		wantPrice  values.Money
		wantLeader *uuid.UUID
	}{
		{
			name:       "no bids keeps start price and no leader",
			ledger:     nil,
			wantPrice:  start,
			wantLeader: nil,
		},
		{
			name: "single bid stays at start price",
			ledger: []*ProxyBid{
				ledgerEntry(itemID, bidderA, 200, base),
			},
			wantPrice:  start,
			wantLeader: &bidderA,
		},
		{
			name: "three bidders settle at second max plus step",
			ledger: []*ProxyBid{
				ledgerEntry(itemID, bidderA, 100, base),
				ledgerEntry(itemID, bidderB, 150, base.Add(time.Minute)),
				ledgerEntry(itemID, bidderC, 120, base.Add(2*time.Minute)),
			},
			wantPrice:  usd(130),
			wantLeader: &bidderB,
		},
		{
			name: "price capped at leader maximum",
			ledger: []*ProxyBid{
				ledgerEntry(itemID, bidderA, 145, base),
				ledgerEntry(itemID, bidderB, 150, base.Add(time.Minute)),
			},
			wantPrice:  usd(150),
			wantLeader: &bidderB,
		},
		{
			name: "equal maximums go to the earlier bidder",
			ledger: []*ProxyBid{
				ledgerEntry(itemID, bidderA, 150, base),
				ledgerEntry(itemID, bidderB, 150, base.Add(time.Minute)),
			},
			wantPrice:  usd(150),
			wantLeader: &bidderA,
		},
		{
			name: "superseded entry does not count twice",
			ledger: []*ProxyBid{
				ledgerEntry(itemID, bidderA, 100, base),
				ledgerEntry(itemID, bidderB, 110, base.Add(time.Minute)),
				ledgerEntry(itemID, bidderA, 200, base.Add(2*time.Minute)),
			},
			wantPrice:  usd(120),
			wantLeader: &bidderA,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.ledger, step, start)

			assert.True(t, tt.wantPrice.Equal(res.CurrentPrice),
				"want %s, got %s", tt.wantPrice, res.CurrentPrice)

			if tt.wantLeader == nil {
				assert.Nil(t, res.LeaderID)
			} else {
				require.NotNil(t, res.LeaderID)
				assert.Equal(t, *tt.wantLeader, *res.LeaderID)
			}
		})
	}
}

func TestResolve_PriceBounds(t *testing.T) {
	// With two or more standing bids the resolved price always sits
	// between the runner-up maximum and the leader maximum.
	itemID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	step := usd(7)
	start := usd(10)

	amounts := []float64{25, 310, 64, 99, 180, 42, 310, 77}
	ledger := make([]*ProxyBid, 0, len(amounts))
	for i, amount := range amounts {
		ledger = append(ledger, ledgerEntry(itemID, uuid.New(), amount, base.Add(time.Duration(i)*time.Second)))
	}

	res := Resolve(ledger, step, start)
	require.NotNil(t, res.LeaderID)
	require.NotNil(t, res.SecondMax)

	highest := usd(310)
	assert.True(t, res.CurrentPrice.GreaterThanOrEqual(*res.SecondMax))
	assert.True(t, highest.GreaterThanOrEqual(res.CurrentPrice))
}

func TestResolve_BanRecompute(t *testing.T) {
	// Leader banned with ledger [(A,100),(B,150)]: A leads again at the
	// single-remaining-bid price, which is the start price.
	itemID := uuid.New()
	bidderA := uuid.New()
	bidderB := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ledger := []*ProxyBid{
		ledgerEntry(itemID, bidderA, 100, base),
		ledgerEntry(itemID, bidderB, 150, base.Add(time.Minute)),
	}

	banned := map[uuid.UUID]struct{}{bidderB: {}}
	res := Resolve(ExcludeBanned(ledger, banned), usd(10), usd(50))

	require.NotNil(t, res.LeaderID)
	assert.Equal(t, bidderA, *res.LeaderID)
	assert.True(t, usd(50).Equal(res.CurrentPrice))
}

func TestLatestPerBidder(t *testing.T) {
	itemID := uuid.New()
	bidderA := uuid.New()
	bidderB := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ledger := []*ProxyBid{
		ledgerEntry(itemID, bidderA, 100, base),
		ledgerEntry(itemID, bidderB, 120, base.Add(time.Minute)),
		ledgerEntry(itemID, bidderA, 140, base.Add(2*time.Minute)),
	}

	active := LatestPerBidder(ledger)
	require.Len(t, active, 2)
	assert.Equal(t, bidderB, active[0].BidderID)
	assert.Equal(t, bidderA, active[1].BidderID)
	assert.True(t, usd(140).Equal(active[1].MaxAmount))
}

func TestActiveMaxFor(t *testing.T) {
	itemID := uuid.New()
	bidderA := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ledger := []*ProxyBid{
		ledgerEntry(itemID, bidderA, 100, base),
		ledgerEntry(itemID, bidderA, 175, base.Add(time.Minute)),
	}

	max := ActiveMaxFor(ledger, bidderA)
	require.NotNil(t, max)
	assert.True(t, usd(175).Equal(*max))

	assert.Nil(t, ActiveMaxFor(ledger, uuid.New()))
}
