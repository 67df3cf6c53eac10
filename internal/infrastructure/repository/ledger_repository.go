package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/values"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
)

// LedgerRepository implements bidding.LedgerRepository using PostgreSQL.
// The ledger is append-only: rows are never updated or deleted, and the
// serial seq column preserves admission order for the resolution fold.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new bid ledger repository
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append adds one bid to the item's ledger
func (r *LedgerRepository) Append(ctx context.Context, bid *auction.ProxyBid) error {
	query := `
		INSERT INTO proxy_bids (id, item_id, bidder_id, max_amount, currency, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	q := database.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		bid.ID, bid.ItemID, bid.BidderID,
		bid.MaxAmount.Amount().String(), bid.MaxAmount.Currency(), bid.PlacedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to append bid").WithCause(err)
	}
	return nil
}

// ListByItem returns the item's ledger in append order
func (r *LedgerRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]*auction.ProxyBid, error) {
	query := `
		SELECT id, item_id, bidder_id, max_amount::text, currency, placed_at
		FROM proxy_bids
		WHERE item_id = $1
		ORDER BY seq`

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read bid ledger").WithCause(err)
	}
	defer rows.Close()

	var bids []*auction.ProxyBid
	for rows.Next() {
		var (
			bid              auction.ProxyBid
			amount, currency string
		)
		if err := rows.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &amount, &currency, &bid.PlacedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan bid").WithCause(err)
		}
		if bid.MaxAmount, err = values.NewMoneyFromString(amount, currency); err != nil {
			return nil, errors.NewInternalError("failed to scan bid").WithCause(fmt.Errorf("invalid max amount: %w", err))
		}
		bids = append(bids, &bid)
	}
	return bids, rows.Err()
}
