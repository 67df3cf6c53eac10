package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
)

// BanRepository implements bidding.BanRepository using PostgreSQL
type BanRepository struct {
	pool *pgxpool.Pool
}

// NewBanRepository creates a new ban repository
func NewBanRepository(pool *pgxpool.Pool) *BanRepository {
	return &BanRepository{pool: pool}
}

// Add records a seller ban. Re-banning the same bidder is a no-op so the
// operation stays idempotent under retries.
func (r *BanRepository) Add(ctx context.Context, ban *auction.Ban) error {
	query := `
		INSERT INTO item_bans (item_id, bidder_id, seller_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, bidder_id) DO NOTHING`

	q := database.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query, ban.ItemID, ban.BidderID, ban.SellerID, ban.Reason, ban.CreatedAt)
	if err != nil {
		return errors.NewInternalError("failed to record ban").WithCause(err)
	}
	return nil
}

// IsBanned reports whether the bidder is banned from the item
func (r *BanRepository) IsBanned(ctx context.Context, itemID, bidderID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM item_bans WHERE item_id = $1 AND bidder_id = $2)`

	q := database.QuerierFrom(ctx, r.pool)
	var banned bool
	if err := q.QueryRow(ctx, query, itemID, bidderID).Scan(&banned); err != nil {
		return false, errors.NewInternalError("failed to check ban").WithCause(err)
	}
	return banned, nil
}

// BannedSet returns every bidder banned from the item
func (r *BanRepository) BannedSet(ctx context.Context, itemID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	query := `SELECT bidder_id FROM item_bans WHERE item_id = $1`

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read ban list").WithCause(err)
	}
	defer rows.Close()

	set := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var bidderID uuid.UUID
		if err := rows.Scan(&bidderID); err != nil {
			return nil, errors.NewInternalError("failed to scan ban").WithCause(err)
		}
		set[bidderID] = struct{}{}
	}
	return set, rows.Err()
}
