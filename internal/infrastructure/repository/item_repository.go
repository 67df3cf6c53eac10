package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/values"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
)

// ItemRepository implements bidding.ItemRepository using PostgreSQL
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository creates a new item repository
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

const itemColumns = `
	id, seller_id, title,
	start_price::text, step_price::text, buy_now_price::text, currency,
	current_price::text, current_leader_id,
	end_time, status, allow_unrated_bidders, allow_low_rating_bidders,
	highlighted_until, created_at, updated_at`

// Create persists a new listing
func (r *ItemRepository) Create(ctx context.Context, item *auction.Item) error {
	query := `
		INSERT INTO auction_items (
			id, seller_id, title,
			start_price, step_price, buy_now_price, currency,
			current_price, current_leader_id,
			end_time, status, allow_unrated_bidders, allow_low_rating_bidders,
			highlighted_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	var buyNow *string
	if item.BuyNowPrice != nil {
		s := item.BuyNowPrice.Amount().String()
		buyNow = &s
	}

	q := database.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		item.ID, item.SellerID, item.Title,
		item.StartPrice.Amount().String(), item.StepPrice.Amount().String(), buyNow, item.StartPrice.Currency(),
		item.CurrentPrice.Amount().String(), item.CurrentLeaderID,
		item.EndTime, item.Status.String(), item.AllowUnratedBidders, item.AllowLowRatingBidders,
		item.HighlightedUntil, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to create item").WithCause(err)
	}
	return nil
}

// GetByID retrieves an item by its ID
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	query := `SELECT` + itemColumns + ` FROM auction_items WHERE id = $1`

	q := database.QuerierFrom(ctx, r.pool)
	item, err := scanItem(q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, errors.ErrItemNotFound)
	}
	return item, nil
}

// Update writes back the item's full mutable state
func (r *ItemRepository) Update(ctx context.Context, item *auction.Item) error {
	query := `
		UPDATE auction_items SET
			current_price = $2, current_leader_id = $3,
			end_time = $4, status = $5,
			highlighted_until = $6, updated_at = $7
		WHERE id = $1`

	q := database.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, query,
		item.ID,
		item.CurrentPrice.Amount().String(), item.CurrentLeaderID,
		item.EndTime, item.Status.String(),
		item.HighlightedUntil, item.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update item").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrItemNotFound
	}
	return nil
}

// ListExpiredActive returns active items whose deadline has passed, oldest
// first so the sweeper drains the backlog in order
func (r *ItemRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*auction.Item, error) {
	query := `SELECT` + itemColumns + `
		FROM auction_items
		WHERE status = 'active' AND end_time <= $1
		ORDER BY end_time`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternalError("failed to list expired items").WithCause(err)
	}
	defer rows.Close()

	var items []*auction.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan item").WithCause(err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListActiveBySeller returns a seller's open listings
func (r *ItemRepository) ListActiveBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error) {
	query := `SELECT` + itemColumns + `
		FROM auction_items
		WHERE seller_id = $1 AND status = 'active'
		ORDER BY created_at DESC`

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, sellerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list seller items").WithCause(err)
	}
	defer rows.Close()

	var items []*auction.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewInternalError("failed to scan item").WithCause(err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*auction.Item, error) {
	var (
		item        auction.Item
		start, step string
		current     string
		buyNow      *string
		currency    string
		status      string
	)

	err := row.Scan(
		&item.ID, &item.SellerID, &item.Title,
		&start, &step, &buyNow, &currency,
		&current, &item.CurrentLeaderID,
		&item.EndTime, &status, &item.AllowUnratedBidders, &item.AllowLowRatingBidders,
		&item.HighlightedUntil, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if item.StartPrice, err = values.NewMoneyFromString(start, currency); err != nil {
		return nil, fmt.Errorf("invalid start price: %w", err)
	}
	if item.StepPrice, err = values.NewMoneyFromString(step, currency); err != nil {
		return nil, fmt.Errorf("invalid step price: %w", err)
	}
	if item.CurrentPrice, err = values.NewMoneyFromString(current, currency); err != nil {
		return nil, fmt.Errorf("invalid current price: %w", err)
	}
	if buyNow != nil {
		price, err := values.NewMoneyFromString(*buyNow, currency)
		if err != nil {
			return nil, fmt.Errorf("invalid buy-now price: %w", err)
		}
		item.BuyNowPrice = &price
	}
	item.Status = auction.ParseStatus(status)

	return &item, nil
}
