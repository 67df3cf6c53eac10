package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
	"github.com/bidhaus/auction-backend/internal/service/bidding"
)

// Account is a marketplace user row
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AccountRepository stores users and implements bidding.BidderDirectory by
// aggregating the ratings they have received
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create persists a new user
func (r *AccountRepository) Create(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	q := database.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash,
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to create account").WithCause(err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE id = $1`

	q := database.QuerierFrom(ctx, r.pool)
	var account Account
	err := q.QueryRow(ctx, query, id).Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, errors.ErrBidderNotFound)
	}
	return &account, nil
}

// GetByEmail retrieves a user by email, used by login
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	query := `
		SELECT id, email, name, password_hash, created_at, updated_at
		FROM users WHERE email = $1`

	q := database.QuerierFrom(ctx, r.pool)
	var account Account
	err := q.QueryRow(ctx, query, email).Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, errors.ErrBidderNotFound)
	}
	return &account, nil
}

// RatingSummary aggregates the ratings the user has received across all
// their completed transactions
func (r *AccountRepository) RatingSummary(ctx context.Context, bidderID uuid.UUID) (bidding.RatingSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE tr.positive),
			COUNT(*) FILTER (WHERE NOT tr.positive)
		FROM transaction_ratings tr
		JOIN transactions t ON t.id = tr.transaction_id
		WHERE (t.seller_id = $1 OR t.winner_id = $1) AND tr.rater_id != $1`

	q := database.QuerierFrom(ctx, r.pool)
	var summary bidding.RatingSummary
	if err := q.QueryRow(ctx, query, bidderID).Scan(&summary.Positive, &summary.Negative); err != nil {
		return bidding.RatingSummary{}, errors.NewInternalError("failed to aggregate ratings").WithCause(err)
	}
	return summary, nil
}
