package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/transaction"
	"github.com/bidhaus/auction-backend/internal/domain/values"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
)

// TransactionRepository implements the bidding and settlement transaction
// repositories using PostgreSQL. Ratings live in their own table and are
// loaded with the transaction.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create persists a newly opened settlement transaction
func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, item_id, seller_id, winner_id, final_price, currency, status,
			payment_proof_url, shipping_address, shipping_proof_url, cancel_reason,
			created_at, updated_at, closed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	q := database.QuerierFrom(ctx, r.pool)
	_, err := q.Exec(ctx, query,
		tx.ID, tx.ItemID, tx.SellerID, tx.WinnerID,
		tx.FinalPrice.Amount().String(), tx.FinalPrice.Currency(), tx.Status.String(),
		tx.PaymentProofURL, tx.ShippingAddress, tx.ShippingProofURL, tx.CancelReason,
		tx.CreatedAt, tx.UpdatedAt, tx.ClosedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to create transaction").WithCause(err)
	}
	return nil
}

// GetByID loads a transaction with its ratings
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `
		SELECT id, item_id, seller_id, winner_id, final_price::text, currency, status,
		       payment_proof_url, shipping_address, shipping_proof_url, cancel_reason,
		       created_at, updated_at, closed_at
		FROM transactions
		WHERE id = $1`

	q := database.QuerierFrom(ctx, r.pool)

	var (
		tx               transaction.Transaction
		amount, currency string
		status           string
	)
	err := q.QueryRow(ctx, query, id).Scan(
		&tx.ID, &tx.ItemID, &tx.SellerID, &tx.WinnerID, &amount, &currency, &status,
		&tx.PaymentProofURL, &tx.ShippingAddress, &tx.ShippingProofURL, &tx.CancelReason,
		&tx.CreatedAt, &tx.UpdatedAt, &tx.ClosedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, errors.ErrTransactionNotFound)
	}

	if tx.FinalPrice, err = values.NewMoneyFromString(amount, currency); err != nil {
		return nil, errors.NewInternalError("failed to scan transaction").WithCause(fmt.Errorf("invalid final price: %w", err))
	}
	tx.Status = transaction.ParseStatus(status)

	if tx.Ratings, err = r.ratingsByTransaction(ctx, q, id); err != nil {
		return nil, err
	}
	return &tx, nil
}

// Update writes back the transaction's workflow state and any new ratings
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	query := `
		UPDATE transactions SET
			status = $2,
			payment_proof_url = $3, shipping_address = $4,
			shipping_proof_url = $5, cancel_reason = $6,
			updated_at = $7, closed_at = $8
		WHERE id = $1`

	q := database.QuerierFrom(ctx, r.pool)
	tag, err := q.Exec(ctx, query,
		tx.ID, tx.Status.String(),
		tx.PaymentProofURL, tx.ShippingAddress,
		tx.ShippingProofURL, tx.CancelReason,
		tx.UpdatedAt, tx.ClosedAt,
	)
	if err != nil {
		return errors.NewInternalError("failed to update transaction").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrTransactionNotFound
	}

	// Ratings are insert-only; re-upserting the full set keeps Update simple.
	for _, rating := range tx.Ratings {
		insert := `
			INSERT INTO transaction_ratings (id, transaction_id, rater_id, positive, comment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`
		if _, err := q.Exec(ctx, insert,
			rating.ID, rating.TransactionID, rating.RaterID,
			rating.Positive, rating.Comment, rating.CreatedAt,
		); err != nil {
			return errors.NewInternalError("failed to persist rating").WithCause(err)
		}
	}
	return nil
}

// ListByParticipant returns the user's transactions as seller or winner,
// newest first
func (r *TransactionRepository) ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error) {
	query := `SELECT id FROM transactions WHERE seller_id = $1 OR winner_id = $1 ORDER BY created_at DESC`

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list transactions").WithCause(err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, errors.NewInternalError("failed to scan transaction").WithCause(err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternalError("failed to list transactions").WithCause(err)
	}

	out := make([]*transaction.Transaction, 0, len(ids))
	for _, id := range ids {
		tx, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// ListRatingsFor returns ratings received by the user: ratings on their
// transactions authored by the counterparty
func (r *TransactionRepository) ListRatingsFor(ctx context.Context, userID uuid.UUID) ([]*transaction.Rating, error) {
	query := `
		SELECT tr.id, tr.transaction_id, tr.rater_id, tr.positive, tr.comment, tr.created_at
		FROM transaction_ratings tr
		JOIN transactions t ON t.id = tr.transaction_id
		WHERE (t.seller_id = $1 OR t.winner_id = $1) AND tr.rater_id != $1
		ORDER BY tr.created_at DESC`

	q := database.QuerierFrom(ctx, r.pool)
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list ratings").WithCause(err)
	}
	defer rows.Close()

	var ratings []*transaction.Rating
	for rows.Next() {
		var rating transaction.Rating
		if err := rows.Scan(&rating.ID, &rating.TransactionID, &rating.RaterID,
			&rating.Positive, &rating.Comment, &rating.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan rating").WithCause(err)
		}
		ratings = append(ratings, &rating)
	}
	return ratings, rows.Err()
}

func (r *TransactionRepository) ratingsByTransaction(ctx context.Context, q database.Querier, txID uuid.UUID) ([]transaction.Rating, error) {
	query := `
		SELECT id, transaction_id, rater_id, positive, comment, created_at
		FROM transaction_ratings
		WHERE transaction_id = $1
		ORDER BY created_at`

	rows, err := q.Query(ctx, query, txID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read ratings").WithCause(err)
	}
	defer rows.Close()

	var ratings []transaction.Rating
	for rows.Next() {
		var rating transaction.Rating
		if err := rows.Scan(&rating.ID, &rating.TransactionID, &rating.RaterID,
			&rating.Positive, &rating.Comment, &rating.CreatedAt); err != nil {
			return nil, errors.NewInternalError("failed to scan rating").WithCause(err)
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}
