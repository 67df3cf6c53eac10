package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/transaction"
)

// service implements the Service interface
type service struct {
	transactions TransactionRepository
	events       EventPublisher
	logger       *slog.Logger
}

// NewService creates the settlement workflow service
func NewService(transactions TransactionRepository, events EventPublisher, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		transactions: transactions,
		events:       events,
		logger:       logger,
	}
}

// GetTransaction returns the transaction to its participants only
func (s *service) GetTransaction(ctx context.Context, txID, actorID uuid.UUID) (*transaction.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if actorID != tx.SellerID && actorID != tx.WinnerID {
		return nil, errors.ErrUnauthorizedActor
	}
	return tx, nil
}

// ListMyTransactions returns the caller's transactions, newest first
func (s *service) ListMyTransactions(ctx context.Context, actorID uuid.UUID) ([]*transaction.Transaction, error) {
	txs, err := s.transactions.ListByParticipant(ctx, actorID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list transactions").WithCause(err)
	}
	return txs, nil
}

func (s *service) UploadPaymentProof(ctx context.Context, txID, actorID uuid.UUID, proofURL, shippingAddress string) (*transaction.Transaction, error) {
	return s.advance(ctx, txID, "payment proof uploaded", func(tx *transaction.Transaction) error {
		return tx.SubmitPayment(actorID, proofURL, shippingAddress)
	})
}

func (s *service) UploadShippingProof(ctx context.Context, txID, actorID uuid.UUID, proofURL string) (*transaction.Transaction, error) {
	return s.advance(ctx, txID, "shipping proof uploaded", func(tx *transaction.Transaction) error {
		return tx.SubmitShipping(actorID, proofURL)
	})
}

func (s *service) ConfirmReceipt(ctx context.Context, txID, actorID uuid.UUID) (*transaction.Transaction, error) {
	return s.advance(ctx, txID, "receipt confirmed", func(tx *transaction.Transaction) error {
		return tx.ConfirmReceipt(actorID)
	})
}

func (s *service) CancelTransaction(ctx context.Context, txID, actorID uuid.UUID, reason string) (*transaction.Transaction, error) {
	return s.advance(ctx, txID, "transaction cancelled", func(tx *transaction.Transaction) error {
		return tx.Cancel(actorID, reason)
	})
}

// PostRating records one participant's rating after completion. Ratings do
// not move the state machine, so they bypass advance.
func (s *service) PostRating(ctx context.Context, txID, actorID uuid.UUID, positive bool, comment string) (*transaction.Rating, error) {
	tx, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	rating, err := tx.PostRating(actorID, positive, comment)
	if err != nil {
		return nil, err
	}

	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, errors.NewInternalError("failed to persist rating").WithCause(err)
	}

	s.logger.InfoContext(ctx, "rating posted",
		"transaction_id", tx.ID,
		"rater_id", actorID,
		"positive", positive,
	)
	return rating, nil
}

func (s *service) ListRatingsFor(ctx context.Context, userID uuid.UUID) ([]*transaction.Rating, error) {
	ratings, err := s.transactions.ListRatingsFor(ctx, userID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list ratings").WithCause(err)
	}
	return ratings, nil
}

// advance applies a domain transition, persists the result, and publishes
// the new state. The domain method owns actor and state validation; a
// rejected transition leaves storage untouched.
func (s *service) advance(ctx context.Context, txID uuid.UUID, action string, apply func(*transaction.Transaction) error) (*transaction.Transaction, error) {
	tx, err := s.transactions.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}

	if err := apply(tx); err != nil {
		return nil, err
	}

	if err := s.transactions.Update(ctx, tx); err != nil {
		return nil, errors.NewInternalError("failed to persist transaction").WithCause(err)
	}

	s.publishStateChanged(ctx, tx)

	s.logger.InfoContext(ctx, action,
		"transaction_id", tx.ID,
		"status", tx.Status.String(),
	)
	return tx, nil
}

func (s *service) publishStateChanged(ctx context.Context, tx *transaction.Transaction) {
	if s.events == nil {
		return
	}

	event := TransactionStateChangedEvent{
		TransactionID: tx.ID,
		ItemID:        tx.ItemID,
		Status:        tx.Status.String(),
	}
	if err := s.events.PublishTransactionStateChanged(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish transaction event", "transaction_id", tx.ID, "error", err)
	}
}
