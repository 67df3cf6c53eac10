package settlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/transaction"
)

// Service drives the post-auction settlement workflow between the seller
// and the winning bidder
type Service interface {
	// GetTransaction returns the settlement state visible to a participant
	GetTransaction(ctx context.Context, txID, actorID uuid.UUID) (*transaction.Transaction, error)
	// ListMyTransactions returns the caller's transactions, newest first
	ListMyTransactions(ctx context.Context, actorID uuid.UUID) ([]*transaction.Transaction, error)
	// UploadPaymentProof records the winner's payment proof and address
	UploadPaymentProof(ctx context.Context, txID, actorID uuid.UUID, proofURL, shippingAddress string) (*transaction.Transaction, error)
	// UploadShippingProof records the seller's shipping proof
	UploadShippingProof(ctx context.Context, txID, actorID uuid.UUID, proofURL string) (*transaction.Transaction, error)
	// ConfirmReceipt completes the transaction on the winner's confirmation
	ConfirmReceipt(ctx context.Context, txID, actorID uuid.UUID) (*transaction.Transaction, error)
	// CancelTransaction aborts a non-terminal transaction with a reason
	CancelTransaction(ctx context.Context, txID, actorID uuid.UUID, reason string) (*transaction.Transaction, error)
	// PostRating leaves one participant's rating on a completed transaction
	PostRating(ctx context.Context, txID, actorID uuid.UUID, positive bool, comment string) (*transaction.Rating, error)
	// ListRatingsFor returns the ratings received by a user across transactions
	ListRatingsFor(ctx context.Context, userID uuid.UUID) ([]*transaction.Rating, error)
}

// TransactionRepository defines the interface for settlement storage
type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	Update(ctx context.Context, tx *transaction.Transaction) error
	// ListByParticipant returns the user's transactions as seller or winner
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]*transaction.Transaction, error)
	// ListRatingsFor returns ratings whose subject is the given user
	ListRatingsFor(ctx context.Context, userID uuid.UUID) ([]*transaction.Rating, error)
}

// EventPublisher emits settlement state changes for external collaborators
type EventPublisher interface {
	PublishTransactionStateChanged(ctx context.Context, event TransactionStateChangedEvent) error
}

// TransactionStateChangedEvent mirrors the bidding engine's event shape so
// both services feed the same channel
type TransactionStateChangedEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ItemID        uuid.UUID `json:"item_id"`
	Status        string    `json:"status"`
}
