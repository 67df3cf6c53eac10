package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// Transaction drives the post-auction workflow between winner and seller:
// payment, shipping, receipt, then ratings. Created exactly once when an
// item is sold; Completed and Cancelled are terminal.
type Transaction struct {
	ID         uuid.UUID    `json:"id"`
	ItemID     uuid.UUID    `json:"item_id"`
	SellerID   uuid.UUID    `json:"seller_id"`
	WinnerID   uuid.UUID    `json:"winner_id"`
	FinalPrice values.Money `json:"final_price"`
	Status     Status       `json:"status"`

	PaymentProofURL  string `json:"payment_proof_url,omitempty"`
	ShippingAddress  string `json:"shipping_address,omitempty"`
	ShippingProofURL string `json:"shipping_proof_url,omitempty"`
	CancelReason     string `json:"cancel_reason,omitempty"`

	Ratings []Rating `json:"ratings"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

type Status int

const (
	StatusPendingPayment Status = iota
	StatusPendingShipping
	StatusPendingReceipt
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPendingPayment:
		return "pending_payment"
	case StatusPendingShipping:
		return "pending_shipping"
	case StatusPendingReceipt:
		return "pending_receipt"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a stored status string back to a Status
func ParseStatus(s string) Status {
	switch s {
	case "pending_payment":
		return StatusPendingPayment
	case "pending_shipping":
		return StatusPendingShipping
	case "pending_receipt":
		return StatusPendingReceipt
	case "completed":
		return StatusCompleted
	case "cancelled":
		return StatusCancelled
	default:
		return StatusPendingPayment
	}
}

// Action is a workflow transition trigger
type Action int

const (
	ActionSubmitPayment Action = iota
	ActionSubmitShipping
	ActionConfirmReceipt
	ActionCancel
)

func (a Action) String() string {
	switch a {
	case ActionSubmitPayment:
		return "submit_payment"
	case ActionSubmitShipping:
		return "submit_shipping"
	case ActionConfirmReceipt:
		return "confirm_receipt"
	case ActionCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// transitions is the closed from-state × action table. Anything absent is
// an invalid transition; terminal states have no outgoing edges.
var transitions = map[Status]map[Action]Status{
	StatusPendingPayment: {
		ActionSubmitPayment: StatusPendingShipping,
		ActionCancel:        StatusCancelled,
	},
	StatusPendingShipping: {
		ActionSubmitShipping: StatusPendingReceipt,
		ActionCancel:         StatusCancelled,
	},
	StatusPendingReceipt: {
		ActionConfirmReceipt: StatusCompleted,
		ActionCancel:         StatusCancelled,
	},
}

// NewTransaction opens the settlement workflow for a sold item
func NewTransaction(itemID, sellerID, winnerID uuid.UUID, finalPrice values.Money) (*Transaction, error) {
	if itemID == uuid.Nil || sellerID == uuid.Nil || winnerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_PARTICIPANT", "item, seller and winner IDs are required")
	}
	if sellerID == winnerID {
		return nil, errors.NewValidationError("INVALID_PARTICIPANTS", "seller and winner must differ")
	}
	if !finalPrice.IsPositive() {
		return nil, errors.NewValidationError("INVALID_FINAL_PRICE", "final price must be positive")
	}

	now := time.Now()
	return &Transaction{
		ID:         uuid.New(),
		ItemID:     itemID,
		SellerID:   sellerID,
		WinnerID:   winnerID,
		FinalPrice: finalPrice,
		Status:     StatusPendingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsTerminal reports whether the workflow has reached a final state
func (t *Transaction) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusCancelled
}

func (t *Transaction) transition(action Action) error {
	next, ok := transitions[t.Status][action]
	if !ok {
		return errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from":   t.Status.String(),
			"action": action.String(),
		})
	}

	now := time.Now()
	t.Status = next
	t.UpdatedAt = now
	if t.IsTerminal() {
		t.ClosedAt = &now
	}
	return nil
}

// SubmitPayment records the winner's payment proof and shipping address
func (t *Transaction) SubmitPayment(actorID uuid.UUID, proofURL, shippingAddress string) error {
	if actorID != t.WinnerID {
		return errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "winner"})
	}
	if proofURL == "" {
		return errors.NewValidationError("MISSING_PAYMENT_PROOF", "payment proof URL is required")
	}
	if shippingAddress == "" {
		return errors.NewValidationError("MISSING_SHIPPING_ADDRESS", "shipping address is required")
	}

	if err := t.transition(ActionSubmitPayment); err != nil {
		return err
	}

	t.PaymentProofURL = proofURL
	t.ShippingAddress = shippingAddress
	return nil
}

// SubmitShipping records the seller's shipping proof
func (t *Transaction) SubmitShipping(actorID uuid.UUID, proofURL string) error {
	if actorID != t.SellerID {
		return errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "seller"})
	}
	if proofURL == "" {
		return errors.NewValidationError("MISSING_SHIPPING_PROOF", "shipping proof URL is required")
	}

	if err := t.transition(ActionSubmitShipping); err != nil {
		return err
	}

	t.ShippingProofURL = proofURL
	return nil
}

// ConfirmReceipt records the winner confirming delivery
func (t *Transaction) ConfirmReceipt(actorID uuid.UUID) error {
	if actorID != t.WinnerID {
		return errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "winner"})
	}

	return t.transition(ActionConfirmReceipt)
}

// Cancel aborts the workflow from any non-terminal state. Seller-only and
// irreversible; a reason is always required.
func (t *Transaction) Cancel(actorID uuid.UUID, reason string) error {
	if actorID != t.SellerID {
		return errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "seller"})
	}
	if reason == "" {
		return errors.NewValidationError("MISSING_CANCEL_REASON", "cancellation reason is required")
	}

	if err := t.transition(ActionCancel); err != nil {
		return err
	}

	t.CancelReason = reason
	return nil
}

// PostRating adds one participant's rating after completion. At most one
// rating per participant, and only the seller or winner may rate.
func (t *Transaction) PostRating(actorID uuid.UUID, positive bool, comment string) (*Rating, error) {
	if t.Status != StatusCompleted {
		return nil, errors.ErrInvalidTransition.WithDetails(map[string]interface{}{
			"from":   t.Status.String(),
			"action": "post_rating",
		})
	}
	if actorID != t.SellerID && actorID != t.WinnerID {
		return nil, errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "participant"})
	}

	for _, r := range t.Ratings {
		if r.RaterID == actorID {
			return nil, errors.NewConflictError("participant has already rated this transaction")
		}
	}

	rating := NewRating(t.ID, actorID, positive, comment)
	t.Ratings = append(t.Ratings, rating)
	t.UpdatedAt = time.Now()
	return &rating, nil
}
