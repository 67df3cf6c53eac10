package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Rating is one participant's verdict on a completed transaction
type Rating struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	RaterID       uuid.UUID `json:"rater_id"`
	Positive      bool      `json:"positive"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewRating creates a rating entry
func NewRating(transactionID, raterID uuid.UUID, positive bool, comment string) Rating {
	return Rating{
		ID:            uuid.New(),
		TransactionID: transactionID,
		RaterID:       raterID,
		Positive:      positive,
		Comment:       comment,
		CreatedAt:     time.Now(),
	}
}
