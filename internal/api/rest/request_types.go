package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

var validate = validator.New()

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createItemRequest struct {
	Title                 string        `json:"title" validate:"required,min=3,max=200"`
	StartPrice            values.Money  `json:"start_price"`
	StepPrice             values.Money  `json:"step_price"`
	BuyNowPrice           *values.Money `json:"buy_now_price,omitempty"`
	EndTime               time.Time     `json:"end_time" validate:"required"`
	AllowUnratedBidders   bool          `json:"allow_unrated_bidders"`
	AllowLowRatingBidders bool          `json:"allow_low_rating_bidders"`
}

type placeBidRequest struct {
	MaxAmount values.Money `json:"max_amount"`
}

type banBidderRequest struct {
	BidderID string `json:"bidder_id" validate:"required,uuid"`
	Reason   string `json:"reason" validate:"required,min=3,max=500"`
}

type paymentProofRequest struct {
	ProofURL        string `json:"proof_url" validate:"required,url"`
	ShippingAddress string `json:"shipping_address" validate:"required,min=5,max=500"`
}

type shippingProofRequest struct {
	ProofURL string `json:"proof_url" validate:"required,url"`
}

type cancelTransactionRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

type postRatingRequest struct {
	Positive bool   `json:"positive"`
	Comment  string `json:"comment" validate:"max=1000"`
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, returning a domain validation error the error handler can
// render
func decodeAndValidate(r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.NewValidationError("INVALID_BODY", "request body is not valid JSON: "+err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return errors.NewValidationError("INVALID_FIELD", "invalid value for field "+first.Field()).
				WithDetails(map[string]interface{}{
					"field": first.Field(),
					"rule":  first.Tag(),
				})
		}
		return errors.NewValidationError("INVALID_BODY", err.Error())
	}
	return nil
}
