package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/transaction"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

type authResponse struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_id"`
}

// userResponse is the public profile; email and hash never leave the server
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type itemResponse struct {
	ID                    uuid.UUID     `json:"id"`
	SellerID              uuid.UUID     `json:"seller_id"`
	Title                 string        `json:"title"`
	StartPrice            values.Money  `json:"start_price"`
	StepPrice             values.Money  `json:"step_price"`
	BuyNowPrice           *values.Money `json:"buy_now_price,omitempty"`
	CurrentPrice          values.Money  `json:"current_price"`
	CurrentLeaderID       *uuid.UUID    `json:"current_leader_id,omitempty"`
	EndTime               time.Time     `json:"end_time"`
	Status                string        `json:"status"`
	AllowUnratedBidders   bool          `json:"allow_unrated_bidders"`
	AllowLowRatingBidders bool          `json:"allow_low_rating_bidders"`
	Highlighted           bool          `json:"highlighted"`
	CreatedAt             time.Time     `json:"created_at"`
}

func toItemResponse(item *auction.Item, now time.Time) itemResponse {
	return itemResponse{
		ID:                    item.ID,
		SellerID:              item.SellerID,
		Title:                 item.Title,
		StartPrice:            item.StartPrice,
		StepPrice:             item.StepPrice,
		BuyNowPrice:           item.BuyNowPrice,
		CurrentPrice:          item.CurrentPrice,
		CurrentLeaderID:       item.CurrentLeaderID,
		EndTime:               item.EndTime,
		Status:                item.Status.String(),
		AllowUnratedBidders:   item.AllowUnratedBidders,
		AllowLowRatingBidders: item.AllowLowRatingBidders,
		Highlighted:           now.Before(item.HighlightedUntil),
		CreatedAt:             item.CreatedAt,
	}
}

type bidHistoryEntry struct {
	BidderID  uuid.UUID    `json:"bidder_id"`
	MaxAmount values.Money `json:"max_amount"`
	PlacedAt  time.Time    `json:"placed_at"`
}

type autoBidResponse struct {
	MaxAmount *values.Money `json:"max_amount"`
}

type bannedStatusResponse struct {
	Banned bool `json:"banned"`
}

type transactionResponse struct {
	ID               uuid.UUID            `json:"id"`
	ItemID           uuid.UUID            `json:"item_id"`
	SellerID         uuid.UUID            `json:"seller_id"`
	WinnerID         uuid.UUID            `json:"winner_id"`
	FinalPrice       values.Money         `json:"final_price"`
	Status           string               `json:"status"`
	PaymentProofURL  string               `json:"payment_proof_url,omitempty"`
	ShippingAddress  string               `json:"shipping_address,omitempty"`
	ShippingProofURL string               `json:"shipping_proof_url,omitempty"`
	CancelReason     string               `json:"cancel_reason,omitempty"`
	Ratings          []transaction.Rating `json:"ratings,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	ClosedAt         *time.Time           `json:"closed_at,omitempty"`
}

func toTransactionResponse(tx *transaction.Transaction) transactionResponse {
	return transactionResponse{
		ID:               tx.ID,
		ItemID:           tx.ItemID,
		SellerID:         tx.SellerID,
		WinnerID:         tx.WinnerID,
		FinalPrice:       tx.FinalPrice,
		Status:           tx.Status.String(),
		PaymentProofURL:  tx.PaymentProofURL,
		ShippingAddress:  tx.ShippingAddress,
		ShippingProofURL: tx.ShippingProofURL,
		CancelReason:     tx.CancelReason,
		Ratings:          tx.Ratings,
		CreatedAt:        tx.CreatedAt,
		ClosedAt:         tx.ClosedAt,
	}
}
