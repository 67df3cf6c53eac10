package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/infrastructure/cache"
	"github.com/bidhaus/auction-backend/internal/infrastructure/repository"
	"github.com/bidhaus/auction-backend/internal/service/bidding"
	"github.com/bidhaus/auction-backend/internal/service/settlement"
)

// AccountStore is the slice of account storage the API needs
type AccountStore interface {
	Create(ctx context.Context, account *repository.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Account, error)
	GetByEmail(ctx context.Context, email string) (*repository.Account, error)
}

// Authenticator issues tokens and checks passwords
type Authenticator interface {
	TokenValidator
	GenerateToken(userID uuid.UUID, email string) (string, error)
	HashPassword(password string) (string, error)
	ComparePassword(hash, password string) error
}

// SnapshotCache caches the live pricing snapshot per item
type SnapshotCache interface {
	Get(ctx context.Context, itemID uuid.UUID) (*cache.ItemSnapshot, error)
	Set(ctx context.Context, snapshot *cache.ItemSnapshot) error
}

// Handlers holds the HTTP handlers over the application services
type Handlers struct {
	bidding    bidding.Service
	settlement settlement.Service
	accounts   AccountStore
	auth       Authenticator
	snapshots  SnapshotCache
	logger     *slog.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(
	biddingSvc bidding.Service,
	settlementSvc settlement.Service,
	accounts AccountStore,
	authSvc Authenticator,
	snapshots SnapshotCache,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		bidding:    biddingSvc,
		settlement: settlementSvc,
		accounts:   accounts,
		auth:       authSvc,
		snapshots:  snapshots,
		logger:     logger,
	}
}

// handleRegister creates a user account
func (h *Handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, errors.NewInternalError("failed to hash password").WithCause(err))
		return
	}

	now := time.Now()
	account := &repository.Account{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	token, err := h.auth.GenerateToken(account.ID, account.Email)
	if err != nil {
		writeError(w, r, h.logger, errors.NewInternalError("failed to issue token").WithCause(err))
		return
	}

	writeJSON(w, http.StatusCreated, authResponse{Token: token, UserID: account.ID})
}

// handleLogin exchanges credentials for a token
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil || h.auth.ComparePassword(account.PasswordHash, req.Password) != nil {
		// Same response for unknown email and wrong password.
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: errorBody{
			Code:    "INVALID_CREDENTIALS",
			Message: "email or password is incorrect",
		}})
		return
	}

	token, err := h.auth.GenerateToken(account.ID, account.Email)
	if err != nil {
		writeError(w, r, h.logger, errors.NewInternalError("failed to issue token").WithCause(err))
		return
	}

	writeJSON(w, http.StatusOK, authResponse{Token: token, UserID: account.ID})
}

// handleCreateItem opens a new listing for the authenticated seller
func (h *Handlers) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	sellerID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	var req createItemRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.bidding.CreateListing(r.Context(), &bidding.CreateListingRequest{
		SellerID:              sellerID,
		Title:                 req.Title,
		StartPrice:            req.StartPrice,
		StepPrice:             req.StepPrice,
		BuyNowPrice:           req.BuyNowPrice,
		EndTime:               req.EndTime,
		AllowUnratedBidders:   req.AllowUnratedBidders,
		AllowLowRatingBidders: req.AllowLowRatingBidders,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item, time.Now()))
}

// handleGetItem returns the item's full state
func (h *Handlers) handleGetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	item, err := h.bidding.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item, time.Now()))
}

// handleListMyItems returns the authenticated seller's open listings
func (h *Handlers) handleListMyItems(w http.ResponseWriter, r *http.Request) {
	sellerID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	items, err := h.bidding.ListSellerItems(r.Context(), sellerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := time.Now()
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetItemPrice returns the lightweight live pricing snapshot, served
// from the Redis cache when warm
func (h *Handlers) handleGetItemPrice(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.snapshots != nil {
		if snapshot, err := h.snapshots.Get(r.Context(), itemID); err == nil && snapshot != nil {
			writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	item, err := h.bidding.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	now := time.Now()
	snapshot := &cache.ItemSnapshot{
		ItemID:       item.ID,
		Title:        item.Title,
		CurrentPrice: item.CurrentPrice.String(),
		LeaderID:     item.CurrentLeaderID,
		EndTime:      item.EndTime,
		Status:       item.Status.String(),
		Highlighted:  now.Before(item.HighlightedUntil),
	}
	if h.snapshots != nil {
		if err := h.snapshots.Set(r.Context(), snapshot); err != nil {
			h.logger.WarnContext(r.Context(), "failed to cache item snapshot", "item_id", itemID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handlePlaceBid admits a proxy bid from the authenticated bidder
func (h *Handlers) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	bidderID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req placeBidRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.bidding.PlaceBid(r.Context(), &bidding.PlaceBidRequest{
		ItemID:    itemID,
		BidderID:  bidderID,
		MaxAmount: req.MaxAmount,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetAutoBid returns the caller's standing maximum on the item
func (h *Handlers) handleGetAutoBid(w http.ResponseWriter, r *http.Request) {
	bidderID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	max, err := h.bidding.GetMyAutoBid(r.Context(), itemID, bidderID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, autoBidResponse{MaxAmount: max})
}

// handleGetBidHistory returns the item's public bid ledger
func (h *Handlers) handleGetBidHistory(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entries, err := h.bidding.GetBidHistory(r.Context(), itemID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	history := make([]bidHistoryEntry, 0, len(entries))
	for _, entry := range entries {
		history = append(history, bidHistoryEntry{
			BidderID:  entry.BidderID,
			MaxAmount: entry.MaxAmount,
			PlacedAt:  entry.PlacedAt,
		})
	}
	writeJSON(w, http.StatusOK, history)
}

// handleBanBidder lets the item's seller ban a bidder
func (h *Handlers) handleBanBidder(w http.ResponseWriter, r *http.Request) {
	sellerID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req banBidderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bidderID, err := uuid.Parse(req.BidderID)
	if err != nil {
		writeError(w, r, h.logger, errors.NewValidationError("INVALID_BIDDER_ID", "bidder_id must be a UUID"))
		return
	}

	if err := h.bidding.BanBidder(r.Context(), itemID, bidderID, sellerID, req.Reason); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBannedStatus reports whether a bidder is banned from the item
func (h *Handlers) handleGetBannedStatus(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bidderID, err := pathUUID(r, "bidderID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	banned, err := h.bidding.GetBannedStatus(r.Context(), itemID, bidderID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bannedStatusResponse{Banned: banned})
}

// handleBuyNow closes the item immediately at its buy-now price
func (h *Handlers) handleBuyNow(w http.ResponseWriter, r *http.Request) {
	buyerID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.bidding.BuyNow(r.Context(), itemID, buyerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

// handleListMyTransactions returns the caller's transactions
func (h *Handlers) handleListMyTransactions(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txs, err := h.settlement.ListMyTransactions(r.Context(), actorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetTransaction returns a transaction to its participants
func (h *Handlers) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.settlement.GetTransaction(r.Context(), txID, actorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handleUploadPaymentProof records the winner's payment
func (h *Handlers) handleUploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req paymentProofRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.settlement.UploadPaymentProof(r.Context(), txID, actorID, req.ProofURL, req.ShippingAddress)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handleUploadShippingProof records the seller's shipment
func (h *Handlers) handleUploadShippingProof(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req shippingProofRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.settlement.UploadShippingProof(r.Context(), txID, actorID, req.ProofURL)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handleConfirmReceipt completes the transaction
func (h *Handlers) handleConfirmReceipt(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.settlement.ConfirmReceipt(r.Context(), txID, actorID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handleCancelTransaction aborts a non-terminal transaction
func (h *Handlers) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req cancelTransactionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tx, err := h.settlement.CancelTransaction(r.Context(), txID, actorID, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

// handlePostRating leaves a rating on a completed transaction
func (h *Handlers) handlePostRating(w http.ResponseWriter, r *http.Request) {
	actorID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, r, h.logger, errors.NewUnauthorizedError("authentication required"))
		return
	}

	txID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req postRatingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	rating, err := h.settlement.PostRating(r.Context(), txID, actorID, req.Positive, req.Comment)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

// handleGetUser returns a user's public profile
func (h *Handlers) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{
		ID:        account.ID,
		Name:      account.Name,
		CreatedAt: account.CreatedAt,
	})
}

// handleListRatings returns the ratings a user has received
func (h *Handlers) handleListRatings(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUUID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ratings, err := h.settlement.ListRatingsFor(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", "path parameter "+name+" must be a UUID")
	}
	return id, nil
}
