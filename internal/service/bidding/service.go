package bidding

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bidhaus/auction-backend/internal/domain/auction"
	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/domain/transaction"
	"github.com/bidhaus/auction-backend/internal/domain/values"
)

// minPositiveRatio is the reputation floor applied when a listing excludes
// low-rated bidders
const minPositiveRatio = 0.8

// service implements the Service interface
type service struct {
	items        ItemRepository
	ledger       LedgerRepository
	bans         BanRepository
	transactions TransactionRepository
	settings     SettingsProvider
	bidders      BidderDirectory
	events       EventPublisher
	metrics      MetricsCollector
	tx           Transactor
	clock        auction.Clock
	logger       *slog.Logger
	locks        *lockArena
}

// NewService creates the proxy bidding engine
func NewService(
	items ItemRepository,
	ledger LedgerRepository,
	bans BanRepository,
	transactions TransactionRepository,
	settings SettingsProvider,
	bidders BidderDirectory,
	events EventPublisher,
	metrics MetricsCollector,
	tx Transactor,
	clock auction.Clock,
	logger *slog.Logger,
) Service {
	if clock == nil {
		clock = auction.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		items:        items,
		ledger:       ledger,
		bans:         bans,
		transactions: transactions,
		settings:     settings,
		bidders:      bidders,
		events:       events,
		metrics:      metrics,
		tx:           tx,
		clock:        clock,
		logger:       logger,
		locks:        newLockArena(),
	}
}

// CreateListing opens a new auction item. The highlight badge window comes
// from the current admin settings.
func (s *service) CreateListing(ctx context.Context, req *CreateListingRequest) (*auction.Item, error) {
	if req == nil || req.SellerID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_FIELDS", "seller ID is required")
	}

	cfg, err := s.settings.AuctionSettings(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load auction settings").WithCause(err)
	}

	item, err := auction.NewItem(req.SellerID, req.Title, req.StartPrice, req.StepPrice, req.BuyNowPrice, req.EndTime, cfg.HighlightWindow)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_LISTING", err.Error())
	}
	item.AllowUnratedBidders = req.AllowUnratedBidders
	item.AllowLowRatingBidders = req.AllowLowRatingBidders

	if err := s.items.Create(ctx, item); err != nil {
		return nil, errors.NewInternalError("failed to create listing").WithCause(err)
	}

	s.logger.InfoContext(ctx, "listing created",
		"item_id", item.ID,
		"seller_id", item.SellerID,
		"end_time", item.EndTime,
	)
	return item, nil
}

// PlaceBid admits a proxy bid. The whole read-resolve-persist sequence runs
// under the per-item lock; the deadline is checked only after the lock is
// held so a bid that waited out the auction is rejected, not admitted.
func (s *service) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*PlaceBidResult, error) {
	if req == nil || req.ItemID == uuid.Nil || req.BidderID == uuid.Nil {
		return nil, errors.NewValidationError("MISSING_FIELDS", "item ID and bidder ID are required")
	}

	release := s.locks.acquire(req.ItemID)
	defer release()

	started := s.clock.Now()

	item, err := s.items.GetByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !item.IsOpenForBidding(now) {
		return nil, s.reject(ctx, errors.ErrAuctionClosed, item)
	}

	banned, err := s.bans.IsBanned(ctx, req.ItemID, req.BidderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check ban list").WithCause(err)
	}
	if banned {
		return nil, s.reject(ctx, errors.ErrBidderBanned, item)
	}

	if req.BidderID == item.SellerID {
		return nil, s.reject(ctx, errors.ErrSellerCannotBid, item)
	}

	if err := s.checkBidderReputation(ctx, item, req.BidderID); err != nil {
		return nil, s.reject(ctx, err, item)
	}

	entries, err := s.ledger.ListByItem(ctx, req.ItemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read bid ledger").WithCause(err)
	}

	if err := s.checkIncrement(item, entries, req); err != nil {
		return nil, s.reject(ctx, err, item)
	}

	newBid, err := auction.NewProxyBid(req.ItemID, req.BidderID, req.MaxAmount, now)
	if err != nil {
		return nil, errors.NewValidationError("INVALID_BID", err.Error())
	}

	bannedSet, err := s.bans.BannedSet(ctx, req.ItemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read ban list").WithCause(err)
	}

	active := auction.ExcludeBanned(append(entries, newBid), bannedSet)
	res := auction.Resolve(active, item.StepPrice, item.StartPrice)

	if err := item.ApplyResolution(res); err != nil {
		return nil, errors.NewInternalError("failed to apply resolution").WithCause(err)
	}

	// Policy values are operator-tunable; read fresh on every bid.
	cfg, err := s.settings.AuctionSettings(ctx)
	if err != nil {
		return nil, errors.NewInternalError("failed to load auction settings").WithCause(err)
	}

	policy := auction.AntiSnipePolicy{TriggerWindow: cfg.TriggerWindow, Extension: cfg.Extension}
	extended := false
	if policy.ShouldExtend(item.EndTime, now) {
		if err := item.ExtendEndTime(policy.Extend(item.EndTime)); err != nil {
			return nil, errors.NewInternalError("failed to extend auction").WithCause(err)
		}
		extended = true
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.ledger.Append(ctx, newBid); err != nil {
			return err
		}
		return s.items.Update(ctx, item)
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to persist bid").WithCause(err)
	}

	s.publishBidPlaced(ctx, item, extended)

	if s.metrics != nil {
		s.metrics.RecordBidPlaced(ctx, item.ID, s.clock.Now().Sub(started))
		if extended {
			s.metrics.RecordExtension(ctx, item.ID)
		}
	}

	isLeader := item.CurrentLeaderID != nil && *item.CurrentLeaderID == req.BidderID

	s.logger.InfoContext(ctx, "bid placed",
		"item_id", item.ID,
		"current_price", item.CurrentPrice.String(),
		"is_leader", isLeader,
		"extended", extended,
	)

	return &PlaceBidResult{
		CurrentPrice: item.CurrentPrice,
		IsLeader:     isLeader,
		Extended:     extended,
		EndTime:      item.EndTime,
	}, nil
}

// GetMyAutoBid returns the bidder's standing maximum on an item, nil when
// the bidder has no active proxy
func (s *service) GetMyAutoBid(ctx context.Context, itemID, bidderID uuid.UUID) (*values.Money, error) {
	entries, err := s.ledger.ListByItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read bid ledger").WithCause(err)
	}
	return auction.ActiveMaxFor(entries, bidderID), nil
}

// BanBidder records a seller ban and immediately recomputes price and
// leader from the remaining ledger. Banning the current leader must demote
// them without waiting for another bid to trigger resolution.
func (s *service) BanBidder(ctx context.Context, itemID, bidderID, actingSellerID uuid.UUID, reason string) error {
	release := s.locks.acquire(itemID)
	defer release()

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	if actingSellerID != item.SellerID {
		return errors.ErrUnauthorizedActor.WithDetails(map[string]interface{}{"expected": "seller"})
	}
	if item.Status != auction.StatusActive {
		return errors.ErrAuctionClosed
	}

	ban, err := auction.NewBan(itemID, bidderID, actingSellerID, reason)
	if err != nil {
		return errors.NewValidationError("INVALID_BAN", err.Error())
	}

	entries, err := s.ledger.ListByItem(ctx, itemID)
	if err != nil {
		return errors.NewInternalError("failed to read bid ledger").WithCause(err)
	}

	bannedSet, err := s.bans.BannedSet(ctx, itemID)
	if err != nil {
		return errors.NewInternalError("failed to read ban list").WithCause(err)
	}
	bannedSet[bidderID] = struct{}{}

	res := auction.Resolve(auction.ExcludeBanned(entries, bannedSet), item.StepPrice, item.StartPrice)
	if err := item.ApplyResolution(res); err != nil {
		return errors.NewInternalError("failed to apply resolution").WithCause(err)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.bans.Add(ctx, ban); err != nil {
			return err
		}
		return s.items.Update(ctx, item)
	})
	if err != nil {
		return errors.NewInternalError("failed to persist ban").WithCause(err)
	}

	s.publishBidPlaced(ctx, item, false)

	s.logger.InfoContext(ctx, "bidder banned",
		"item_id", itemID,
		"bidder_id", bidderID,
		"current_price", item.CurrentPrice.String(),
	)
	return nil
}

// GetBannedStatus reads the ban list without the item lock; display-only
// reads tolerate slight staleness
func (s *service) GetBannedStatus(ctx context.Context, itemID, bidderID uuid.UUID) (bool, error) {
	banned, err := s.bans.IsBanned(ctx, itemID, bidderID)
	if err != nil {
		return false, errors.NewInternalError("failed to check ban list").WithCause(err)
	}
	return banned, nil
}

// BuyNow bypasses bidding and closes the item at its buy-now price
func (s *service) BuyNow(ctx context.Context, itemID, bidderID uuid.UUID) (*transaction.Transaction, error) {
	release := s.locks.acquire(itemID)
	defer release()

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !item.IsOpenForBidding(now) {
		return nil, errors.ErrAuctionClosed
	}
	if item.BuyNowPrice == nil {
		return nil, errors.ErrBuyNowUnavailable
	}
	if item.CurrentPrice.GreaterThan(*item.BuyNowPrice) {
		// Proxy bidding has already passed the buy-now price.
		return nil, errors.ErrBuyNowUnavailable.WithDetails(map[string]interface{}{
			"current_price": item.CurrentPrice,
		})
	}
	if bidderID == item.SellerID {
		return nil, errors.ErrSellerCannotBid
	}

	banned, err := s.bans.IsBanned(ctx, itemID, bidderID)
	if err != nil {
		return nil, errors.NewInternalError("failed to check ban list").WithCause(err)
	}
	if banned {
		return nil, errors.ErrBidderBanned
	}

	if err := item.MarkSold(bidderID, *item.BuyNowPrice); err != nil {
		return nil, errors.NewInternalError("failed to close item").WithCause(err)
	}

	settlement, err := transaction.NewTransaction(item.ID, item.SellerID, bidderID, item.CurrentPrice)
	if err != nil {
		return nil, err
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.items.Update(ctx, item); err != nil {
			return err
		}
		return s.transactions.Create(ctx, settlement)
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to persist buy-now").WithCause(err)
	}

	s.publishTransactionStateChanged(ctx, settlement)
	if s.metrics != nil {
		s.metrics.RecordAuctionClosed(ctx, true)
	}

	s.logger.InfoContext(ctx, "item bought now",
		"item_id", item.ID,
		"winner_id", bidderID,
		"final_price", item.CurrentPrice.String(),
	)
	return settlement, nil
}

// GetBidHistory renders the full ledger in append order
func (s *service) GetBidHistory(ctx context.Context, itemID uuid.UUID) ([]*auction.ProxyBid, error) {
	entries, err := s.ledger.ListByItem(ctx, itemID)
	if err != nil {
		return nil, errors.NewInternalError("failed to read bid ledger").WithCause(err)
	}
	return entries, nil
}

// GetItem returns the item's current pricing state
func (s *service) GetItem(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	return s.items.GetByID(ctx, itemID)
}

// ListSellerItems returns the seller's open listings
func (s *service) ListSellerItems(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error) {
	items, err := s.items.ListActiveBySeller(ctx, sellerID)
	if err != nil {
		return nil, errors.NewInternalError("failed to list seller items").WithCause(err)
	}
	return items, nil
}

// CloseAuction settles an item past its deadline: Sold with a settlement
// transaction when a leader stands, Expired otherwise
func (s *service) CloseAuction(ctx context.Context, itemID uuid.UUID) (*transaction.Transaction, error) {
	release := s.locks.acquire(itemID)
	defer release()

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if item.Status != auction.StatusActive {
		return nil, errors.ErrAuctionClosed
	}

	now := s.clock.Now()
	if now.Before(item.EndTime) {
		return nil, errors.NewBusinessError("AUCTION_STILL_OPEN", "auction has not reached its end time")
	}

	var settlement *transaction.Transaction
	if item.CurrentLeaderID != nil {
		winnerID := *item.CurrentLeaderID
		if err := item.MarkSold(winnerID, item.CurrentPrice); err != nil {
			return nil, errors.NewInternalError("failed to close item").WithCause(err)
		}

		settlement, err = transaction.NewTransaction(item.ID, item.SellerID, winnerID, item.CurrentPrice)
		if err != nil {
			return nil, err
		}
	} else {
		if err := item.MarkExpired(); err != nil {
			return nil, errors.NewInternalError("failed to expire item").WithCause(err)
		}
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.items.Update(ctx, item); err != nil {
			return err
		}
		if settlement != nil {
			return s.transactions.Create(ctx, settlement)
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewInternalError("failed to persist auction close").WithCause(err)
	}

	if settlement != nil {
		s.publishTransactionStateChanged(ctx, settlement)
	}
	if s.metrics != nil {
		s.metrics.RecordAuctionClosed(ctx, settlement != nil)
	}

	s.logger.InfoContext(ctx, "auction closed",
		"item_id", item.ID,
		"status", item.Status.String(),
	)
	return settlement, nil
}

// SweepExpired settles every Active item whose deadline has passed.
// Run periodically by the scheduler in cmd/api.
func (s *service) SweepExpired(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	expired, err := s.items.ListExpiredActive(ctx, now, limit)
	if err != nil {
		return 0, errors.NewInternalError("failed to list expired items").WithCause(err)
	}

	closed := 0
	for _, item := range expired {
		if _, err := s.CloseAuction(ctx, item.ID); err != nil {
			// A concurrent close is fine; anything else is logged and the
			// sweep moves on so one bad item cannot wedge the loop.
			if !errors.IsType(err, errors.ErrorTypeBusiness) {
				s.logger.ErrorContext(ctx, "failed to close expired auction",
					"item_id", item.ID,
					"error", err,
				)
			}
			continue
		}
		closed++
	}
	return closed, nil
}

// checkBidderReputation enforces the listing's admission policy against the
// bidder's rating totals from the identity collaborator
func (s *service) checkBidderReputation(ctx context.Context, item *auction.Item, bidderID uuid.UUID) error {
	if item.AllowUnratedBidders && item.AllowLowRatingBidders {
		return nil
	}

	summary, err := s.bidders.RatingSummary(ctx, bidderID)
	if err != nil {
		return errors.NewInternalError("failed to resolve bidder reputation").WithCause(err)
	}

	if !item.AllowUnratedBidders && summary.Total() == 0 {
		return errors.ErrUnratedNotAllowed
	}
	if !item.AllowLowRatingBidders && summary.Total() > 0 && summary.PositiveRatio() < minPositiveRatio {
		return errors.ErrLowRatingNotAllowed
	}
	return nil
}

// checkIncrement enforces the admission rules on the declared maximum
func (s *service) checkIncrement(item *auction.Item, entries []*auction.ProxyBid, req *PlaceBidRequest) error {
	// Every comparison below assumes the item's currency.
	if req.MaxAmount.Currency() != item.StartPrice.Currency() {
		return errors.ErrCurrencyMismatch.WithDetails(map[string]interface{}{
			"item_currency": item.StartPrice.Currency(),
			"bid_currency":  req.MaxAmount.Currency(),
		})
	}

	ownMax := auction.ActiveMaxFor(entries, req.BidderID)
	isLeader := item.CurrentLeaderID != nil && *item.CurrentLeaderID == req.BidderID

	// An auto-raise must actually raise.
	if ownMax != nil && !req.MaxAmount.GreaterThan(*ownMax) {
		return s.bidTooLow(item, ownMax.MustAdd(item.StepPrice))
	}

	// A challenger must clear the displayed price by one full step.
	if !isLeader && item.CurrentLeaderID != nil {
		minimum := auction.MinimumLeadingBid(item.CurrentPrice, item.StepPrice)
		if req.MaxAmount.LessThan(minimum) {
			return s.bidTooLow(item, minimum)
		}
	}

	if req.MaxAmount.LessThan(item.StartPrice) {
		return s.bidTooLow(item, item.StartPrice)
	}
	return nil
}

// bidTooLow carries the authoritative current price so the client can
// re-offer without another round trip
func (s *service) bidTooLow(item *auction.Item, minimum values.Money) error {
	return errors.ErrBidTooLow.WithDetails(map[string]interface{}{
		"current_price":      item.CurrentPrice,
		"minimum_acceptable": minimum,
	})
}

func (s *service) reject(ctx context.Context, err error, item *auction.Item) error {
	if s.metrics != nil {
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			s.metrics.RecordBidRejected(ctx, appErr.Code)
		}
	}

	// Rejections still tell the client where the price stands.
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Details == nil && item != nil {
		return appErr.WithDetails(map[string]interface{}{"current_price": item.CurrentPrice})
	}
	return err
}

func (s *service) publishBidPlaced(ctx context.Context, item *auction.Item, extended bool) {
	if s.events == nil {
		return
	}

	event := BidPlacedEvent{
		ItemID:   item.ID,
		NewPrice: item.CurrentPrice,
		LeaderID: item.CurrentLeaderID,
		Extended: extended,
		EndTime:  item.EndTime,
	}
	if err := s.events.PublishBidPlaced(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish bid event", "item_id", item.ID, "error", err)
	}
}

func (s *service) publishTransactionStateChanged(ctx context.Context, tx *transaction.Transaction) {
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
