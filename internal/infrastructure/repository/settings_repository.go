package repository

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidhaus/auction-backend/internal/domain/errors"
	"github.com/bidhaus/auction-backend/internal/infrastructure/config"
	"github.com/bidhaus/auction-backend/internal/service/bidding"
)

// SettingsRepository implements bidding.SettingsProvider from the single
// admin_settings row. Admins change the anti-sniping policy at runtime;
// bids pick up the new values on their next admission. A short TTL cache
// keeps the hot bid path from hammering the row.
type SettingsRepository struct {
	pool     *pgxpool.Pool
	defaults config.AuctionConfig
	ttl      time.Duration

	mu        sync.Mutex
	cached    bidding.AuctionSettings
	fetchedAt time.Time
}

// NewSettingsRepository creates a settings repository with config fallbacks
func NewSettingsRepository(pool *pgxpool.Pool, defaults config.AuctionConfig) *SettingsRepository {
	return &SettingsRepository{
		pool:     pool,
		defaults: defaults,
		ttl:      defaults.SettingsCacheTTL,
	}
}

// AuctionSettings returns the current operator policy
func (r *SettingsRepository) AuctionSettings(ctx context.Context) (bidding.AuctionSettings, error) {
	r.mu.Lock()
	if r.ttl > 0 && time.Since(r.fetchedAt) < r.ttl {
		settings := r.cached
		r.mu.Unlock()
		return settings, nil
	}
	r.mu.Unlock()

	settings, err := r.fetch(ctx)
	if err != nil {
		return bidding.AuctionSettings{}, err
	}

	r.mu.Lock()
	r.cached = settings
	r.fetchedAt = time.Now()
	r.mu.Unlock()
	return settings, nil
}

// UpdateAuctionSettings writes the operator policy and invalidates the cache
func (r *SettingsRepository) UpdateAuctionSettings(ctx context.Context, settings bidding.AuctionSettings) error {
	query := `
		UPDATE admin_settings SET
			snipe_trigger_window_seconds = $1,
			snipe_extension_seconds = $2,
			highlight_window_seconds = $3,
			updated_at = NOW()
		WHERE id = 1`

	_, err := r.pool.Exec(ctx, query,
		int(settings.TriggerWindow.Seconds()),
		int(settings.Extension.Seconds()),
		int(settings.HighlightWindow.Seconds()),
	)
	if err != nil {
		return errors.NewInternalError("failed to update settings").WithCause(err)
	}

	r.mu.Lock()
	r.fetchedAt = time.Time{}
	r.mu.Unlock()
	return nil
}

func (r *SettingsRepository) fetch(ctx context.Context) (bidding.AuctionSettings, error) {
	query := `
		SELECT snipe_trigger_window_seconds, snipe_extension_seconds, highlight_window_seconds
		FROM admin_settings
		WHERE id = 1`

	var trigger, extension, highlight int
	err := r.pool.QueryRow(ctx, query).Scan(&trigger, &extension, &highlight)
	if stderrors.Is(err, pgx.ErrNoRows) {
		// Unseeded database falls back to the config defaults.
		return bidding.AuctionSettings{
			TriggerWindow:   r.defaults.SnipeTriggerWindow,
			Extension:       r.defaults.SnipeExtension,
			HighlightWindow: r.defaults.HighlightWindow,
		}, nil
	}
	if err != nil {
		return bidding.AuctionSettings{}, errors.NewInternalError("failed to load settings").WithCause(err)
	}

	return bidding.AuctionSettings{
		TriggerWindow:   time.Duration(trigger) * time.Second,
		Extension:       time.Duration(extension) * time.Second,
		HighlightWindow: time.Duration(highlight) * time.Second,
	}, nil
}
