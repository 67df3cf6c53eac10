package rest

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds the router's middleware knobs
type RouterConfig struct {
	RateLimiter       DistributedRateLimiter
	RequestsPerSecond int
	BurstSize         int
	Logger            *slog.Logger

	// Admin surface; left nil/empty, the routes are not registered
	AdminKey string
	Admin    *AdminSettingsHandlers
}

// NewRouter assembles the API surface. Read endpoints are public; anything
// that acts as a user requires a Bearer token.
func NewRouter(handlers *Handlers, hub *Hub, health http.HandlerFunc, cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler {
		return AuthMiddleware(handlers.auth)(h)
	}

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", handlers.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", handlers.handleLogin)

	// Items and bidding
	mux.Handle("POST /api/v1/items", authed(handlers.handleCreateItem))
	mux.Handle("GET /api/v1/users/me/items", authed(handlers.handleListMyItems))
	mux.HandleFunc("GET /api/v1/items/{id}", handlers.handleGetItem)
	mux.HandleFunc("GET /api/v1/items/{id}/price", handlers.handleGetItemPrice)
	mux.HandleFunc("GET /api/v1/items/{id}/bids", handlers.handleGetBidHistory)
	mux.Handle("POST /api/v1/items/{id}/bids", authed(handlers.handlePlaceBid))
	mux.Handle("GET /api/v1/items/{id}/autobid", authed(handlers.handleGetAutoBid))
	mux.Handle("POST /api/v1/items/{id}/bans", authed(handlers.handleBanBidder))
	mux.HandleFunc("GET /api/v1/items/{id}/bans/{bidderID}", handlers.handleGetBannedStatus)
	mux.Handle("POST /api/v1/items/{id}/buy-now", authed(handlers.handleBuyNow))

	// Settlement
	mux.Handle("GET /api/v1/transactions", authed(handlers.handleListMyTransactions))
	mux.Handle("GET /api/v1/transactions/{id}", authed(handlers.handleGetTransaction))
	mux.Handle("POST /api/v1/transactions/{id}/payment", authed(handlers.handleUploadPaymentProof))
	mux.Handle("POST /api/v1/transactions/{id}/shipping", authed(handlers.handleUploadShippingProof))
	mux.Handle("POST /api/v1/transactions/{id}/receipt", authed(handlers.handleConfirmReceipt))
	mux.Handle("POST /api/v1/transactions/{id}/cancel", authed(handlers.handleCancelTransaction))
	mux.Handle("POST /api/v1/transactions/{id}/ratings", authed(handlers.handlePostRating))

	// Reputation
	mux.HandleFunc("GET /api/v1/users/{id}", handlers.handleGetUser)
	mux.HandleFunc("GET /api/v1/users/{id}/ratings", handlers.handleListRatings)

	// Operator policy
	if cfg.Admin != nil && cfg.AdminKey != "" {
		adminOnly := AdminKeyMiddleware(cfg.AdminKey)
		mux.Handle("GET /api/v1/admin/settings", adminOnly(http.HandlerFunc(cfg.Admin.handleGetSettings)))
		mux.Handle("PUT /api/v1/admin/settings", adminOnly(http.HandlerFunc(cfg.Admin.handleUpdateSettings)))
	}

	// Live feed
	if hub != nil {
		mux.HandleFunc("GET /ws/items/{id}", hub.HandleItemFeed)
	}

	// Operational
	mux.HandleFunc("GET /healthz", health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return chain(mux,
		RecoveryMiddleware(cfg.Logger),
		RequestIDMiddleware(),
		RequestLoggingMiddleware(cfg.Logger),
		RateLimitMiddleware(cfg.RateLimiter, cfg.RequestsPerSecond, cfg.BurstSize, cfg.Logger),
	)
}
