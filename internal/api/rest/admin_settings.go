package rest

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/bidhaus/auction-backend/internal/service/bidding"
)

// SettingsStore reads and writes the operator's auction policy
type SettingsStore interface {
	AuctionSettings(ctx context.Context) (bidding.AuctionSettings, error)
	UpdateAuctionSettings(ctx context.Context, settings bidding.AuctionSettings) error
}

type adminSettingsRequest struct {
	SnipeTriggerWindowSeconds int `json:"snipe_trigger_window_seconds" validate:"gte=0,lte=86400"`
	SnipeExtensionSeconds     int `json:"snipe_extension_seconds" validate:"gte=0,lte=86400"`
	HighlightWindowSeconds    int `json:"highlight_window_seconds" validate:"gte=0,lte=604800"`
}

type adminSettingsResponse struct {
	SnipeTriggerWindowSeconds int `json:"snipe_trigger_window_seconds"`
	SnipeExtensionSeconds     int `json:"snipe_extension_seconds"`
	HighlightWindowSeconds    int `json:"highlight_window_seconds"`
}

func toAdminSettingsResponse(s bidding.AuctionSettings) adminSettingsResponse {
	return adminSettingsResponse{
		SnipeTriggerWindowSeconds: int(s.TriggerWindow.Seconds()),
		SnipeExtensionSeconds:     int(s.Extension.Seconds()),
		HighlightWindowSeconds:    int(s.HighlightWindow.Seconds()),
	}
}

// AdminKeyMiddleware requires the operator key in the X-Admin-Key header.
// An empty configured key disables the admin surface entirely.
func AdminKeyMiddleware(key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Key")), []byte(key)) != 1 {
				writeJSON(w, http.StatusForbidden, errorResponse{Error: errorBody{
					Code:    "ADMIN_KEY_REQUIRED",
					Message: "a valid admin key is required",
				}})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminSettingsHandlers serves the operator policy endpoints. Changes take
// effect on the next bid admission.
type AdminSettingsHandlers struct {
	settings SettingsStore
	logger   *slog.Logger
}

// NewAdminSettingsHandlers creates the admin settings handlers
func NewAdminSettingsHandlers(settings SettingsStore, logger *slog.Logger) *AdminSettingsHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminSettingsHandlers{settings: settings, logger: logger}
}

func (h *AdminSettingsHandlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.AuctionSettings(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminSettingsResponse(settings))
}

func (h *AdminSettingsHandlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req adminSettingsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	settings := bidding.AuctionSettings{
		TriggerWindow:   time.Duration(req.SnipeTriggerWindowSeconds) * time.Second,
		Extension:       time.Duration(req.SnipeExtensionSeconds) * time.Second,
		HighlightWindow: time.Duration(req.HighlightWindowSeconds) * time.Second,
	}
	if err := h.settings.UpdateAuctionSettings(r.Context(), settings); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "admin settings updated",
		"snipe_trigger_window", settings.TriggerWindow,
		"snipe_extension", settings.Extension,
		"highlight_window", settings.HighlightWindow,
	)
	writeJSON(w, http.StatusOK, toAdminSettingsResponse(settings))
}
