package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	domainErrors "github.com/bidhaus/auction-backend/internal/domain/errors"
)

// errorResponse is the wire shape of every error
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// writeError maps an error onto an HTTP response. Domain errors carry their
// own status codes and detail payloads; anything else is a 500 with the
// message hidden from the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *domainErrors.AppError
	if stderrors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = http.StatusInternalServerError
		}

		if appErr.Type == domainErrors.ErrorTypeInternal {
			logger.ErrorContext(r.Context(), "internal error",
				"path", r.URL.Path,
				"error", err,
			)
			writeJSON(w, status, errorResponse{Error: errorBody{
				Code:    appErr.Code,
				Message: "internal server error",
			}})
			return
		}

		writeJSON(w, status, errorResponse{Error: errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusRequestTimeout, errorResponse{Error: errorBody{
			Code:    "REQUEST_TIMEOUT",
			Message: "request timed out",
		}})
		return
	}

	logger.ErrorContext(r.Context(), "unhandled error",
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
