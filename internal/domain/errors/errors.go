package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies errors for propagation and HTTP mapping
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeBusiness     ErrorType = "business"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying extra context.
// The receiver is copied so predeclared errors stay immutable.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithCause returns a copy of the error wrapping the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		Retryable:  false,
		StatusCode: 404,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		Retryable:  false,
		StatusCode: 401,
	}
}

func NewForbiddenError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 403,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       "CONFLICT",
		Message:    message,
		Retryable:  false,
		StatusCode: 409,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// Bidding taxonomy. Lock exhaustion and storage failures go through
// NewInternalError instead: those are retryable infrastructure faults,
// not rejected bids.
var (
	ErrAuctionClosed       = NewBusinessError("AUCTION_CLOSED", "auction is closed for bidding")
	ErrBidderBanned        = NewForbiddenError("BIDDER_BANNED", "bidder is banned from this auction")
	ErrSellerCannotBid     = NewForbiddenError("SELLER_CANNOT_BID", "sellers cannot bid on their own items")
	ErrUnratedNotAllowed   = NewForbiddenError("UNRATED_NOT_ALLOWED", "this auction does not accept unrated bidders")
	ErrLowRatingNotAllowed = NewForbiddenError("LOW_RATING_NOT_ALLOWED", "this auction does not accept low-rated bidders")
	ErrBidTooLow           = NewBusinessError("BID_TOO_LOW", "bid amount is below the minimum acceptable amount")
	ErrCurrencyMismatch    = NewValidationError("CURRENCY_MISMATCH", "amount currency does not match the item's currency")
	ErrBuyNowUnavailable   = NewBusinessError("BUY_NOW_UNAVAILABLE", "buy-now is not available for this item")
	ErrInvalidTransition   = NewBusinessError("INVALID_TRANSITION", "transaction cannot move to the requested state")
	ErrUnauthorizedActor   = NewForbiddenError("UNAUTHORIZED_ACTOR", "actor is not permitted to perform this action")
	ErrItemNotFound        = NewNotFoundError("auction item")
	ErrTransactionNotFound = NewNotFoundError("transaction")
	ErrBidderNotFound      = NewNotFoundError("bidder")
)

// Is makes predeclared taxonomy errors match wrapped/detailed copies by code
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Type == other.Type
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}
