package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for every recoverable auth outcome. Handlers and tests
// match on these with errors.Is; the HTTP layer maps them to response codes.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidState       = errors.New("invalid state")
	ErrWeakPassword       = errors.New("weak password")
	ErrRateLimited        = errors.New("rate limited")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrInviteInvalid      = errors.New("invite invalid")
	ErrInviteExpired      = errors.New("invite expired")
	ErrInviteAlreadyUsed  = errors.New("invite already used")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal error")
)

// AppError is a structured application error with an HTTP status mapping.
type AppError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Status     int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
	Err        error         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidCredentials creates the single 401 returned for both an unknown
// email and a wrong password. The message is fixed so the two cases are
// indistinguishable to a caller probing for registered addresses; logs
// carry the distinction.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:    "INVALID_CREDENTIALS",
		Message: "invalid email or password",
		Status:  http.StatusUnauthorized,
		Err:     ErrInvalidCredentials,
	}
}

// InvalidState creates a 409 error for operations attempted in the wrong
// lifecycle state, such as re-running first-login password setup.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    "INVALID_STATE",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrInvalidState,
	}
}

// WeakPassword creates a 400 error for passwords below the minimum length.
func WeakPassword(minLength int) *AppError {
	return &AppError{
		Code:    "WEAK_PASSWORD",
		Message: fmt.Sprintf("password must be at least %d characters", minLength),
		Status:  http.StatusBadRequest,
		Err:     ErrWeakPassword,
	}
}

// RateLimited creates a 429 error carrying the retry hint.
func RateLimited(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    "too many failed attempts, try again later",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Err:        ErrRateLimited,
	}
}

// TokenInvalid creates a 401 error for tokens that fail verification or
// lookup. Replayed refresh tokens deliberately surface as this same error.
func TokenInvalid() *AppError {
	return &AppError{
		Code:    "TOKEN_INVALID",
		Message: "token is invalid",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenInvalid,
	}
}

// TokenExpired creates a 401 error distinguishable from TokenInvalid so
// clients know a refresh attempt is worthwhile.
func TokenExpired() *AppError {
	return &AppError{
		Code:    "TOKEN_EXPIRED",
		Message: "token has expired",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenExpired,
	}
}

// TokenRevoked creates a 401 error that forces a full re-login.
func TokenRevoked() *AppError {
	return &AppError{
		Code:    "TOKEN_REVOKED",
		Message: "token has been revoked",
		Status:  http.StatusUnauthorized,
		Err:     ErrTokenRevoked,
	}
}

// InviteInvalid creates a 401 error for invite tokens with no match.
func InviteInvalid() *AppError {
	return &AppError{
		Code:    "INVITE_INVALID",
		Message: "invite token is invalid",
		Status:  http.StatusUnauthorized,
		Err:     ErrInviteInvalid,
	}
}

// InviteExpired creates a 410 error for invites past their expiry.
func InviteExpired() *AppError {
	return &AppError{
		Code:    "INVITE_EXPIRED",
		Message: "invite has expired",
		Status:  http.StatusGone,
		Err:     ErrInviteExpired,
	}
}

// InviteAlreadyUsed creates a 409 error for consumed invites.
func InviteAlreadyUsed() *AppError {
	return &AppError{
		Code:    "INVITE_ALREADY_USED",
		Message: "invite has already been used",
		Status:  http.StatusConflict,
		Err:     ErrInviteAlreadyUsed,
	}
}

// Unauthorized creates a 401 error for missing or garbled bearer tokens.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error for valid tokens with insufficient
// role or ownership.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// Internal creates a 500 error. The message is fixed so infrastructure
// failures never reveal which step failed.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrInvalidState), errors.Is(err, ErrInviteAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrInviteInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrInviteExpired):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}
