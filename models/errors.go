package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies a failure for HTTP mapping and retry semantics.
type ErrorKind int

const (
	// KindValidation — malformed or missing request fields. Not retryable.
	KindValidation ErrorKind = iota
	// KindNotFound — referenced bounty/submission/profile absent.
	KindNotFound
	// KindAuthorization — actor is not allowed to perform the operation.
	KindAuthorization
	// KindConflict — duplicate submission/tx hash, rank already awarded,
	// bounty not open. The request must change, not be retried as-is.
	KindConflict
	// KindPayment — payment proof invalid (wrong amount, wrong recipient,
	// reverted or missing transfer).
	KindPayment
	// KindUpstream — chain RPC or store unreachable/timed out. Retryable.
	KindUpstream
	// KindExecution — payout transaction failed on-chain. Never retried
	// automatically: a blind retry could double-pay.
	KindExecution
)

// AppError carries a user-safe message plus the wrapped internal cause.
// The internal cause is only echoed to clients in development mode.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response status code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindPayment:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindAuthorization:
		return fiber.StatusForbidden
	case KindConflict:
		return fiber.StatusConflict
	case KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func NewValidationError(msg string) *AppError {
	return &AppError{Kind: KindValidation, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Kind: KindNotFound, Message: msg}
}

func NewAuthorizationError(msg string) *AppError {
	return &AppError{Kind: KindAuthorization, Message: msg}
}

func NewConflictError(msg string) *AppError {
	return &AppError{Kind: KindConflict, Message: msg}
}

func NewPaymentError(msg string, err error) *AppError {
	return &AppError{Kind: KindPayment, Message: msg, Err: err}
}

func NewUpstreamError(msg string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Message: msg, Err: err}
}

func NewExecutionError(msg string, err error) *AppError {
	return &AppError{Kind: KindExecution, Message: msg, Err: err}
}
