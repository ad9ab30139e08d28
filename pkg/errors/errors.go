package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes into the classes the API maps to HTTP statuses.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnprocessable   Kind = "unprocessable"
	KindInternal        Kind = "internal"
)

// ErrorCode is the machine-readable code returned to clients.
type ErrorCode string

const (
	CodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	CodeInvalidTimeFormat       ErrorCode = "INVALID_TIME_FORMAT"
	CodeNotAuthenticated        ErrorCode = "NOT_AUTHENTICATED"
	CodeForbidden               ErrorCode = "FORBIDDEN"
	CodeNotFound                ErrorCode = "NOT_FOUND"
	CodeSlotNoLongerAvailable   ErrorCode = "SLOT_NO_LONGER_AVAILABLE"
	CodeProposalNotDraft        ErrorCode = "PROPOSAL_NOT_DRAFT"
	CodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	CodeEmptyProposal           ErrorCode = "EMPTY_PROPOSAL"
	CodeUnknownRecipient        ErrorCode = "UNKNOWN_RECIPIENT"
	CodeInternal                ErrorCode = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind      `json:"-"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func Validation(message string, err error) *AppError {
	return &AppError{Kind: KindValidation, Code: CodeValidationFailed, Message: message, Err: err}
}

func InvalidTimeFormat(value string, err error) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Code:    CodeInvalidTimeFormat,
		Message: fmt.Sprintf("invalid time format: %q", value),
		Err:     err,
	}
}

func Unauthenticated(err error) *AppError {
	return &AppError{Kind: KindUnauthenticated, Code: CodeNotAuthenticated, Message: "not authenticated", Err: err}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: CodeForbidden, Message: message}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func SlotNoLongerAvailable(err error) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    CodeSlotNoLongerAvailable,
		Message: "the requested time slot is no longer available",
		Err:     err,
	}
}

func ProposalNotDraft(status string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    CodeProposalNotDraft,
		Message: fmt.Sprintf("proposal is %s, expected draft", status),
	}
}

func InvalidStatusTransition(from, to string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    CodeInvalidStatusTransition,
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
	}
}

func EmptyProposal() *AppError {
	return &AppError{Kind: KindUnprocessable, Code: CodeEmptyProposal, Message: "proposal has no slots"}
}

func UnknownRecipient(err error) *AppError {
	return &AppError{Kind: KindUnprocessable, Code: CodeUnknownRecipient, Message: "proposal recipient does not exist", Err: err}
}

func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: CodeInternal, Message: "internal server error", Err: err}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
