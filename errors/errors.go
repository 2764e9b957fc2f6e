package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/NomadCrew/feedback-attestation/logger"
)

type ErrorType string

const (
	ValidationError   ErrorType = "VALIDATION_ERROR"
	NotFoundError     ErrorType = "NOT_FOUND"
	AuthError         ErrorType = "AUTHENTICATION_ERROR"
	ServerError       ErrorType = "SERVER_ERROR"
	ForbiddenError    ErrorType = "FORBIDDEN"
	RateLimitError    ErrorType = "RATE_LIMIT_EXCEEDED"
	StoreError        ErrorType = "STORE_ERROR"
	ErrorTypeConflict ErrorType = "CONFLICT"

	// Attestation submission failures. These normally end up as the status
	// text of a form session rather than as an HTTP error.
	ProviderUnavailableError  ErrorType = "PROVIDER_UNAVAILABLE"
	AccountRequestDeniedError ErrorType = "ACCOUNT_REQUEST_DENIED"
	EncodingFaultError        ErrorType = "ENCODING_FAULT"
	SubmissionRejectedError   ErrorType = "SUBMISSION_REJECTED"
	ConfirmationTimeoutError  ErrorType = "CONFIRMATION_TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the raw cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// GetHTTPStatus returns the status code the error handler should respond with.
func (e *AppError) GetHTTPStatus() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return getHTTPStatus(e.Type)
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	httpStatus := getHTTPStatus(errType)
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == errType
}

// Helper functions for common errors
func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(message string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

func NewStoreError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Form store error", "error", err)
	return &AppError{
		Type:       StoreError,
		Message:    "Form store operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitError,
		Message:    message,
		Detail:     fmt.Sprintf("retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func Unauthorized(code, message string) error {
	return NewError(
		AuthError,
		code,
		message,
		http.StatusUnauthorized,
	)
}

// ProviderUnavailable reports that no wallet provider is configured or reachable.
func ProviderUnavailable(detail string) *AppError {
	return &AppError{
		Type:       ProviderUnavailableError,
		Message:    "Wallet provider is not available",
		Detail:     detail,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

func AccountRequestDenied(err error) *AppError {
	appErr := Wrap(err, AccountRequestDeniedError, "Wallet account request was denied")
	if appErr == nil {
		appErr = New(AccountRequestDeniedError, "Wallet account request was denied", "no accounts returned")
	}
	return appErr
}

func EncodingFault(field string, err error) *AppError {
	appErr := Wrap(err, EncodingFaultError, fmt.Sprintf("Invalid value for field %q", field))
	if appErr == nil {
		appErr = New(EncodingFaultError, fmt.Sprintf("Invalid value for field %q", field), "")
	}
	return appErr
}

func SubmissionRejected(err error) *AppError {
	return Wrap(err, SubmissionRejectedError, "Attestation transaction was rejected")
}

func ConfirmationTimeout(err error) *AppError {
	return Wrap(err, ConfirmationTimeoutError, "Timed out waiting for attestation confirmation")
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError, EncodingFaultError:
		return http.StatusBadRequest
	case NotFoundError:
		return http.StatusNotFound
	case AuthError:
		return http.StatusUnauthorized
	case ForbiddenError, AccountRequestDeniedError:
		return http.StatusForbidden
	case ErrorTypeConflict:
		return http.StatusConflict
	case RateLimitError:
		return http.StatusTooManyRequests
	case ProviderUnavailableError:
		return http.StatusServiceUnavailable
	case SubmissionRejectedError:
		return http.StatusBadGateway
	case ConfirmationTimeoutError:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func NewError(errType ErrorType, code string, message string, status int) error {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}
