package errors

import "fmt"

// ApplicationError represents a domain-specific error
type ApplicationError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	Status    int         `json:"-"`
	Retryable bool        `json:"-"`
}

func (e *ApplicationError) Error() string {
	return e.Message
}

// FieldError carries field-level validation detail
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error constructors
func NewValidationError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Status:  400,
	}
}

func NewFieldValidationError(message string, fields []FieldError) *ApplicationError {
	return &ApplicationError{
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: fields,
		Status:  400,
	}
}

func NewNotFoundError(resource string) *ApplicationError {
	return &ApplicationError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  404,
	}
}

func NewConcurrencyError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "CONCURRENCY_ERROR",
		Message: message,
		Status:  409,
	}
}

func NewDatabaseError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "DATABASE_ERROR",
		Message: message,
		Status:  500,
	}
}

func NewPaymentProviderError(message string, retryable bool) *ApplicationError {
	return &ApplicationError{
		Code:      "PAYMENT_PROVIDER_ERROR",
		Message:   message,
		Status:    502,
		Retryable: retryable,
	}
}

func NewCardDeclinedError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "CARD_DECLINED",
		Message: message,
		Status:  402,
	}
}

func NewSignatureError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "SIGNATURE_ERROR",
		Message: message,
		Status:  400,
	}
}

func NewTimeoutError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "TIMEOUT_ERROR",
		Message: message,
		Status:  504,
	}
}

func NewUnauthorizedError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  401,
	}
}

func NewForbiddenError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  403,
	}
}

func NewInternalError(message string) *ApplicationError {
	return &ApplicationError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  500,
	}
}

// IsRetryable reports whether err is a transient provider/network failure
// worth another attempt.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*ApplicationError); ok {
		return appErr.Retryable
	}
	return false
}

// HasCode reports whether err is an ApplicationError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := err.(*ApplicationError)
	return ok && appErr.Code == code
}
