package http

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code.
const (
	CodeBadRequest      = "ERR_BAD_REQUEST"
	CodeNotFound        = "ERR_NOT_FOUND"
	CodeConflict        = "ERR_CONFLICT"
	CodeUnavailable     = "ERR_UNAVAILABLE"
	CodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
	CodeInternal        = "ERR_INTERNAL"
)

// AppError is an error with an HTTP status, rendered inside the APIResponse envelope.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError records the cause; it is logged but never serialized.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func NotFoundError(message string) *AppError {
	return NewAppError(CodeNotFound, "", message, http.StatusNotFound)
}

func BadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, "", message, http.StatusBadRequest)
}

func ConflictError(message string) *AppError {
	return NewAppError(CodeConflict, "", message, http.StatusConflict)
}

func ServiceUnavailableError(message string) *AppError {
	return NewAppError(CodeUnavailable, "", message, http.StatusServiceUnavailable)
}

func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeTooManyRequests, "", message, http.StatusTooManyRequests)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}

// ErrorRule maps errors matching Target (errors.Is) to an AppError.
type ErrorRule struct {
	Target error
	Build  func(err error) *AppError
}

// ErrorMap resolves errors against its rules in order. An AppError anywhere in
// the chain wins; unmatched errors become a 500 with Fallback as the message.
type ErrorMap struct {
	Rules    []ErrorRule
	Fallback string
}

// Resolve returns the AppError for err with err recorded as its cause.
func (m ErrorMap) Resolve(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, r := range m.Rules {
		if errors.Is(err, r.Target) {
			return r.Build(err).WithError(err)
		}
	}
	msg := m.Fallback
	if msg == "" {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	return InternalError(msg).WithError(err)
}
