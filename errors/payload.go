package errors

import (
	stderrors "errors"
)

// Payload is the serializable form of an AppError carried across the worker wire.
type Payload struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     string         `json:"cause,omitempty"`
}

// ToPayload converts an AppError to a Payload for serialization.
func (e *AppError) ToPayload() *Payload {
	p := &Payload{
		Code:      e.Code,
		Message:   e.Message,
		Retryable: e.Retryable,
		Details:   e.Details,
	}
	if e.Cause != nil {
		p.Cause = e.Cause.Error()
	}
	return p
}

// FromPayload restores an AppError from its wire form. The cause, if any,
// comes back as a plain error carrying the original message.
func FromPayload(p *Payload) *AppError {
	if p == nil {
		return nil
	}
	e := &AppError{
		Code:      p.Code,
		Message:   p.Message,
		Retryable: p.Retryable,
		Details:   p.Details,
	}
	if p.Cause != "" {
		e.Cause = stderrors.New(p.Cause)
	}
	return e
}

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// From returns err as an AppError, wrapping foreign errors as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// Family returns the error family of err, or the empty string for nil.
func Family(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := AsAppError(err); ok {
		return FamilyOf(appErr.Code)
	}
	return FamilyGeneral
}

// NodeOf returns the name of the node an error originated from, if recorded.
func NodeOf(err error) string {
	appErr, ok := AsAppError(err)
	if !ok || appErr.Details == nil {
		return ""
	}
	if node, ok := appErr.Details["node"].(string); ok {
		return node
	}
	return ""
}
