package tools

import "fmt"

// Code is a protocol error code.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeInvalidLayer   Code = "INVALID_LAYER"
	CodeInvalidContent Code = "INVALID_CONTENT"
	CodeInvalidQuery   Code = "INVALID_QUERY"
	CodeRateLimit      Code = "RATE_LIMIT_EXCEEDED"
	CodeDatabase       Code = "DATABASE_ERROR"
	CodeConnection     Code = "CONNECTION_ERROR"
	CodeWrite          Code = "WRITE_ERROR"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeUnknownTool    Code = "UNKNOWN_TOOL"
	CodeConfiguration  Code = "CONFIGURATION_ERROR"
)

// statusFor maps codes onto HTTP-flavored status values.
func statusFor(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeInvalidLayer, CodeInvalidContent, CodeInvalidQuery, CodeUnknownTool:
		return 400
	case CodeRateLimit:
		return 429
	case CodeConfiguration:
		return 503
	default:
		return 500
	}
}

// Error is a protocol-level failure carrying a code and optional details.
type Error struct {
	Code         Code
	Message      string
	RetryAfterMs int64
	Details      map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// fieldError names the offending field on a validation failure.
func fieldError(code Code, field, format string, args ...any) *Error {
	e := Errorf(code, format, args...)
	e.Details = map[string]any{"field": field}
	return e
}

// storeError wraps a storage failure. The raw engine message lands in
// details after sanitization; the user-visible message stays generic.
func storeError(code Code, err error) *Error {
	return &Error{
		Code:    code,
		Message: "storage operation failed",
		Details: map[string]any{"store": Sanitize(err.Error())},
	}
}
