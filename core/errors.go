package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// Error codes carried by AppError.
const (
	CodeNotFound         = "NOT_FOUND"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeConflict         = "CONFLICT"
	CodeValidation       = "VALIDATION_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError is a domain failure. Key is an i18n catalog key used to render the message
// for the caller's locale; Params fill the message placeholders.
type AppError struct {
	Code   string
	Key    string
	Params map[string]interface{}
	Err    error
}

func NewAppError(code, key string, params ...map[string]interface{}) *AppError {
	e := &AppError{Code: code, Key: key}
	if len(params) > 0 {
		e.Params = params[0]
	}
	return e
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Key, e.Err)
	}
	return e.Code + ": " + e.Key
}

// Is makes errors.Is match any AppError sharing the same code and key.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Key == t.Key
}

// With returns a copy of e carrying params.
func (e *AppError) With(params map[string]interface{}) *AppError {
	c := *e
	c.Params = params
	return &c
}

// Wrap returns a copy of e wrapping err.
func (e *AppError) Wrap(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

func NotFound(key string) *AppError         { return NewAppError(CodeNotFound, key) }
func PermissionDenied(key string) *AppError { return NewAppError(CodePermissionDenied, key) }
func Conflict(key string) *AppError         { return NewAppError(CodeConflict, key) }

var ErrPermissionDenied = PermissionDenied("errors.permissionDenied")

// AsAppError finds the first AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code string) bool {
	ae, ok := AsAppError(err)
	return ok && ae.Code == code
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
