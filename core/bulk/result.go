// Package bulk holds what batch operations share: per-row error reporting and
// tabular (CSV/XLSX) input parsing.
package bulk

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

// RowError reports why one row of a batch failed. Error holds the catalog key
// until Localize renders it.
type RowError struct {
	Row   int    `json:"row,omitempty"`
	ID    string `json:"id,omitempty"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error"`

	key    string
	params map[string]interface{}
	fldErr validator.FieldError
}

// Key returns the catalog key of the error, if any.
func (e RowError) Key() string { return e.key }

// NewRowError returns a RowError rendered from a catalog key.
func NewRowError(row int, field, value, key string, params ...map[string]interface{}) RowError {
	e := RowError{Row: row, Field: field, Value: value, Error: key, key: key}
	if len(params) > 0 {
		e.params = params[0]
	}
	return e
}

// FromError converts err into row errors: one per field for validation errors,
// the AppError key otherwise.
func FromError(row int, err error) []RowError {
	switch e := err.(type) {
	case validator.ValidationErrors:
		errs := make([]RowError, 0, len(e))
		for _, fe := range e {
			errs = append(errs, RowError{
				Row:    row,
				Field:  fe.Field(),
				Error:  fe.Error(),
				fldErr: fe,
			})
		}
		return errs
	case *core.ValidationError:
		errs := make([]RowError, 0, len(e.Fields))
		for _, fe := range e.Fields {
			errs = append(errs, RowError{Row: row, Field: fe.Field, Error: fe.Error})
		}
		if len(errs) == 0 {
			errs = append(errs, RowError{Row: row, Error: e.Error()})
		}
		return errs
	}
	if ae, ok := core.AsAppError(err); ok {
		return []RowError{{Row: row, Error: ae.Key, key: ae.Key, params: ae.Params}}
	}
	return []RowError{{Row: row, Error: err.Error()}}
}

// Localize renders every error for locale.
func Localize(errs []RowError, cat *core.Catalog, uni *ut.UniversalTranslator, locale string) {
	for i := range errs {
		e := &errs[i]
		switch {
		case e.fldErr != nil && uni != nil:
			e.Error = e.fldErr.Translate(core.Translator(uni, locale))
		case e.key != "" && cat != nil:
			e.Error = cat.T(locale, e.key, e.params)
		}
	}
}

// Result counts the outcome of a batch.
type Result struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Errors    []RowError `json:"errors"`
}

func NewResult(total int) Result {
	return Result{Total: total, Errors: []RowError{}}
}

// Fail records errs and counts the row as failed.
func (r *Result) Fail(errs ...RowError) {
	r.Failed++
	r.Errors = append(r.Errors, errs...)
}

func (r *Result) Succeed() { r.Succeeded++ }

func (r *Result) Localize(cat *core.Catalog, uni *ut.UniversalTranslator, locale string) {
	Localize(r.Errors, cat, uni, locale)
}
