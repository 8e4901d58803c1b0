package school

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
)

// School statuses
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

var Statuses = []string{StatusActive, StatusInactive, StatusSuspended}

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	LogoURL   string    `json:"logo_url"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSchool contains information needed to create a new School.
type NewSchool struct {
	Name    string `json:"name" validate:"required,max=255"`
	Code    string `json:"code" validate:"required,max=50"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Phone   string `json:"phone" validate:"omitempty,max=50"`
	Email   string `json:"email" validate:"omitempty,email"`
	LogoURL string `json:"logo_url" validate:"omitempty,url"`
}

func (ns *NewSchool) Clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = NormalizeCode(ns.Code)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.LogoURL = core.CleanString(ns.LogoURL)
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

// UpdateSchool defines what information may be provided to modify an existing School.
type UpdateSchool struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Email   *string `json:"email" validate:"omitempty,email"`
	LogoURL *string `json:"logo_url" validate:"omitempty,url"`
	Status  *string `json:"status" validate:"omitempty,oneof=active inactive suspended"`
}

func (us *UpdateSchool) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

type QueryFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
}

// BulkCreate is the input of a batch school creation.
type BulkCreate struct {
	Schools        []NewSchool `json:"schools"`
	SkipDuplicates bool        `json:"skip_duplicates"`
}

// BulkError reports a failed row of a batch school creation. Index is the
// 0-based position of the row in the batch, Row its line in an imported file.
type BulkError struct {
	Index int    `json:"index"`
	Row   int    `json:"row,omitempty"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`

	cause bulk.RowError
}

// Key returns the catalog key of the error, if any.
func (e BulkError) Key() string { return e.cause.Key() }

// BulkResult reports a batch school creation. Success is false when a row
// failed and duplicates were not asked to be skipped.
type BulkResult struct {
	Success   bool        `json:"success"`
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Created   []School    `json:"created"`
	Errors    []BulkError `json:"errors"`
}

func newBulkResult(total int) BulkResult {
	return BulkResult{Total: total, Created: []School{}, Errors: []BulkError{}}
}

// fail counts the row at index as failed.
func (res *BulkResult) fail(index int, code string, errs ...bulk.RowError) {
	res.Failed++
	for _, e := range errs {
		res.Errors = append(res.Errors, BulkError{Index: index, Code: code, Field: e.Field, Error: e.Error, cause: e})
	}
}

// Localize renders every error for locale.
func (res *BulkResult) Localize(cat *core.Catalog, uni *ut.UniversalTranslator, locale string) {
	for i := range res.Errors {
		errs := []bulk.RowError{res.Errors[i].cause}
		bulk.Localize(errs, cat, uni, locale)
		res.Errors[i].Error = errs[0].Error
	}
}

type SchoolYear struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type NewSchoolYear struct {
	Name      string `json:"name" validate:"required,max=50"`
	StartDate string `json:"start_date" validate:"required,isodate"`
	EndDate   string `json:"end_date" validate:"required,isodate"`
	IsActive  bool   `json:"is_active"`
}

func (ny *NewSchoolYear) Validate(validate *validator.Validate) error {
	ny.Name = core.CleanString(ny.Name)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	if ny.EndDate <= ny.StartDate {
		return ErrInvalidDates
	}
	return nil
}

type Term struct {
	ID           string    `json:"id"`
	SchoolYearID string    `json:"school_year_id"`
	Name         string    `json:"name"`
	Order        int       `json:"order"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewTerm struct {
	SchoolYearID string `json:"school_year_id" validate:"required,uuid"`
	Name         string `json:"name" validate:"required,max=50"`
	Order        int    `json:"order" validate:"required,min=1,max=6"`
	StartDate    string `json:"start_date" validate:"required,isodate"`
	EndDate      string `json:"end_date" validate:"required,isodate"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	if nt.EndDate <= nt.StartDate {
		return ErrInvalidDates
	}
	return nil
}

type Subject struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

type NewSubject struct {
	Name string `json:"name" validate:"required,max=100"`
	Code string `json:"code" validate:"required,max=20"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = NormalizeCode(ns.Code)
	return validate.Struct(ns)
}
