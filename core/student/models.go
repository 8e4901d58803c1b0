package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
)

// Genders
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "other"
)

// Student statuses
const (
	StatusActive      = "active"
	StatusGraduated   = "graduated"
	StatusTransferred = "transferred"
	StatusWithdrawn   = "withdrawn"
)

type Student struct {
	ID               string    `json:"id"`
	SchoolID         string    `json:"school_id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	DOB              string    `json:"dob"`
	Gender           string    `json:"gender,omitempty"`
	Matricule        string    `json:"matricule"`
	Status           string    `json:"status"`
	BirthPlace       string    `json:"birth_place,omitempty"`
	Nationality      string    `json:"nationality,omitempty"`
	Address          string    `json:"address,omitempty"`
	EmergencyContact string    `json:"emergency_contact,omitempty"`
	EmergencyPhone   string    `json:"emergency_phone,omitempty"`
	PreviousSchool   string    `json:"previous_school,omitempty"`
	AdmissionDate    string    `json:"admission_date,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (s Student) FullName() string {
	return s.LastName + " " + s.FirstName
}

type NewStudent struct {
	FirstName        string `json:"first_name" validate:"required,max=100"`
	LastName         string `json:"last_name" validate:"required,max=100"`
	DOB              string `json:"dob" validate:"required,isodate"`
	Gender           string `json:"gender" validate:"omitempty,oneof=M F other"`
	Matricule        string `json:"matricule" validate:"omitempty,max=30"`
	BirthPlace       string `json:"birth_place" validate:"omitempty,max=100"`
	Nationality      string `json:"nationality" validate:"omitempty,max=50"`
	Address          string `json:"address" validate:"omitempty,max=500"`
	EmergencyContact string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone   string `json:"emergency_phone" validate:"omitempty,max=30"`
	PreviousSchool   string `json:"previous_school" validate:"omitempty,max=200"`
	AdmissionDate    string `json:"admission_date" validate:"omitempty,isodate"`
}

func (ns *NewStudent) Clean() {
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.DOB = core.CleanString(ns.DOB)
	ns.Matricule = NormalizeMatricule(ns.Matricule)
	ns.BirthPlace = core.CleanString(ns.BirthPlace)
	ns.Nationality = core.CleanString(ns.Nationality)
	ns.Address = core.CleanString(ns.Address)
	ns.EmergencyContact = core.CleanString(ns.EmergencyContact)
	ns.EmergencyPhone = core.CleanString(ns.EmergencyPhone)
	ns.PreviousSchool = core.CleanString(ns.PreviousSchool)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Clean()
	return validate.Struct(ns)
}

type UpdateStudent struct {
	FirstName        *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName         *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	DOB              *string `json:"dob" validate:"omitempty,isodate"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=M F other"`
	Status           *string `json:"status" validate:"omitempty,oneof=active graduated transferred withdrawn"`
	BirthPlace       *string `json:"birth_place" validate:"omitempty,max=100"`
	Nationality      *string `json:"nationality" validate:"omitempty,max=50"`
	Address          *string `json:"address" validate:"omitempty,max=500"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone   *string `json:"emergency_phone" validate:"omitempty,max=30"`
	PreviousSchool   *string `json:"previous_school" validate:"omitempty,max=200"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

type QueryFilter struct {
	SchoolID string `query:"-"`
	Search   string `query:"search"`
	Status   string `query:"status"`
	Gender   string `query:"gender"`
	ClassID  string `query:"class_id"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Gender = core.CleanString(qf.Gender)
	qf.ClassID = core.CleanString(qf.ClassID)
}

// ImportRow is a student parsed from an import file. Row is its line in the
// file, the header being row 1.
type ImportRow struct {
	Row int `json:"row,omitempty"`
	NewStudent
}

// ImportResult reports a bulk import. Rows missing a first or last name are skipped.
type ImportResult struct {
	bulk.Result
	Skipped int `json:"skipped"`
}

// ImportValidation is the dry-run report of an import.
type ImportValidation struct {
	IsValid     bool            `json:"is_valid"`
	TotalRows   int             `json:"total_rows"`
	ValidRows   int             `json:"valid_rows"`
	InvalidRows int             `json:"invalid_rows"`
	Errors      []bulk.RowError `json:"errors"`
	Preview     []NewStudent    `json:"preview"`
}

func (iv *ImportValidation) invalid(errs ...bulk.RowError) {
	iv.IsValid = false
	iv.InvalidRows++
	iv.Errors = append(iv.Errors, errs...)
}
