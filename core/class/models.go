package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

const DefaultMaxStudents = 40

// Class statuses
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Enrollment statuses
const (
	EnrollmentPending     = "pending"
	EnrollmentConfirmed   = "confirmed"
	EnrollmentCancelled   = "cancelled"
	EnrollmentTransferred = "transferred"
)

// ActiveEnrollmentStatuses hold a seat in the class.
var ActiveEnrollmentStatuses = []string{EnrollmentPending, EnrollmentConfirmed}

type Class struct {
	ID                string    `json:"id"`
	SchoolID          string    `json:"school_id"`
	SchoolYearID      string    `json:"school_year_id"`
	GradeLevel        string    `json:"grade_level"`
	Section           string    `json:"section"`
	Name              string    `json:"name"`
	HomeroomTeacherID string    `json:"homeroom_teacher_id,omitempty"`
	MaxStudents       int       `json:"max_students"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (c Class) Archived() bool { return c.Status == StatusArchived }

type NewClass struct {
	SchoolYearID      string `json:"school_year_id" validate:"required,uuid"`
	GradeLevel        string `json:"grade_level" validate:"required,max=20"`
	Section           string `json:"section" validate:"omitempty,max=10"`
	Name              string `json:"name" validate:"omitempty,max=100"`
	HomeroomTeacherID string `json:"homeroom_teacher_id" validate:"omitempty,uuid"`
	MaxStudents       int    `json:"max_students" validate:"omitempty,min=1,max=200"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.GradeLevel = core.CleanString(nc.GradeLevel)
	nc.Section = core.CleanString(nc.Section)
	nc.Name = core.CleanString(nc.Name)
	if nc.Name == "" {
		nc.Name = core.CleanString(nc.GradeLevel + " " + nc.Section)
	}
	if nc.MaxStudents == 0 {
		nc.MaxStudents = DefaultMaxStudents
	}
	return validate.Struct(nc)
}

type UpdateClass struct {
	GradeLevel        *string `json:"grade_level" validate:"omitempty,min=1,max=20"`
	Section           *string `json:"section" validate:"omitempty,max=10"`
	Name              *string `json:"name" validate:"omitempty,min=1,max=100"`
	HomeroomTeacherID *string `json:"homeroom_teacher_id" validate:"omitempty,uuid"`
	MaxStudents       *int    `json:"max_students" validate:"omitempty,min=1,max=200"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type QueryFilter struct {
	SchoolID     string `query:"-"`
	SchoolYearID string `query:"school_year_id"`
	GradeLevel   string `query:"grade_level"`
	Status       string `query:"status"`
	Search       string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.GradeLevel = core.CleanString(qf.GradeLevel)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// ClassSubject assigns a subject and its teacher to a class.
type ClassSubject struct {
	ID           string    `json:"id"`
	ClassID      string    `json:"class_id"`
	SubjectID    string    `json:"subject_id"`
	TeacherID    string    `json:"teacher_id,omitempty"`
	Coefficient  float64   `json:"coefficient"`
	HoursPerWeek int       `json:"hours_per_week"`
	CreatedAt    time.Time `json:"created_at"`
}

type NewClassSubject struct {
	SubjectID    string  `json:"subject_id" validate:"required,uuid"`
	TeacherID    string  `json:"teacher_id" validate:"omitempty,uuid"`
	Coefficient  float64 `json:"coefficient" validate:"omitempty,gt=0,max=10,quarter"`
	HoursPerWeek int     `json:"hours_per_week" validate:"omitempty,min=0,max=40"`
}

func (ns *NewClassSubject) Validate(validate *validator.Validate) error {
	if ns.Coefficient == 0 {
		ns.Coefficient = 1
	}
	return validate.Struct(ns)
}

type Enrollment struct {
	ID                 string    `json:"id"`
	StudentID          string    `json:"student_id"`
	ClassID            string    `json:"class_id"`
	SchoolYearID       string    `json:"school_year_id"`
	Status             string    `json:"status"`
	EnrollmentDate     string    `json:"enrollment_date"`
	CancellationReason string    `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// EnrolledStudent is a class roster line.
type EnrolledStudent struct {
	Enrollment
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Matricule string `json:"matricule"`
}

type NewEnrollment struct {
	StudentID      string `json:"student_id" validate:"required,uuid"`
	EnrollmentDate string `json:"enrollment_date" validate:"omitempty,isodate"`
	Confirmed      bool   `json:"confirmed"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	if ne.EnrollmentDate == "" {
		ne.EnrollmentDate = core.Today()
	}
	return validate.Struct(ne)
}

type CancelEnrollment struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (ce *CancelEnrollment) Validate(validate *validator.Validate) error {
	ce.Reason = core.CleanString(ce.Reason)
	return validate.Struct(ce)
}
