package grade

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

const (
	MinValue      = 0
	MaxValue      = 20
	DefaultWeight = 1
)

// Grade types
const (
	TypeQuiz          = "quiz"
	TypeTest          = "test"
	TypeExam          = "exam"
	TypeParticipation = "participation"
	TypeHomework      = "homework"
	TypeProject       = "project"
)

var Types = []string{TypeQuiz, TypeTest, TypeExam, TypeParticipation, TypeHomework, TypeProject}

// Grade statuses
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusValidated = "validated"
	StatusRejected  = "rejected"
)

var Statuses = []string{StatusDraft, StatusSubmitted, StatusValidated, StatusRejected}

// Validation history actions
const (
	ActionSubmitted = "submitted"
	ActionValidated = "validated"
	ActionRejected  = "rejected"
	ActionEdited    = "edited"
)

// ValidateValue checks v is a finite quarter point between 0 and 20.
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || !core.IsQuarterStep(v) {
		return ErrInvalidValue
	}
	if v < MinValue || v > MaxValue {
		return ErrOutOfRange
	}
	return nil
}

type Grade struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	ClassID         string     `json:"class_id"`
	SubjectID       string     `json:"subject_id"`
	TermID          string     `json:"term_id"`
	TeacherID       string     `json:"teacher_id"`
	Value           float64    `json:"value"`
	Type            string     `json:"type"`
	Weight          int        `json:"weight"`
	Description     string     `json:"description,omitempty"`
	GradeDate       string     `json:"grade_date"`
	Status          string     `json:"status"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	ValidatedAt     *time.Time `json:"validated_at,omitempty"`
	ValidatedBy     string     `json:"validated_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Editable reports whether the grade value can still change.
func (g Grade) Editable() bool {
	return g.Status == StatusDraft || g.Status == StatusRejected
}

type NewGrade struct {
	StudentID   string   `json:"student_id" validate:"required,uuid"`
	ClassID     string   `json:"class_id" validate:"required,uuid"`
	SubjectID   string   `json:"subject_id" validate:"required,uuid"`
	TermID      string   `json:"term_id" validate:"required,uuid"`
	Value       *float64 `json:"value" validate:"required,min=0,max=20,quarter"`
	Type        string   `json:"type" validate:"required,oneof=quiz test exam participation homework project"`
	Weight      int      `json:"weight" validate:"min=1,max=10"`
	Description string   `json:"description" validate:"omitempty,max=200"`
	GradeDate   string   `json:"grade_date" validate:"omitempty,isodate"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Description = core.CleanString(ng.Description)
	if ng.Weight == 0 {
		ng.Weight = DefaultWeight
	}
	if ng.GradeDate == "" {
		ng.GradeDate = core.Today()
	}
	return validate.Struct(ng)
}

type StudentValue struct {
	StudentID string   `json:"student_id" validate:"required,uuid"`
	Value     *float64 `json:"value" validate:"required,min=0,max=20,quarter"`
}

// BulkGrades is a column of grades given to a class in one evaluation.
// Local notes are published with it.
type BulkGrades struct {
	ClassID     string         `json:"class_id" validate:"required,uuid"`
	SubjectID   string         `json:"subject_id" validate:"required,uuid"`
	TermID      string         `json:"term_id" validate:"required,uuid"`
	Type        string         `json:"type" validate:"required,oneof=quiz test exam participation homework project"`
	Weight      int            `json:"weight" validate:"min=1,max=10"`
	Description string         `json:"description" validate:"omitempty,max=200"`
	GradeDate   string         `json:"grade_date" validate:"omitempty,isodate"`
	Grades      []StudentValue `json:"grades" validate:"required,min=1,dive"`
}

func (bg *BulkGrades) Validate(validate *validator.Validate) error {
	bg.Description = core.CleanString(bg.Description)
	if bg.Weight == 0 {
		bg.Weight = DefaultWeight
	}
	if bg.GradeDate == "" {
		bg.GradeDate = core.Today()
	}
	return validate.Struct(bg)
}

type UpdateGrade struct {
	Value       *float64 `json:"value" validate:"omitempty,min=0,max=20,quarter"`
	Description *string  `json:"description" validate:"omitempty,max=200"`
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	return validate.Struct(ug)
}

type SubmitGrades struct {
	GradeIDs []string `json:"grade_ids" validate:"required,min=1,dive,uuid"`
}

func (sg *SubmitGrades) Validate(validate *validator.Validate) error {
	return validate.Struct(sg)
}

type ValidateGrades struct {
	GradeIDs []string `json:"grade_ids" validate:"required,min=1,dive,uuid"`
	Comment  string   `json:"comment" validate:"omitempty,max=500"`
}

func (vg *ValidateGrades) Validate(validate *validator.Validate) error {
	vg.Comment = core.CleanString(vg.Comment)
	return validate.Struct(vg)
}

type RejectGrades struct {
	GradeIDs []string `json:"grade_ids" validate:"required,min=1,dive,uuid"`
	Reason   string   `json:"reason" validate:"required,min=10,max=500"`
}

func (rg *RejectGrades) Validate(validate *validator.Validate) error {
	rg.Reason = core.CleanString(rg.Reason)
	return validate.Struct(rg)
}

type ListFilter struct {
	SchoolID  string `query:"-"`
	ClassID   string `query:"class_id"`
	SubjectID string `query:"subject_id"`
	TermID    string `query:"term_id"`
	Status    string `query:"status"`
	TeacherID string `query:"teacher_id"`
}

// DraftSelector picks the drafts of one evaluation.
type DraftSelector struct {
	ClassID     string `json:"class_id" validate:"required,uuid"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	TermID      string `json:"term_id" validate:"required,uuid"`
	Type        string `json:"type" validate:"required,oneof=quiz test exam participation homework project"`
	GradeDate   string `json:"grade_date" validate:"required,isodate"`
	Description string `json:"description" validate:"omitempty,max=200"`
}

func (ds *DraftSelector) Validate(validate *validator.Validate) error {
	return validate.Struct(ds)
}

// ValidationEntry is one step of a grade's validation history.
type ValidationEntry struct {
	ID            string    `json:"id"`
	GradeID       string    `json:"grade_id"`
	ValidatorID   string    `json:"validator_id"`
	ValidatorName string    `json:"validator_name,omitempty"`
	Action        string    `json:"action"`
	PreviousValue *float64  `json:"previous_value,omitempty"`
	NewValue      *float64  `json:"new_value,omitempty"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// GradeError tells why a grade of a status change was skipped.
type GradeError struct {
	GradeID string `json:"grade_id"`
	Error   string `json:"error"`

	key    string
	params map[string]interface{}
}

func (e GradeError) Key() string { return e.key }

// StatusResult reports a status change over many grades.
type StatusResult struct {
	Requested int          `json:"requested"`
	Updated   int          `json:"updated"`
	Skipped   int          `json:"skipped"`
	Errors    []GradeError `json:"errors"`
	Grades    []Grade      `json:"grades"`
}

// PendingValidation groups the submitted grades of one evaluation set.
type PendingValidation struct {
	ClassID      string    `json:"class_id"`
	ClassName    string    `json:"class_name"`
	SubjectID    string    `json:"subject_id"`
	SubjectName  string    `json:"subject_name"`
	TermID       string    `json:"term_id"`
	TeacherID    string    `json:"teacher_id"`
	TeacherName  string    `json:"teacher_name"`
	PendingCount int       `json:"pending_count"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type PendingFilter struct {
	SchoolID  string `query:"-"`
	TermID    string `query:"term_id"`
	ClassID   string `query:"class_id"`
	SubjectID string `query:"subject_id"`
}

// Statistics summarize the validated grades of a subject and type.
type Statistics struct {
	SubjectID string  `json:"subject_id"`
	Type      string  `json:"type"`
	Count     int     `json:"count"`
	Average   float64 `json:"average"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	StdDev    float64 `json:"std_dev"`
	Below10   int     `json:"below10"`
	Above15   int     `json:"above15"`
}

// StudentAverage is a student's weighted average over a term.
type StudentAverage struct {
	StudentID   string  `json:"student_id"`
	Average     float64 `json:"average"`
	TotalWeight int     `json:"total_weight"`
	GradeCount  int     `json:"grade_count"`
	Rank        int     `json:"rank"`
}
