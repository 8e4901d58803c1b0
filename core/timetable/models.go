package timetable

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

// Conflict kinds
const (
	ConflictTeacher   = "teacher"
	ConflictClassroom = "classroom"
	ConflictClass     = "class"
)

type Session struct {
	ID             string    `json:"id"`
	SchoolID       string    `json:"school_id"`
	SchoolYearID   string    `json:"school_year_id"`
	ClassID        string    `json:"class_id"`
	SubjectID      string    `json:"subject_id"`
	TeacherID      string    `json:"teacher_id"`
	ClassroomID    string    `json:"classroom_id,omitempty"`
	DayOfWeek      int       `json:"day_of_week"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	EffectiveFrom  string    `json:"effective_from,omitempty"`
	EffectiveUntil string    `json:"effective_until,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Minutes is the session length.
func (s Session) Minutes() int {
	return clockMinutes(s.EndTime) - clockMinutes(s.StartTime)
}

// Overlaps reports whether two HH:MM ranges intersect. Touching ranges do not.
func Overlaps(start1, end1, start2, end2 string) bool {
	return start1 < end2 && start2 < end1
}

func clockMinutes(hhmm string) int {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

type NewSession struct {
	SchoolYearID   string `json:"school_year_id" validate:"required,uuid"`
	ClassID        string `json:"class_id" validate:"required,uuid"`
	SubjectID      string `json:"subject_id" validate:"required,uuid"`
	TeacherID      string `json:"teacher_id" validate:"required,uuid"`
	ClassroomID    string `json:"classroom_id" validate:"omitempty,max=50"`
	DayOfWeek      int    `json:"day_of_week" validate:"required,min=1,max=7"`
	StartTime      string `json:"start_time" validate:"required,clock"`
	EndTime        string `json:"end_time" validate:"required,clock"`
	EffectiveFrom  string `json:"effective_from" validate:"omitempty,isodate"`
	EffectiveUntil string `json:"effective_until" validate:"omitempty,isodate"`
	Notes          string `json:"notes" validate:"omitempty,max=500"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.ClassroomID = core.CleanString(ns.ClassroomID)
	ns.Notes = core.CleanString(ns.Notes)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.StartTime >= ns.EndTime {
		return ErrInvalidTimeRange
	}
	return nil
}

// UpdateSession changes the slot or staffing of a session. The school year stays.
type UpdateSession struct {
	ClassID        *string `json:"class_id" validate:"omitempty,uuid"`
	SubjectID      *string `json:"subject_id" validate:"omitempty,uuid"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,uuid"`
	ClassroomID    *string `json:"classroom_id" validate:"omitempty,max=50"`
	DayOfWeek      *int    `json:"day_of_week" validate:"omitempty,min=1,max=7"`
	StartTime      *string `json:"start_time" validate:"omitempty,clock"`
	EndTime        *string `json:"end_time" validate:"omitempty,clock"`
	EffectiveFrom  *string `json:"effective_from" validate:"omitempty,isodate"`
	EffectiveUntil *string `json:"effective_until" validate:"omitempty,isodate"`
	Notes          *string `json:"notes" validate:"omitempty,max=500"`
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

type QueryFilter struct {
	SchoolID     string `query:"-"`
	SchoolYearID string `query:"school_year_id"`
	ClassID      string `query:"class_id"`
	TeacherID    string `query:"teacher_id"`
	ClassroomID  string `query:"classroom_id"`
	DayOfWeek    int    `query:"day_of_week"`
}

// Slot is checked against the existing sessions for conflicts.
type Slot struct {
	SchoolYearID     string `json:"school_year_id" query:"school_year_id" validate:"required,uuid"`
	DayOfWeek        int    `json:"day_of_week" query:"day_of_week" validate:"required,min=1,max=7"`
	StartTime        string `json:"start_time" query:"start_time" validate:"required,clock"`
	EndTime          string `json:"end_time" query:"end_time" validate:"required,clock"`
	TeacherID        string `json:"teacher_id" query:"teacher_id" validate:"omitempty,uuid"`
	ClassroomID      string `json:"classroom_id" query:"classroom_id" validate:"omitempty,max=50"`
	ClassID          string `json:"class_id" query:"class_id" validate:"omitempty,uuid"`
	ExcludeSessionID string `json:"exclude_session_id" query:"exclude_session_id" validate:"omitempty,uuid"`
}

func (sl *Slot) Validate(validate *validator.Validate) error {
	if err := validate.Struct(sl); err != nil {
		return err
	}
	if sl.StartTime >= sl.EndTime {
		return ErrInvalidTimeRange
	}
	return nil
}

func slotOf(s Session) Slot {
	return Slot{
		SchoolYearID:     s.SchoolYearID,
		DayOfWeek:        s.DayOfWeek,
		StartTime:        s.StartTime,
		EndTime:          s.EndTime,
		TeacherID:        s.TeacherID,
		ClassroomID:      s.ClassroomID,
		ClassID:          s.ClassID,
		ExcludeSessionID: s.ID,
	}
}

// Conflict is an existing session overlapping a slot.
type Conflict struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	// PairedWith is the other session of a pair found by AllConflicts.
	PairedWith string `json:"paired_with,omitempty"`
	DayOfWeek  int    `json:"day_of_week"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Message    string `json:"message,omitempty"`
}

// MessageKey is the catalog key describing the conflict.
func (c Conflict) MessageKey() string {
	switch c.Type {
	case ConflictTeacher:
		return "errors.timetables.teacherConflict"
	case ConflictClassroom:
		return "errors.timetables.classroomConflict"
	default:
		return ErrConflict.Key
	}
}

// Localize renders the conflict messages for locale.
func Localize(conflicts []Conflict, cat *core.Catalog, locale string) {
	for i := range conflicts {
		conflicts[i].Message = cat.T(locale, conflicts[i].MessageKey(), nil)
	}
}

// ConflictError refuses a session overlapping others. It unwraps to ErrConflict.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return ErrConflict.Error() + " (" + strconv.Itoa(len(e.Conflicts)) + ")"
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Details is rendered next to the error message.
func (e *ConflictError) Details() interface{} {
	return map[string]interface{}{"conflicts": e.Conflicts}
}

func (e *ConflictError) Localize(cat *core.Catalog, locale string) {
	Localize(e.Conflicts, cat, locale)
}

// WeeklyHours is a teacher's scheduled load over a week.
type WeeklyHours struct {
	TeacherID    string `json:"teacher_id"`
	SessionCount int    `json:"session_count"`
	TotalHours   int    `json:"total_hours"`
	TotalMinutes int    `json:"total_minutes"`
}
