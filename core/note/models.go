package note

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/grade"
)

// Sync queue operations
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Sync queue tables
const (
	TableNotes   = "notes"
	TableDetails = "note_details"
)

// Sync item statuses
const (
	ItemPending   = "pending"
	ItemCompleted = "completed"
	ItemFailed    = "failed"
)

// MaxAttempts is the number of failed attempts after which an item stops being retried.
const MaxAttempts = 3

// Note is a local evaluation: one grade column of a class for a subject and term.
type Note struct {
	ID          string     `json:"id"`
	SchoolID    string     `json:"school_id"`
	ClassID     string     `json:"class_id"`
	SubjectID   string     `json:"subject_id"`
	TermID      string     `json:"term_id"`
	TeacherID   string     `json:"teacher_id"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Weight      int        `json:"weight"`
	Description string     `json:"description,omitempty"`
	GradeDate   string     `json:"grade_date"`
	IsPublished bool       `json:"is_published"`
	IsDirty     bool       `json:"is_dirty"`
	IsDeleted   bool       `json:"is_deleted"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Details []Detail `json:"details,omitempty"`
}

// Detail is a student's grade in a note.
type Detail struct {
	ID         string     `json:"id"`
	NoteID     string     `json:"note_id"`
	StudentID  string     `json:"student_id"`
	Value      float64    `json:"value"`
	GradedAt   *time.Time `json:"graded_at,omitempty"`
	IsDirty    bool       `json:"is_dirty"`
	IsDeleted  bool       `json:"is_deleted"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key identifies the evaluation a note records.
type Key struct {
	ClassID   string
	SubjectID string
	TermID    string
	Type      string
	TeacherID string
}

func (n Note) Key() Key {
	return Key{ClassID: n.ClassID, SubjectID: n.SubjectID, TermID: n.TermID, Type: n.Type, TeacherID: n.TeacherID}
}

// CacheKey is the optimistic cache entry holding the note's grades.
func (n Note) CacheKey() string {
	return "grades:" + n.ClassID + ":" + n.SubjectID + ":" + n.TermID
}

// BulkGrades is the server payload publishing the note.
func (n Note) BulkGrades() grade.BulkGrades {
	bg := grade.BulkGrades{
		ClassID:     n.ClassID,
		SubjectID:   n.SubjectID,
		TermID:      n.TermID,
		Type:        n.Type,
		Weight:      n.Weight,
		Description: n.Description,
		GradeDate:   n.GradeDate,
		Grades:      make([]grade.StudentValue, 0, len(n.Details)),
	}
	if bg.Description == "" {
		bg.Description = n.Title
	}
	for _, d := range n.Details {
		v := d.Value
		bg.Grades = append(bg.Grades, grade.StudentValue{StudentID: d.StudentID, Value: &v})
	}
	return bg
}

type NewNote struct {
	SchoolID    string `json:"school_id" validate:"required,uuid"`
	ClassID     string `json:"class_id" validate:"required,uuid"`
	SubjectID   string `json:"subject_id" validate:"required,uuid"`
	TermID      string `json:"term_id" validate:"required,uuid"`
	TeacherID   string `json:"teacher_id" validate:"required,uuid"`
	Title       string `json:"title" validate:"required,max=200"`
	Type        string `json:"type" validate:"required,oneof=quiz test exam participation homework project"`
	Weight      int    `json:"weight" validate:"min=1,max=10"`
	Description string `json:"description" validate:"omitempty,max=200"`
	GradeDate   string `json:"grade_date" validate:"omitempty,isodate"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Description = core.CleanString(nn.Description)
	if nn.Weight == 0 {
		nn.Weight = grade.DefaultWeight
	}
	if nn.GradeDate == "" {
		nn.GradeDate = core.Today()
	}
	return validate.Struct(nn)
}

// Note builds the local note, not yet saved.
func (nn NewNote) Note() Note {
	now := core.NowFunc().UTC()
	return Note{
		ID:          core.NewID(),
		SchoolID:    nn.SchoolID,
		ClassID:     nn.ClassID,
		SubjectID:   nn.SubjectID,
		TermID:      nn.TermID,
		TeacherID:   nn.TeacherID,
		Title:       nn.Title,
		Type:        nn.Type,
		Weight:      nn.Weight,
		Description: nn.Description,
		GradeDate:   nn.GradeDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

type Update struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Weight      *int    `json:"weight,omitempty"`
	GradeDate   *string `json:"grade_date,omitempty"`
}

// SyncItem is a queued local change.
type SyncItem struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"`
	TableName   string     `json:"table_name"`
	RecordID    string     `json:"record_id"`
	Data        string     `json:"data"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	Error       string     `json:"error,omitempty"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DetailData is the payload queued with a detail change.
type DetailData struct {
	NoteID    string  `json:"note_id"`
	StudentID string  `json:"student_id"`
	Value     float64 `json:"value"`
}
