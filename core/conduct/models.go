package conduct

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
)

// Record types
const (
	TypeIncident = "incident"
	TypeSanction = "sanction"
	TypeReward   = "reward"
	TypeNote     = "note"
)

var Types = []string{TypeIncident, TypeSanction, TypeReward, TypeNote}

// Categories
const (
	CategoryBehavior    = "behavior"
	CategoryAcademic    = "academic"
	CategoryAttendance  = "attendance"
	CategoryUniform     = "uniform"
	CategoryProperty    = "property"
	CategoryViolence    = "violence"
	CategoryBullying    = "bullying"
	CategoryCheating    = "cheating"
	CategoryAchievement = "achievement"
	CategoryImprovement = "improvement"
	CategoryOther       = "other"
)

// Severities
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
	SeverityUrgent   = "urgent"
)

var Severities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityUrgent}

// Record statuses
const (
	StatusOpen            = "open"
	StatusInvestigating   = "investigating"
	StatusPendingDecision = "pending_decision"
	StatusResolved        = "resolved"
	StatusClosed          = "closed"
	StatusAppealed        = "appealed"
)

type Record struct {
	ID                   string     `json:"id"`
	SchoolID             string     `json:"school_id"`
	StudentID            string     `json:"student_id"`
	ClassID              string     `json:"class_id,omitempty"`
	SchoolYearID         string     `json:"school_year_id,omitempty"`
	Type                 string     `json:"type"`
	Category             string     `json:"category"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	Severity             string     `json:"severity,omitempty"`
	IncidentDate         string     `json:"incident_date"`
	Location             string     `json:"location,omitempty"`
	SanctionType         string     `json:"sanction_type,omitempty"`
	RewardType           string     `json:"reward_type,omitempty"`
	PointsAwarded        int        `json:"points_awarded"`
	Status               string     `json:"status"`
	ParentNotified       bool       `json:"parent_notified"`
	ParentNotifiedAt     *time.Time `json:"parent_notified_at,omitempty"`
	ParentAcknowledged   bool       `json:"parent_acknowledged"`
	ParentAcknowledgedAt *time.Time `json:"parent_acknowledged_at,omitempty"`
	RecordedBy           string     `json:"recorded_by"`
	ResolvedBy           string     `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes      string     `json:"resolution_notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Settled reports whether the record is resolved or closed.
func (r Record) Settled() bool {
	return r.Status == StatusResolved || r.Status == StatusClosed
}

type NewRecord struct {
	StudentID     string `json:"student_id" validate:"required,uuid"`
	ClassID       string `json:"class_id" validate:"omitempty,uuid"`
	SchoolYearID  string `json:"school_year_id" validate:"omitempty,uuid"`
	Type          string `json:"type" validate:"required,oneof=incident sanction reward note"`
	Category      string `json:"category" validate:"required,oneof=behavior academic attendance uniform property violence bullying cheating achievement improvement other"`
	Title         string `json:"title" validate:"required,max=200"`
	Description   string `json:"description" validate:"omitempty,max=2000"`
	Severity      string `json:"severity" validate:"omitempty,oneof=low medium high critical urgent"`
	IncidentDate  string `json:"incident_date" validate:"omitempty,isodate"`
	Location      string `json:"location" validate:"omitempty,max=100"`
	SanctionType  string `json:"sanction_type" validate:"omitempty,max=30"`
	RewardType    string `json:"reward_type" validate:"omitempty,max=30"`
	PointsAwarded int    `json:"points_awarded" validate:"min=-100,max=100"`
}

func (nr *NewRecord) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.Location = core.CleanString(nr.Location)
	if nr.IncidentDate == "" {
		nr.IncidentDate = core.Today()
	}
	return validate.Struct(nr)
}

type UpdateRecord struct {
	Category      *string `json:"category" validate:"omitempty,oneof=behavior academic attendance uniform property violence bullying cheating achievement improvement other"`
	Title         *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Severity      *string `json:"severity" validate:"omitempty,oneof=low medium high critical urgent"`
	IncidentDate  *string `json:"incident_date" validate:"omitempty,isodate"`
	Location      *string `json:"location" validate:"omitempty,max=100"`
	SanctionType  *string `json:"sanction_type" validate:"omitempty,max=30"`
	RewardType    *string `json:"reward_type" validate:"omitempty,max=30"`
	PointsAwarded *int    `json:"points_awarded" validate:"omitempty,min=-100,max=100"`
}

func (ur *UpdateRecord) Validate(validate *validator.Validate) error {
	return validate.Struct(ur)
}

type StatusUpdate struct {
	Status          string `json:"status" validate:"required,oneof=open investigating pending_decision resolved closed appealed"`
	ResolutionNotes string `json:"resolution_notes" validate:"omitempty,max=2000"`
}

func (su *StatusUpdate) Validate(validate *validator.Validate) error {
	su.ResolutionNotes = core.CleanString(su.ResolutionNotes)
	return validate.Struct(su)
}

type QueryFilter struct {
	SchoolID     string `query:"-"`
	SchoolYearID string `query:"school_year_id"`
	StudentID    string `query:"student_id"`
	ClassID      string `query:"class_id"`
	Type         string `query:"type"`
	Category     string `query:"category"`
	Status       string `query:"status"`
	Severity     string `query:"severity"`
	StartDate    string `query:"start_date"`
	EndDate      string `query:"end_date"`
	Search       string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Type = core.CleanString(qf.Type, true)
	qf.Category = core.CleanString(qf.Category, true)
	qf.Status = core.CleanString(qf.Status, true)
	qf.Severity = core.CleanString(qf.Severity, true)
	qf.Search = core.CleanString(qf.Search)
}

// Summary is a student's conduct over a school year.
type Summary struct {
	TotalRecords      int            `json:"total_records"`
	IncidentCount     int            `json:"incident_count"`
	SanctionCount     int            `json:"sanction_count"`
	RewardCount       int            `json:"reward_count"`
	NoteCount         int            `json:"note_count"`
	OpenCount         int            `json:"open_count"`
	ResolvedCount     int            `json:"resolved_count"`
	SeverityBreakdown map[string]int `json:"severity_breakdown"`
	TotalPoints       int            `json:"total_points"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
}

// Summarize counts records. Resolved includes closed records.
func Summarize(records []Record) Summary {
	sum := Summary{
		SeverityBreakdown: make(map[string]int, len(Severities)),
		CategoryBreakdown: make(map[string]int),
	}
	for _, sev := range Severities {
		sum.SeverityBreakdown[sev] = 0
	}
	for _, r := range records {
		sum.TotalRecords++
		switch r.Type {
		case TypeIncident:
			sum.IncidentCount++
		case TypeSanction:
			sum.SanctionCount++
		case TypeReward:
			sum.RewardCount++
		case TypeNote:
			sum.NoteCount++
		}
		if r.Status == StatusOpen {
			sum.OpenCount++
		} else if r.Settled() {
			sum.ResolvedCount++
		}
		if r.Severity != "" {
			sum.SeverityBreakdown[r.Severity]++
		}
		sum.TotalPoints += r.PointsAwarded
		sum.CategoryBreakdown[r.Category]++
	}
	return sum
}
