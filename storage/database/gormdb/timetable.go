package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/timetable"
)

type sessionRow struct {
	ID             string `gorm:"primaryKey"`
	SchoolID       string
	SchoolYearID   string
	ClassID        string
	SubjectID      string
	TeacherID      string
	ClassroomID    null.String
	DayOfWeek      int
	StartTime      string
	EndTime        string
	EffectiveFrom  null.Time
	EffectiveUntil null.Time
	Notes          null.String
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (sessionRow) TableName() string { return "timetable_session" }

type timetableRepository struct {
	repo
}

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(db *gorm.DB) timetable.Repository {
	return &timetableRepository{repo{db: db}}
}

func boilSession(s timetable.Session) *sessionRow {
	return &sessionRow{
		ID:             s.ID,
		SchoolID:       s.SchoolID,
		SchoolYearID:   s.SchoolYearID,
		ClassID:        s.ClassID,
		SubjectID:      s.SubjectID,
		TeacherID:      s.TeacherID,
		ClassroomID:    nullString(s.ClassroomID),
		DayOfWeek:      s.DayOfWeek,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		EffectiveFrom:  nullDate(s.EffectiveFrom),
		EffectiveUntil: nullDate(s.EffectiveUntil),
		Notes:          nullString(s.Notes),
		CreatedAt:      s.CreatedAt.UTC(),
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
}

func unboilSession(s *sessionRow) timetable.Session {
	return timetable.Session{
		ID:             s.ID,
		SchoolID:       s.SchoolID,
		SchoolYearID:   s.SchoolYearID,
		ClassID:        s.ClassID,
		SubjectID:      s.SubjectID,
		TeacherID:      s.TeacherID,
		ClassroomID:    s.ClassroomID.String,
		DayOfWeek:      s.DayOfWeek,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		EffectiveFrom:  nullDateString(s.EffectiveFrom),
		EffectiveUntil: nullDateString(s.EffectiveUntil),
		Notes:          s.Notes.String,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (r timetableRepository) CreateSession(ctx context.Context, s timetable.Session) (timetable.Session, error) {
	if s.ID == "" {
		s.ID = core.NewID()
	}
	row := boilSession(s)
	if err := r.conn(ctx).Create(row).Error; err != nil {
		return timetable.Session{}, errors.Wrap(err, "inserting timetable session")
	}
	return unboilSession(row), nil
}

func (r timetableRepository) GetSession(ctx context.Context, schoolID, id string) (timetable.Session, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return timetable.Session{}, timetable.ErrNotFound
	}
	var s sessionRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&s).Error; err != nil {
		return timetable.Session{}, trapNotFound(err, timetable.ErrNotFound, "finding timetable session")
	}
	return unboilSession(&s), nil
}

func (r timetableRepository) QuerySessions(ctx context.Context, filter *timetable.QueryFilter) ([]timetable.Session, error) {
	q := r.conn(ctx).Model(&sessionRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		if filter.SchoolYearID != "" {
			q = q.Where("school_year_id = ?", filter.SchoolYearID)
		}
		if filter.ClassID != "" {
			q = q.Where("class_id = ?", filter.ClassID)
		}
		if filter.TeacherID != "" {
			q = q.Where("teacher_id = ?", filter.TeacherID)
		}
		if filter.ClassroomID != "" {
			q = q.Where("classroom_id = ?", filter.ClassroomID)
		}
		if filter.DayOfWeek != 0 {
			q = q.Where("day_of_week = ?", filter.DayOfWeek)
		}
	}

	var rows []*sessionRow
	if err := q.Order("day_of_week, start_time").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying timetable sessions")
	}
	sessions := make([]timetable.Session, 0, len(rows))
	for _, s := range rows {
		sessions = append(sessions, unboilSession(s))
	}
	return sessions, nil
}

func (r timetableRepository) UpdateSession(ctx context.Context, s timetable.Session) (timetable.Session, error) {
	row := boilSession(s)
	res := r.conn(ctx).Model(row).Select("*").Omit("id", "school_id", "school_year_id", "created_at").Updates(row)
	if err := updated(res, timetable.ErrNotFound, "updating timetable session"); err != nil {
		return timetable.Session{}, err
	}
	return s, nil
}

func (r timetableRepository) DeleteSession(ctx context.Context, schoolID, id string) error {
	if !core.IsUUID(id) {
		return timetable.ErrNotFound
	}
	res := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).Delete(&sessionRow{})
	return updated(res, timetable.ErrNotFound, "deleting timetable session")
}
