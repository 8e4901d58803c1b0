package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/grade"
)

type (
	gradeRow struct {
		ID              string `gorm:"primaryKey"`
		StudentID       string
		ClassID         string
		SubjectID       string
		TermID          string
		TeacherID       string
		Value           float64
		Type            string
		Weight          int
		Description     null.String
		GradeDate       time.Time
		Status          string
		SubmittedAt     null.Time
		ValidatedAt     null.Time
		ValidatedBy     null.String
		RejectionReason null.String
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	gradeValidationRow struct {
		ID            string `gorm:"primaryKey"`
		GradeID       string
		ValidatorID   string
		Action        string
		PreviousValue null.Float64
		NewValue      null.Float64
		Comment       null.String
		CreatedAt     time.Time
	}

	validationEntryRow struct {
		gradeValidationRow
		ValidatorName null.String
	}

	pendingRow struct {
		ClassID      string
		ClassName    string
		SubjectID    string
		SubjectName  string
		TermID       string
		TeacherID    string
		TeacherName  null.String
		PendingCount int
		SubmittedAt  time.Time
	}
)

func (gradeRow) TableName() string           { return "grade" }
func (gradeValidationRow) TableName() string { return "grade_validation" }

type gradeRepository struct {
	repo
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *gorm.DB) grade.Repository {
	return &gradeRepository{repo{db: db}}
}

func boilGrade(g grade.Grade) *gradeRow {
	return &gradeRow{
		ID:              g.ID,
		StudentID:       g.StudentID,
		ClassID:         g.ClassID,
		SubjectID:       g.SubjectID,
		TermID:          g.TermID,
		TeacherID:       g.TeacherID,
		Value:           g.Value,
		Type:            g.Type,
		Weight:          g.Weight,
		Description:     nullString(g.Description),
		GradeDate:       date(g.GradeDate),
		Status:          g.Status,
		SubmittedAt:     nullTime(g.SubmittedAt),
		ValidatedAt:     nullTime(g.ValidatedAt),
		ValidatedBy:     nullString(g.ValidatedBy),
		RejectionReason: nullString(g.RejectionReason),
		CreatedAt:       g.CreatedAt.UTC(),
		UpdatedAt:       g.UpdatedAt.UTC(),
	}
}

func unboilGrade(g *gradeRow) grade.Grade {
	return grade.Grade{
		ID:              g.ID,
		StudentID:       g.StudentID,
		ClassID:         g.ClassID,
		SubjectID:       g.SubjectID,
		TermID:          g.TermID,
		TeacherID:       g.TeacherID,
		Value:           g.Value,
		Type:            g.Type,
		Weight:          g.Weight,
		Description:     g.Description.String,
		GradeDate:       dateString(g.GradeDate),
		Status:          g.Status,
		SubmittedAt:     g.SubmittedAt.Ptr(),
		ValidatedAt:     g.ValidatedAt.Ptr(),
		ValidatedBy:     g.ValidatedBy.String,
		RejectionReason: g.RejectionReason.String,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
	}
}

func unboilGrades(rows []*gradeRow) []grade.Grade {
	grades := make([]grade.Grade, 0, len(rows))
	for _, g := range rows {
		grades = append(grades, unboilGrade(g))
	}
	return grades
}

// inSchool scopes grades to the classes of a school.
func inSchool(db *gorm.DB, schoolID string) *gorm.DB {
	return db.Where("class_id IN (?)", db.Session(&gorm.Session{NewDB: true}).
		Model(&classRow{}).Select("id").Where("school_id = ?", schoolID))
}

func (r gradeRepository) CreateGrades(ctx context.Context, grades []grade.Grade) ([]grade.Grade, error) {
	if len(grades) == 0 {
		return []grade.Grade{}, nil
	}
	rows := make([]*gradeRow, 0, len(grades))
	for _, g := range grades {
		if g.ID == "" {
			g.ID = core.NewID()
		}
		rows = append(rows, boilGrade(g))
	}
	if err := r.conn(ctx).Create(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "inserting grades")
	}
	return unboilGrades(rows), nil
}

func (r gradeRepository) GetGrade(ctx context.Context, schoolID, id string) (grade.Grade, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return grade.Grade{}, grade.ErrNotFound
	}
	var g gradeRow
	if err := inSchool(r.conn(ctx), schoolID).Where("id = ?", id).First(&g).Error; err != nil {
		return grade.Grade{}, trapNotFound(err, grade.ErrNotFound, "finding grade")
	}
	return unboilGrade(&g), nil
}

func (r gradeRepository) GetGrades(ctx context.Context, schoolID string, ids []string) ([]grade.Grade, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if core.IsUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 || !core.IsUUID(schoolID) {
		return []grade.Grade{}, nil
	}
	var rows []*gradeRow
	if err := inSchool(r.conn(ctx), schoolID).Where("id IN ?", valid).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return unboilGrades(rows), nil
}

func (r gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	row := boilGrade(g)
	res := r.conn(ctx).Model(row).Select("*").Omit("id", "student_id", "class_id", "created_at").Updates(row)
	if err := updated(res, grade.ErrNotFound, "updating grade"); err != nil {
		return grade.Grade{}, err
	}
	return g, nil
}

func (r gradeRepository) QueryGrades(ctx context.Context, filter *grade.ListFilter) ([]grade.Grade, error) {
	q := r.conn(ctx).Model(&gradeRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = inSchool(q, filter.SchoolID)
		}
		if filter.ClassID != "" {
			q = q.Where("class_id = ?", filter.ClassID)
		}
		if filter.SubjectID != "" {
			q = q.Where("subject_id = ?", filter.SubjectID)
		}
		if filter.TermID != "" {
			q = q.Where("term_id = ?", filter.TermID)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.TeacherID != "" {
			q = q.Where("teacher_id = ?", filter.TeacherID)
		}
	}

	var rows []*gradeRow
	if err := q.Order("grade_date, created_at").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return unboilGrades(rows), nil
}

func (r gradeRepository) DeleteDrafts(ctx context.Context, sel grade.DraftSelector) (int, error) {
	q := r.conn(ctx).Where(
		"class_id = ? AND subject_id = ? AND term_id = ? AND type = ? AND grade_date = ? AND status = ?",
		sel.ClassID, sel.SubjectID, sel.TermID, sel.Type, date(sel.GradeDate), grade.StatusDraft)
	if sel.Description != "" {
		q = q.Where("description = ?", sel.Description)
	}
	res := q.Delete(&gradeRow{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "deleting draft grades")
	}
	return int(res.RowsAffected), nil
}

func (r gradeRepository) AddValidationEntries(ctx context.Context, entries []grade.ValidationEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*gradeValidationRow, 0, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			e.ID = core.NewID()
		}
		rows = append(rows, &gradeValidationRow{
			ID:            e.ID,
			GradeID:       e.GradeID,
			ValidatorID:   e.ValidatorID,
			Action:        e.Action,
			PreviousValue: null.Float64FromPtr(e.PreviousValue),
			NewValue:      null.Float64FromPtr(e.NewValue),
			Comment:       nullString(e.Comment),
			CreatedAt:     e.CreatedAt.UTC(),
		})
	}
	if err := r.conn(ctx).Create(&rows).Error; err != nil {
		return errors.Wrap(err, "inserting grade validations")
	}
	return nil
}

func (r gradeRepository) ValidationHistory(ctx context.Context, gradeID string) ([]grade.ValidationEntry, error) {
	var rows []*validationEntryRow
	err := r.conn(ctx).Table("grade_validation v").
		Select(`v.*, u.name AS validator_name`).
		Joins(`LEFT JOIN "user" u ON u.id = v.validator_id`).
		Where("v.grade_id = ?", gradeID).
		Order("v.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying grade history")
	}
	entries := make([]grade.ValidationEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, grade.ValidationEntry{
			ID:            row.ID,
			GradeID:       row.GradeID,
			ValidatorID:   row.ValidatorID,
			ValidatorName: row.ValidatorName.String,
			Action:        row.Action,
			PreviousValue: row.PreviousValue.Ptr(),
			NewValue:      row.NewValue.Ptr(),
			Comment:       row.Comment.String,
			CreatedAt:     row.CreatedAt,
		})
	}
	return entries, nil
}

func (r gradeRepository) PendingValidations(ctx context.Context, filter *grade.PendingFilter) ([]grade.PendingValidation, error) {
	q := r.conn(ctx).Table("grade g").
		Select(`g.class_id, c.name AS class_name, g.subject_id, s.name AS subject_name, g.term_id,
			g.teacher_id, u.name AS teacher_name, COUNT(*) AS pending_count, MIN(g.submitted_at) AS submitted_at`).
		Joins("JOIN class c ON c.id = g.class_id").
		Joins("JOIN subject s ON s.id = g.subject_id").
		Joins(`LEFT JOIN "user" u ON u.id = g.teacher_id`).
		Where("g.status = ?", grade.StatusSubmitted)
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("c.school_id = ?", filter.SchoolID)
		}
		if filter.TermID != "" {
			q = q.Where("g.term_id = ?", filter.TermID)
		}
		if filter.ClassID != "" {
			q = q.Where("g.class_id = ?", filter.ClassID)
		}
		if filter.SubjectID != "" {
			q = q.Where("g.subject_id = ?", filter.SubjectID)
		}
	}

	var rows []*pendingRow
	err := q.Group("g.class_id, c.name, g.subject_id, s.name, g.term_id, g.teacher_id, u.name").
		Order("submitted_at").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "querying pending validations")
	}
	pending := make([]grade.PendingValidation, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, grade.PendingValidation{
			ClassID:      row.ClassID,
			ClassName:    row.ClassName,
			SubjectID:    row.SubjectID,
			SubjectName:  row.SubjectName,
			TermID:       row.TermID,
			TeacherID:    row.TeacherID,
			TeacherName:  row.TeacherName.String,
			PendingCount: row.PendingCount,
			SubmittedAt:  row.SubmittedAt,
		})
	}
	return pending, nil
}
