package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
)

type (
	classRow struct {
		ID                string `gorm:"primaryKey"`
		SchoolID          string
		SchoolYearID      string
		GradeLevel        string
		Section           null.String
		Name              string
		HomeroomTeacherID null.String
		MaxStudents       int
		Status            string
		CreatedAt         time.Time
		UpdatedAt         time.Time
	}

	classSubjectRow struct {
		ID           string `gorm:"primaryKey"`
		ClassID      string
		SubjectID    string
		TeacherID    null.String
		Coefficient  float64
		HoursPerWeek int
		CreatedAt    time.Time
	}

	enrollmentRow struct {
		ID                 string `gorm:"primaryKey"`
		StudentID          string
		ClassID            string
		SchoolYearID       string
		Status             string
		EnrollmentDate     time.Time
		CancellationReason null.String
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	enrolledStudentRow struct {
		enrollmentRow
		FirstName string
		LastName  string
		Matricule string
	}
)

var classOrderings = map[string]string{
	"name":        "name",
	"grade_level": "grade_level",
	"section":     "section",
	"created_at":  "created_at",
}

func (classRow) TableName() string        { return "class" }
func (classSubjectRow) TableName() string { return "class_subject" }
func (enrollmentRow) TableName() string   { return "enrollment" }

type classRepository struct {
	repo
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *gorm.DB) class.Repository {
	return &classRepository{repo{db: db}}
}

func boilClass(cls class.Class) *classRow {
	return &classRow{
		ID:                cls.ID,
		SchoolID:          cls.SchoolID,
		SchoolYearID:      cls.SchoolYearID,
		GradeLevel:        cls.GradeLevel,
		Section:           nullString(cls.Section),
		Name:              cls.Name,
		HomeroomTeacherID: nullString(cls.HomeroomTeacherID),
		MaxStudents:       cls.MaxStudents,
		Status:            cls.Status,
		CreatedAt:         cls.CreatedAt.UTC(),
		UpdatedAt:         cls.UpdatedAt.UTC(),
	}
}

func unboilClass(c *classRow) class.Class {
	return class.Class{
		ID:                c.ID,
		SchoolID:          c.SchoolID,
		SchoolYearID:      c.SchoolYearID,
		GradeLevel:        c.GradeLevel,
		Section:           c.Section.String,
		Name:              c.Name,
		HomeroomTeacherID: c.HomeroomTeacherID.String,
		MaxStudents:       c.MaxStudents,
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func boilEnrollment(enr class.Enrollment) *enrollmentRow {
	return &enrollmentRow{
		ID:                 enr.ID,
		StudentID:          enr.StudentID,
		ClassID:            enr.ClassID,
		SchoolYearID:       enr.SchoolYearID,
		Status:             enr.Status,
		EnrollmentDate:     date(enr.EnrollmentDate),
		CancellationReason: nullString(enr.CancellationReason),
		CreatedAt:          enr.CreatedAt.UTC(),
		UpdatedAt:          enr.UpdatedAt.UTC(),
	}
}

func unboilEnrollment(e *enrollmentRow) class.Enrollment {
	return class.Enrollment{
		ID:                 e.ID,
		StudentID:          e.StudentID,
		ClassID:            e.ClassID,
		SchoolYearID:       e.SchoolYearID,
		Status:             e.Status,
		EnrollmentDate:     dateString(e.EnrollmentDate),
		CancellationReason: e.CancellationReason.String,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

func (r classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	if cls.ID == "" {
		cls.ID = core.NewID()
	}
	c := boilClass(cls)
	if err := r.conn(ctx).Create(c).Error; err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return unboilClass(c), nil
}

func (r classRepository) GetClass(ctx context.Context, schoolID, id string) (class.Class, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return class.Class{}, class.ErrNotFound
	}
	var c classRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&c).Error; err != nil {
		return class.Class{}, trapNotFound(err, class.ErrNotFound, "finding class")
	}
	return unboilClass(&c), nil
}

func (r classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	q := r.conn(ctx).Model(&classRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		if filter.SchoolYearID != "" {
			q = q.Where("school_year_id = ?", filter.SchoolYearID)
		}
		if filter.GradeLevel != "" {
			q = q.Where("grade_level = ?", filter.GradeLevel)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Search != "" {
			q = q.Where("name ILIKE ?", ilike(filter.Search))
		}
	}
	q = q.Order(orderBy(ordering, classOrderings, "grade_level, section, name"))

	var rows []*classRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, c := range rows {
		classes = append(classes, unboilClass(c))
	}
	return classes, nil
}

func (r classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	c := boilClass(cls)
	res := r.conn(ctx).Model(c).Select("*").Omit("id", "school_id", "school_year_id", "created_at").Updates(c)
	if err := updated(res, class.ErrNotFound, "updating class"); err != nil {
		return class.Class{}, err
	}
	return cls, nil
}

func (r classRepository) CreateClassSubject(ctx context.Context, cs class.ClassSubject) (class.ClassSubject, error) {
	if cs.ID == "" {
		cs.ID = core.NewID()
	}
	row := &classSubjectRow{
		ID:           cs.ID,
		ClassID:      cs.ClassID,
		SubjectID:    cs.SubjectID,
		TeacherID:    nullString(cs.TeacherID),
		Coefficient:  cs.Coefficient,
		HoursPerWeek: cs.HoursPerWeek,
		CreatedAt:    cs.CreatedAt.UTC(),
	}
	if err := r.conn(ctx).Create(row).Error; err != nil {
		return class.ClassSubject{}, errors.Wrap(err, "inserting class subject")
	}
	return cs, nil
}

func (r classRepository) QueryClassSubjects(ctx context.Context, classID string) ([]class.ClassSubject, error) {
	var rows []*classSubjectRow
	if err := r.conn(ctx).Where("class_id = ?", classID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying class subjects")
	}
	subjects := make([]class.ClassSubject, 0, len(rows))
	for _, cs := range rows {
		subjects = append(subjects, class.ClassSubject{
			ID:           cs.ID,
			ClassID:      cs.ClassID,
			SubjectID:    cs.SubjectID,
			TeacherID:    cs.TeacherID.String,
			Coefficient:  cs.Coefficient,
			HoursPerWeek: cs.HoursPerWeek,
			CreatedAt:    cs.CreatedAt,
		})
	}
	return subjects, nil
}

func (r classRepository) ClassSubjectExists(ctx context.Context, classID, subjectID string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&classSubjectRow{}).Where("class_id = ? AND subject_id = ?", classID, subjectID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "checking class subject")
	}
	return count > 0, nil
}

func (r classRepository) StudentInSchool(ctx context.Context, schoolID, studentID string) (bool, error) {
	if !core.IsUUID(studentID) {
		return false, nil
	}
	var count int64
	err := r.conn(ctx).Model(&studentRow{}).Where("id = ? AND school_id = ?", studentID, schoolID).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "checking student school")
	}
	return count > 0, nil
}

func (r classRepository) CreateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	if enr.ID == "" {
		enr.ID = core.NewID()
	}
	e := boilEnrollment(enr)
	if err := r.conn(ctx).Create(e).Error; err != nil {
		return class.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return unboilEnrollment(e), nil
}

func (r classRepository) GetEnrollment(ctx context.Context, classID, id string) (class.Enrollment, error) {
	if !core.IsUUID(id) {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	var e enrollmentRow
	if err := r.conn(ctx).Where("id = ? AND class_id = ?", id, classID).First(&e).Error; err != nil {
		return class.Enrollment{}, trapNotFound(err, class.ErrEnrollmentNotFound, "finding enrollment")
	}
	return unboilEnrollment(&e), nil
}

func (r classRepository) UpdateEnrollment(ctx context.Context, enr class.Enrollment) (class.Enrollment, error) {
	e := boilEnrollment(enr)
	res := r.conn(ctx).Model(e).Select("*").Omit("id", "student_id", "created_at").Updates(e)
	if err := updated(res, class.ErrEnrollmentNotFound, "updating enrollment"); err != nil {
		return class.Enrollment{}, err
	}
	return enr, nil
}

func (r classRepository) ActiveEnrollmentExists(ctx context.Context, studentID, schoolYearID string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&enrollmentRow{}).
		Where("student_id = ? AND school_year_id = ? AND status IN ?", studentID, schoolYearID, class.ActiveEnrollmentStatuses).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "checking active enrollment")
	}
	return count > 0, nil
}

// CountActiveEnrollments locks the class row so concurrent enrollments queue up.
func (r classRepository) CountActiveEnrollments(ctx context.Context, classID string) (int, error) {
	db := r.conn(ctx)
	var c classRow
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", classID).First(&c).Error; err != nil {
		return 0, trapNotFound(err, class.ErrNotFound, "locking class")
	}
	var count int64
	err := db.Model(&enrollmentRow{}).Where("class_id = ? AND status IN ?", classID, class.ActiveEnrollmentStatuses).Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return int(count), nil
}

func (r classRepository) QueryEnrolledStudents(ctx context.Context, classID string, statuses []string) ([]class.EnrolledStudent, error) {
	q := r.conn(ctx).Table("enrollment e").
		Select("e.*, s.first_name, s.last_name, s.matricule").
		Joins("JOIN student s ON s.id = e.student_id").
		Where("e.class_id = ?", classID)
	if len(statuses) > 0 {
		q = q.Where("e.status IN ?", statuses)
	}

	var rows []*enrolledStudentRow
	if err := q.Order("s.last_name, s.first_name").Scan(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	students := make([]class.EnrolledStudent, 0, len(rows))
	for _, row := range rows {
		students = append(students, class.EnrolledStudent{
			Enrollment: unboilEnrollment(&row.enrollmentRow),
			FirstName:  row.FirstName,
			LastName:   row.LastName,
			Matricule:  row.Matricule,
		})
	}
	return students, nil
}
