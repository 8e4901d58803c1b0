package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/student"
)

type studentRow struct {
	ID               string `gorm:"primaryKey"`
	SchoolID         string
	FirstName        string
	LastName         string
	DOB              time.Time `gorm:"column:dob"`
	Gender           null.String
	Matricule        string
	Status           string
	BirthPlace       null.String
	Nationality      null.String
	Address          null.String
	EmergencyContact null.String
	EmergencyPhone   null.String
	PreviousSchool   null.String
	AdmissionDate    null.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var studentOrderings = map[string]string{
	"first_name":     "first_name",
	"last_name":      "last_name",
	"dob":            "dob",
	"matricule":      "matricule",
	"admission_date": "admission_date",
	"created_at":     "created_at",
}

func (studentRow) TableName() string { return "student" }

type studentRepository struct {
	repo
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *gorm.DB) student.Repository {
	return &studentRepository{repo{db: db}}
}

func boilStudent(stu student.Student) *studentRow {
	return &studentRow{
		ID:               stu.ID,
		SchoolID:         stu.SchoolID,
		FirstName:        stu.FirstName,
		LastName:         stu.LastName,
		DOB:              date(stu.DOB),
		Gender:           nullString(stu.Gender),
		Matricule:        stu.Matricule,
		Status:           stu.Status,
		BirthPlace:       nullString(stu.BirthPlace),
		Nationality:      nullString(stu.Nationality),
		Address:          nullString(stu.Address),
		EmergencyContact: nullString(stu.EmergencyContact),
		EmergencyPhone:   nullString(stu.EmergencyPhone),
		PreviousSchool:   nullString(stu.PreviousSchool),
		AdmissionDate:    nullDate(stu.AdmissionDate),
		CreatedAt:        stu.CreatedAt.UTC(),
		UpdatedAt:        stu.UpdatedAt.UTC(),
	}
}

func unboilStudent(s *studentRow) student.Student {
	return student.Student{
		ID:               s.ID,
		SchoolID:         s.SchoolID,
		FirstName:        s.FirstName,
		LastName:         s.LastName,
		DOB:              dateString(s.DOB),
		Gender:           s.Gender.String,
		Matricule:        s.Matricule,
		Status:           s.Status,
		BirthPlace:       s.BirthPlace.String,
		Nationality:      s.Nationality.String,
		Address:          s.Address.String,
		EmergencyContact: s.EmergencyContact.String,
		EmergencyPhone:   s.EmergencyPhone.String,
		PreviousSchool:   s.PreviousSchool.String,
		AdmissionDate:    nullDateString(s.AdmissionDate),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (r studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	if stu.ID == "" {
		stu.ID = core.NewID()
	}
	s := boilStudent(stu)
	if err := r.conn(ctx).Create(s).Error; err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return unboilStudent(s), nil
}

func (r studentRepository) GetStudent(ctx context.Context, schoolID, id string) (student.Student, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return student.Student{}, student.ErrNotFound
	}
	var s studentRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&s).Error; err != nil {
		return student.Student{}, trapNotFound(err, student.ErrNotFound, "finding student")
	}
	return unboilStudent(&s), nil
}

func (r studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	q := r.conn(ctx).Model(&studentRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where("first_name ILIKE ? OR last_name ILIKE ? OR matricule ILIKE ?", val, val, val)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Gender != "" {
			q = q.Where("gender = ?", filter.Gender)
		}
		if filter.ClassID != "" {
			if !core.IsUUID(filter.ClassID) {
				return []student.Student{}, nil
			}
			q = q.Where("id IN (?)", r.conn(ctx).Model(&enrollmentRow{}).Select("student_id").
				Where("class_id = ? AND status IN ?", filter.ClassID, class.ActiveEnrollmentStatuses))
		}
	}
	q = q.Order(orderBy(ordering, studentOrderings, "last_name, first_name"))

	var rows []*studentRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, s := range rows {
		students = append(students, unboilStudent(s))
	}
	return students, nil
}

func (r studentRepository) UpdateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	s := boilStudent(stu)
	res := r.conn(ctx).Model(s).Select("*").Omit("id", "school_id", "matricule", "created_at").Updates(s)
	if err := updated(res, student.ErrNotFound, "updating student"); err != nil {
		return student.Student{}, err
	}
	return stu, nil
}

func (r studentRepository) DeleteStudent(ctx context.Context, schoolID, id string) error {
	if !core.IsUUID(id) {
		return student.ErrNotFound
	}
	res := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).Delete(&studentRow{})
	return updated(res, student.ErrNotFound, "deleting student")
}

func (r studentRepository) ExistingMatricules(ctx context.Context, schoolID string, matricules []string) ([]string, error) {
	existing := make([]string, 0)
	if len(matricules) == 0 {
		return existing, nil
	}
	err := r.conn(ctx).Model(&studentRow{}).Where("school_id = ? AND matricule IN ?", schoolID, matricules).
		Pluck("matricule", &existing).Error
	if err != nil {
		return nil, errors.Wrap(err, "checking matricules")
	}
	return existing, nil
}

func (r studentRepository) ReserveMatricules(ctx context.Context, schoolID, schoolYearID string, count int) (int, error) {
	var last int
	err := r.conn(ctx).Raw(`
		INSERT INTO matricule_sequence (school_id, school_year_id, last_number, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (school_id, school_year_id)
		DO UPDATE SET last_number = matricule_sequence.last_number + EXCLUDED.last_number, updated_at = EXCLUDED.updated_at
		RETURNING last_number`,
		schoolID, schoolYearID, count, core.NowFunc().UTC()).Scan(&last).Error
	if err != nil {
		return 0, errors.Wrap(err, "reserving matricules")
	}
	return last, nil
}
