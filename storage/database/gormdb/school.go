package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
)

type (
	schoolRow struct {
		ID        string `gorm:"primaryKey"`
		Name      string
		Code      string
		Address   null.String
		Phone     null.String
		Email     null.String
		LogoURL   null.String `gorm:"column:logo_url"`
		Status    string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	schoolYearRow struct {
		ID        string `gorm:"primaryKey"`
		SchoolID  string
		Name      string
		StartDate time.Time
		EndDate   time.Time
		IsActive  bool
		CreatedAt time.Time
	}

	termRow struct {
		ID           string `gorm:"primaryKey"`
		SchoolYearID string
		Name         string
		Order        int
		StartDate    time.Time
		EndDate      time.Time
		CreatedAt    time.Time
	}

	subjectRow struct {
		ID        string `gorm:"primaryKey"`
		SchoolID  string
		Name      string
		Code      string
		CreatedAt time.Time
	}
)

var schoolOrderings = map[string]string{
	"name":       "name",
	"code":       "code",
	"status":     "status",
	"created_at": "created_at",
}

func (schoolRow) TableName() string     { return "school" }
func (schoolYearRow) TableName() string { return "school_year" }
func (termRow) TableName() string       { return "term" }
func (subjectRow) TableName() string    { return "subject" }

type schoolRepository struct {
	repo
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *gorm.DB) school.Repository {
	return &schoolRepository{repo{db: db}}
}

func boilSchool(sch school.School) *schoolRow {
	return &schoolRow{
		ID:        sch.ID,
		Name:      sch.Name,
		Code:      sch.Code,
		Address:   nullString(sch.Address),
		Phone:     nullString(sch.Phone),
		Email:     nullString(sch.Email),
		LogoURL:   nullString(sch.LogoURL),
		Status:    sch.Status,
		CreatedAt: sch.CreatedAt.UTC(),
		UpdatedAt: sch.UpdatedAt.UTC(),
	}
}

func unboilSchool(s *schoolRow) school.School {
	return school.School{
		ID:        s.ID,
		Name:      s.Name,
		Code:      s.Code,
		Address:   s.Address.String,
		Phone:     s.Phone.String,
		Email:     s.Email.String,
		LogoURL:   s.LogoURL.String,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func unboilSchoolYear(y *schoolYearRow) school.SchoolYear {
	return school.SchoolYear{
		ID:        y.ID,
		SchoolID:  y.SchoolID,
		Name:      y.Name,
		StartDate: dateString(y.StartDate),
		EndDate:   dateString(y.EndDate),
		IsActive:  y.IsActive,
		CreatedAt: y.CreatedAt,
	}
}

func unboilTerm(t *termRow) school.Term {
	return school.Term{
		ID:           t.ID,
		SchoolYearID: t.SchoolYearID,
		Name:         t.Name,
		Order:        t.Order,
		StartDate:    dateString(t.StartDate),
		EndDate:      dateString(t.EndDate),
		CreatedAt:    t.CreatedAt,
	}
}

func unboilSubject(s *subjectRow) school.Subject {
	return school.Subject{ID: s.ID, SchoolID: s.SchoolID, Name: s.Name, Code: s.Code, CreatedAt: s.CreatedAt}
}

func (r schoolRepository) ExistingSchoolCodes(ctx context.Context, codes []string) ([]string, error) {
	existing := make([]string, 0)
	if len(codes) == 0 {
		return existing, nil
	}
	err := r.conn(ctx).Model(&schoolRow{}).Where("code IN ?", codes).Pluck("code", &existing).Error
	if err != nil {
		return nil, errors.Wrap(err, "checking school codes")
	}
	return existing, nil
}

func (r schoolRepository) CreateSchool(ctx context.Context, sch school.School) (school.School, error) {
	if sch.ID == "" {
		sch.ID = core.NewID()
	}
	s := boilSchool(sch)
	if err := r.conn(ctx).Create(s).Error; err != nil {
		return school.School{}, errors.Wrap(err, "inserting school")
	}
	return unboilSchool(s), nil
}

func (r schoolRepository) GetSchool(ctx context.Context, id string) (school.School, error) {
	if !core.IsUUID(id) {
		return school.School{}, school.ErrNotFound
	}
	var s schoolRow
	if err := r.conn(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return school.School{}, trapNotFound(err, school.ErrNotFound, "finding school")
	}
	return unboilSchool(&s), nil
}

func (r schoolRepository) QuerySchools(ctx context.Context, filter *school.QueryFilter, ordering []core.DBOrdering) ([]school.School, error) {
	q := r.conn(ctx).Model(&schoolRow{})
	if filter != nil {
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where("name ILIKE ? OR code ILIKE ?", val, val)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
	}
	q = q.Order(orderBy(ordering, schoolOrderings, "name"))

	var rows []*schoolRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, s := range rows {
		schools = append(schools, unboilSchool(s))
	}
	return schools, nil
}

func (r schoolRepository) UpdateSchool(ctx context.Context, sch school.School) (school.School, error) {
	s := boilSchool(sch)
	res := r.conn(ctx).Model(s).Select("*").Omit("id", "code", "created_at").Updates(s)
	if err := updated(res, school.ErrNotFound, "updating school"); err != nil {
		return school.School{}, err
	}
	return sch, nil
}

func (r schoolRepository) DeleteSchool(ctx context.Context, id string) error {
	if !core.IsUUID(id) {
		return school.ErrNotFound
	}
	res := r.conn(ctx).Where("id = ?", id).Delete(&schoolRow{})
	return updated(res, school.ErrNotFound, "deleting school")
}

func (r schoolRepository) CreateSchoolYear(ctx context.Context, year school.SchoolYear) (school.SchoolYear, error) {
	if year.ID == "" {
		year.ID = core.NewID()
	}
	y := &schoolYearRow{
		ID:        year.ID,
		SchoolID:  year.SchoolID,
		Name:      year.Name,
		StartDate: date(year.StartDate),
		EndDate:   date(year.EndDate),
		CreatedAt: year.CreatedAt.UTC(),
	}
	if err := r.conn(ctx).Create(y).Error; err != nil {
		return school.SchoolYear{}, errors.Wrap(err, "inserting school year")
	}
	return unboilSchoolYear(y), nil
}

func (r schoolRepository) QuerySchoolYears(ctx context.Context, schoolID string) ([]school.SchoolYear, error) {
	var rows []*schoolYearRow
	if err := r.conn(ctx).Where("school_id = ?", schoolID).Order("start_date DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying school years")
	}
	years := make([]school.SchoolYear, 0, len(rows))
	for _, y := range rows {
		years = append(years, unboilSchoolYear(y))
	}
	return years, nil
}

func (r schoolRepository) GetSchoolYear(ctx context.Context, schoolID, id string) (school.SchoolYear, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return school.SchoolYear{}, school.ErrYearNotFound
	}
	var y schoolYearRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&y).Error; err != nil {
		return school.SchoolYear{}, trapNotFound(err, school.ErrYearNotFound, "finding school year")
	}
	return unboilSchoolYear(&y), nil
}

func (r schoolRepository) GetActiveSchoolYear(ctx context.Context, schoolID string) (school.SchoolYear, error) {
	if !core.IsUUID(schoolID) {
		return school.SchoolYear{}, school.ErrNoActiveSchoolYear
	}
	var y schoolYearRow
	if err := r.conn(ctx).Where("school_id = ? AND is_active", schoolID).First(&y).Error; err != nil {
		return school.SchoolYear{}, trapNotFound(err, school.ErrNoActiveSchoolYear, "finding active school year")
	}
	return unboilSchoolYear(&y), nil
}

func (r schoolRepository) SetActiveSchoolYear(ctx context.Context, schoolID, id string) error {
	db := r.conn(ctx)
	err := db.Model(&schoolYearRow{}).Where("school_id = ? AND id <> ? AND is_active", schoolID, id).
		Update("is_active", false).Error
	if err != nil {
		return errors.Wrap(err, "deactivating school years")
	}
	res := db.Model(&schoolYearRow{}).Where("school_id = ? AND id = ?", schoolID, id).Update("is_active", true)
	return updated(res, school.ErrYearNotFound, "activating school year")
}

func (r schoolRepository) CreateTerm(ctx context.Context, term school.Term) (school.Term, error) {
	if term.ID == "" {
		term.ID = core.NewID()
	}
	t := &termRow{
		ID:           term.ID,
		SchoolYearID: term.SchoolYearID,
		Name:         term.Name,
		Order:        term.Order,
		StartDate:    date(term.StartDate),
		EndDate:      date(term.EndDate),
		CreatedAt:    term.CreatedAt.UTC(),
	}
	if err := r.conn(ctx).Create(t).Error; err != nil {
		return school.Term{}, errors.Wrap(err, "inserting term")
	}
	return unboilTerm(t), nil
}

func (r schoolRepository) QueryTerms(ctx context.Context, schoolYearID string) ([]school.Term, error) {
	var rows []*termRow
	if err := r.conn(ctx).Where("school_year_id = ?", schoolYearID).Order(`"order"`).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	terms := make([]school.Term, 0, len(rows))
	for _, t := range rows {
		terms = append(terms, unboilTerm(t))
	}
	return terms, nil
}

func (r schoolRepository) GetTerm(ctx context.Context, id string) (school.Term, error) {
	if !core.IsUUID(id) {
		return school.Term{}, school.ErrTermNotFound
	}
	var t termRow
	if err := r.conn(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return school.Term{}, trapNotFound(err, school.ErrTermNotFound, "finding term")
	}
	return unboilTerm(&t), nil
}

func (r schoolRepository) CreateSubject(ctx context.Context, sub school.Subject) (school.Subject, error) {
	if sub.ID == "" {
		sub.ID = core.NewID()
	}
	s := &subjectRow{ID: sub.ID, SchoolID: sub.SchoolID, Name: sub.Name, Code: sub.Code, CreatedAt: sub.CreatedAt.UTC()}
	if err := r.conn(ctx).Create(s).Error; err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return unboilSubject(s), nil
}

func (r schoolRepository) QuerySubjects(ctx context.Context, schoolID string) ([]school.Subject, error) {
	var rows []*subjectRow
	if err := r.conn(ctx).Where("school_id = ?", schoolID).Order("name").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, s := range rows {
		subjects = append(subjects, unboilSubject(s))
	}
	return subjects, nil
}

func (r schoolRepository) GetSubject(ctx context.Context, schoolID, id string) (school.Subject, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	var s subjectRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&s).Error; err != nil {
		return school.Subject{}, trapNotFound(err, school.ErrSubjectNotFound, "finding subject")
	}
	return unboilSubject(&s), nil
}

func (r schoolRepository) SubjectCodeExists(ctx context.Context, schoolID, code string) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&subjectRow{}).Where("school_id = ? AND code = ?", schoolID, code).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "checking subject code")
	}
	return count > 0, nil
}
