package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil)

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) ExistingSchoolCodes(_ context.Context, codes []string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	existing := make([]string, 0)
	for _, sch := range repo.db.schools {
		if core.StringInSlice(sch.Code, codes) {
			existing = append(existing, sch.Code)
		}
	}
	return existing, nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.schools {
		if s.Code == sch.Code {
			return school.School{}, school.ErrAlreadyExists
		}
	}
	if sch.ID == "" {
		sch.ID = core.NewID()
	}
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id string) (school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sch, ok := repo.db.schools[id]; ok {
		return *sch, nil
	}
	return school.School{}, school.ErrNotFound
}

func (repo *schoolRepository) QuerySchools(_ context.Context, filter *school.QueryFilter, _ []core.DBOrdering) ([]school.School, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	schools := make([]school.School, 0)
	for _, sch := range repo.db.schools {
		if filter != nil {
			if filter.Search != "" && !containsFold(sch.Name, filter.Search) && !containsFold(sch.Code, filter.Search) {
				continue
			}
			if filter.Status != "" && sch.Status != filter.Status {
				continue
			}
		}
		schools = append(schools, *sch)
	}
	sort.Slice(schools, func(i, j int) bool { return schools[i].Name < schools[j].Name })
	return schools, nil
}

func (repo *schoolRepository) UpdateSchool(_ context.Context, sch school.School) (school.School, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.schools[sch.ID]
	if !ok {
		return school.School{}, school.ErrNotFound
	}
	sch.CreatedAt = orig.CreatedAt
	repo.db.schools[sch.ID] = &sch
	return sch, nil
}

func (repo *schoolRepository) DeleteSchool(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.schools[id]; !ok {
		return school.ErrNotFound
	}
	delete(repo.db.schools, id)
	return nil
}

func (repo *schoolRepository) CreateSchoolYear(_ context.Context, year school.SchoolYear) (school.SchoolYear, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if year.ID == "" {
		year.ID = core.NewID()
	}
	repo.db.schoolYears[year.ID] = &year
	return year, nil
}

func (repo *schoolRepository) QuerySchoolYears(_ context.Context, schoolID string) ([]school.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	years := make([]school.SchoolYear, 0)
	for _, y := range repo.db.schoolYears {
		if y.SchoolID == schoolID {
			years = append(years, *y)
		}
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate > years[j].StartDate })
	return years, nil
}

func (repo *schoolRepository) GetSchoolYear(_ context.Context, schoolID, id string) (school.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if y, ok := repo.db.schoolYears[id]; ok && y.SchoolID == schoolID {
		return *y, nil
	}
	return school.SchoolYear{}, school.ErrYearNotFound
}

func (repo *schoolRepository) GetActiveSchoolYear(_ context.Context, schoolID string) (school.SchoolYear, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, y := range repo.db.schoolYears {
		if y.SchoolID == schoolID && y.IsActive {
			return *y, nil
		}
	}
	return school.SchoolYear{}, school.ErrNoActiveSchoolYear
}

func (repo *schoolRepository) SetActiveSchoolYear(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	target, ok := repo.db.schoolYears[id]
	if !ok || target.SchoolID != schoolID {
		return school.ErrYearNotFound
	}
	for _, y := range repo.db.schoolYears {
		if y.SchoolID == schoolID {
			y.IsActive = y.ID == id
		}
	}
	return nil
}

func (repo *schoolRepository) CreateTerm(_ context.Context, term school.Term) (school.Term, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if term.ID == "" {
		term.ID = core.NewID()
	}
	repo.db.terms[term.ID] = &term
	return term, nil
}

func (repo *schoolRepository) QueryTerms(_ context.Context, schoolYearID string) ([]school.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	terms := make([]school.Term, 0)
	for _, t := range repo.db.terms {
		if t.SchoolYearID == schoolYearID {
			terms = append(terms, *t)
		}
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Order < terms[j].Order })
	return terms, nil
}

func (repo *schoolRepository) GetTerm(_ context.Context, id string) (school.Term, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.terms[id]; ok {
		return *t, nil
	}
	return school.Term{}, school.ErrTermNotFound
}

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject) (school.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if sub.ID == "" {
		sub.ID = core.NewID()
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, schoolID string) ([]school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]school.Subject, 0)
	for _, s := range repo.db.subjects {
		if s.SchoolID == schoolID {
			subjects = append(subjects, *s)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *schoolRepository) GetSubject(_ context.Context, schoolID, id string) (school.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.subjects[id]; ok && s.SchoolID == schoolID {
		return *s, nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) SubjectCodeExists(_ context.Context, schoolID, code string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.subjects {
		if s.SchoolID == schoolID && s.Code == code {
			return true, nil
		}
	}
	return false, nil
}
