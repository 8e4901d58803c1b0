package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.students {
		if s.SchoolID == stu.SchoolID && s.Matricule == stu.Matricule {
			return student.Student{}, student.ErrMatriculeExists
		}
	}
	if stu.ID == "" {
		stu.ID = core.NewID()
	}
	repo.db.students[stu.ID] = &stu
	return stu, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string) (student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if stu, ok := repo.db.students[id]; ok && stu.SchoolID == schoolID {
		return *stu, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) enrolledIn(classID, studentID string) bool {
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && enr.StudentID == studentID &&
			core.StringInSlice(enr.Status, class.ActiveEnrollmentStatuses) {
			return true
		}
	}
	return false
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, _ []core.DBOrdering) ([]student.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]student.Student, 0)
	for _, stu := range repo.db.students {
		if filter != nil {
			if filter.SchoolID != "" && stu.SchoolID != filter.SchoolID {
				continue
			}
			if filter.Search != "" && !containsFold(stu.FirstName, filter.Search) &&
				!containsFold(stu.LastName, filter.Search) && !containsFold(stu.Matricule, filter.Search) {
				continue
			}
			if filter.Status != "" && stu.Status != filter.Status {
				continue
			}
			if filter.Gender != "" && stu.Gender != filter.Gender {
				continue
			}
			if filter.ClassID != "" && !repo.enrolledIn(filter.ClassID, stu.ID) {
				continue
			}
		}
		students = append(students, *stu)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, stu student.Student) (student.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.students[stu.ID]
	if !ok || orig.SchoolID != stu.SchoolID {
		return student.Student{}, student.ErrNotFound
	}
	stu.CreatedAt = orig.CreatedAt
	repo.db.students[stu.ID] = &stu
	return stu, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if stu, ok := repo.db.students[id]; !ok || stu.SchoolID != schoolID {
		return student.ErrNotFound
	}
	delete(repo.db.students, id)
	return nil
}

func (repo *studentRepository) ExistingMatricules(_ context.Context, schoolID string, matricules []string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	existing := make([]string, 0)
	for _, stu := range repo.db.students {
		if stu.SchoolID == schoolID && core.StringInSlice(stu.Matricule, matricules) {
			existing = append(existing, stu.Matricule)
		}
	}
	return existing, nil
}

func (repo *studentRepository) ReserveMatricules(_ context.Context, schoolID, schoolYearID string, count int) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := schoolID + "|" + schoolYearID
	repo.db.sequences[key] += count
	return repo.db.sequences[key], nil
}
