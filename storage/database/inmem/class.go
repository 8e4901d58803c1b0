package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if cls.ID == "" {
		cls.ID = core.NewID()
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClass(_ context.Context, schoolID, id string) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cls, ok := repo.db.classes[id]; ok && cls.SchoolID == schoolID {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, _ []core.DBOrdering) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if filter != nil {
			if filter.SchoolID != "" && cls.SchoolID != filter.SchoolID {
				continue
			}
			if filter.SchoolYearID != "" && cls.SchoolYearID != filter.SchoolYearID {
				continue
			}
			if filter.GradeLevel != "" && cls.GradeLevel != filter.GradeLevel {
				continue
			}
			if filter.Status != "" && cls.Status != filter.Status {
				continue
			}
			if filter.Search != "" && !containsFold(cls.Name, filter.Search) {
				continue
			}
		}
		classes = append(classes, *cls)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].GradeLevel != classes[j].GradeLevel {
			return classes[i].GradeLevel < classes[j].GradeLevel
		}
		if classes[i].Section != classes[j].Section {
			return classes[i].Section < classes[j].Section
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.classes[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	cls.CreatedAt = orig.CreatedAt
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) CreateClassSubject(_ context.Context, cs class.ClassSubject) (class.ClassSubject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.classSubjects {
		if existing.ClassID == cs.ClassID && existing.SubjectID == cs.SubjectID {
			return class.ClassSubject{}, class.ErrSubjectAssigned
		}
	}
	if cs.ID == "" {
		cs.ID = core.NewID()
	}
	repo.db.classSubjects[cs.ID] = &cs
	return cs, nil
}

func (repo *classRepository) QueryClassSubjects(_ context.Context, classID string) ([]class.ClassSubject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]class.ClassSubject, 0)
	for _, cs := range repo.db.classSubjects {
		if cs.ClassID == classID {
			subjects = append(subjects, *cs)
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].CreatedAt.Before(subjects[j].CreatedAt) })
	return subjects, nil
}

func (repo *classRepository) ClassSubjectExists(_ context.Context, classID, subjectID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cs := range repo.db.classSubjects {
		if cs.ClassID == classID && cs.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *classRepository) StudentInSchool(_ context.Context, schoolID, studentID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	stu, ok := repo.db.students[studentID]
	return ok && stu.SchoolID == schoolID, nil
}

func (repo *classRepository) CreateEnrollment(_ context.Context, enr class.Enrollment) (class.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if enr.ID == "" {
		enr.ID = core.NewID()
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) GetEnrollment(_ context.Context, classID, id string) (class.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if enr, ok := repo.db.enrollments[id]; ok && enr.ClassID == classID {
		return *enr, nil
	}
	return class.Enrollment{}, class.ErrEnrollmentNotFound
}

func (repo *classRepository) UpdateEnrollment(_ context.Context, enr class.Enrollment) (class.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.enrollments[enr.ID]
	if !ok {
		return class.Enrollment{}, class.ErrEnrollmentNotFound
	}
	enr.CreatedAt = orig.CreatedAt
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *classRepository) ActiveEnrollmentExists(_ context.Context, studentID, schoolYearID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID && enr.SchoolYearID == schoolYearID &&
			core.StringInSlice(enr.Status, class.ActiveEnrollmentStatuses) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *classRepository) CountActiveEnrollments(_ context.Context, classID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return 0, class.ErrNotFound
	}
	var count int
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID && core.StringInSlice(enr.Status, class.ActiveEnrollmentStatuses) {
			count++
		}
	}
	return count, nil
}

func (repo *classRepository) QueryEnrolledStudents(_ context.Context, classID string, statuses []string) ([]class.EnrolledStudent, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]class.EnrolledStudent, 0)
	for _, enr := range repo.db.enrollments {
		if enr.ClassID != classID || (len(statuses) > 0 && !core.StringInSlice(enr.Status, statuses)) {
			continue
		}
		es := class.EnrolledStudent{Enrollment: *enr}
		if stu, ok := repo.db.students[enr.StudentID]; ok {
			es.FirstName, es.LastName, es.Matricule = stu.FirstName, stu.LastName, stu.Matricule
		}
		students = append(students, es)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].LastName != students[j].LastName {
			return students[i].LastName < students[j].LastName
		}
		return students[i].FirstName < students[j].FirstName
	})
	return students, nil
}
