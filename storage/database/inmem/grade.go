package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/grade"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) inSchool(g *grade.Grade, schoolID string) bool {
	cls, ok := repo.db.classes[g.ClassID]
	return ok && cls.SchoolID == schoolID
}

func (repo *gradeRepository) CreateGrades(_ context.Context, grades []grade.Grade) ([]grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]grade.Grade, 0, len(grades))
	for _, g := range grades {
		if g.ID == "" {
			g.ID = core.NewID()
		}
		g := g
		repo.db.grades[g.ID] = &g
		created = append(created, g)
	}
	return created, nil
}

func (repo *gradeRepository) GetGrade(_ context.Context, schoolID, id string) (grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if g, ok := repo.db.grades[id]; ok && repo.inSchool(g, schoolID) {
		return *g, nil
	}
	return grade.Grade{}, grade.ErrNotFound
}

func (repo *gradeRepository) GetGrades(_ context.Context, schoolID string, ids []string) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]grade.Grade, 0, len(ids))
	for _, id := range ids {
		if g, ok := repo.db.grades[id]; ok && repo.inSchool(g, schoolID) {
			grades = append(grades, *g)
		}
	}
	return grades, nil
}

func (repo *gradeRepository) UpdateGrade(_ context.Context, g grade.Grade) (grade.Grade, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.grades[g.ID]
	if !ok {
		return grade.Grade{}, grade.ErrNotFound
	}
	g.CreatedAt = orig.CreatedAt
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *gradeRepository) QueryGrades(_ context.Context, filter *grade.ListFilter) ([]grade.Grade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grades := make([]grade.Grade, 0)
	for _, g := range repo.db.grades {
		if filter != nil {
			if filter.SchoolID != "" && !repo.inSchool(g, filter.SchoolID) {
				continue
			}
			if filter.ClassID != "" && g.ClassID != filter.ClassID {
				continue
			}
			if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
				continue
			}
			if filter.TermID != "" && g.TermID != filter.TermID {
				continue
			}
			if filter.Status != "" && g.Status != filter.Status {
				continue
			}
			if filter.TeacherID != "" && g.TeacherID != filter.TeacherID {
				continue
			}
		}
		grades = append(grades, *g)
	}
	sort.Slice(grades, func(i, j int) bool {
		if grades[i].GradeDate != grades[j].GradeDate {
			return grades[i].GradeDate < grades[j].GradeDate
		}
		return grades[i].CreatedAt.Before(grades[j].CreatedAt)
	})
	return grades, nil
}

func (repo *gradeRepository) DeleteDrafts(_ context.Context, sel grade.DraftSelector) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for id, g := range repo.db.grades {
		if g.Status != grade.StatusDraft || g.ClassID != sel.ClassID || g.SubjectID != sel.SubjectID ||
			g.TermID != sel.TermID || g.Type != sel.Type || g.GradeDate != sel.GradeDate {
			continue
		}
		if sel.Description != "" && g.Description != sel.Description {
			continue
		}
		delete(repo.db.grades, id)
		deleted++
	}
	return deleted, nil
}

func (repo *gradeRepository) AddValidationEntries(_ context.Context, entries []grade.ValidationEntry) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			e.ID = core.NewID()
		}
		repo.db.validations = append(repo.db.validations, e)
	}
	return nil
}

func (repo *gradeRepository) ValidationHistory(_ context.Context, gradeID string) ([]grade.ValidationEntry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	history := make([]grade.ValidationEntry, 0)
	for i := len(repo.db.validations) - 1; i >= 0; i-- {
		e := repo.db.validations[i]
		if e.GradeID != gradeID {
			continue
		}
		if usr, ok := repo.db.users[e.ValidatorID]; ok {
			e.ValidatorName = usr.Name
		}
		history = append(history, e)
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].CreatedAt.After(history[j].CreatedAt) })
	return history, nil
}

func (repo *gradeRepository) PendingValidations(_ context.Context, filter *grade.PendingFilter) ([]grade.PendingValidation, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type groupKey struct{ classID, subjectID, termID, teacherID string }
	groups := make(map[groupKey]*grade.PendingValidation)
	for _, g := range repo.db.grades {
		if g.Status != grade.StatusSubmitted {
			continue
		}
		cls, ok := repo.db.classes[g.ClassID]
		if !ok {
			continue
		}
		if filter != nil {
			if filter.SchoolID != "" && cls.SchoolID != filter.SchoolID {
				continue
			}
			if filter.TermID != "" && g.TermID != filter.TermID {
				continue
			}
			if filter.ClassID != "" && g.ClassID != filter.ClassID {
				continue
			}
			if filter.SubjectID != "" && g.SubjectID != filter.SubjectID {
				continue
			}
		}

		key := groupKey{g.ClassID, g.SubjectID, g.TermID, g.TeacherID}
		pv, ok := groups[key]
		if !ok {
			pv = &grade.PendingValidation{
				ClassID:   g.ClassID,
				ClassName: cls.Name,
				SubjectID: g.SubjectID,
				TermID:    g.TermID,
				TeacherID: g.TeacherID,
			}
			if sub, ok := repo.db.subjects[g.SubjectID]; ok {
				pv.SubjectName = sub.Name
			}
			if usr, ok := repo.db.users[g.TeacherID]; ok {
				pv.TeacherName = usr.Name
			}
			groups[key] = pv
		}
		pv.PendingCount++
		if g.SubmittedAt != nil && (pv.SubmittedAt.IsZero() || g.SubmittedAt.Before(pv.SubmittedAt)) {
			pv.SubmittedAt = *g.SubmittedAt
		}
	}

	pending := make([]grade.PendingValidation, 0, len(groups))
	for _, pv := range groups {
		pending = append(pending, *pv)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].SubmittedAt.Before(pending[j].SubmittedAt) })
	return pending, nil
}
