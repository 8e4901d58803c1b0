package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/timetable"
)

type timetableRepository struct {
	db *DB
}

var _ timetable.Repository = (*timetableRepository)(nil)

func NewTimetableRepository(db *DB) timetable.Repository {
	return &timetableRepository{db: db}
}

func (repo *timetableRepository) CreateSession(_ context.Context, s timetable.Session) (timetable.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s.ID == "" {
		s.ID = core.NewID()
	}
	repo.db.sessions[s.ID] = &s
	return s, nil
}

func (repo *timetableRepository) GetSession(_ context.Context, schoolID, id string) (timetable.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.sessions[id]; ok && s.SchoolID == schoolID {
		return *s, nil
	}
	return timetable.Session{}, timetable.ErrNotFound
}

func (repo *timetableRepository) QuerySessions(_ context.Context, filter *timetable.QueryFilter) ([]timetable.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]timetable.Session, 0)
	for _, s := range repo.db.sessions {
		if filter != nil {
			if filter.SchoolID != "" && s.SchoolID != filter.SchoolID {
				continue
			}
			if filter.SchoolYearID != "" && s.SchoolYearID != filter.SchoolYearID {
				continue
			}
			if filter.ClassID != "" && s.ClassID != filter.ClassID {
				continue
			}
			if filter.TeacherID != "" && s.TeacherID != filter.TeacherID {
				continue
			}
			if filter.ClassroomID != "" && s.ClassroomID != filter.ClassroomID {
				continue
			}
			if filter.DayOfWeek != 0 && s.DayOfWeek != filter.DayOfWeek {
				continue
			}
		}
		sessions = append(sessions, *s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].DayOfWeek != sessions[j].DayOfWeek {
			return sessions[i].DayOfWeek < sessions[j].DayOfWeek
		}
		return sessions[i].StartTime < sessions[j].StartTime
	})
	return sessions, nil
}

func (repo *timetableRepository) UpdateSession(_ context.Context, s timetable.Session) (timetable.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.sessions[s.ID]
	if !ok || orig.SchoolID != s.SchoolID {
		return timetable.Session{}, timetable.ErrNotFound
	}
	s.CreatedAt = orig.CreatedAt
	repo.db.sessions[s.ID] = &s
	return s, nil
}

func (repo *timetableRepository) DeleteSession(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if s, ok := repo.db.sessions[id]; !ok || s.SchoolID != schoolID {
		return timetable.ErrNotFound
	}
	delete(repo.db.sessions, id)
	return nil
}
