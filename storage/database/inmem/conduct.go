package inmemdb

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/conduct"
)

type conductRepository struct {
	db *DB
}

var _ conduct.Repository = (*conductRepository)(nil)

func NewConductRepository(db *DB) conduct.Repository {
	return &conductRepository{db: db}
}

func (repo *conductRepository) CreateRecord(_ context.Context, r conduct.Record) (conduct.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r.ID == "" {
		r.ID = core.NewID()
	}
	repo.db.records[r.ID] = &r
	return r, nil
}

func (repo *conductRepository) GetRecord(_ context.Context, schoolID, id string) (conduct.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if r, ok := repo.db.records[id]; ok && r.SchoolID == schoolID {
		return *r, nil
	}
	return conduct.Record{}, conduct.ErrNotFound
}

func (repo *conductRepository) QueryRecords(_ context.Context, filter *conduct.QueryFilter) ([]conduct.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]conduct.Record, 0)
	for _, r := range repo.db.records {
		if filter != nil && !matchRecord(r, filter) {
			continue
		}
		records = append(records, *r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].IncidentDate != records[j].IncidentDate {
			return records[i].IncidentDate > records[j].IncidentDate
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func matchRecord(r *conduct.Record, filter *conduct.QueryFilter) bool {
	switch {
	case filter.SchoolID != "" && r.SchoolID != filter.SchoolID,
		filter.SchoolYearID != "" && r.SchoolYearID != filter.SchoolYearID,
		filter.StudentID != "" && r.StudentID != filter.StudentID,
		filter.ClassID != "" && r.ClassID != filter.ClassID,
		filter.Type != "" && r.Type != filter.Type,
		filter.Category != "" && r.Category != filter.Category,
		filter.Status != "" && r.Status != filter.Status,
		filter.Severity != "" && r.Severity != filter.Severity,
		filter.StartDate != "" && r.IncidentDate < filter.StartDate,
		filter.EndDate != "" && r.IncidentDate > filter.EndDate:
		return false
	}
	if filter.Search != "" {
		return containsFold(r.Title, filter.Search) || containsFold(r.Description, filter.Search)
	}
	return true
}

func (repo *conductRepository) UpdateRecord(_ context.Context, r conduct.Record) (conduct.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.records[r.ID]
	if !ok || orig.SchoolID != r.SchoolID {
		return conduct.Record{}, conduct.ErrNotFound
	}
	r.CreatedAt = orig.CreatedAt
	repo.db.records[r.ID] = &r
	return r, nil
}

func (repo *conductRepository) DeleteRecord(_ context.Context, schoolID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if r, ok := repo.db.records[id]; !ok || r.SchoolID != schoolID {
		return conduct.ErrNotFound
	}
	delete(repo.db.records, id)
	return nil
}
