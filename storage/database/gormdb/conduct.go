package gormrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/conduct"
)

type conductRow struct {
	ID                   string `gorm:"primaryKey"`
	SchoolID             string
	StudentID            string
	ClassID              null.String
	SchoolYearID         null.String
	Type                 string
	Category             string
	Title                string
	Description          null.String
	Severity             null.String
	IncidentDate         time.Time
	Location             null.String
	SanctionType         null.String
	RewardType           null.String
	PointsAwarded        int
	Status               string
	ParentNotified       bool
	ParentNotifiedAt     null.Time
	ParentAcknowledged   bool
	ParentAcknowledgedAt null.Time
	RecordedBy           string
	ResolvedBy           null.String
	ResolvedAt           null.Time
	ResolutionNotes      null.String
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (conductRow) TableName() string { return "conduct_record" }

type conductRepository struct {
	repo
}

var _ conduct.Repository = (*conductRepository)(nil)

func NewConductRepository(db *gorm.DB) conduct.Repository {
	return &conductRepository{repo{db: db}}
}

func boilRecord(rec conduct.Record) *conductRow {
	return &conductRow{
		ID:                   rec.ID,
		SchoolID:             rec.SchoolID,
		StudentID:            rec.StudentID,
		ClassID:              nullString(rec.ClassID),
		SchoolYearID:         nullString(rec.SchoolYearID),
		Type:                 rec.Type,
		Category:             rec.Category,
		Title:                rec.Title,
		Description:          nullString(rec.Description),
		Severity:             nullString(rec.Severity),
		IncidentDate:         date(rec.IncidentDate),
		Location:             nullString(rec.Location),
		SanctionType:         nullString(rec.SanctionType),
		RewardType:           nullString(rec.RewardType),
		PointsAwarded:        rec.PointsAwarded,
		Status:               rec.Status,
		ParentNotified:       rec.ParentNotified,
		ParentNotifiedAt:     nullTime(rec.ParentNotifiedAt),
		ParentAcknowledged:   rec.ParentAcknowledged,
		ParentAcknowledgedAt: nullTime(rec.ParentAcknowledgedAt),
		RecordedBy:           rec.RecordedBy,
		ResolvedBy:           nullString(rec.ResolvedBy),
		ResolvedAt:           nullTime(rec.ResolvedAt),
		ResolutionNotes:      nullString(rec.ResolutionNotes),
		CreatedAt:            rec.CreatedAt.UTC(),
		UpdatedAt:            rec.UpdatedAt.UTC(),
	}
}

func unboilRecord(c *conductRow) conduct.Record {
	return conduct.Record{
		ID:                   c.ID,
		SchoolID:             c.SchoolID,
		StudentID:            c.StudentID,
		ClassID:              c.ClassID.String,
		SchoolYearID:         c.SchoolYearID.String,
		Type:                 c.Type,
		Category:             c.Category,
		Title:                c.Title,
		Description:          c.Description.String,
		Severity:             c.Severity.String,
		IncidentDate:         dateString(c.IncidentDate),
		Location:             c.Location.String,
		SanctionType:         c.SanctionType.String,
		RewardType:           c.RewardType.String,
		PointsAwarded:        c.PointsAwarded,
		Status:               c.Status,
		ParentNotified:       c.ParentNotified,
		ParentNotifiedAt:     c.ParentNotifiedAt.Ptr(),
		ParentAcknowledged:   c.ParentAcknowledged,
		ParentAcknowledgedAt: c.ParentAcknowledgedAt.Ptr(),
		RecordedBy:           c.RecordedBy,
		ResolvedBy:           c.ResolvedBy.String,
		ResolvedAt:           c.ResolvedAt.Ptr(),
		ResolutionNotes:      c.ResolutionNotes.String,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func (r conductRepository) CreateRecord(ctx context.Context, rec conduct.Record) (conduct.Record, error) {
	if rec.ID == "" {
		rec.ID = core.NewID()
	}
	row := boilRecord(rec)
	if err := r.conn(ctx).Create(row).Error; err != nil {
		return conduct.Record{}, errors.Wrap(err, "inserting conduct record")
	}
	return unboilRecord(row), nil
}

func (r conductRepository) GetRecord(ctx context.Context, schoolID, id string) (conduct.Record, error) {
	if !core.IsUUID(id) || !core.IsUUID(schoolID) {
		return conduct.Record{}, conduct.ErrNotFound
	}
	var row conductRow
	if err := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).First(&row).Error; err != nil {
		return conduct.Record{}, trapNotFound(err, conduct.ErrNotFound, "finding conduct record")
	}
	return unboilRecord(&row), nil
}

func (r conductRepository) QueryRecords(ctx context.Context, filter *conduct.QueryFilter) ([]conduct.Record, error) {
	q := r.conn(ctx).Model(&conductRow{})
	if filter != nil {
		if filter.SchoolID != "" {
			q = q.Where("school_id = ?", filter.SchoolID)
		}
		if filter.SchoolYearID != "" {
			q = q.Where("school_year_id = ?", filter.SchoolYearID)
		}
		if filter.StudentID != "" {
			q = q.Where("student_id = ?", filter.StudentID)
		}
		if filter.ClassID != "" {
			q = q.Where("class_id = ?", filter.ClassID)
		}
		if filter.Type != "" {
			q = q.Where("type = ?", filter.Type)
		}
		if filter.Category != "" {
			q = q.Where("category = ?", filter.Category)
		}
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.Severity != "" {
			q = q.Where("severity = ?", filter.Severity)
		}
		if filter.StartDate != "" {
			q = q.Where("incident_date >= ?", date(filter.StartDate))
		}
		if filter.EndDate != "" {
			q = q.Where("incident_date <= ?", date(filter.EndDate))
		}
		if filter.Search != "" {
			val := ilike(filter.Search)
			q = q.Where("title ILIKE ? OR description ILIKE ?", val, val)
		}
	}

	var rows []*conductRow
	if err := q.Order("incident_date DESC, created_at DESC").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "querying conduct records")
	}
	records := make([]conduct.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, unboilRecord(row))
	}
	return records, nil
}

func (r conductRepository) UpdateRecord(ctx context.Context, rec conduct.Record) (conduct.Record, error) {
	row := boilRecord(rec)
	res := r.conn(ctx).Model(row).Select("*").Omit("id", "school_id", "student_id", "recorded_by", "created_at").Updates(row)
	if err := updated(res, conduct.ErrNotFound, "updating conduct record"); err != nil {
		return conduct.Record{}, err
	}
	return rec, nil
}

func (r conductRepository) DeleteRecord(ctx context.Context, schoolID, id string) error {
	if !core.IsUUID(id) {
		return conduct.ErrNotFound
	}
	res := r.conn(ctx).Where("id = ? AND school_id = ?", id, schoolID).Delete(&conductRow{})
	return updated(res, conduct.ErrNotFound, "deleting conduct record")
}
