package conduct

import (
	"context"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/student"
)

var (
	// errors
	ErrNotFound = core.NotFound("errors.conduct.notFound")
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, r Record) (Record, error)
		GetRecord(ctx context.Context, schoolID, id string) (Record, error)
		// QueryRecords orders newest first.
		QueryRecords(ctx context.Context, filter *QueryFilter) ([]Record, error)
		UpdateRecord(ctx context.Context, r Record) (Record, error)
		DeleteRecord(ctx context.Context, schoolID, id string) error
	}

	StudentGetter interface {
		Get(ctx context.Context, schoolID, id string) (student.Student, error)
	}

	Service interface {
		Create(ctx context.Context, schoolID, recordedBy string, nr NewRecord) (Record, error)
		Get(ctx context.Context, schoolID, id string) (Record, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Record, error)
		Update(ctx context.Context, schoolID, id string, ur UpdateRecord) (Record, error)
		// UpdateStatus records who settled the record when it becomes resolved or closed.
		UpdateStatus(ctx context.Context, schoolID, id, actorID string, su StatusUpdate) (Record, error)
		MarkParentNotified(ctx context.Context, schoolID, id string) (Record, error)
		MarkParentAcknowledged(ctx context.Context, schoolID, id string) (Record, error)
		Delete(ctx context.Context, schoolID, id string) error
		StudentSummary(ctx context.Context, schoolID, studentID, schoolYearID string) (Summary, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		students StudentGetter
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, students StudentGetter) Service {
	return &service{tx: tx, repo: repo, students: students}
}

func (svc *service) Create(ctx context.Context, schoolID, recordedBy string, nr NewRecord) (Record, error) {
	if _, err := svc.students.Get(ctx, schoolID, nr.StudentID); err != nil {
		return Record{}, err
	}
	now := core.NowFunc().UTC()
	return svc.repo.CreateRecord(ctx, Record{
		SchoolID:      schoolID,
		StudentID:     nr.StudentID,
		ClassID:       nr.ClassID,
		SchoolYearID:  nr.SchoolYearID,
		Type:          nr.Type,
		Category:      nr.Category,
		Title:         nr.Title,
		Description:   nr.Description,
		Severity:      nr.Severity,
		IncidentDate:  nr.IncidentDate,
		Location:      nr.Location,
		SanctionType:  nr.SanctionType,
		RewardType:    nr.RewardType,
		PointsAwarded: nr.PointsAwarded,
		Status:        StatusOpen,
		RecordedBy:    recordedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Record, error) {
	return svc.repo.GetRecord(ctx, schoolID, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Record, error) {
	filter.Clean()
	return svc.repo.QueryRecords(ctx, filter)
}

// modify loads a record, applies fn and saves it in one transaction.
func (svc *service) modify(ctx context.Context, schoolID, id string, fn func(r *Record) error) (Record, error) {
	var r Record
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if r, err = svc.repo.GetRecord(ctx, schoolID, id); err != nil {
			return err
		}
		if err = fn(&r); err != nil {
			return err
		}
		r.UpdatedAt = core.NowFunc().UTC()
		r, err = svc.repo.UpdateRecord(ctx, r)
		return err
	})
	return r, err
}

func (svc *service) Update(ctx context.Context, schoolID, id string, ur UpdateRecord) (Record, error) {
	return svc.modify(ctx, schoolID, id, func(r *Record) error {
		setString(&r.Category, ur.Category)
		setString(&r.Title, ur.Title)
		setString(&r.Description, ur.Description)
		setString(&r.Severity, ur.Severity)
		setString(&r.IncidentDate, ur.IncidentDate)
		setString(&r.Location, ur.Location)
		setString(&r.SanctionType, ur.SanctionType)
		setString(&r.RewardType, ur.RewardType)
		if ur.PointsAwarded != nil {
			r.PointsAwarded = *ur.PointsAwarded
		}
		return nil
	})
}

func setString(dst, src *string) {
	if src != nil {
		*dst = core.CleanString(*src)
	}
}

func (svc *service) UpdateStatus(ctx context.Context, schoolID, id, actorID string, su StatusUpdate) (Record, error) {
	return svc.modify(ctx, schoolID, id, func(r *Record) error {
		r.Status = su.Status
		if r.Settled() {
			now := core.NowFunc().UTC()
			r.ResolvedBy = actorID
			r.ResolvedAt = &now
			r.ResolutionNotes = su.ResolutionNotes
		}
		return nil
	})
}

func (svc *service) MarkParentNotified(ctx context.Context, schoolID, id string) (Record, error) {
	return svc.modify(ctx, schoolID, id, func(r *Record) error {
		now := core.NowFunc().UTC()
		r.ParentNotified = true
		r.ParentNotifiedAt = &now
		return nil
	})
}

func (svc *service) MarkParentAcknowledged(ctx context.Context, schoolID, id string) (Record, error) {
	return svc.modify(ctx, schoolID, id, func(r *Record) error {
		now := core.NowFunc().UTC()
		r.ParentAcknowledged = true
		r.ParentAcknowledgedAt = &now
		return nil
	})
}

func (svc *service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.repo.DeleteRecord(ctx, schoolID, id)
}

func (svc *service) StudentSummary(ctx context.Context, schoolID, studentID, schoolYearID string) (Summary, error) {
	if _, err := svc.students.Get(ctx, schoolID, studentID); err != nil {
		return Summary{}, err
	}
	records, err := svc.repo.QueryRecords(ctx, &QueryFilter{SchoolID: schoolID, StudentID: studentID, SchoolYearID: schoolYearID})
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}
