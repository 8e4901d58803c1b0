package grade

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/Knetic/govaluate"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/user"
)

var (
	// errors
	ErrNotFound          = core.NotFound("errors.grades.notFound")
	ErrInvalidValue      = core.NewAppError(core.CodeValidation, "errors.grades.invalidValue")
	ErrOutOfRange        = core.NewAppError(core.CodeValidation, "errors.grades.outOfRange")
	ErrNotEditable       = core.Conflict("errors.grades.notEditable")
	ErrInvalidTransition = core.Conflict("errors.grades.invalidTransition")
	ErrClassNotInSchool  = core.PermissionDenied("errors.grades.classNotInSchool")
)

// Live event types
const EventStatusChanged = "grades.status"

type (
	Repository interface {
		CreateGrades(ctx context.Context, grades []Grade) ([]Grade, error)
		// GetGrade returns ErrNotFound when the grade class is not in the school.
		GetGrade(ctx context.Context, schoolID, id string) (Grade, error)
		// GetGrades returns the grades among ids whose class is in the school.
		GetGrades(ctx context.Context, schoolID string, ids []string) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade) (Grade, error)
		QueryGrades(ctx context.Context, filter *ListFilter) ([]Grade, error)
		DeleteDrafts(ctx context.Context, sel DraftSelector) (int, error)
		AddValidationEntries(ctx context.Context, entries []ValidationEntry) error
		// ValidationHistory is ordered newest first.
		ValidationHistory(ctx context.Context, gradeID string) ([]ValidationEntry, error)
		// PendingValidations groups submitted grades by class, subject, term and teacher,
		// the earliest submissions first.
		PendingValidations(ctx context.Context, filter *PendingFilter) ([]PendingValidation, error)
	}

	// ClassReader is the part of class.Service grades need.
	ClassReader interface {
		Get(ctx context.Context, schoolID, id string) (class.Class, error)
		Students(ctx context.Context, schoolID, classID string, statuses ...string) ([]class.EnrolledStudent, error)
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Cache stores computed statistics. Values are JSON encoded.
	Cache interface {
		Get(ctx context.Context, key string, dst interface{}) (bool, error)
		Set(ctx context.Context, key string, val interface{}) error
		DeletePrefix(ctx context.Context, prefix string) error
	}

	// Notifier pushes events to the school's live feed.
	Notifier interface {
		Notify(schoolID string, evt Event)
	}

	// Event is broadcast on every grade status change.
	Event struct {
		Type     string    `json:"type"`
		Status   string    `json:"status"`
		ClassID  string    `json:"class_id"`
		GradeIDs []string  `json:"grade_ids"`
		ActorID  string    `json:"actor_id"`
		At       time.Time `json:"at"`
	}

	Service interface {
		Create(ctx context.Context, schoolID, teacherID string, ng NewGrade) (Grade, error)
		// BulkCreate saves a column of draft grades in one transaction.
		BulkCreate(ctx context.Context, schoolID, teacherID string, bg BulkGrades) ([]Grade, error)
		Get(ctx context.Context, schoolID, id string) (Grade, error)
		// Update edits a draft or rejected grade. A non-empty teacherID restricts it to that teacher's grades.
		Update(ctx context.Context, schoolID, id, actorID, teacherID string, ug UpdateGrade) (Grade, error)
		DeleteDrafts(ctx context.Context, schoolID string, sel DraftSelector) (int, error)
		ListByClass(ctx context.Context, filter *ListFilter) ([]Grade, error)

		Submit(ctx context.Context, schoolID, actorID string, ids []string) (StatusResult, error)
		Validate(ctx context.Context, schoolID, actorID string, ids []string, comment string) (StatusResult, error)
		Reject(ctx context.Context, schoolID, actorID string, ids []string, reason string) (StatusResult, error)
		History(ctx context.Context, schoolID, gradeID string) ([]ValidationEntry, error)
		PendingValidations(ctx context.Context, filter *PendingFilter) ([]PendingValidation, error)

		Statistics(ctx context.Context, schoolID, classID, termID, subjectID string) ([]Statistics, error)
		TermAverages(ctx context.Context, schoolID, classID, termID string) ([]StudentAverage, error)
		ExportGradebook(ctx context.Context, w io.Writer, schoolID, classID, subjectID, termID string) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		classes  ClassReader
		users    UserGetter
		cache    Cache
		notifier Notifier
		mailSvc  core.EmailService
		logger   core.Logger
		formula  *govaluate.EvaluableExpression
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	classes ClassReader,
	users UserGetter,
	cache Cache,
	notifier Notifier,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) (Service, error) {
	formula, err := govaluate.NewEvaluableExpression(conf.Grading.AverageFormula)
	if err != nil {
		return nil, errors.Wrap(err, "parsing average formula")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		classes:  classes,
		users:    users,
		cache:    cache,
		notifier: notifier,
		mailSvc:  mailSvc,
		logger:   logger,
		formula:  formula,
	}, nil
}

// checkClass maps a class outside the school to ErrClassNotInSchool.
func (svc *service) checkClass(ctx context.Context, schoolID, classID string) (class.Class, error) {
	cls, err := svc.classes.Get(ctx, schoolID, classID)
	if err != nil {
		if errors.Is(err, class.ErrNotFound) {
			return class.Class{}, ErrClassNotInSchool
		}
		return class.Class{}, err
	}
	return cls, nil
}

func newDraft(teacherID string, now time.Time) Grade {
	return Grade{TeacherID: teacherID, Status: StatusDraft, CreatedAt: now, UpdatedAt: now}
}

func (svc *service) Create(ctx context.Context, schoolID, teacherID string, ng NewGrade) (Grade, error) {
	if _, err := svc.checkClass(ctx, schoolID, ng.ClassID); err != nil {
		return Grade{}, err
	}
	if err := ValidateValue(*ng.Value); err != nil {
		return Grade{}, err
	}
	g := newDraft(teacherID, core.NowFunc().UTC())
	g.StudentID = ng.StudentID
	g.ClassID = ng.ClassID
	g.SubjectID = ng.SubjectID
	g.TermID = ng.TermID
	g.Value = *ng.Value
	g.Type = ng.Type
	g.Weight = ng.Weight
	g.Description = ng.Description
	g.GradeDate = ng.GradeDate

	created, err := svc.repo.CreateGrades(ctx, []Grade{g})
	if err != nil {
		return Grade{}, err
	}
	return created[0], nil
}

func (svc *service) BulkCreate(ctx context.Context, schoolID, teacherID string, bg BulkGrades) ([]Grade, error) {
	if _, err := svc.checkClass(ctx, schoolID, bg.ClassID); err != nil {
		return nil, err
	}
	now := core.NowFunc().UTC()
	weight := bg.Weight
	if weight == 0 {
		weight = DefaultWeight
	}
	date := bg.GradeDate
	if date == "" {
		date = core.Today()
	}

	grades := make([]Grade, 0, len(bg.Grades))
	for _, sv := range bg.Grades {
		if err := ValidateValue(*sv.Value); err != nil {
			return nil, err
		}
		g := newDraft(teacherID, now)
		g.StudentID = sv.StudentID
		g.ClassID = bg.ClassID
		g.SubjectID = bg.SubjectID
		g.TermID = bg.TermID
		g.Value = *sv.Value
		g.Type = bg.Type
		g.Weight = weight
		g.Description = bg.Description
		g.GradeDate = date
		grades = append(grades, g)
	}

	var created []Grade
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = svc.repo.CreateGrades(ctx, grades)
		return err
	})
	return created, err
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Grade, error) {
	return svc.repo.GetGrade(ctx, schoolID, id)
}

func (svc *service) Update(ctx context.Context, schoolID, id, actorID, teacherID string, ug UpdateGrade) (Grade, error) {
	var g Grade
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		g, err = svc.repo.GetGrade(ctx, schoolID, id)
		if err != nil {
			return err
		}
		if teacherID != "" && g.TeacherID != teacherID {
			return core.ErrPermissionDenied
		}
		if !g.Editable() {
			return ErrNotEditable
		}

		if ug.Value != nil && *ug.Value != g.Value {
			if err = ValidateValue(*ug.Value); err != nil {
				return err
			}
			prev, next := g.Value, *ug.Value
			err = svc.repo.AddValidationEntries(ctx, []ValidationEntry{{
				GradeID:       g.ID,
				ValidatorID:   actorID,
				Action:        ActionEdited,
				PreviousValue: &prev,
				NewValue:      &next,
				CreatedAt:     core.NowFunc().UTC(),
			}})
			if err != nil {
				return err
			}
			g.Value = next
		}
		if ug.Description != nil {
			g.Description = core.CleanString(*ug.Description)
		}
		if g.Status == StatusRejected {
			g.Status = StatusDraft
		}
		g.UpdatedAt = core.NowFunc().UTC()
		g, err = svc.repo.UpdateGrade(ctx, g)
		return err
	})
	return g, err
}

func (svc *service) DeleteDrafts(ctx context.Context, schoolID string, sel DraftSelector) (int, error) {
	if _, err := svc.checkClass(ctx, schoolID, sel.ClassID); err != nil {
		return 0, err
	}
	return svc.repo.DeleteDrafts(ctx, sel)
}

func (svc *service) ListByClass(ctx context.Context, filter *ListFilter) ([]Grade, error) {
	if _, err := svc.checkClass(ctx, filter.SchoolID, filter.ClassID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGrades(ctx, filter)
}

func (svc *service) Submit(ctx context.Context, schoolID, actorID string, ids []string) (StatusResult, error) {
	return svc.changeStatus(ctx, schoolID, actorID, ids, StatusSubmitted, []string{StatusDraft, StatusRejected}, "", "")
}

func (svc *service) Validate(ctx context.Context, schoolID, actorID string, ids []string, comment string) (StatusResult, error) {
	return svc.changeStatus(ctx, schoolID, actorID, ids, StatusValidated, []string{StatusSubmitted}, comment, "")
}

func (svc *service) Reject(ctx context.Context, schoolID, actorID string, ids []string, reason string) (StatusResult, error) {
	res, err := svc.changeStatus(ctx, schoolID, actorID, ids, StatusRejected, []string{StatusSubmitted}, reason, reason)
	if err != nil {
		return res, err
	}
	svc.notifyRejected(ctx, res.Grades, reason)
	return res, nil
}

// changeStatus moves every grade of ids allowed to leave its status for to.
// Unknown grades and forbidden transitions are skipped and reported.
func (svc *service) changeStatus(ctx context.Context, schoolID, actorID string, ids []string, to string, from []string, comment, reason string) (StatusResult, error) {
	ids = dedupe(ids)
	res := StatusResult{Requested: len(ids), Errors: []GradeError{}, Grades: []Grade{}}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		found, err := svc.repo.GetGrades(ctx, schoolID, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]Grade, len(found))
		for _, g := range found {
			byID[g.ID] = g
		}

		now := core.NowFunc().UTC()
		entries := make([]ValidationEntry, 0, len(ids))
		for _, id := range ids {
			g, ok := byID[id]
			if !ok {
				res.skip(id, ErrNotFound.Key, nil)
				continue
			}
			if !core.StringInSlice(g.Status, from) {
				res.skip(id, ErrInvalidTransition.Key, map[string]interface{}{"from": g.Status, "to": to})
				continue
			}

			g.Status = to
			g.UpdatedAt = now
			switch to {
			case StatusSubmitted:
				g.SubmittedAt = &now
			case StatusValidated:
				g.ValidatedAt = &now
				g.ValidatedBy = actorID
			case StatusRejected:
				g.RejectionReason = reason
			}
			if g, err = svc.repo.UpdateGrade(ctx, g); err != nil {
				return errors.Wrapf(err, "updating grade %s", id)
			}
			value := g.Value
			entries = append(entries, ValidationEntry{
				GradeID:       g.ID,
				ValidatorID:   actorID,
				Action:        to,
				PreviousValue: &value,
				NewValue:      &value,
				Comment:       comment,
				CreatedAt:     now,
			})
			res.Updated++
			res.Grades = append(res.Grades, g)
		}
		if len(entries) > 0 {
			return svc.repo.AddValidationEntries(ctx, entries)
		}
		return nil
	})
	if err != nil {
		return StatusResult{}, err
	}

	svc.afterStatusChange(ctx, schoolID, actorID, to, res.Grades)
	return res, nil
}

func (res *StatusResult) skip(id, key string, params map[string]interface{}) {
	res.Skipped++
	res.Errors = append(res.Errors, GradeError{GradeID: id, Error: key, key: key, params: params})
}

// Localize renders the skip reasons for locale.
func (res *StatusResult) Localize(cat *core.Catalog, locale string) {
	for i := range res.Errors {
		if e := &res.Errors[i]; e.key != "" {
			e.Error = cat.T(locale, e.key, e.params)
		}
	}
}

// afterStatusChange drops the cached statistics of the touched classes and
// broadcasts the change.
func (svc *service) afterStatusChange(ctx context.Context, schoolID, actorID, status string, grades []Grade) {
	byClass := make(map[string][]string)
	for _, g := range grades {
		byClass[g.ClassID] = append(byClass[g.ClassID], g.ID)
	}
	now := core.NowFunc().UTC()
	for classID, ids := range byClass {
		if err := svc.cache.DeletePrefix(ctx, statsClassPrefix(classID)); err != nil {
			svc.logger.Error(fmt.Sprintf("invalidating grade statistics: %v", err), err)
		}
		svc.notifier.Notify(schoolID, Event{
			Type:     EventStatusChanged,
			Status:   status,
			ClassID:  classID,
			GradeIDs: ids,
			ActorID:  actorID,
			At:       now,
		})
	}
}

// notifyRejected mails each teacher the number of their grades sent back.
func (svc *service) notifyRejected(ctx context.Context, grades []Grade, reason string) {
	counts := make(map[string]int)
	for _, g := range grades {
		counts[g.TeacherID]++
	}
	for teacherID, count := range counts {
		usr, err := svc.users.GetByID(ctx, teacherID)
		if err != nil || usr.Email == "" {
			continue
		}
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      "Grades rejected",
			TemplateName: "grades_rejected",
			TemplateData: map[string]interface{}{
				"Name":   usr.Name,
				"Count":  count,
				"Reason": reason,
			},
		})
	}
}

func (svc *service) History(ctx context.Context, schoolID, gradeID string) ([]ValidationEntry, error) {
	if _, err := svc.repo.GetGrade(ctx, schoolID, gradeID); err != nil {
		return nil, err
	}
	return svc.repo.ValidationHistory(ctx, gradeID)
}

func (svc *service) PendingValidations(ctx context.Context, filter *PendingFilter) ([]PendingValidation, error) {
	return svc.repo.PendingValidations(ctx, filter)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
