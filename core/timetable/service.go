package timetable

import (
	"context"
	"sort"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
)

var (
	// errors
	ErrNotFound         = core.NotFound("errors.timetables.notFound")
	ErrConflict         = core.Conflict("errors.timetables.conflict")
	ErrInvalidTimeRange = core.NewAppError(core.CodeValidation, "errors.timetables.invalidTimeRange")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, schoolID, id string) (Session, error)
		// QuerySessions orders by day then start time.
		QuerySessions(ctx context.Context, filter *QueryFilter) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		DeleteSession(ctx context.Context, schoolID, id string) error
	}

	ClassGetter interface {
		Get(ctx context.Context, schoolID, id string) (class.Class, error)
	}

	Service interface {
		Create(ctx context.Context, schoolID string, ns NewSession) (Session, error)
		Get(ctx context.Context, schoolID, id string) (Session, error)
		Update(ctx context.Context, schoolID, id string, us UpdateSession) (Session, error)
		Delete(ctx context.Context, schoolID, id string) error
		ByClass(ctx context.Context, schoolID, classID, yearID string) ([]Session, error)
		ByTeacher(ctx context.Context, schoolID, teacherID, yearID string) ([]Session, error)
		DetectConflicts(ctx context.Context, schoolID string, slot Slot) ([]Conflict, error)
		// AllConflicts lists every overlapping pair of the school year.
		AllConflicts(ctx context.Context, schoolID, yearID string) ([]Conflict, error)
		TeacherWeeklyHours(ctx context.Context, schoolID, teacherID, yearID string) (WeeklyHours, error)
	}

	service struct {
		tx      core.Transactor
		repo    Repository
		classes ClassGetter
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, classes ClassGetter) Service {
	return &service{tx: tx, repo: repo, classes: classes}
}

func (svc *service) Create(ctx context.Context, schoolID string, ns NewSession) (Session, error) {
	if _, err := svc.classes.Get(ctx, schoolID, ns.ClassID); err != nil {
		return Session{}, err
	}
	now := core.NowFunc().UTC()
	s := Session{
		SchoolID:       schoolID,
		SchoolYearID:   ns.SchoolYearID,
		ClassID:        ns.ClassID,
		SubjectID:      ns.SubjectID,
		TeacherID:      ns.TeacherID,
		ClassroomID:    ns.ClassroomID,
		DayOfWeek:      ns.DayOfWeek,
		StartTime:      ns.StartTime,
		EndTime:        ns.EndTime,
		EffectiveFrom:  ns.EffectiveFrom,
		EffectiveUntil: ns.EffectiveUntil,
		Notes:          ns.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var created Session
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if err := svc.refuseConflicts(ctx, schoolID, slotOf(s)); err != nil {
			return err
		}
		var err error
		created, err = svc.repo.CreateSession(ctx, s)
		return err
	})
	return created, err
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Session, error) {
	return svc.repo.GetSession(ctx, schoolID, id)
}

func (svc *service) Update(ctx context.Context, schoolID, id string, us UpdateSession) (Session, error) {
	var s Session
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = svc.repo.GetSession(ctx, schoolID, id); err != nil {
			return err
		}
		if us.ClassID != nil && *us.ClassID != s.ClassID {
			if _, err = svc.classes.Get(ctx, schoolID, *us.ClassID); err != nil {
				return err
			}
			s.ClassID = *us.ClassID
		}
		set(&s.SubjectID, us.SubjectID)
		set(&s.TeacherID, us.TeacherID)
		set(&s.ClassroomID, us.ClassroomID)
		set(&s.StartTime, us.StartTime)
		set(&s.EndTime, us.EndTime)
		set(&s.EffectiveFrom, us.EffectiveFrom)
		set(&s.EffectiveUntil, us.EffectiveUntil)
		set(&s.Notes, us.Notes)
		if us.DayOfWeek != nil {
			s.DayOfWeek = *us.DayOfWeek
		}
		if s.StartTime >= s.EndTime {
			return ErrInvalidTimeRange
		}
		if err = svc.refuseConflicts(ctx, schoolID, slotOf(s)); err != nil {
			return err
		}
		s.UpdatedAt = core.NowFunc().UTC()
		s, err = svc.repo.UpdateSession(ctx, s)
		return err
	})
	return s, err
}

func set(dst *string, src *string) {
	if src != nil {
		*dst = core.CleanString(*src)
	}
}

func (svc *service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.repo.DeleteSession(ctx, schoolID, id)
}

func (svc *service) ByClass(ctx context.Context, schoolID, classID, yearID string) ([]Session, error) {
	if _, err := svc.classes.Get(ctx, schoolID, classID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySessions(ctx, &QueryFilter{SchoolID: schoolID, SchoolYearID: yearID, ClassID: classID})
}

func (svc *service) ByTeacher(ctx context.Context, schoolID, teacherID, yearID string) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, &QueryFilter{SchoolID: schoolID, SchoolYearID: yearID, TeacherID: teacherID})
}

func (svc *service) refuseConflicts(ctx context.Context, schoolID string, slot Slot) error {
	conflicts, err := svc.DetectConflicts(ctx, schoolID, slot)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

// DetectConflicts returns the sessions of the same day overlapping slot by
// teacher, classroom or class, in that order.
func (svc *service) DetectConflicts(ctx context.Context, schoolID string, slot Slot) ([]Conflict, error) {
	sameDay, err := svc.repo.QuerySessions(ctx, &QueryFilter{
		SchoolID:     schoolID,
		SchoolYearID: slot.SchoolYearID,
		DayOfWeek:    slot.DayOfWeek,
	})
	if err != nil {
		return nil, err
	}

	var overlapping []Session
	for _, s := range sameDay {
		if s.ID != slot.ExcludeSessionID && Overlaps(s.StartTime, s.EndTime, slot.StartTime, slot.EndTime) {
			overlapping = append(overlapping, s)
		}
	}

	conflicts := make([]Conflict, 0)
	add := func(typ string, match func(Session) bool) {
		for _, s := range overlapping {
			if match(s) {
				conflicts = append(conflicts, newConflict(typ, s))
			}
		}
	}
	if slot.TeacherID != "" {
		add(ConflictTeacher, func(s Session) bool { return s.TeacherID == slot.TeacherID })
	}
	if slot.ClassroomID != "" {
		add(ConflictClassroom, func(s Session) bool { return s.ClassroomID == slot.ClassroomID })
	}
	if slot.ClassID != "" {
		add(ConflictClass, func(s Session) bool { return s.ClassID == slot.ClassID })
	}
	return conflicts, nil
}

func newConflict(typ string, s Session) Conflict {
	return Conflict{Type: typ, SessionID: s.ID, DayOfWeek: s.DayOfWeek, StartTime: s.StartTime, EndTime: s.EndTime}
}

func (svc *service) AllConflicts(ctx context.Context, schoolID, yearID string) ([]Conflict, error) {
	sessions, err := svc.repo.QuerySessions(ctx, &QueryFilter{SchoolID: schoolID, SchoolYearID: yearID})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].DayOfWeek != sessions[j].DayOfWeek {
			return sessions[i].DayOfWeek < sessions[j].DayOfWeek
		}
		return sessions[i].StartTime < sessions[j].StartTime
	})

	conflicts := make([]Conflict, 0)
	for i, s1 := range sessions {
		for _, s2 := range sessions[i+1:] {
			if s1.DayOfWeek != s2.DayOfWeek {
				break
			}
			if !Overlaps(s1.StartTime, s1.EndTime, s2.StartTime, s2.EndTime) {
				continue
			}
			pair := func(typ string) {
				c := newConflict(typ, s2)
				c.PairedWith = s1.ID
				conflicts = append(conflicts, c)
			}
			if s1.TeacherID == s2.TeacherID {
				pair(ConflictTeacher)
			}
			if s1.ClassroomID != "" && s1.ClassroomID == s2.ClassroomID {
				pair(ConflictClassroom)
			}
			if s1.ClassID == s2.ClassID {
				pair(ConflictClass)
			}
		}
	}
	return conflicts, nil
}

func (svc *service) TeacherWeeklyHours(ctx context.Context, schoolID, teacherID, yearID string) (WeeklyHours, error) {
	sessions, err := svc.ByTeacher(ctx, schoolID, teacherID, yearID)
	if err != nil {
		return WeeklyHours{}, err
	}
	var minutes int
	for _, s := range sessions {
		minutes += s.Minutes()
	}
	return WeeklyHours{
		TeacherID:    teacherID,
		SessionCount: len(sessions),
		TotalHours:   minutes / 60,
		TotalMinutes: minutes % 60,
	}, nil
}
