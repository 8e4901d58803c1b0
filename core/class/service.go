package class

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
)

var (
	// errors
	ErrNotFound                = core.NotFound("errors.classes.notFound")
	ErrArchived                = core.Conflict("errors.classes.archived")
	ErrCapacityExceeded        = core.Conflict("errors.classes.capacityExceeded")
	ErrAlreadyEnrolled         = core.Conflict("errors.classes.alreadyEnrolled")
	ErrEnrollmentNotFound      = core.NotFound("errors.classes.enrollmentNotFound")
	ErrInvalidEnrollmentStatus = core.Conflict("errors.classes.invalidEnrollmentStatus")
	ErrSubjectAssigned         = core.Conflict("errors.classes.subjectAssigned")
	ErrStudentNotFound         = core.NotFound("errors.students.notFound")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// GetClass returns ErrNotFound when the class is not in the school.
		GetClass(ctx context.Context, schoolID, id string) (Class, error)
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)

		CreateClassSubject(ctx context.Context, cs ClassSubject) (ClassSubject, error)
		QueryClassSubjects(ctx context.Context, classID string) ([]ClassSubject, error)
		ClassSubjectExists(ctx context.Context, classID, subjectID string) (bool, error)

		StudentInSchool(ctx context.Context, schoolID, studentID string) (bool, error)
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, classID, id string) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		// ActiveEnrollmentExists reports a pending or confirmed enrollment of the student for the year.
		ActiveEnrollmentExists(ctx context.Context, studentID, schoolYearID string) (bool, error)
		CountActiveEnrollments(ctx context.Context, classID string) (int, error)
		QueryEnrolledStudents(ctx context.Context, classID string, statuses []string) ([]EnrolledStudent, error)
	}

	// YearGetter is the part of school.Service classes need.
	YearGetter interface {
		GetYear(ctx context.Context, schoolID, id string) (school.SchoolYear, error)
	}

	Service interface {
		Create(ctx context.Context, schoolID string, nc NewClass) (Class, error)
		Get(ctx context.Context, schoolID, id string) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		Update(ctx context.Context, schoolID, id string, uc UpdateClass) (Class, error)
		Archive(ctx context.Context, schoolID, id string) (Class, error)

		AssignSubject(ctx context.Context, schoolID, classID string, ns NewClassSubject) (ClassSubject, error)
		Subjects(ctx context.Context, schoolID, classID string) ([]ClassSubject, error)

		Enroll(ctx context.Context, schoolID, classID string, ne NewEnrollment) (Enrollment, error)
		ConfirmEnrollment(ctx context.Context, schoolID, classID, id string) (Enrollment, error)
		CancelEnrollment(ctx context.Context, schoolID, classID, id, reason string) (Enrollment, error)
		// Students lists the roster. No status means the active enrollments.
		Students(ctx context.Context, schoolID, classID string, statuses ...string) ([]EnrolledStudent, error)
	}

	service struct {
		tx    core.Transactor
		repo  Repository
		years YearGetter
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, years YearGetter) Service {
	return &service{tx: tx, repo: repo, years: years}
}

func (svc *service) Create(ctx context.Context, schoolID string, nc NewClass) (Class, error) {
	if _, err := svc.years.GetYear(ctx, schoolID, nc.SchoolYearID); err != nil {
		return Class{}, err
	}
	now := core.NowFunc().UTC()
	maxStudents := nc.MaxStudents
	if maxStudents == 0 {
		maxStudents = DefaultMaxStudents
	}
	return svc.repo.CreateClass(ctx, Class{
		SchoolID:          schoolID,
		SchoolYearID:      nc.SchoolYearID,
		GradeLevel:        nc.GradeLevel,
		Section:           nc.Section,
		Name:              nc.Name,
		HomeroomTeacherID: nc.HomeroomTeacherID,
		MaxStudents:       maxStudents,
		Status:            StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Class, error) {
	return svc.repo.GetClass(ctx, schoolID, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, schoolID, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, schoolID, id)
	if err != nil {
		return Class{}, err
	}
	if cls.Archived() {
		return Class{}, ErrArchived
	}
	if uc.GradeLevel != nil {
		cls.GradeLevel = core.CleanString(*uc.GradeLevel)
	}
	if uc.Section != nil {
		cls.Section = core.CleanString(*uc.Section)
	}
	if uc.Name != nil {
		cls.Name = core.CleanString(*uc.Name)
	}
	if uc.HomeroomTeacherID != nil {
		cls.HomeroomTeacherID = *uc.HomeroomTeacherID
	}
	if uc.MaxStudents != nil {
		cnt, err := svc.repo.CountActiveEnrollments(ctx, cls.ID)
		if err != nil {
			return Class{}, err
		}
		if *uc.MaxStudents < cnt {
			return Class{}, ErrCapacityExceeded.With(map[string]interface{}{"max": *uc.MaxStudents})
		}
		cls.MaxStudents = *uc.MaxStudents
	}
	cls.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) Archive(ctx context.Context, schoolID, id string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, schoolID, id)
	if err != nil {
		return Class{}, err
	}
	cls.Status = StatusArchived
	cls.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *service) AssignSubject(ctx context.Context, schoolID, classID string, ns NewClassSubject) (ClassSubject, error) {
	if _, err := svc.repo.GetClass(ctx, schoolID, classID); err != nil {
		return ClassSubject{}, err
	}
	exists, err := svc.repo.ClassSubjectExists(ctx, classID, ns.SubjectID)
	if err != nil {
		return ClassSubject{}, err
	}
	if exists {
		return ClassSubject{}, ErrSubjectAssigned
	}
	coef := ns.Coefficient
	if coef == 0 {
		coef = 1
	}
	return svc.repo.CreateClassSubject(ctx, ClassSubject{
		ClassID:      classID,
		SubjectID:    ns.SubjectID,
		TeacherID:    ns.TeacherID,
		Coefficient:  coef,
		HoursPerWeek: ns.HoursPerWeek,
		CreatedAt:    core.NowFunc().UTC(),
	})
}

func (svc *service) Subjects(ctx context.Context, schoolID, classID string) ([]ClassSubject, error) {
	if _, err := svc.repo.GetClass(ctx, schoolID, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryClassSubjects(ctx, classID)
}

func (svc *service) Enroll(ctx context.Context, schoolID, classID string, ne NewEnrollment) (Enrollment, error) {
	var enr Enrollment
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		cls, err := svc.repo.GetClass(ctx, schoolID, classID)
		if err != nil {
			return err
		}
		if cls.Archived() {
			return ErrArchived
		}

		ok, err := svc.repo.StudentInSchool(ctx, schoolID, ne.StudentID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStudentNotFound
		}

		enrolled, err := svc.repo.ActiveEnrollmentExists(ctx, ne.StudentID, cls.SchoolYearID)
		if err != nil {
			return err
		}
		if enrolled {
			return ErrAlreadyEnrolled
		}

		cnt, err := svc.repo.CountActiveEnrollments(ctx, cls.ID)
		if err != nil {
			return err
		}
		if cnt >= cls.MaxStudents {
			return ErrCapacityExceeded.With(map[string]interface{}{"max": cls.MaxStudents})
		}

		status := EnrollmentPending
		if ne.Confirmed {
			status = EnrollmentConfirmed
		}
		date := ne.EnrollmentDate
		if date == "" {
			date = core.Today()
		}
		now := core.NowFunc().UTC()
		enr, err = svc.repo.CreateEnrollment(ctx, Enrollment{
			StudentID:      ne.StudentID,
			ClassID:        cls.ID,
			SchoolYearID:   cls.SchoolYearID,
			Status:         status,
			EnrollmentDate: date,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return errors.Wrap(err, "creating enrollment")
	})
	return enr, err
}

func (svc *service) transition(ctx context.Context, schoolID, classID, id, to string, from []string, mutate func(*Enrollment)) (Enrollment, error) {
	if _, err := svc.repo.GetClass(ctx, schoolID, classID); err != nil {
		return Enrollment{}, err
	}
	enr, err := svc.repo.GetEnrollment(ctx, classID, id)
	if err != nil {
		return Enrollment{}, err
	}
	if !core.StringInSlice(enr.Status, from) {
		return Enrollment{}, ErrInvalidEnrollmentStatus.With(map[string]interface{}{"from": enr.Status, "to": to})
	}
	enr.Status = to
	if mutate != nil {
		mutate(&enr)
	}
	enr.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) ConfirmEnrollment(ctx context.Context, schoolID, classID, id string) (Enrollment, error) {
	return svc.transition(ctx, schoolID, classID, id, EnrollmentConfirmed, []string{EnrollmentPending}, nil)
}

func (svc *service) CancelEnrollment(ctx context.Context, schoolID, classID, id, reason string) (Enrollment, error) {
	return svc.transition(ctx, schoolID, classID, id, EnrollmentCancelled, ActiveEnrollmentStatuses, func(enr *Enrollment) {
		enr.CancellationReason = reason
	})
}

func (svc *service) Students(ctx context.Context, schoolID, classID string, statuses ...string) ([]EnrolledStudent, error) {
	if _, err := svc.repo.GetClass(ctx, schoolID, classID); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = ActiveEnrollmentStatuses
	}
	return svc.repo.QueryEnrolledStudents(ctx, classID, statuses)
}
