package class_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/testutil"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")

	nc := class.NewClass{SchoolYearID: sch.Year.ID, GradeLevel: " 6ème ", Section: "B"}
	require.NoError(t, nc.Validate(env.Validate))
	assert.Equal(t, "6ème B", nc.Name)
	assert.Equal(t, class.DefaultMaxStudents, nc.MaxStudents)

	cls, err := env.ClassSvc.Create(ctx, sch.School.ID, nc)
	require.NoError(t, err)
	assert.Equal(t, class.StatusActive, cls.Status)
	assert.Equal(t, sch.School.ID, cls.SchoolID)

	other := testutil.CreateSchool(t, env.SchoolRepo, "WIMA")
	_, err = env.ClassSvc.Create(ctx, other.School.ID, nc)
	assert.ErrorIs(t, err, school.ErrYearNotFound)
	_, err = env.ClassSvc.Get(ctx, other.School.ID, cls.ID)
	assert.ErrorIs(t, err, class.ErrNotFound)

	found, err := env.ClassSvc.Query(ctx, &class.QueryFilter{SchoolID: sch.School.ID, Status: " ACTIVE "}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, cls.ID, found[0].ID)
}

func TestSubjects(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	cls := testutil.CreateClass(t, env.ClassRepo, sch, "6A", 30)

	ns := class.NewClassSubject{SubjectID: sch.Subject.ID, TeacherID: core.NewID(), HoursPerWeek: 5}
	require.NoError(t, ns.Validate(env.Validate))
	cs, err := env.ClassSvc.AssignSubject(ctx, sch.School.ID, cls.ID, ns)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cs.Coefficient)

	_, err = env.ClassSvc.AssignSubject(ctx, sch.School.ID, cls.ID, ns)
	assert.ErrorIs(t, err, class.ErrSubjectAssigned)

	bad := class.NewClassSubject{SubjectID: sch.Subject.ID, Coefficient: 1.1}
	assert.Error(t, bad.Validate(env.Validate))

	subjects, err := env.ClassSvc.Subjects(ctx, sch.School.ID, cls.ID)
	require.NoError(t, err)
	assert.Len(t, subjects, 1)
}

func TestEnrollment(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	schoolID := sch.School.ID
	cls := testutil.CreateClass(t, env.ClassRepo, sch, "6A", 2)
	cls2 := testutil.CreateClass(t, env.ClassRepo, sch, "6B", 30)

	s1 := testutil.CreateStudent(t, env.StudentRepo, schoolID, "Awe", "Nzita", "EPL-001")
	s2 := testutil.CreateStudent(t, env.StudentRepo, schoolID, "Bela", "Mukendi", "EPL-002")
	s3 := testutil.CreateStudent(t, env.StudentRepo, schoolID, "Chance", "Kasongo", "EPL-003")
	other := testutil.CreateSchool(t, env.SchoolRepo, "WIMA")
	outsider := testutil.CreateStudent(t, env.StudentRepo, other.School.ID, "Dora", "Lumbu", "WIMA-001")

	enroll := func(classID, studentID string, confirmed bool) (class.Enrollment, error) {
		ne := class.NewEnrollment{StudentID: studentID, Confirmed: confirmed}
		require.NoError(t, ne.Validate(env.Validate))
		return env.ClassSvc.Enroll(ctx, schoolID, classID, ne)
	}

	e1, err := enroll(cls.ID, s1.ID, false)
	require.NoError(t, err)
	assert.Equal(t, class.EnrollmentPending, e1.Status)
	assert.Equal(t, cls.SchoolYearID, e1.SchoolYearID)

	e2, err := enroll(cls.ID, s2.ID, true)
	require.NoError(t, err)
	assert.Equal(t, class.EnrollmentConfirmed, e2.Status)

	t.Run("rejected enrollments", func(t *testing.T) {
		_, err := enroll(cls.ID, s3.ID, false)
		assert.ErrorIs(t, err, class.ErrCapacityExceeded)
		assert.Equal(t, map[string]interface{}{"max": 2}, mustAppError(t, err).Params)

		_, err = enroll(cls2.ID, s1.ID, false)
		assert.ErrorIs(t, err, class.ErrAlreadyEnrolled)

		_, err = enroll(cls2.ID, outsider.ID, false)
		assert.ErrorIs(t, err, class.ErrStudentNotFound)

		_, err = enroll(testutil.UnknownID, s3.ID, false)
		assert.ErrorIs(t, err, class.ErrNotFound)
	})

	t.Run("capacity", func(t *testing.T) {
		max := 1
		_, err := env.ClassSvc.Update(ctx, schoolID, cls.ID, class.UpdateClass{MaxStudents: &max})
		assert.ErrorIs(t, err, class.ErrCapacityExceeded)

		max = 3
		name := " 6ème A "
		upd, err := env.ClassSvc.Update(ctx, schoolID, cls.ID, class.UpdateClass{MaxStudents: &max, Name: &name})
		require.NoError(t, err)
		assert.Equal(t, 3, upd.MaxStudents)
		assert.Equal(t, "6ème A", upd.Name)
	})

	t.Run("transitions", func(t *testing.T) {
		enr, err := env.ClassSvc.ConfirmEnrollment(ctx, schoolID, cls.ID, e1.ID)
		require.NoError(t, err)
		assert.Equal(t, class.EnrollmentConfirmed, enr.Status)

		_, err = env.ClassSvc.ConfirmEnrollment(ctx, schoolID, cls.ID, e1.ID)
		assert.ErrorIs(t, err, class.ErrInvalidEnrollmentStatus)

		_, err = env.ClassSvc.ConfirmEnrollment(ctx, schoolID, cls2.ID, e1.ID)
		assert.ErrorIs(t, err, class.ErrEnrollmentNotFound)

		enr, err = env.ClassSvc.CancelEnrollment(ctx, schoolID, cls.ID, e2.ID, "déménagement")
		require.NoError(t, err)
		assert.Equal(t, class.EnrollmentCancelled, enr.Status)
		assert.Equal(t, "déménagement", enr.CancellationReason)

		_, err = env.ClassSvc.CancelEnrollment(ctx, schoolID, cls.ID, e2.ID, "again")
		assert.ErrorIs(t, err, class.ErrInvalidEnrollmentStatus)

		// a cancelled enrollment frees the student for another class
		_, err = enroll(cls2.ID, s2.ID, true)
		assert.NoError(t, err)
	})

	t.Run("students", func(t *testing.T) {
		active, err := env.ClassSvc.Students(ctx, schoolID, cls.ID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "Nzita", active[0].LastName)
		assert.Equal(t, "EPL-001", active[0].Matricule)

		cancelled, err := env.ClassSvc.Students(ctx, schoolID, cls.ID, class.EnrollmentCancelled)
		require.NoError(t, err)
		require.Len(t, cancelled, 1)
		assert.Equal(t, s2.ID, cancelled[0].StudentID)
	})

	t.Run("archived", func(t *testing.T) {
		arch, err := env.ClassSvc.Archive(ctx, schoolID, cls.ID)
		require.NoError(t, err)
		assert.True(t, arch.Archived())

		_, err = enroll(cls.ID, s3.ID, false)
		assert.ErrorIs(t, err, class.ErrArchived)

		name := "6A bis"
		_, err = env.ClassSvc.Update(ctx, schoolID, cls.ID, class.UpdateClass{Name: &name})
		assert.ErrorIs(t, err, class.ErrArchived)
	})
}

func mustAppError(t *testing.T, err error) *core.AppError {
	t.Helper()
	ae, ok := core.AsAppError(err)
	require.True(t, ok, "not an AppError: %v", err)
	return ae
}
