package timetable_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/timetable"
	"github.com/ecolehub/backend/testutil"
)

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                       string
		start1, end1, start2, end2 string
		want                       bool
	}{
		{name: "same range", start1: "08:00", end1: "10:00", start2: "08:00", end2: "10:00", want: true},
		{name: "partial", start1: "08:00", end1: "10:00", start2: "09:30", end2: "11:00", want: true},
		{name: "contained", start1: "08:00", end1: "12:00", start2: "09:00", end2: "10:00", want: true},
		{name: "touching", start1: "08:00", end1: "10:00", start2: "10:00", end2: "11:00", want: false},
		{name: "disjoint", start1: "08:00", end1: "09:00", start2: "13:00", end2: "14:00", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timetable.Overlaps(tt.start1, tt.end1, tt.start2, tt.end2))
			assert.Equal(t, tt.want, timetable.Overlaps(tt.start2, tt.end2, tt.start1, tt.end1))
		})
	}
}

type fixture struct {
	env            *testutil.Env
	sch            testutil.School
	c1, c2         class.Class
	teach1, teach2 string
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	return fixture{
		env:    env,
		sch:    sch,
		c1:     testutil.CreateClass(t, env.ClassRepo, sch, "6A", 30),
		c2:     testutil.CreateClass(t, env.ClassRepo, sch, "6B", 30),
		teach1: core.NewID(),
		teach2: core.NewID(),
	}
}

func (f fixture) session(cls class.Class, teacherID, room string, day int, start, end string) timetable.NewSession {
	return timetable.NewSession{
		SchoolYearID: f.sch.Year.ID,
		ClassID:      cls.ID,
		SubjectID:    f.sch.Subject.ID,
		TeacherID:    teacherID,
		ClassroomID:  room,
		DayOfWeek:    day,
		StartTime:    start,
		EndTime:      end,
	}
}

func conflictTypes(err error) []string {
	var ce *timetable.ConflictError
	if !errors.As(err, &ce) {
		return nil
	}
	types := make([]string, 0, len(ce.Conflicts))
	for _, c := range ce.Conflicts {
		types = append(types, c.Type)
	}
	return types
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.TimetableSvc
	schoolID := f.sch.School.ID

	first, err := svc.Create(ctx, schoolID, f.session(f.c1, f.teach1, "R1", 1, "08:00", "10:00"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		ns        timetable.NewSession
		wantTypes []string
		wantErr   error
	}{
		{name: "unknown class", ns: f.session(class.Class{ID: testutil.UnknownID}, f.teach2, "", 1, "08:00", "10:00"), wantErr: class.ErrNotFound},
		{name: "teacher busy", ns: f.session(f.c2, f.teach1, "R2", 1, "09:00", "11:00"), wantTypes: []string{timetable.ConflictTeacher}},
		{name: "room and class busy", ns: f.session(f.c1, f.teach2, "R1", 1, "09:30", "10:30"), wantTypes: []string{timetable.ConflictClassroom, timetable.ConflictClass}},
		{name: "all busy", ns: f.session(f.c1, f.teach1, "R1", 1, "07:30", "08:30"), wantTypes: []string{timetable.ConflictTeacher, timetable.ConflictClassroom, timetable.ConflictClass}},
		{name: "touching", ns: f.session(f.c1, f.teach1, "R1", 1, "10:00", "11:00")},
		{name: "other day", ns: f.session(f.c1, f.teach1, "R1", 2, "08:00", "10:00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := svc.Create(ctx, schoolID, tt.ns)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantTypes != nil:
				assert.ErrorIs(t, err, timetable.ErrConflict)
				assert.Equal(t, tt.wantTypes, conflictTypes(err))
			default:
				require.NoError(t, err)
				assert.NotEmpty(t, s.ID)
			}
		})
	}

	var ce *timetable.ConflictError
	_, err = svc.Create(ctx, schoolID, f.session(f.c2, f.teach1, "", 1, "09:00", "09:45"))
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Conflicts, 1)
	assert.Equal(t, first.ID, ce.Conflicts[0].SessionID)

	ce.Localize(f.env.Catalog, core.LocaleFR)
	assert.Equal(t, "l'enseignant a déjà une séance à cet horaire", ce.Conflicts[0].Message)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.TimetableSvc
	schoolID := f.sch.School.ID

	first, err := svc.Create(ctx, schoolID, f.session(f.c1, f.teach1, "R1", 1, "08:00", "10:00"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, schoolID, f.session(f.c2, f.teach2, "R2", 1, "10:00", "12:00"))
	require.NoError(t, err)

	start, end := "08:30", "10:00"
	moved, err := svc.Update(ctx, schoolID, first.ID, timetable.UpdateSession{StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, "08:30", moved.StartTime)

	inverted := "07:00"
	_, err = svc.Update(ctx, schoolID, first.ID, timetable.UpdateSession{EndTime: &inverted})
	assert.ErrorIs(t, err, timetable.ErrInvalidTimeRange)

	teacher := f.teach1
	_, err = svc.Update(ctx, schoolID, second.ID, timetable.UpdateSession{TeacherID: &teacher, StartTime: &start})
	assert.ErrorIs(t, err, timetable.ErrConflict)

	_, err = svc.Update(ctx, schoolID, testutil.UnknownID, timetable.UpdateSession{})
	assert.ErrorIs(t, err, timetable.ErrNotFound)
}

func TestService_AllConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	schoolID := f.sch.School.ID

	// imported sessions skip the conflict check
	for _, ns := range []timetable.NewSession{
		f.session(f.c1, f.teach1, "R1", 1, "08:00", "10:00"),
		f.session(f.c2, f.teach1, "R2", 1, "09:00", "11:00"),
		f.session(f.c2, f.teach2, "R1", 1, "11:00", "12:00"),
		f.session(f.c1, f.teach2, "R1", 2, "09:00", "11:00"),
	} {
		_, err := f.env.TimetableRepo.CreateSession(ctx, timetable.Session{
			SchoolID: schoolID, SchoolYearID: ns.SchoolYearID, ClassID: ns.ClassID, SubjectID: ns.SubjectID,
			TeacherID: ns.TeacherID, ClassroomID: ns.ClassroomID, DayOfWeek: ns.DayOfWeek,
			StartTime: ns.StartTime, EndTime: ns.EndTime,
		})
		require.NoError(t, err)
	}

	conflicts, err := f.env.TimetableSvc.AllConflicts(ctx, schoolID, f.sch.Year.ID)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, timetable.ConflictTeacher, conflicts[0].Type)
	assert.Equal(t, "09:00", conflicts[0].StartTime)
	assert.NotEmpty(t, conflicts[0].PairedWith)
}

func TestService_TeacherWeeklyHours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	svc := f.env.TimetableSvc
	schoolID := f.sch.School.ID

	for _, ns := range []timetable.NewSession{
		f.session(f.c1, f.teach1, "", 1, "08:00", "09:45"),
		f.session(f.c2, f.teach1, "", 3, "10:00", "12:00"),
		f.session(f.c2, f.teach2, "", 3, "08:00", "09:00"),
	} {
		_, err := svc.Create(ctx, schoolID, ns)
		require.NoError(t, err)
	}

	wh, err := svc.TeacherWeeklyHours(ctx, schoolID, f.teach1, f.sch.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, timetable.WeeklyHours{TeacherID: f.teach1, SessionCount: 2, TotalHours: 3, TotalMinutes: 45}, wh)

	sessions, err := svc.ByClass(ctx, schoolID, f.c2.ID, f.sch.Year.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "08:00", sessions[0].StartTime)

	_, err = svc.ByClass(ctx, schoolID, testutil.UnknownID, "")
	assert.ErrorIs(t, err, class.ErrNotFound)
}
