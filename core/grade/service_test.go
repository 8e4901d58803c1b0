package grade_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/user"
	inmemdb "github.com/ecolehub/backend/storage/database/inmem"
	"github.com/ecolehub/backend/testutil"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		value float64
		want  error
	}{
		{0, nil},
		{20, nil},
		{14.25, nil},
		{9.75, nil},
		{12.3, grade.ErrInvalidValue},
		{math.NaN(), grade.ErrInvalidValue},
		{math.Inf(1), grade.ErrInvalidValue},
		{-0.25, grade.ErrOutOfRange},
		{20.5, grade.ErrOutOfRange},
	}
	for _, tt := range tests {
		err := grade.ValidateValue(tt.value)
		if tt.want == nil {
			assert.NoError(t, err, "%v", tt.value)
		} else {
			assert.ErrorIs(t, err, tt.want, "%v", tt.value)
		}
	}
}

func TestComputeStatistics(t *testing.T) {
	grades := []grade.Grade{
		{SubjectID: "math", Type: grade.TypeExam, Value: 8},
		{SubjectID: "math", Type: grade.TypeExam, Value: 12},
		{SubjectID: "math", Type: grade.TypeExam, Value: 16},
		{SubjectID: "math", Type: grade.TypeQuiz, Value: 15},
		{SubjectID: "fr", Type: grade.TypeExam, Value: 9.5},
	}

	stats := grade.ComputeStatistics(grades)
	require.Len(t, stats, 3)

	assert.Equal(t, grade.Statistics{SubjectID: "fr", Type: grade.TypeExam, Count: 1, Average: 9.5, Min: 9.5, Max: 9.5, Below10: 1}, stats[0])
	assert.Equal(t, grade.Statistics{SubjectID: "math", Type: grade.TypeExam, Count: 3, Average: 12, Min: 8, Max: 16, StdDev: 4, Below10: 1, Above15: 1}, stats[1])
	assert.Equal(t, grade.Statistics{SubjectID: "math", Type: grade.TypeQuiz, Count: 1, Average: 15, Min: 15, Max: 15, Above15: 1}, stats[2])

	assert.Empty(t, grade.ComputeStatistics(nil))
}

func TestRank(t *testing.T) {
	avgs := []grade.StudentAverage{
		{StudentID: "d", Average: 9},
		{StudentID: "c", Average: 14},
		{StudentID: "a", Average: 17.5},
		{StudentID: "b", Average: 14},
	}
	grade.Rank(avgs)

	var got []string
	var ranks []int
	for _, a := range avgs {
		got = append(got, a.StudentID)
		ranks = append(ranks, a.Rank)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
	assert.Equal(t, []int{1, 2, 2, 4}, ranks)
}

func TestAverageFormula(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "AVG")
	cls := testutil.CreateClass(t, env.ClassRepo, sch, "1A", 30)
	stuID := core.NewID()
	grades := []grade.Grade{{Value: 10, Weight: 1}, {Value: 16, Weight: 2}}
	for i := range grades {
		grades[i].StudentID = stuID
		grades[i].ClassID = cls.ID
		grades[i].SubjectID = sch.Subject.ID
		grades[i].TermID = sch.Term.ID
		grades[i].Type = grade.TypeExam
		grades[i].Status = grade.StatusValidated
	}
	_, err := env.GradeRepo.CreateGrades(ctx, grades)
	require.NoError(t, err)

	average := func(svc grade.Service) float64 {
		t.Helper()
		avgs, err := svc.TermAverages(ctx, sch.School.ID, cls.ID, sch.Term.ID)
		require.NoError(t, err)
		require.Len(t, avgs, 1)
		return avgs[0].Average
	}
	assert.Equal(t, 14.0, average(env.GradeSvc))

	conf := *env.Conf
	conf.Grading.AverageFormula = "weightedSum / totalWeight - min / 10"
	custom, err := grade.NewService(inmemdb.Transactor{}, env.GradeRepo, env.ClassSvc, env.UserSvc, env.Cache, env.Events, env.Mail, env.Logger, &conf)
	require.NoError(t, err)
	assert.Equal(t, 13.0, average(custom))

	conf.Grading.AverageFormula = "weightedSum +"
	_, err = grade.NewService(inmemdb.Transactor{}, env.GradeRepo, env.ClassSvc, env.UserSvc, env.Cache, env.Events, env.Mail, env.Logger, &conf)
	assert.Error(t, err)
}

type fixture struct {
	env     *testutil.Env
	sch     testutil.School
	cls     class.Class
	teacher user.User
	admin   user.User
	stu1    string
	stu2    string
}

func setup(t *testing.T) fixture {
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	cls := testutil.CreateClass(t, env.ClassRepo, sch, "6A", 30)
	s1 := testutil.CreateStudent(t, env.StudentRepo, sch.School.ID, "Awe", "Nzita", "EPL-001")
	s2 := testutil.CreateStudent(t, env.StudentRepo, sch.School.ID, "Bela", "Mukendi", "EPL-002")
	testutil.Enroll(t, env.ClassRepo, cls, s1.ID)
	testutil.Enroll(t, env.ClassRepo, cls, s2.ID)
	return fixture{
		env:     env,
		sch:     sch,
		cls:     cls,
		teacher: testutil.CreateUser(t, env.UserRepo, sch.School.ID, "Mme Kabila", "kabila", "kabila@ecole.cd", "", []string{user.RoleTeacher}, true),
		admin:   testutil.CreateUser(t, env.UserRepo, sch.School.ID, "M. Ilunga", "ilunga", "ilunga@ecole.cd", "", []string{user.RoleAdminPrincipal}, true),
		stu1:    s1.ID,
		stu2:    s2.ID,
	}
}

func value(v float64) *float64 { return &v }

func (f fixture) bulk(t *testing.T, typ string, date string, v1, v2 float64) []grade.Grade {
	bg := grade.BulkGrades{
		ClassID:   f.cls.ID,
		SubjectID: f.sch.Subject.ID,
		TermID:    f.sch.Term.ID,
		Type:      typ,
		Weight:    2,
		GradeDate: date,
		Grades: []grade.StudentValue{
			{StudentID: f.stu1, Value: value(v1)},
			{StudentID: f.stu2, Value: value(v2)},
		},
	}
	require.NoError(t, bg.Validate(f.env.Validate))
	grades, err := f.env.GradeSvc.BulkCreate(context.Background(), f.sch.School.ID, f.teacher.ID, bg)
	require.NoError(t, err)
	return grades
}

func ids(grades []grade.Grade) []string {
	out := make([]string, len(grades))
	for i, g := range grades {
		out[i] = g.ID
	}
	return out
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	ng := grade.NewGrade{StudentID: f.stu1, ClassID: f.cls.ID, SubjectID: f.sch.Subject.ID, TermID: f.sch.Term.ID, Value: value(13.5), Type: grade.TypeQuiz}
	require.NoError(t, ng.Validate(f.env.Validate))
	g, err := f.env.GradeSvc.Create(ctx, f.sch.School.ID, f.teacher.ID, ng)
	require.NoError(t, err)
	assert.Equal(t, grade.StatusDraft, g.Status)
	assert.Equal(t, grade.DefaultWeight, g.Weight)
	assert.Equal(t, f.teacher.ID, g.TeacherID)

	bad := ng
	bad.Value = value(13.3)
	assert.Error(t, bad.Validate(f.env.Validate))
	_, err = f.env.GradeSvc.Create(ctx, f.sch.School.ID, f.teacher.ID, bad)
	assert.ErrorIs(t, err, grade.ErrInvalidValue)

	other := testutil.CreateSchool(t, f.env.SchoolRepo, "WIMA")
	_, err = f.env.GradeSvc.Create(ctx, other.School.ID, f.teacher.ID, ng)
	assert.ErrorIs(t, err, grade.ErrClassNotInSchool)
	assert.True(t, core.IsCode(err, core.CodePermissionDenied))

	_, err = f.env.GradeSvc.Get(ctx, other.School.ID, g.ID)
	assert.ErrorIs(t, err, grade.ErrNotFound)
}

func TestWorkflow(t *testing.T) {
	testutil.TickingClock(t)
	ctx := context.Background()
	f := setup(t)
	schoolID := f.sch.School.ID
	svc := f.env.GradeSvc

	exam := f.bulk(t, grade.TypeExam, "2024-10-10", 14, 9.5)
	require.Len(t, exam, 2)
	assert.Equal(t, 2, exam[0].Weight)

	t.Run("validate needs submission", func(t *testing.T) {
		res, err := svc.Validate(ctx, schoolID, f.admin.ID, ids(exam), "")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Requested)
		assert.Zero(t, res.Updated)
		assert.Equal(t, 2, res.Skipped)
		assert.Equal(t, grade.ErrInvalidTransition.Key, res.Errors[0].Key())
	})

	t.Run("submit", func(t *testing.T) {
		res, err := svc.Submit(ctx, schoolID, f.teacher.ID, append(ids(exam), exam[0].ID, testutil.UnknownID))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Requested)
		assert.Equal(t, 2, res.Updated)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, testutil.UnknownID, res.Errors[0].GradeID)
		assert.Equal(t, grade.ErrNotFound.Key, res.Errors[0].Key())
		for _, g := range res.Grades {
			assert.Equal(t, grade.StatusSubmitted, g.Status)
			assert.NotNil(t, g.SubmittedAt)
		}

		res.Localize(f.env.Catalog, core.LocaleEN)
		assert.NotEqual(t, grade.ErrNotFound.Key, res.Errors[0].Error)

		_, err = svc.Update(ctx, schoolID, exam[0].ID, f.teacher.ID, "", grade.UpdateGrade{Value: value(15)})
		assert.ErrorIs(t, err, grade.ErrNotEditable)

		pending, err := svc.PendingValidations(ctx, &grade.PendingFilter{SchoolID: schoolID})
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, 2, pending[0].PendingCount)
		assert.Equal(t, "Mme Kabila", pending[0].TeacherName)
		assert.Equal(t, "6A", pending[0].ClassName)
	})

	t.Run("reject", func(t *testing.T) {
		res, err := svc.Reject(ctx, schoolID, f.admin.ID, []string{exam[1].ID}, "la note semble erronée")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Updated)
		assert.Equal(t, "la note semble erronée", res.Grades[0].RejectionReason)

		sent := f.env.Mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "kabila@ecole.cd", sent[0].To[0].Address)
	})

	t.Run("edit rejected grade", func(t *testing.T) {
		_, err := svc.Update(ctx, schoolID, exam[1].ID, f.admin.ID, f.admin.ID, grade.UpdateGrade{Value: value(11)})
		assert.ErrorIs(t, err, core.ErrPermissionDenied)

		_, err = svc.Update(ctx, schoolID, exam[1].ID, f.teacher.ID, f.teacher.ID, grade.UpdateGrade{Value: value(11.1)})
		assert.ErrorIs(t, err, grade.ErrInvalidValue)

		g, err := svc.Update(ctx, schoolID, exam[1].ID, f.teacher.ID, f.teacher.ID, grade.UpdateGrade{Value: value(11)})
		require.NoError(t, err)
		assert.Equal(t, 11.0, g.Value)
		assert.Equal(t, grade.StatusDraft, g.Status)

		history, err := svc.History(ctx, schoolID, g.ID)
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, grade.ActionEdited, history[0].Action)
		assert.Equal(t, 9.5, *history[0].PreviousValue)
		assert.Equal(t, 11.0, *history[0].NewValue)
		assert.Equal(t, "Mme Kabila", history[0].ValidatorName)
		assert.Equal(t, grade.ActionRejected, history[1].Action)
		assert.Equal(t, grade.ActionSubmitted, history[2].Action)
	})

	t.Run("statistics and averages", func(t *testing.T) {
		_, err := svc.Submit(ctx, schoolID, f.teacher.ID, []string{exam[1].ID})
		require.NoError(t, err)
		_, err = svc.Validate(ctx, schoolID, f.admin.ID, []string{exam[0].ID}, "ok")
		require.NoError(t, err)

		stats, err := svc.Statistics(ctx, schoolID, f.cls.ID, f.sch.Term.ID, "")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 1, stats[0].Count)
		assert.Equal(t, 14.0, stats[0].Average)

		res, err := svc.Validate(ctx, schoolID, f.admin.ID, []string{exam[1].ID}, "")
		require.NoError(t, err)
		assert.Equal(t, f.admin.ID, res.Grades[0].ValidatedBy)

		stats, err = svc.Statistics(ctx, schoolID, f.cls.ID, f.sch.Term.ID, "")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Equal(t, 2, stats[0].Count)
		assert.Equal(t, 12.5, stats[0].Average)
		assert.Zero(t, stats[0].Below10)
		assert.Zero(t, stats[0].Above15)

		avgs, err := svc.TermAverages(ctx, schoolID, f.cls.ID, f.sch.Term.ID)
		require.NoError(t, err)
		require.Len(t, avgs, 2)
		assert.Equal(t, f.stu1, avgs[0].StudentID)
		assert.Equal(t, 14.0, avgs[0].Average)
		assert.Equal(t, 1, avgs[0].Rank)
		assert.Equal(t, 2, avgs[0].TotalWeight)
		assert.Equal(t, 11.0, avgs[1].Average)
		assert.Equal(t, 2, avgs[1].Rank)
	})

	t.Run("events", func(t *testing.T) {
		var statuses []string
		for _, evt := range f.env.Events.All() {
			assert.Equal(t, grade.EventStatusChanged, evt.Type)
			assert.Equal(t, f.cls.ID, evt.ClassID)
			statuses = append(statuses, evt.Status)
		}
		assert.Equal(t, []string{
			grade.StatusSubmitted, grade.StatusRejected, grade.StatusSubmitted, grade.StatusValidated, grade.StatusValidated,
		}, statuses)
	})

	t.Run("delete drafts", func(t *testing.T) {
		quiz := f.bulk(t, grade.TypeQuiz, "2024-10-15", 12, 13)
		sel := grade.DraftSelector{ClassID: f.cls.ID, SubjectID: f.sch.Subject.ID, TermID: f.sch.Term.ID, Type: grade.TypeQuiz, GradeDate: "2024-10-15"}
		require.NoError(t, sel.Validate(f.env.Validate))

		n, err := svc.DeleteDrafts(ctx, schoolID, sel)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, err = svc.Get(ctx, schoolID, quiz[0].ID)
		assert.ErrorIs(t, err, grade.ErrNotFound)

		sel.Type = grade.TypeExam
		sel.GradeDate = "2024-10-10"
		n, err = svc.DeleteDrafts(ctx, schoolID, sel)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("export gradebook", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, svc.ExportGradebook(ctx, &buf, schoolID, f.cls.ID, f.sch.Subject.ID, f.sch.Term.ID))

		wb, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer wb.Close()
		rows, err := wb.GetRows("Gradebook")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"Matricule", "Last name", "First name", "2024-10-10 exam", "Average"}, rows[0])
		assert.Equal(t, []string{"EPL-002", "Mukendi", "Bela", "11", "11"}, rows[1])
		assert.Equal(t, []string{"EPL-001", "Nzita", "Awe", "14", "14"}, rows[2])
	})
}
