package conduct_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/conduct"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/testutil"
)

func TestSummarize(t *testing.T) {
	records := []conduct.Record{
		{Type: conduct.TypeIncident, Category: conduct.CategoryBehavior, Severity: conduct.SeverityHigh, Status: conduct.StatusOpen, PointsAwarded: -5},
		{Type: conduct.TypeSanction, Category: conduct.CategoryBehavior, Severity: conduct.SeverityMedium, Status: conduct.StatusResolved, PointsAwarded: -10},
		{Type: conduct.TypeReward, Category: conduct.CategoryAchievement, Status: conduct.StatusClosed, PointsAwarded: 20},
		{Type: conduct.TypeNote, Category: conduct.CategoryOther, Status: conduct.StatusInvestigating},
	}

	sum := conduct.Summarize(records)
	assert.Equal(t, 4, sum.TotalRecords)
	assert.Equal(t, 1, sum.IncidentCount)
	assert.Equal(t, 1, sum.SanctionCount)
	assert.Equal(t, 1, sum.RewardCount)
	assert.Equal(t, 1, sum.NoteCount)
	assert.Equal(t, 1, sum.OpenCount)
	assert.Equal(t, 2, sum.ResolvedCount)
	assert.Equal(t, 5, sum.TotalPoints)
	assert.Equal(t, map[string]int{"low": 0, "medium": 1, "high": 1, "critical": 0, "urgent": 0}, sum.SeverityBreakdown)
	assert.Equal(t, map[string]int{"behavior": 2, "achievement": 1, "other": 1}, sum.CategoryBreakdown)

	empty := conduct.Summarize(nil)
	assert.Zero(t, empty.TotalRecords)
	assert.Len(t, empty.SeverityBreakdown, len(conduct.Severities))
}

func TestService(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	stu := testutil.CreateStudent(t, env.StudentRepo, sch.School.ID, "Awe", "Nzita", "EPL-001")
	recorder, resolver := core.NewID(), core.NewID()

	newRecord := func(typ, category string, points int) conduct.NewRecord {
		nr := conduct.NewRecord{
			StudentID:     stu.ID,
			SchoolYearID:  sch.Year.ID,
			Type:          typ,
			Category:      category,
			Title:         "  Bagarre dans la cour ",
			Severity:      conduct.SeverityHigh,
			PointsAwarded: points,
		}
		require.NoError(t, nr.Validate(env.Validate))
		return nr
	}

	t.Run("create", func(t *testing.T) {
		nr := newRecord(conduct.TypeIncident, conduct.CategoryViolence, -5)
		assert.Equal(t, "Bagarre dans la cour", nr.Title)
		assert.Equal(t, core.Today(), nr.IncidentDate)

		r, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, nr)
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, conduct.StatusOpen, r.Status)
		assert.Equal(t, recorder, r.RecordedBy)
		assert.False(t, r.ParentNotified)

		got, err := env.ConductSvc.Get(ctx, sch.School.ID, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Title, got.Title)

		_, err = env.ConductSvc.Get(ctx, core.NewID(), r.ID)
		assert.ErrorIs(t, err, conduct.ErrNotFound)
	})

	t.Run("create for unknown student", func(t *testing.T) {
		nr := newRecord(conduct.TypeNote, conduct.CategoryOther, 0)
		nr.StudentID = testutil.UnknownID
		_, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, nr)
		assert.ErrorIs(t, err, student.ErrNotFound)
	})

	t.Run("invalid record", func(t *testing.T) {
		nr := conduct.NewRecord{StudentID: stu.ID, Type: "praise", Category: conduct.CategoryOther, Title: "x", PointsAwarded: 500}
		assert.Error(t, nr.Validate(env.Validate))
	})

	t.Run("update", func(t *testing.T) {
		r, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, newRecord(conduct.TypeIncident, conduct.CategoryBehavior, 0))
		require.NoError(t, err)

		title, points := " Retards répétés ", -2
		upd, err := env.ConductSvc.Update(ctx, sch.School.ID, r.ID, conduct.UpdateRecord{Title: &title, PointsAwarded: &points})
		require.NoError(t, err)
		assert.Equal(t, "Retards répétés", upd.Title)
		assert.Equal(t, -2, upd.PointsAwarded)
		assert.Equal(t, conduct.CategoryBehavior, upd.Category)

		_, err = env.ConductSvc.Update(ctx, sch.School.ID, testutil.UnknownID, conduct.UpdateRecord{Title: &title})
		assert.ErrorIs(t, err, conduct.ErrNotFound)
	})

	t.Run("status", func(t *testing.T) {
		r, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, newRecord(conduct.TypeSanction, conduct.CategoryCheating, -10))
		require.NoError(t, err)

		r, err = env.ConductSvc.UpdateStatus(ctx, sch.School.ID, r.ID, resolver, conduct.StatusUpdate{Status: conduct.StatusInvestigating})
		require.NoError(t, err)
		assert.Equal(t, conduct.StatusInvestigating, r.Status)
		assert.Empty(t, r.ResolvedBy)
		assert.Nil(t, r.ResolvedAt)

		su := conduct.StatusUpdate{Status: conduct.StatusResolved, ResolutionNotes: " Exclusion de 2 jours "}
		require.NoError(t, su.Validate(env.Validate))
		r, err = env.ConductSvc.UpdateStatus(ctx, sch.School.ID, r.ID, resolver, su)
		require.NoError(t, err)
		assert.Equal(t, conduct.StatusResolved, r.Status)
		assert.Equal(t, resolver, r.ResolvedBy)
		assert.NotNil(t, r.ResolvedAt)
		assert.Equal(t, "Exclusion de 2 jours", r.ResolutionNotes)

		bad := conduct.StatusUpdate{Status: "forgotten"}
		assert.Error(t, bad.Validate(env.Validate))
	})

	t.Run("parent flags", func(t *testing.T) {
		r, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, newRecord(conduct.TypeIncident, conduct.CategoryBullying, -5))
		require.NoError(t, err)

		r, err = env.ConductSvc.MarkParentNotified(ctx, sch.School.ID, r.ID)
		require.NoError(t, err)
		assert.True(t, r.ParentNotified)
		assert.NotNil(t, r.ParentNotifiedAt)
		assert.False(t, r.ParentAcknowledged)

		r, err = env.ConductSvc.MarkParentAcknowledged(ctx, sch.School.ID, r.ID)
		require.NoError(t, err)
		assert.True(t, r.ParentAcknowledged)
		assert.NotNil(t, r.ParentAcknowledgedAt)
	})

	t.Run("query and delete", func(t *testing.T) {
		rewards, err := env.ConductSvc.Query(ctx, &conduct.QueryFilter{SchoolID: sch.School.ID, Type: " REWARD "})
		require.NoError(t, err)
		assert.Empty(t, rewards)

		r, err := env.ConductSvc.Create(ctx, sch.School.ID, recorder, newRecord(conduct.TypeReward, conduct.CategoryAchievement, 15))
		require.NoError(t, err)
		rewards, err = env.ConductSvc.Query(ctx, &conduct.QueryFilter{SchoolID: sch.School.ID, Type: " REWARD "})
		require.NoError(t, err)
		require.Len(t, rewards, 1)
		assert.Equal(t, r.ID, rewards[0].ID)

		require.NoError(t, env.ConductSvc.Delete(ctx, sch.School.ID, r.ID))
		assert.ErrorIs(t, env.ConductSvc.Delete(ctx, sch.School.ID, r.ID), conduct.ErrNotFound)
	})

	t.Run("student summary", func(t *testing.T) {
		sum, err := env.ConductSvc.StudentSummary(ctx, sch.School.ID, stu.ID, sch.Year.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, sum.TotalRecords)
		assert.Equal(t, 3, sum.IncidentCount)
		assert.Equal(t, 1, sum.SanctionCount)
		assert.Equal(t, 1, sum.ResolvedCount)
		assert.Equal(t, 3, sum.OpenCount)
		assert.Equal(t, 4, sum.SeverityBreakdown[conduct.SeverityHigh])
		assert.Equal(t, -22, sum.TotalPoints)

		other, err := env.ConductSvc.StudentSummary(ctx, sch.School.ID, stu.ID, core.NewID())
		require.NoError(t, err)
		assert.Zero(t, other.TotalRecords)

		_, err = env.ConductSvc.StudentSummary(ctx, sch.School.ID, testutil.UnknownID, "")
		assert.ErrorIs(t, err, student.ErrNotFound)
	})
}
