package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core/conduct"
	"github.com/ecolehub/backend/core/user"
	"github.com/ecolehub/backend/testutil"
)

func Test_conductApi(t *testing.T) {
	app := setup(t)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	principal := app.user(t, "principal", user.RoleAdminPrincipal)
	cashier := app.user(t, "cashier", user.RoleCashier)
	stu := testutil.CreateStudent(t, app.env.StudentRepo, app.sch.School.ID, "Paul", "Ilunga", "EPL-2024-0001")
	token := getToken(t, app, teacher)

	record := func(t *testing.T, nr conduct.NewRecord) conduct.Record {
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/conduct"), token, marchallObj(t, nr))
		app.do(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var r conduct.Record
		unmarshal(t, rec, &r)
		return r
	}

	incident := record(t, conduct.NewRecord{
		StudentID:    stu.ID,
		SchoolYearID: app.sch.Year.ID,
		Type:         conduct.TypeIncident,
		Category:     "behavior",
		Title:        "  Fight in the yard ",
		Severity:     "high",
		IncidentDate: "2024-11-04",
	})
	assert.Equal(t, "Fight in the yard", incident.Title)
	assert.Equal(t, conduct.StatusOpen, incident.Status)
	assert.Equal(t, teacher.ID, incident.RecordedBy)

	record(t, conduct.NewRecord{
		StudentID:     stu.ID,
		SchoolYearID:  app.sch.Year.ID,
		Type:          conduct.TypeReward,
		Category:      "achievement",
		Title:         "Math olympiad",
		PointsAwarded: 10,
	})

	t.Run("status", func(t *testing.T) {
		path := app.schoolPath("/conduct/" + incident.ID + "/status")
		req, rec := newAuthRequest(http.MethodPut, path, token, marchallObj(t, conduct.StatusUpdate{Status: conduct.StatusResolved}))
		app.do(req, rec)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		req, rec = newAuthRequest(http.MethodPut, path, getToken(t, app, principal), marchallObj(t, conduct.StatusUpdate{
			Status:          conduct.StatusResolved,
			ResolutionNotes: "Parents met",
		}))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r conduct.Record
		unmarshal(t, rec, &r)
		assert.Equal(t, principal.ID, r.ResolvedBy)
		assert.NotNil(t, r.ResolvedAt)
		assert.Equal(t, "Parents met", r.ResolutionNotes)
	})

	t.Run("parent follow-up", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/conduct/"+incident.ID+"/parent-notified"), token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var r conduct.Record
		unmarshal(t, rec, &r)
		assert.True(t, r.ParentNotified)
		assert.False(t, r.ParentAcknowledged)
	})

	t.Run("summary", func(t *testing.T) {
		q := url.Values{"student_id": {stu.ID}, "school_year_id": {app.sch.Year.ID}}
		req, rec := newAuthRequest(http.MethodGet, app.schoolPath("/conduct/summary?"+q.Encode()), token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sum conduct.Summary
		unmarshal(t, rec, &sum)
		assert.Equal(t, 2, sum.TotalRecords)
		assert.Equal(t, 1, sum.IncidentCount)
		assert.Equal(t, 1, sum.RewardCount)
		assert.Equal(t, 1, sum.ResolvedCount)
		assert.Equal(t, 10, sum.TotalPoints)
		assert.Equal(t, 1, sum.SeverityBreakdown["high"])
	})

	t.Run("query", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, app.schoolPath("/conduct?type=REWARD"), token)
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var records []conduct.Record
		unmarshal(t, rec, &records)
		require.Len(t, records, 1)
		assert.Equal(t, "Math olympiad", records[0].Title)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "cashier",
			method:   http.MethodGet,
			path:     app.schoolPath("/conduct"),
			token:    getToken(t, app, cashier),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "teacher cannot delete",
			method:   http.MethodDelete,
			path:     app.schoolPath("/conduct/" + incident.ID),
			token:    token,
			wantCode: http.StatusForbidden,
		},
		{
			name:     "principal deletes",
			method:   http.MethodDelete,
			path:     app.schoolPath("/conduct/" + incident.ID),
			token:    getToken(t, app, principal),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			method:   http.MethodGet,
			path:     app.schoolPath("/conduct/" + incident.ID),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "conduct record not found"}),
		},
	})
}
