package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core/timetable"
	"github.com/ecolehub/backend/core/user"
	"github.com/ecolehub/backend/testutil"
)

func Test_timetableApi(t *testing.T) {
	app := setup(t)
	admin := app.user(t, "admin", user.RoleAdmin)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	cls6 := testutil.CreateClass(t, app.env.ClassRepo, app.sch, "6e A", 40)
	cls5 := testutil.CreateClass(t, app.env.ClassRepo, app.sch, "5e A", 40)
	token := getToken(t, app, admin)

	session := func(classID, start, end, room string) timetable.NewSession {
		return timetable.NewSession{
			SchoolYearID: app.sch.Year.ID,
			ClassID:      classID,
			SubjectID:    app.sch.Subject.ID,
			TeacherID:    teacher.ID,
			ClassroomID:  room,
			DayOfWeek:    1,
			StartTime:    start,
			EndTime:      end,
		}
	}

	req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/timetable"), token, marchallObj(t, session(cls6.ID, "08:00", "09:30", "B12")))
	app.do(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first timetable.Session
	unmarshal(t, rec, &first)

	t.Run("overlapping teacher and room", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/timetable"), token, marchallObj(t, session(cls5.ID, "09:00", "10:00", "B12")))
		app.do(req, rec)
		require.Equal(t, http.StatusConflict, rec.Code)

		var body struct {
			Error     string               `json:"error"`
			Conflicts []timetable.Conflict `json:"conflicts"`
		}
		unmarshal(t, rec, &body)
		assert.Equal(t, "the class already has a session at this time", body.Error)
		require.Len(t, body.Conflicts, 2)
		assert.Equal(t, timetable.ConflictTeacher, body.Conflicts[0].Type)
		assert.Equal(t, "the teacher already has a session at this time", body.Conflicts[0].Message)
		assert.Equal(t, timetable.ConflictClassroom, body.Conflicts[1].Type)
		assert.Equal(t, first.ID, body.Conflicts[1].SessionID)
	})

	t.Run("touching sessions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/timetable"), token, marchallObj(t, session(cls5.ID, "09:30", "10:30", "B12")))
		app.do(req, rec)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("detect conflicts", func(t *testing.T) {
		slot := timetable.Slot{SchoolYearID: app.sch.Year.ID, DayOfWeek: 1, StartTime: "08:30", EndTime: "09:00", ClassroomID: "B12"}
		req, rec := newAuthRequest(http.MethodPost, app.schoolPath("/timetable/conflicts?lang=fr"), token, marchallObj(t, slot))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var body struct {
			HasConflicts bool                 `json:"has_conflicts"`
			Conflicts    []timetable.Conflict `json:"conflicts"`
		}
		unmarshal(t, rec, &body)
		assert.True(t, body.HasConflicts)
		require.Len(t, body.Conflicts, 1)
		assert.Equal(t, "la salle est déjà occupée à cet horaire", body.Conflicts[0].Message)
	})

	t.Run("teacher hours", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, app.schoolPath("/timetable/teachers/"+teacher.ID+"/hours"), getToken(t, app, teacher))
		app.do(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var hours timetable.WeeklyHours
		unmarshal(t, rec, &hours)
		assert.Equal(t, 2, hours.SessionCount)
		assert.Equal(t, 2, hours.TotalHours)
		assert.Equal(t, 30, hours.TotalMinutes)
	})

	runHTTPTests(t, app, []httpTest{
		{
			name:     "no filter",
			method:   http.MethodGet,
			path:     app.schoolPath("/timetable"),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"class_id": "a class or a teacher is required"}`),
		},
		{
			name:     "teacher cannot plan",
			method:   http.MethodPost,
			path:     app.schoolPath("/timetable"),
			body:     marchallObj(t, session(cls6.ID, "14:00", "15:00", "")),
			token:    getToken(t, app, teacher),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "inverted range",
			method:   http.MethodPost,
			path:     app.schoolPath("/timetable"),
			body:     marchallObj(t, session(cls6.ID, "15:00", "14:00", "")),
			token:    token,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     app.schoolPath("/timetable/" + first.ID),
			token:    token,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			method:   http.MethodGet,
			path:     app.schoolPath("/timetable/" + first.ID),
			token:    token,
			wantCode: http.StatusNotFound,
		},
	})
}
