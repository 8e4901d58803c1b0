package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/ecolehub/backend/apps/api/echo"
	"github.com/ecolehub/backend/core/user"
	"github.com/ecolehub/backend/testutil"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	pwd := "Pa$$w0rd!"
	testutil.CreateUser(t, app.env.UserRepo, app.sch.School.ID, "Teacher", "teacher", "teacher@test.cd", pwd, []string{user.RoleTeacher}, true)
	testutil.CreateUser(t, app.env.UserRepo, app.sch.School.ID, "Gone", "gone", "gone@test.cd", pwd, nil, false)

	failed := marchallObj(t, httpErr{Error: "unable to log in with the provided credentials"})
	tests := []struct {
		name     string
		data     LoginRequest
		wantCode int
		wantData []byte
	}{
		{"unknown user", LoginRequest{Username: "nobody", Password: pwd}, http.StatusBadRequest, failed},
		{"wrong password", LoginRequest{Username: "teacher", Password: "nope"}, http.StatusBadRequest, failed},
		{"deactivated", LoginRequest{Username: "gone", Password: pwd}, http.StatusForbidden, marchallObj(t, httpErr{Error: "this account is deactivated"})},
		{"by username", LoginRequest{Username: "teacher", Password: pwd}, http.StatusOK, nil},
		{"by email", LoginRequest{Username: "teacher@test.cd", Password: pwd}, http.StatusOK, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, tt.data))
			app.do(req, rec)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
			if tt.wantCode == http.StatusOK {
				var res LoginResponse
				unmarshal(t, rec, &res)
				assert.NotEmpty(t, res.Token)
			}
		})
	}
}

func Test_userApi_me(t *testing.T) {
	app := setup(t)
	teacher := app.user(t, "teacher", user.RoleTeacher)

	req, rec := newRequest(http.MethodGet, "/v1/users/me")
	checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, app.do(req, rec))

	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", getToken(t, app, teacher))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var got user.User
	unmarshal(t, rec, &got)
	assert.Equal(t, teacher.ID, got.ID)
	assert.Equal(t, app.sch.School.ID, got.SchoolID)
}

func Test_userApi_query_scopedToSchool(t *testing.T) {
	app := setup(t)
	other := testutil.CreateSchool(t, app.env.SchoolRepo, "OTH")
	admin := app.user(t, "admin", user.RoleAdmin)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	testutil.CreateUser(t, app.env.UserRepo, other.School.ID, "Stranger", "stranger", "stranger@test.cd", "", nil, true)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users?ordering=username", getToken(t, app, admin))
	app.do(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	unmarshal(t, rec, &users)

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	assert.ElementsMatch(t, []string{admin.ID, teacher.ID}, ids)

	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, app, teacher))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, app.do(req, rec))
}

func Test_userApi_destroy(t *testing.T) {
	app := setup(t)
	admin := app.user(t, "admin", user.RoleAdmin)
	owner := app.user(t, "owner", user.RoleAdminOwner)
	teacher := app.user(t, "teacher", user.RoleTeacher)
	token := getToken(t, app, admin)

	runHTTPTests(t, app, []httpTest{
		{name: "self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: token, wantCode: http.StatusForbidden},
		{name: "higher role", method: http.MethodDelete, path: "/v1/users/" + owner.ID, token: token, wantCode: http.StatusForbidden},
		{name: "unknown", method: http.MethodDelete, path: "/v1/users/" + testutil.UnknownID, token: token, wantCode: http.StatusNotFound},
		{name: "teacher", method: http.MethodDelete, path: "/v1/users/" + teacher.ID, token: token, wantCode: http.StatusNoContent},
	})

	_, err := app.env.UserSvc.GetByID(context.Background(), teacher.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func Test_schoolMiddleware(t *testing.T) {
	app := setup(t)
	other := testutil.CreateSchool(t, app.env.SchoolRepo, "OTH")
	admin := app.user(t, "admin", user.RoleAdmin)
	super := testutil.CreateUser(t, app.env.UserRepo, "", "Root", "root", "root@test.cd", "", []string{user.RoleSuper}, true)

	runHTTPTests(t, app, []httpTest{
		{name: "own school", method: http.MethodGet, path: app.schoolPath(""), token: getToken(t, app, admin), wantCode: http.StatusOK},
		{name: "other school", method: http.MethodGet, path: "/v1/schools/" + other.School.ID, token: getToken(t, app, admin), wantCode: http.StatusForbidden},
		{name: "super", method: http.MethodGet, path: "/v1/schools/" + other.School.ID, token: getToken(t, app, super), wantCode: http.StatusOK},
		{name: "no token", method: http.MethodGet, path: app.schoolPath(""), wantCode: http.StatusUnauthorized},
	})
}
