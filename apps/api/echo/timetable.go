package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/timetable"
	"github.com/ecolehub/backend/core/user"
)

var errTimetableFilter = core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: "errors.timetables.filterRequired"})

type timetableApi struct {
	apiBase
	svc timetable.Service
}

func registerTimetableAPI(sg *echo.Group, deps ServerDeps) {
	api := timetableApi{apiBase: newAPIBase(deps), svc: deps.TimetableSvc}
	admin := rolesMiddleware(user.AdminRoles...)

	tg := sg.Group("/timetable")
	tg.GET("", api.query)
	tg.POST("", api.create, admin)
	tg.GET("/conflicts", api.allConflicts, admin)
	tg.POST("/conflicts", api.detectConflicts, admin)
	tg.GET("/teachers/:teacherId/hours", api.teacherHours)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update, admin)
	tg.DELETE("/:id", api.destroy, admin)
}

// query lists the sessions of a class or of a teacher.
func (api *timetableApi) query(ctx echo.Context) error {
	filter := new(timetable.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []timetable.Session{})
	}
	schoolID := ctx.Param("schoolId")

	var sessions []timetable.Session
	var err error
	switch {
	case filter.ClassID != "":
		sessions, err = api.svc.ByClass(ctx.Request().Context(), schoolID, filter.ClassID, filter.SchoolYearID)
	case filter.TeacherID != "":
		sessions, err = api.svc.ByTeacher(ctx.Request().Context(), schoolID, filter.TeacherID, filter.SchoolYearID)
	default:
		return errTimetableFilter
	}
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []timetable.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

func (api *timetableApi) create(ctx echo.Context) error {
	var data timetable.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *timetableApi) retrieve(ctx echo.Context) error {
	sess, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *timetableApi) update(ctx echo.Context) error {
	var data timetable.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *timetableApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// detectConflicts checks a slot before it is booked.
func (api *timetableApi) detectConflicts(ctx echo.Context) error {
	var data timetable.Slot
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Slot")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	conflicts, err := api.svc.DetectConflicts(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "detecting conflicts")
	}
	return api.conflictsResponse(ctx, conflicts)
}

func (api *timetableApi) allConflicts(ctx echo.Context) error {
	conflicts, err := api.svc.AllConflicts(ctx.Request().Context(), ctx.Param("schoolId"), ctx.QueryParam("school_year_id"))
	if err != nil {
		return errors.Wrap(err, "listing conflicts")
	}
	return api.conflictsResponse(ctx, conflicts)
}

func (api *timetableApi) conflictsResponse(ctx echo.Context, conflicts []timetable.Conflict) error {
	if conflicts == nil {
		conflicts = []timetable.Conflict{}
	}
	timetable.Localize(conflicts, api.cat, api.locale(ctx))
	return ctx.JSON(http.StatusOK, echo.Map{"has_conflicts": len(conflicts) > 0, "conflicts": conflicts})
}

func (api *timetableApi) teacherHours(ctx echo.Context) error {
	hours, err := api.svc.TeacherWeeklyHours(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("teacherId"), ctx.QueryParam("school_year_id"))
	if err != nil {
		return errors.Wrap(err, "computing teacher hours")
	}
	return ctx.JSON(http.StatusOK, hours)
}
