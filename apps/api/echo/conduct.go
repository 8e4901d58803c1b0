package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/conduct"
	"github.com/ecolehub/backend/core/user"
)

type conductApi struct {
	apiBase
	svc conduct.Service
}

func registerConductAPI(sg *echo.Group, deps ServerDeps) {
	api := conductApi{apiBase: newAPIBase(deps), svc: deps.ConductSvc}
	staff := rolesMiddleware(append(append([]string{}, user.TeacherRoles...), user.AdminRoles...)...)
	admin := rolesMiddleware(user.AdminRoles...)

	cg := sg.Group("/conduct", staff)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.GET("/summary", api.summary)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.PUT("/:id/status", api.updateStatus, admin)
	cg.POST("/:id/parent-notified", api.parentNotified)
	cg.POST("/:id/parent-acknowledged", api.parentAcknowledged)
	cg.DELETE("/:id", api.destroy, admin)
}

func (api *conductApi) query(ctx echo.Context) error {
	filter := new(conduct.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []conduct.Record{})
	}
	filter.Clean()
	filter.SchoolID = ctx.Param("schoolId")

	records, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying conduct records")
	}
	if records == nil {
		records = []conduct.Record{}
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *conductApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data conduct.NewRecord
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating conduct record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *conductApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting conduct record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *conductApi) update(ctx echo.Context) error {
	var data conduct.UpdateRecord
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRecord")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating conduct record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *conductApi) updateStatus(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data conduct.StatusUpdate
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating conduct record status")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *conductApi) parentNotified(ctx echo.Context) error {
	rec, err := api.svc.MarkParentNotified(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking parent notified")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *conductApi) parentAcknowledged(ctx echo.Context) error {
	rec, err := api.svc.MarkParentAcknowledged(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking parent acknowledged")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *conductApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting conduct record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *conductApi) summary(ctx echo.Context) error {
	sum, err := api.svc.StudentSummary(ctx.Request().Context(), ctx.Param("schoolId"), ctx.QueryParam("student_id"), ctx.QueryParam("school_year_id"))
	if err != nil {
		return errors.Wrap(err, "summarizing conduct")
	}
	return ctx.JSON(http.StatusOK, sum)
}
