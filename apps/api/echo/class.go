package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/user"
)

type classApi struct {
	apiBase
	svc class.Service
}

func registerClassAPI(sg *echo.Group, deps ServerDeps) {
	api := classApi{apiBase: newAPIBase(deps), svc: deps.ClassSvc}
	admin := rolesMiddleware(user.AdminRoles...)

	cg := sg.Group("/classes")
	cg.GET("", api.query)
	cg.POST("", api.create, admin)
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, admin)
	cg.POST("/:id/archive", api.archive, admin)

	cg.GET("/:id/subjects", api.querySubjects)
	cg.POST("/:id/subjects", api.assignSubject, admin)

	cg.GET("/:id/students", api.queryStudents)
	cg.POST("/:id/enrollments", api.enroll, admin)
	cg.POST("/:id/enrollments/:enrollmentId/confirm", api.confirmEnrollment, admin)
	cg.POST("/:id/enrollments/:enrollmentId/cancel", api.cancelEnrollment, admin)
}

func (api *classApi) query(ctx echo.Context) error {
	filter := new(class.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Clean()
	filter.SchoolID = ctx.Param("schoolId")
	ordering := new(Ordering)
	ordering.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) update(ctx echo.Context) error {
	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) archive(ctx echo.Context) error {
	cls, err := api.svc.Archive(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "archiving class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.Subjects(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying class subjects")
	}
	if subjects == nil {
		subjects = []class.ClassSubject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *classApi) assignSubject(ctx echo.Context) error {
	var data class.NewClassSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClassSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cs, err := api.svc.AssignSubject(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "assigning subject")
	}
	return ctx.JSON(http.StatusCreated, cs)
}

func (api *classApi) queryStudents(ctx echo.Context) error {
	statuses := ctx.QueryParams()["status"]
	students, err := api.svc.Students(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), statuses...)
	if err != nil {
		return errors.Wrap(err, "querying class students")
	}
	if students == nil {
		students = []class.EnrolledStudent{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) enroll(ctx echo.Context) error {
	var data class.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *classApi) confirmEnrollment(ctx echo.Context) error {
	enr, err := api.svc.ConfirmEnrollment(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), ctx.Param("enrollmentId"))
	if err != nil {
		return errors.Wrap(err, "confirming enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *classApi) cancelEnrollment(ctx echo.Context) error {
	var data class.CancelEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.CancelEnrollment(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), ctx.Param("enrollmentId"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "cancelling enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}
