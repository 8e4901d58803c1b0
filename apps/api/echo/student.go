package echoapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/bulk"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/user"
)

type studentApi struct {
	apiBase
	svc student.Service
}

// ImportRequest carries already parsed rows to import.
type ImportRequest struct {
	Students []student.ImportRow `json:"students"`
}

func registerStudentAPI(sg *echo.Group, deps ServerDeps) {
	api := studentApi{apiBase: newAPIBase(deps), svc: deps.StudentSvc}
	admin := rolesMiddleware(user.AdminRoles...)

	stg := sg.Group("/students")
	stg.GET("", api.query)
	stg.POST("", api.create, admin)
	stg.POST("/import/validate", api.validateImport, admin)
	stg.POST("/import", api.importStudents, admin)
	stg.GET("/export", api.export, admin)
	stg.GET("/:id", api.retrieve)
	stg.PUT("/:id", api.update, admin)
	stg.DELETE("/:id", api.destroy, admin)
}

func (api *studentApi) filter(ctx echo.Context) *student.QueryFilter {
	filter := new(student.QueryFilter)
	_ = ctx.Bind(filter)
	filter.Clean()
	filter.SchoolID = ctx.Param("schoolId")
	return filter
}

func (api *studentApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), api.filter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, stu)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stu, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	stu, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stu)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func isJSON(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func (api *studentApi) validateImport(ctx echo.Context) error {
	var res interface{}
	var err error
	if isJSON(ctx) {
		var data ImportRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to ImportRequest")
		}
		res, err = api.svc.ValidateImport(ctx.Request().Context(), ctx.Param("schoolId"), data.Students)
	} else {
		res, err = api.importFile(ctx, true)
	}
	if err != nil {
		return errors.Wrap(err, "validating student import")
	}
	return ctx.JSON(http.StatusOK, api.localize(ctx, res))
}

func (api *studentApi) importStudents(ctx echo.Context) error {
	var res interface{}
	var err error
	if isJSON(ctx) {
		var data ImportRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to ImportRequest")
		}
		res, err = api.svc.BulkImport(ctx.Request().Context(), ctx.Param("schoolId"), data.Students)
	} else {
		res, err = api.importFile(ctx, false)
	}
	if err != nil {
		return errors.Wrap(err, "importing students")
	}
	return ctx.JSON(http.StatusOK, api.localize(ctx, res))
}

func (api *studentApi) importFile(ctx echo.Context, dryRun bool) (interface{}, error) {
	name, f, err := uploadedFile(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return api.svc.ImportFile(ctx.Request().Context(), ctx.Param("schoolId"), name, f, dryRun)
}

func (api *studentApi) localize(ctx echo.Context, res interface{}) interface{} {
	locale := api.locale(ctx)
	switch r := res.(type) {
	case student.ImportResult:
		r.Localize(api.cat, api.uni, locale)
		return r
	case student.ImportValidation:
		bulk.Localize(r.Errors, api.cat, api.uni, locale)
		return r
	}
	return res
}

func (api *studentApi) export(ctx echo.Context) error {
	filter := api.filter(ctx)
	return attachment(ctx, "students.xlsx", xlsxMIME, func(w io.Writer) error {
		return api.svc.Export(ctx.Request().Context(), w, filter)
	})
}
