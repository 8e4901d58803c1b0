package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/user"
)

type schoolApi struct {
	apiBase
	svc school.Service
}

func registerSchoolAPI(v1, sg *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolApi{apiBase: newAPIBase(deps), svc: deps.SchoolSvc}
	super := rolesMiddleware(user.SuperRoles...)
	admin := rolesMiddleware(user.AdminRoles...)

	// core console
	cg := v1.Group("/schools", jwt, super)
	cg.GET("", api.query)
	cg.POST("", api.create)
	cg.POST("/bulk", api.bulkCreate)
	cg.POST("/import", api.importCSV)

	sg.GET("", api.retrieve)
	sg.PUT("", api.update, super)
	sg.DELETE("", api.destroy, super)

	sg.GET("/years", api.queryYears)
	sg.POST("/years", api.createYear, admin)
	sg.GET("/years/active", api.activeYear)
	sg.GET("/years/:id", api.retrieveYear)
	sg.POST("/years/:id/activate", api.activateYear, admin)

	sg.GET("/terms", api.queryTerms)
	sg.POST("/terms", api.createTerm, admin)
	sg.GET("/terms/:id", api.retrieveTerm)

	sg.GET("/subjects", api.querySubjects)
	sg.POST("/subjects", api.createSubject, admin)
	sg.GET("/subjects/:id", api.retrieveSubject)
}

func (api *schoolApi) query(ctx echo.Context) error {
	filter := new(school.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []school.School{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	schools, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, schools)
}

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) bulkCreate(ctx echo.Context) error {
	var data school.BulkCreate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkCreate")
	}

	res, err := api.svc.BulkCreate(ctx.Request().Context(), data.Schools, data.SkipDuplicates)
	if err != nil {
		return errors.Wrap(err, "creating schools")
	}
	return api.bulkResponse(ctx, res)
}

func (api *schoolApi) importCSV(ctx echo.Context) error {
	_, f, err := uploadedFile(ctx)
	if err != nil {
		return err
	}
	defer f.Close()
	skip, _ := strconv.ParseBool(ctx.QueryParam("skip_duplicates"))

	res, err := api.svc.ImportCSV(ctx.Request().Context(), f, skip)
	if err != nil {
		return errors.Wrap(err, "importing schools")
	}
	return api.bulkResponse(ctx, res)
}

func (api *schoolApi) bulkResponse(ctx echo.Context, res school.BulkResult) error {
	res.Localize(api.cat, api.uni, api.locale(ctx))
	code := http.StatusCreated
	if !res.Success {
		code = http.StatusOK
	}
	return ctx.JSON(code, res)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextSchool(ctx))
}

func (api *schoolApi) update(ctx echo.Context) error {
	var data school.UpdateSchool
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchool")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("schoolId")); err != nil {
		return errors.Wrap(err, "deleting school")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// School years

func (api *schoolApi) queryYears(ctx echo.Context) error {
	years, err := api.svc.Years(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return errors.Wrap(err, "querying school years")
	}
	if years == nil {
		years = []school.SchoolYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *schoolApi) createYear(ctx echo.Context) error {
	var data school.NewSchoolYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolYear")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	year, err := api.svc.CreateYear(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating school year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *schoolApi) activeYear(ctx echo.Context) error {
	year, err := api.svc.ActiveYear(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return errors.Wrap(err, "getting active school year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolApi) retrieveYear(ctx echo.Context) error {
	year, err := api.svc.GetYear(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting school year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolApi) activateYear(ctx echo.Context) error {
	year, err := api.svc.SetActiveYear(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating school year")
	}
	return ctx.JSON(http.StatusOK, year)
}

// Terms

func (api *schoolApi) queryTerms(ctx echo.Context) error {
	terms, err := api.svc.Terms(ctx.Request().Context(), ctx.Param("schoolId"), ctx.QueryParam("school_year_id"))
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	if terms == nil {
		terms = []school.Term{}
	}
	return ctx.JSON(http.StatusOK, terms)
}

func (api *schoolApi) createTerm(ctx echo.Context) error {
	var data school.NewTerm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTerm")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	term, err := api.svc.CreateTerm(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating term")
	}
	return ctx.JSON(http.StatusCreated, term)
}

func (api *schoolApi) retrieveTerm(ctx echo.Context) error {
	term, err := api.svc.GetTerm(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting term")
	}
	return ctx.JSON(http.StatusOK, term)
}

// Subjects

func (api *schoolApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.Subjects(ctx.Request().Context(), ctx.Param("schoolId"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []school.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) createSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}
