package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/user"
)

type gradeApi struct {
	apiBase
	svc grade.Service
}

// GradebookQuery selects a class gradebook.
type GradebookQuery struct {
	ClassID   string `json:"class_id" query:"class_id" validate:"required,uuid"`
	SubjectID string `json:"subject_id" query:"subject_id" validate:"omitempty,uuid"`
	TermID    string `json:"term_id" query:"term_id" validate:"required,uuid"`
}

func registerGradeAPI(sg *echo.Group, deps ServerDeps) {
	api := gradeApi{apiBase: newAPIBase(deps), svc: deps.GradeSvc}
	entry := rolesMiddleware(append(append([]string{}, user.TeacherRoles...), user.AdminRoles...)...)
	validators := rolesMiddleware(user.ValidatorRoles...)
	admin := rolesMiddleware(user.AdminRoles...)

	gg := sg.Group("/grades")
	gg.GET("", api.query)
	gg.POST("", api.create, entry)
	gg.POST("/bulk", api.bulkCreate, entry)
	gg.DELETE("/drafts", api.deleteDrafts, entry)
	gg.POST("/submit", api.submit, entry)
	gg.POST("/validate", api.validateGrades, validators)
	gg.POST("/reject", api.reject, validators)
	gg.GET("/pending", api.pending, admin)
	gg.GET("/statistics", api.statistics)
	gg.GET("/averages", api.averages)
	gg.GET("/export", api.export, entry)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update, entry)
	gg.GET("/:id/history", api.history)
}

func (api *gradeApi) query(ctx echo.Context) error {
	filter := new(grade.ListFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.Grade{})
	}
	filter.SchoolID = ctx.Param("schoolId")

	grades, err := api.svc.ListByClass(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	if grades == nil {
		grades = []grade.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *gradeApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.NewGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	g, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating grade")
	}
	return ctx.JSON(http.StatusCreated, g)
}

func (api *gradeApi) bulkCreate(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.BulkGrades
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkGrades")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	grades, err := api.svc.BulkCreate(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating grades")
	}
	return ctx.JSON(http.StatusCreated, grades)
}

func (api *gradeApi) deleteDrafts(ctx echo.Context) error {
	var data grade.DraftSelector
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DraftSelector")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.DeleteDrafts(ctx.Request().Context(), ctx.Param("schoolId"), data)
	if err != nil {
		return errors.Wrap(err, "deleting drafts")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"deleted": n})
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	g, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) update(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.UpdateGrade
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGrade")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// teachers only edit their own grades
	var teacherID string
	if !claims.IsAdmin {
		teacherID = claims.Subject
	}
	g, err := api.svc.Update(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), claims.Subject, teacherID, data)
	if err != nil {
		return errors.Wrap(err, "updating grade")
	}
	return ctx.JSON(http.StatusOK, g)
}

func (api *gradeApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.SubmitGrades
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitGrades")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data.GradeIDs)
	if err != nil {
		return errors.Wrap(err, "submitting grades")
	}
	return api.statusResponse(ctx, res)
}

func (api *gradeApi) validateGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.ValidateGrades
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateGrades")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Validate(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data.GradeIDs, data.Comment)
	if err != nil {
		return errors.Wrap(err, "validating grades")
	}
	return api.statusResponse(ctx, res)
}

func (api *gradeApi) reject(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data grade.RejectGrades
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectGrades")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data.GradeIDs, data.Reason)
	if err != nil {
		return errors.Wrap(err, "rejecting grades")
	}
	return api.statusResponse(ctx, res)
}

func (api *gradeApi) statusResponse(ctx echo.Context, res grade.StatusResult) error {
	res.Localize(api.cat, api.locale(ctx))
	return ctx.JSON(http.StatusOK, res)
}

func (api *gradeApi) history(ctx echo.Context) error {
	entries, err := api.svc.History(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade history")
	}
	if entries == nil {
		entries = []grade.ValidationEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *gradeApi) pending(ctx echo.Context) error {
	filter := new(grade.PendingFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grade.PendingValidation{})
	}
	filter.SchoolID = ctx.Param("schoolId")

	pending, err := api.svc.PendingValidations(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying pending validations")
	}
	if pending == nil {
		pending = []grade.PendingValidation{}
	}
	return ctx.JSON(http.StatusOK, pending)
}

func (api *gradeApi) gradebookQuery(ctx echo.Context) (GradebookQuery, error) {
	var q GradebookQuery
	if err := ctx.Bind(&q); err != nil {
		return q, errors.Wrap(err, "binding to GradebookQuery")
	}
	return q, api.validate.Struct(q)
}

func (api *gradeApi) statistics(ctx echo.Context) error {
	q, err := api.gradebookQuery(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Statistics(ctx.Request().Context(), ctx.Param("schoolId"), q.ClassID, q.TermID, q.SubjectID)
	if err != nil {
		return errors.Wrap(err, "computing grade statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *gradeApi) averages(ctx echo.Context) error {
	q, err := api.gradebookQuery(ctx)
	if err != nil {
		return err
	}
	avgs, err := api.svc.TermAverages(ctx.Request().Context(), ctx.Param("schoolId"), q.ClassID, q.TermID)
	if err != nil {
		return errors.Wrap(err, "computing term averages")
	}
	return ctx.JSON(http.StatusOK, avgs)
}

func (api *gradeApi) export(ctx echo.Context) error {
	q, err := api.gradebookQuery(ctx)
	if err != nil {
		return err
	}
	return attachment(ctx, "gradebook.xlsx", xlsxMIME, func(w io.Writer) error {
		return api.svc.ExportGradebook(ctx.Request().Context(), w, ctx.Param("schoolId"), q.ClassID, q.SubjectID, q.TermID)
	})
}
