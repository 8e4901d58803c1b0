package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/payment"
	"github.com/ecolehub/backend/core/user"
)

type paymentApi struct {
	apiBase
	svc payment.Service
}

func registerPaymentAPI(sg *echo.Group, deps ServerDeps) {
	api := paymentApi{apiBase: newAPIBase(deps), svc: deps.PaymentSvc}
	cashiers := rolesMiddleware(append(append([]string{}, user.CashierRoles...), user.AdminRoles...)...)

	pg := sg.Group("/payments", cashiers)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/cashier-summary", api.cashierSummary)
	pg.GET("/:id", api.retrieve)
	pg.POST("/:id/cancel", api.cancel)
	pg.GET("/:id/receipt", api.receipt)
}

func (api *paymentApi) query(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.SchoolID = ctx.Param("schoolId")

	payments, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *paymentApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data payment.NewPayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ctx.Param("schoolId"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *paymentApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) cancel(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data payment.CancelPayment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelPayment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Cancel(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"), claims.Subject, data.Reason)
	if err != nil {
		return errors.Wrap(err, "cancelling payment")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *paymentApi) receipt(ctx echo.Context) error {
	rcpt, err := api.svc.Receipt(ctx.Request().Context(), ctx.Param("schoolId"), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "building receipt")
	}
	return ctx.JSON(http.StatusOK, rcpt)
}

// cashierSummary defaults to the caller's own payments of today.
func (api *paymentApi) cashierSummary(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	cashierID := ctx.QueryParam("cashier_id")
	if cashierID == "" || !claims.IsAdmin {
		cashierID = claims.Subject
	}
	date := ctx.QueryParam("date")
	if date == "" {
		date = core.Today()
	}

	sum, err := api.svc.CashierDailySummary(ctx.Request().Context(), ctx.Param("schoolId"), cashierID, date)
	if err != nil {
		return errors.Wrap(err, "summarizing cashier payments")
	}
	return ctx.JSON(http.StatusOK, sum)
}
