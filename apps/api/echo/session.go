package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"` // or email
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

// sessionApi serves the endpoints a user reaches before, or about, their own session.
type sessionApi struct {
	apiBase
	conf *core.Config
	svc  user.Service
}

func registerSessionAPI(ug *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := sessionApi{apiBase: newAPIBase(deps), conf: deps.Conf, svc: deps.UserSvc}

	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.requestPasswordReset)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	ug.POST("/token-refresh", api.refreshToken, jwt)
	ug.GET("/me", api.me, jwt)
}

func (api *sessionApi) issue(ctx echo.Context, claims *Claims) error {
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *sessionApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), api.conf, api.svc, data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	return api.issue(ctx, claims)
}

func (api *sessionApi) refreshToken(ctx echo.Context) error {
	claims, err := refreshClaims(ctx, api.conf, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return api.issue(ctx, claims)
}

func (api *sessionApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// requestPasswordReset answers the same whether the email is known or not.
func (api *sessionApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.t(ctx, "messages.passwordResetRequested")})
}

func (api *sessionApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.t(ctx, "messages.passwordResetDone")})
}
