package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "errors.auth.unauthorized")
	errAuthenticationFailed = core.NewAppError(core.CodeValidation, "errors.auth.authenticationFailed")
	errAccountDeactivated   = core.PermissionDenied("errors.auth.accountDeactivated")
	errRefreshExpired       = core.PermissionDenied("errors.auth.refreshExpired")
	errForbidden            = core.ErrPermissionDenied
	errNotFound             = core.NotFound("errors.notFound")
	errNoFile               = core.NewAppError(core.CodeValidation, "errors.import.noFile")
)

// statusCodes maps AppError codes to HTTP statuses.
var statusCodes = map[string]int{
	core.CodeNotFound:         http.StatusNotFound,
	core.CodePermissionDenied: http.StatusForbidden,
	core.CodeConflict:         http.StatusConflict,
	core.CodeValidation:       http.StatusBadRequest,
	core.CodeInternal:         http.StatusInternalServerError,
}

func statusOf(code string) int {
	if status, ok := statusCodes[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type (
	// localizer is implemented by errors carrying messages to render for the caller.
	localizer interface {
		Localize(cat *core.Catalog, locale string)
	}

	// detailer is implemented by errors carrying extra response fields.
	detailer interface {
		Details() interface{}
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// Messages are rendered in the request locale.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	cat *core.Catalog,
	uni *ut.UniversalTranslator,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}
		locale := getLocale(ctx, cat)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			message = core.TranslateErrors(origErr, core.Translator(uni, locale))
		case *core.ValidationError:
			code = http.StatusBadRequest
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = cat.T(locale, fErr.Error, nil)
				}
				message = fldErrs
			} else if ae, ok := core.AsAppError(origErr.Err); ok {
				message = cat.T(locale, ae.Key, ae.Params)
			} else {
				message = origErr.Error()
			}
		default:
			if ae, ok := core.AsAppError(err); ok && ae.Code != core.CodeInternal {
				code = statusOf(ae.Code)
				body := echo.Map{"error": cat.T(locale, ae.Key, ae.Params)}
				if l, ok := origErr.(localizer); ok {
					l.Localize(cat, locale)
				}
				if d, ok := origErr.(detailer); ok {
					if details, ok := d.Details().(map[string]interface{}); ok {
						for k, v := range details {
							body[k] = v
						}
					}
				}
				message = body
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := cat.T(locale, "errors.internal", nil)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": cat.T(locale, m, nil)}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
