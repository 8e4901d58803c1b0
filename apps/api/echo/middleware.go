package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
)

const (
	contextLocaleKey = "locale"
	contextSchoolKey = "school"
	langParam        = "lang"

	headerAcceptLanguage  = "Accept-Language"
	headerContentLanguage = "Content-Language"
)

// localeMiddleware resolves the request locale from ?lang= then Accept-Language.
func localeMiddleware(cat *core.Catalog) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			accept := ctx.QueryParam(langParam)
			if accept == "" {
				accept = ctx.Request().Header.Get(headerAcceptLanguage)
			}
			locale := cat.Resolve(accept)
			ctx.Set(contextLocaleKey, locale)
			ctx.Response().Header().Set(headerContentLanguage, locale)
			return next(ctx)
		}
	}
}

func getLocale(ctx echo.Context, cat *core.Catalog) string {
	if locale, ok := ctx.Get(contextLocaleKey).(string); ok && locale != "" {
		return locale
	}
	return cat.DefaultLocale()
}

// rolesMiddleware lets through the users having one of roles.
func rolesMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errForbidden
		}
	}
}

// schoolMiddleware loads the :schoolId school once the caller is known to belong to it.
func schoolMiddleware(svc school.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			schoolID := ctx.Param("schoolId")
			if !claims.BelongsTo(schoolID) {
				return errForbidden
			}
			sch, err := svc.Get(ctx.Request().Context(), schoolID)
			if err != nil {
				return err
			}
			ctx.Set(contextSchoolKey, sch)
			return next(ctx)
		}
	}
}

func getContextSchool(ctx echo.Context) school.School {
	sch, _ := ctx.Get(contextSchoolKey).(school.School)
	return sch
}
