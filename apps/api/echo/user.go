package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

const (
	targetUserKey  = "targetUser"
	errRoleTooHigh = "errors.users.notEnoughRights"
	deleteIDsParam = "id"
)

var errNoTargetUser = errors.New("target user not found in echo.Context")

// userApi manages the accounts of a school. Platform users manage every school.
type userApi struct {
	apiBase
	svc user.Service
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := userApi{apiBase: newAPIBase(deps), svc: deps.UserSvc}
	admin := rolesMiddleware(user.AdminRoles...)

	ug := g.Group("/users")
	registerSessionAPI(ug, jwt, deps)

	ag := ug.Group("", jwt)
	ag.GET("/roles", api.queryRoles, admin)
	ag.GET("", api.query, admin)
	ag.POST("", api.create, admin)
	ag.DELETE("", api.destroyMultiple, admin)

	dg := ag.Group("/:id", api.loadTarget)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, admin)
}

// loadTarget puts the :id user in the context when the caller is that user or manages it.
// Anything else is reported as not found.
func (api *userApi) loadTarget(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextUser(ctx, api.svc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		id := ctx.Param("id")
		if id != actor.ID && !actor.IsAdmin() {
			return errNotFound
		}

		target, err := api.svc.GetByID(ctx.Request().Context(), id)
		switch {
		case errors.Is(err, user.ErrNotFound):
			return errNotFound
		case err != nil:
			return errors.Wrap(err, "finding user by ID")
		case target.ID != actor.ID && !actor.BelongsTo(target.SchoolID):
			return errNotFound
		}
		ctx.Set(targetUserKey, target)
		return next(ctx)
	}
}

func targetUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(targetUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errNoTargetUser
}

func rolesTooHigh() error {
	return core.NewValidationError(nil, core.FieldError{Field: "roles", Error: errRoleTooHigh})
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if filter.SchoolID = claims.SchoolID; claims.IsSuper {
		filter.SchoolID = ""
	}

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !actor.IsSuper() {
		data.SchoolID = actor.SchoolID
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}
	if !actor.CanGrant(data.Roles) {
		return rolesTooHigh()
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := targetUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

// update lets users edit their own name and password; the rest needs an admin.
func (api *userApi) update(ctx echo.Context) error {
	target, err := targetUser(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if data.TouchesAccount() && !actor.IsAdmin() {
		return errForbidden
	}
	if err = data.Validate(ctx.Request().Context(), target, api.validate, api.svc); err != nil {
		return err
	}
	if !actor.CanGrant(data.Roles) {
		return rolesTooHigh()
	}

	usr, err := api.svc.Update(ctx.Request().Context(), target.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	target, err := targetUser(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !actor.CanManage(target) {
		return errForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), target.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// destroyMultiple deletes the ?id= users the caller manages and silently skips the others.
// Including oneself fails the whole request.
func (api *userApi) destroyMultiple(ctx echo.Context) error {
	ids := ctx.QueryParams()[deleteIDsParam]
	if len(ids) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}
	actor, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if core.StringInSlice(actor.ID, ids) {
		return errForbidden
	}

	deletable := make([]string, 0, len(ids))
	for _, id := range ids {
		target, err := api.svc.GetByID(ctx.Request().Context(), id)
		switch {
		case errors.Is(err, user.ErrNotFound):
			continue
		case err != nil:
			return errors.Wrap(err, "finding user by ID")
		case actor.CanManage(target):
			deletable = append(deletable, target.ID)
		}
	}
	if len(deletable) > 0 {
		if err = api.svc.Delete(ctx.Request().Context(), deletable...); err != nil {
			return errors.Wrap(err, "deleting users")
		}
	}
	return ctx.NoContent(http.StatusNoContent)
}
