package echoapi

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

const (
	tokenContextKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "EcoleHub"
	tokenQueryParam = "token"
)

// Claims are carried by the JWT. The Is* flags tell clients which portal to open.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`     // first login; bounds refreshes
	SchoolID     string   `json:"school_id,omitempty"` // empty for platform users
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsTeacher    bool     `json:"is_teacher,omitempty"`
	IsCashier    bool     `json:"is_cashier,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	IsSuper      bool     `json:"is_super,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

// HasAnyRole reports whether the claims carry one of roles. Platform users have them all.
func (c Claims) HasAnyRole(roles ...string) bool {
	if c.IsSuper || len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if core.StringInSlice(role, c.Roles) {
			return true
		}
	}
	return false
}

func (c Claims) BelongsTo(schoolID string) bool {
	return c.IsSuper || (c.SchoolID != "" && c.SchoolID == schoolID)
}

// GetUserClaims issues claims for usr. origIat keeps the first login time across refreshes.
func GetUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := core.NowFunc()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Audience:  tokenAudience,
			Subject:   usr.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		},
		OrigIssuedAt: now.Unix(),
		SchoolID:     usr.SchoolID,
		Username:     usr.Username,
		Email:        usr.Email,
		Roles:        usr.Roles,
	}
	if len(origIat) > 0 {
		claims.OrigIssuedAt = origIat[0]
	}
	claims.IsStudent, claims.IsTeacher, claims.IsCashier = usr.IsStudent(), usr.IsTeacher(), usr.IsCashier()
	claims.IsAdmin, claims.IsSuper = usr.IsAdmin(), usr.IsSuper()
	return claims
}

// GenerateToken signs claims with HS256.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.SecretKey))
	return ss, errors.Wrap(err, "signing token")
}

func jwtConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// queryTokenMiddleware accepts ?token= for clients that cannot set headers (websockets).
func queryTokenMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		header := ctx.Request().Header
		if token := ctx.QueryParam(tokenQueryParam); token != "" && header.Get(echo.HeaderAuthorization) == "" {
			header.Set(echo.HeaderAuthorization, middleware.DefaultJWTConfig.AuthScheme+" "+token)
		}
		return next(ctx)
	}
}

// authenticate checks credentials and records the login.
// Unknown users and wrong passwords fail the same way.
func authenticate(ctx context.Context, conf *core.Config, svc user.Service, uname, pwd string) (*Claims, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	switch {
	case errors.Is(err, user.ErrNotFound):
		return nil, errAuthenticationFailed
	case err != nil:
		return nil, errors.Wrap(err, "finding user by username or email")
	case usr.CheckPassword(pwd) != nil:
		return nil, errAuthenticationFailed
	case !usr.Active():
		return nil, errAccountDeactivated
	}

	if usr, err = svc.SetLastLogin(ctx, usr); err != nil {
		return nil, errors.Wrap(err, "setting lastLogin")
	}
	return GetUserClaims(conf, usr), nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	token, ok := ctx.Get(tokenContextKey).(*jwt.Token)
	if !ok {
		return Claims{}, errUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return Claims{}, errUnauthorized
	}
	return *claims, nil
}

// getContextUser loads the token's user once per request.
func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if errors.Is(err, user.ErrNotFound) {
		return user.User{}, errUnauthorized
	} else if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// refreshClaims reissues the claims of a still active user, up to
// JWTRefreshExpirationDelta after their first login.
func refreshClaims(ctx echo.Context, conf *core.Config, svc user.Service) (*Claims, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return nil, err
	}
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return nil, err
	}
	if !usr.Active() {
		return nil, errAccountDeactivated
	}

	deadline := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if core.NowFunc().After(deadline) {
		return nil, errRefreshExpired
	}
	return GetUserClaims(conf, usr, claims.OrigIssuedAt), nil
}
