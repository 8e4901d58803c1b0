// Package echoapi is the EcoleHub HTTP API.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/conduct"
	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/payment"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/timetable"
	"github.com/ecolehub/backend/core/user"
)

type ServerDeps struct {
	Conf     *core.Config
	Logger   core.Logger
	Catalog  *core.Catalog
	Uni      *ut.UniversalTranslator
	Validate *validator.Validate
	Hub      *Hub

	UserSvc      user.Service
	SchoolSvc    school.Service
	ClassSvc     class.Service
	StudentSvc   student.Service
	GradeSvc     grade.Service
	TimetableSvc timetable.Service
	ConductSvc   conduct.Service
	PaymentSvc   payment.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(localeMiddleware(s.deps.Catalog))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Catalog, s.deps.Uni, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig(conf))
	inSchool := schoolMiddleware(s.deps.SchoolSvc)

	// school-scoped routes; the group is created once since Group.Use registers catch-all routes
	sg := v1.Group("/schools/:schoolId", jwt, inSchool)

	registerUserAPI(v1, jwt, s.deps)
	registerSchoolAPI(v1, sg, jwt, s.deps)
	registerClassAPI(sg, s.deps)
	registerStudentAPI(sg, s.deps)
	registerGradeAPI(sg, s.deps)
	registerTimetableAPI(sg, s.deps)
	registerConductAPI(sg, s.deps)
	registerPaymentAPI(sg, s.deps)

	if s.deps.Hub != nil {
		v1.GET("/schools/:schoolId/live", s.deps.Hub.serve, queryTokenMiddleware, jwt, inSchool)
	}
}

// Start listens until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, s.deps.Catalog.T(getLocale(ctx, s.deps.Catalog), "messages.welcome", nil))
}

// apiBase holds what every handler group needs.
type apiBase struct {
	cat      *core.Catalog
	uni      *ut.UniversalTranslator
	validate *validator.Validate
}

func newAPIBase(deps ServerDeps) apiBase {
	return apiBase{cat: deps.Catalog, uni: deps.Uni, validate: deps.Validate}
}

func (b apiBase) locale(ctx echo.Context) string {
	return getLocale(ctx, b.cat)
}

func (b apiBase) t(ctx echo.Context, key string, params ...map[string]interface{}) string {
	var p map[string]interface{}
	if len(params) > 0 {
		p = params[0]
	}
	return b.cat.T(b.locale(ctx), key, p)
}
