// Package digcontainer assembles the API dependencies with dig.
package digcontainer

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/ecolehub/backend/apps/api/echo"
	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/conduct"
	"github.com/ecolehub/backend/core/grade"
	"github.com/ecolehub/backend/core/payment"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/timetable"
	"github.com/ecolehub/backend/core/user"
	appfs "github.com/ecolehub/backend/fs"
	cachesvc "github.com/ecolehub/backend/services/cache"
	emailsvc "github.com/ecolehub/backend/services/email"
	logsvc "github.com/ecolehub/backend/services/logger"
	"github.com/ecolehub/backend/storage/database"
	gormrepos "github.com/ecolehub/backend/storage/database/gormdb"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServerParams is everything the HTTP server depends on.
type ServerParams struct {
	dig.In

	Conf     *core.Config
	Logger   core.Logger
	Catalog  *core.Catalog
	Uni      *ut.UniversalTranslator
	Validate *validator.Validate
	Hub      *echoapi.Hub

	UserSvc      user.Service
	SchoolSvc    school.Service
	ClassSvc     class.Service
	StudentSvc   student.Service
	GradeSvc     grade.Service
	TimetableSvc timetable.Service
	ConductSvc   conduct.Service
	PaymentSvc   payment.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sql.DB {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(os.Stdout, conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newCatalog(conf *core.Config) (*core.Catalog, error) {
	return core.LoadCatalog(appfs.FS, "i18n", conf.DefaultLocale)
}

func newValidate(uni *ut.UniversalTranslator) *validator.Validate {
	validate := core.NewValidate(uni)
	user.InitValidators(validate, uni)
	return validate
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		Catalog:      p.Catalog,
		Uni:          p.Uni,
		Validate:     p.Validate,
		Hub:          p.Hub,
		UserSvc:      p.UserSvc,
		SchoolSvc:    p.SchoolSvc,
		ClassSvc:     p.ClassSvc,
		StudentSvc:   p.StudentSvc,
		GradeSvc:     p.GradeSvc,
		TimetableSvc: p.TimetableSvc,
		ConductSvc:   p.ConductSvc,
		PaymentSvc:   p.PaymentSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// infrastructure
	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(database.NewGorm))
	must(c.Provide(gormrepos.NewTransactor, dig.As(new(core.Transactor))))
	must(c.Provide(newEmailService))
	must(c.Provide(cachesvc.New))
	must(c.Provide(core.NewUniversalTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(newCatalog))
	must(c.Provide(echoapi.NewHub))
	must(c.Provide(func(hub *echoapi.Hub) grade.Notifier { return hub }))

	// repositories
	must(c.Provide(gormrepos.NewUserRepository))
	must(c.Provide(gormrepos.NewSchoolRepository))
	must(c.Provide(gormrepos.NewClassRepository))
	must(c.Provide(gormrepos.NewStudentRepository))
	must(c.Provide(gormrepos.NewGradeRepository))
	must(c.Provide(gormrepos.NewTimetableRepository))
	must(c.Provide(gormrepos.NewConductRepository))
	must(c.Provide(gormrepos.NewPaymentRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(school.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(grade.NewService))
	must(c.Provide(timetable.NewService))
	must(c.Provide(conduct.NewService))
	must(c.Provide(payment.NewService))

	// narrow views services take of each other
	must(c.Provide(func(svc school.Service) class.YearGetter { return svc }))
	must(c.Provide(func(svc school.Service) student.SchoolGetter { return svc }))
	must(c.Provide(func(svc class.Service) timetable.ClassGetter { return svc }))
	must(c.Provide(func(svc class.Service) grade.ClassReader { return svc }))
	must(c.Provide(func(svc user.Service) grade.UserGetter { return svc }))
	must(c.Provide(func(svc student.Service) conduct.StudentGetter { return svc }))
	must(c.Provide(func(svc student.Service) payment.StudentGetter { return svc }))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
