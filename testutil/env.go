package testutil

import (
	"sync"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	inmemdb "github.com/ecolehub/backend/storage/database/inmem"
)

// Env wires every service on an in-memory database.
type Env struct {
	Conf     *core.Config
	Logger   core.Logger
	Catalog  *core.Catalog
	Uni      *ut.UniversalTranslator
	Validate *validator.Validate
	Mail     *emailsvc.ConsoleService
	Cache    *cachesvc.MemoryCache
	Events   *Events

	DB            *inmemdb.DB
	UserRepo      user.Repository
	SchoolRepo    school.Repository
	ClassRepo     class.Repository
	StudentRepo   student.Repository
	GradeRepo     grade.Repository
	TimetableRepo timetable.Repository
	ConductRepo   conduct.Repository
	PaymentRepo   payment.Repository

	UserSvc      user.Service
	SchoolSvc    school.Service
	ClassSvc     class.Service
	StudentSvc   student.Service
	GradeSvc     grade.Service
	TimetableSvc timetable.Service
	ConductSvc   conduct.Service
	PaymentSvc   payment.Service
}

// NewEnv builds a fresh Env. Grade events go to notifier when given,
// else they are recorded in Env.Events.
func NewEnv(t *testing.T, notifier ...grade.Notifier) *Env {
	conf := core.NewTestConfig()
	uni := core.NewUniversalTranslator()
	env := &Env{
		Conf:     conf,
		Logger:   NewLogger(conf),
		Catalog:  NewCatalog(t),
		Uni:      uni,
		Validate: core.NewValidate(uni),
		Cache:    cachesvc.NewMemoryCache(0),
		Events:   new(Events),
		DB:       inmemdb.Open(),
	}
	user.InitValidators(env.Validate, uni)
	core.ParseEmailTemplates(appfs.FS, conf, env.Logger)
	env.Mail = emailsvc.NewConsoleServiceMock(conf, env.Logger)

	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.SchoolRepo = inmemdb.NewSchoolRepository(env.DB)
	env.ClassRepo = inmemdb.NewClassRepository(env.DB)
	env.StudentRepo = inmemdb.NewStudentRepository(env.DB)
	env.GradeRepo = inmemdb.NewGradeRepository(env.DB)
	env.TimetableRepo = inmemdb.NewTimetableRepository(env.DB)
	env.ConductRepo = inmemdb.NewConductRepository(env.DB)
	env.PaymentRepo = inmemdb.NewPaymentRepository(env.DB)

	var ntf grade.Notifier = env.Events
	if len(notifier) > 0 && notifier[0] != nil {
		ntf = notifier[0]
	}

	tx := inmemdb.Transactor{}
	env.UserSvc = user.NewServiceMock(env.UserRepo, env.Mail, conf)
	env.SchoolSvc = school.NewService(tx, env.SchoolRepo, env.Validate)
	env.ClassSvc = class.NewService(tx, env.ClassRepo, env.SchoolSvc)
	env.StudentSvc = student.NewService(tx, env.StudentRepo, env.SchoolSvc, env.Validate)
	env.TimetableSvc = timetable.NewService(tx, env.TimetableRepo, env.ClassSvc)
	env.ConductSvc = conduct.NewService(tx, env.ConductRepo, env.StudentSvc)
	env.PaymentSvc = payment.NewService(tx, env.PaymentRepo, env.StudentSvc)

	gradeSvc, err := grade.NewService(tx, env.GradeRepo, env.ClassSvc, env.UserSvc, env.Cache, ntf, env.Mail, env.Logger, conf)
	if err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	env.GradeSvc = gradeSvc
	return env
}

// Events records the grade events of an Env.
type Events struct {
	mu     sync.Mutex
	events []grade.Event
}

var _ grade.Notifier = (*Events)(nil)

func (e *Events) Notify(_ string, evt grade.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *Events) All() []grade.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]grade.Event(nil), e.events...)
}
