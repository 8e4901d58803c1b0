// Package inmemdb keeps every repository in process memory. It backs the
// service and API tests.
package inmemdb

import (
	"context"
	"strings"
	"sync"

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

// DB guards all tables with one lock: repositories read across tables
// (a grade's school is its class's school).
type DB struct {
	mutex sync.RWMutex

	users         map[string]*user.User
	schools       map[string]*school.School
	schoolYears   map[string]*school.SchoolYear
	terms         map[string]*school.Term
	subjects      map[string]*school.Subject
	classes       map[string]*class.Class
	classSubjects map[string]*class.ClassSubject
	enrollments   map[string]*class.Enrollment
	students      map[string]*student.Student
	sequences     map[string]int
	grades        map[string]*grade.Grade
	validations   []grade.ValidationEntry
	sessions      map[string]*timetable.Session
	records       map[string]*conduct.Record
	payments      map[string]*payment.Payment
}

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		schools:       make(map[string]*school.School),
		schoolYears:   make(map[string]*school.SchoolYear),
		terms:         make(map[string]*school.Term),
		subjects:      make(map[string]*school.Subject),
		classes:       make(map[string]*class.Class),
		classSubjects: make(map[string]*class.ClassSubject),
		enrollments:   make(map[string]*class.Enrollment),
		students:      make(map[string]*student.Student),
		sequences:     make(map[string]int),
		grades:        make(map[string]*grade.Grade),
		sessions:      make(map[string]*timetable.Session),
		records:       make(map[string]*conduct.Record),
		payments:      make(map[string]*payment.Payment),
	}
}

// Transactor runs fn directly. Writes made before a failure are kept.
type Transactor struct{}

var _ core.Transactor = Transactor{}

func (Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
