// Package testutil holds the fixtures shared by the service and API tests.
package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/class"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/user"
	appfs "github.com/ecolehub/backend/fs"
	logsvc "github.com/ecolehub/backend/services/logger"
)

// NewLogger returns a disabled rollbar logger writing nowhere.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidate registers the core and user validations.
func NewValidate() *validator.Validate {
	uni := core.NewUniversalTranslator()
	validate := core.NewValidate(uni)
	user.InitValidators(validate, uni)
	return validate
}

func NewCatalog(t *testing.T) *core.Catalog {
	cat, err := core.LoadCatalog(appfs.FS, "i18n", core.LocaleEN)
	if err != nil {
		t.Fatalf("NewCatalog() failed: %v", err)
	}
	return cat
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	schoolID, name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		SchoolID:  schoolID,
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// School is a school with an active year, one term and one subject.
type School struct {
	School  school.School
	Year    school.SchoolYear
	Term    school.Term
	Subject school.Subject
}

func CreateSchool(t *testing.T, repo school.Repository, code string) School {
	ctx := context.Background()
	now := time.Now().UTC()

	sch, err := repo.CreateSchool(ctx, school.School{Name: "School " + code, Code: code, Status: school.StatusActive, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	year, err := repo.CreateSchoolYear(ctx, school.SchoolYear{
		SchoolID: sch.ID, Name: "2024-2025", StartDate: "2024-09-01", EndDate: "2025-07-02", IsActive: true, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	term, err := repo.CreateTerm(ctx, school.Term{
		SchoolYearID: year.ID, Name: "Trimestre 1", Order: 1, StartDate: "2024-09-01", EndDate: "2024-12-20", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	sub, err := repo.CreateSubject(ctx, school.Subject{SchoolID: sch.ID, Name: "Mathématiques", Code: "MATH", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return School{School: sch, Year: year, Term: term, Subject: sub}
}

func CreateClass(t *testing.T, repo class.Repository, sch School, name string, maxStudents int) class.Class {
	now := time.Now().UTC()
	cls, err := repo.CreateClass(context.Background(), class.Class{
		SchoolID:     sch.School.ID,
		SchoolYearID: sch.Year.ID,
		GradeLevel:   name,
		Name:         name,
		MaxStudents:  maxStudents,
		Status:       class.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return cls
}

func CreateStudent(t *testing.T, repo student.Repository, schoolID, firstName, lastName, matricule string) student.Student {
	now := time.Now().UTC()
	stu, err := repo.CreateStudent(context.Background(), student.Student{
		SchoolID:  schoolID,
		FirstName: firstName,
		LastName:  lastName,
		DOB:       "2010-05-14",
		Matricule: matricule,
		Status:    student.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stu
}

// Enroll adds a confirmed enrollment of stu in cls.
func Enroll(t *testing.T, repo class.Repository, cls class.Class, studentID string) class.Enrollment {
	now := time.Now().UTC()
	enr, err := repo.CreateEnrollment(context.Background(), class.Enrollment{
		StudentID:      studentID,
		ClassID:        cls.ID,
		SchoolYearID:   cls.SchoolYearID,
		Status:         class.EnrollmentConfirmed,
		EnrollmentDate: now.Format(core.DateLayout),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
	return enr
}

// UnknownID is a well-formed ID no fixture uses.
const UnknownID = "00000000-0000-4000-8000-000000000000"

// TickingClock makes core.NowFunc advance by 1ms on each call, starting at
// 2024-10-01 08:00 UTC. The original clock is restored on cleanup.
func TickingClock(t *testing.T) {
	orig := core.NowFunc
	var mu sync.Mutex
	now := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	core.NowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
	t.Cleanup(func() { core.NowFunc = orig })
}
