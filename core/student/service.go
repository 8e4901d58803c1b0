package student

import (
	"context"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
	"github.com/ecolehub/backend/core/school"
)

var (
	// errors
	ErrNotFound        = core.NotFound("errors.students.notFound")
	ErrMatriculeExists = core.Conflict("errors.students.matriculeExists")
)

var exportHeader = []string{"Matricule", "Last name", "First name", "Date of birth", "Gender", "Status", "Birth place", "Nationality", "Emergency phone"}

type (
	Repository interface {
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		GetStudent(ctx context.Context, schoolID, id string) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on names and matricule.
		// QueryFilter.ClassID keeps students with an active enrollment in the class.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, stu Student) (Student, error)
		DeleteStudent(ctx context.Context, schoolID, id string) error
		// ExistingMatricules returns the subset of matricules already used in the school.
		ExistingMatricules(ctx context.Context, schoolID string, matricules []string) ([]string, error)
		// ReserveMatricules bumps the school year sequence by count and returns its new last number.
		ReserveMatricules(ctx context.Context, schoolID, schoolYearID string, count int) (int, error)
	}

	// SchoolGetter is the part of school.Service students need.
	SchoolGetter interface {
		Get(ctx context.Context, id string) (school.School, error)
		ActiveYear(ctx context.Context, schoolID string) (school.SchoolYear, error)
	}

	Service interface {
		Create(ctx context.Context, schoolID string, ns NewStudent) (Student, error)
		Get(ctx context.Context, schoolID, id string) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		Update(ctx context.Context, schoolID, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, schoolID, id string) error

		BulkImport(ctx context.Context, schoolID string, rows []ImportRow) (ImportResult, error)
		ValidateImport(ctx context.Context, schoolID string, rows []ImportRow) (ImportValidation, error)
		// ImportFile parses a CSV or XLSX file, then validates (dryRun) or imports its rows.
		ImportFile(ctx context.Context, schoolID, name string, r io.Reader, dryRun bool) (interface{}, error)
		Export(ctx context.Context, w io.Writer, filter *QueryFilter) error
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		schools  SchoolGetter
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, schools SchoolGetter, validate *validator.Validate) Service {
	return &service{tx: tx, repo: repo, schools: schools, validate: validate}
}

// FormatMatricule renders the n-th matricule of a school year: prefix, two-digit year, 4-digit sequence.
func FormatMatricule(prefix string, year, n int) string {
	return fmt.Sprintf("%s%02d%04d", prefix, year%100, n)
}

// MatriculePrefix is the first two letters of the school code, XX when too short.
func MatriculePrefix(schoolCode string) string {
	code := school.NormalizeCode(schoolCode)
	if len(code) < 2 {
		return "XX"
	}
	return code[:2]
}

// reserveMatricules returns count fresh matricules for the active school year.
func (svc *service) reserveMatricules(ctx context.Context, schoolID string, count int) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	sch, err := svc.schools.Get(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	year, err := svc.schools.ActiveYear(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	start, err := core.ParseDate(year.StartDate)
	if err != nil {
		return nil, errors.Wrap(err, "parsing school year start date")
	}

	last, err := svc.repo.ReserveMatricules(ctx, schoolID, year.ID, count)
	if err != nil {
		return nil, err
	}
	prefix := MatriculePrefix(sch.Code)
	first := last - count + 1
	matricules := make([]string, 0, count)
	for n := first; n <= last; n++ {
		matricules = append(matricules, FormatMatricule(prefix, start.Year(), n))
	}
	return matricules, nil
}

func newStudent(schoolID string, ns NewStudent) Student {
	now := core.NowFunc().UTC()
	admission := ns.AdmissionDate
	if admission == "" {
		admission = core.Today()
	}
	return Student{
		SchoolID:         schoolID,
		FirstName:        ns.FirstName,
		LastName:         ns.LastName,
		DOB:              ns.DOB,
		Gender:           ns.Gender,
		Matricule:        ns.Matricule,
		Status:           StatusActive,
		BirthPlace:       ns.BirthPlace,
		Nationality:      ns.Nationality,
		Address:          ns.Address,
		EmergencyContact: ns.EmergencyContact,
		EmergencyPhone:   ns.EmergencyPhone,
		PreviousSchool:   ns.PreviousSchool,
		AdmissionDate:    admission,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (svc *service) Create(ctx context.Context, schoolID string, ns NewStudent) (Student, error) {
	var stu Student
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		if ns.Matricule != "" {
			taken, err := svc.repo.ExistingMatricules(ctx, schoolID, []string{ns.Matricule})
			if err != nil {
				return err
			}
			if len(taken) > 0 {
				return ErrMatriculeExists.With(map[string]interface{}{"matricule": ns.Matricule})
			}
		} else {
			matricules, err := svc.reserveMatricules(ctx, schoolID, 1)
			if err != nil {
				return err
			}
			ns.Matricule = matricules[0]
		}
		var err error
		stu, err = svc.repo.CreateStudent(ctx, newStudent(schoolID, ns))
		return err
	})
	return stu, err
}

func (svc *service) Get(ctx context.Context, schoolID, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, schoolID, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, schoolID, id string, us UpdateStudent) (Student, error) {
	stu, err := svc.repo.GetStudent(ctx, schoolID, id)
	if err != nil {
		return Student{}, err
	}
	setString(&stu.FirstName, us.FirstName)
	setString(&stu.LastName, us.LastName)
	setString(&stu.DOB, us.DOB)
	setString(&stu.Gender, us.Gender)
	setString(&stu.Status, us.Status)
	setString(&stu.BirthPlace, us.BirthPlace)
	setString(&stu.Nationality, us.Nationality)
	setString(&stu.Address, us.Address)
	setString(&stu.EmergencyContact, us.EmergencyContact)
	setString(&stu.EmergencyPhone, us.EmergencyPhone)
	setString(&stu.PreviousSchool, us.PreviousSchool)
	stu.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, stu)
}

func setString(dst *string, val *string) {
	if val != nil {
		*dst = core.CleanString(*val)
	}
}

func (svc *service) Delete(ctx context.Context, schoolID, id string) error {
	return svc.repo.DeleteStudent(ctx, schoolID, id)
}

type checkedRow struct {
	row int
	ns  NewStudent
}

// check validates rows and flags matricules already used or repeated in the batch.
// Rows without a first and last name are returned as skipped.
func (svc *service) check(ctx context.Context, schoolID string, rows []ImportRow) (valid []checkedRow, errs [][]bulk.RowError, skipped []int, err error) {
	matricules := make([]string, 0, len(rows))
	for i := range rows {
		rows[i].Clean()
		if rows[i].Row == 0 {
			rows[i].Row = i + 1
		}
		if rows[i].Matricule != "" {
			matricules = append(matricules, rows[i].Matricule)
		}
	}
	taken := make(map[string]bool, len(matricules))
	if len(matricules) > 0 {
		existing, err := svc.repo.ExistingMatricules(ctx, schoolID, matricules)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, m := range existing {
			taken[m] = true
		}
	}

	for _, r := range rows {
		if r.FirstName == "" || r.LastName == "" {
			skipped = append(skipped, r.Row)
			continue
		}
		if err := svc.validate.Struct(r.NewStudent); err != nil {
			errs = append(errs, bulk.FromError(r.Row, err))
			continue
		}
		if r.Matricule != "" {
			if taken[r.Matricule] {
				errs = append(errs, []bulk.RowError{bulk.NewRowError(r.Row, "matricule", r.Matricule,
					ErrMatriculeExists.Key, map[string]interface{}{"matricule": r.Matricule})})
				continue
			}
			taken[r.Matricule] = true
		}
		valid = append(valid, checkedRow{row: r.Row, ns: r.NewStudent})
	}
	return valid, errs, skipped, nil
}

func (svc *service) BulkImport(ctx context.Context, schoolID string, rows []ImportRow) (ImportResult, error) {
	res := ImportResult{Result: bulk.NewResult(len(rows))}

	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		valid, errs, skipped, err := svc.check(ctx, schoolID, rows)
		if err != nil {
			return err
		}
		res.Skipped = len(skipped)
		for _, rowErrs := range errs {
			res.Fail(rowErrs...)
		}

		need := 0
		for _, v := range valid {
			if v.ns.Matricule == "" {
				need++
			}
		}
		reserved, err := svc.reserveMatricules(ctx, schoolID, need)
		if err != nil {
			return err
		}
		for _, v := range valid {
			if v.ns.Matricule == "" {
				v.ns.Matricule, reserved = reserved[0], reserved[1:]
			}
			if _, err = svc.repo.CreateStudent(ctx, newStudent(schoolID, v.ns)); err != nil {
				return errors.Wrapf(err, "creating student of row %d", v.row)
			}
			res.Succeed()
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func (svc *service) ValidateImport(ctx context.Context, schoolID string, rows []ImportRow) (ImportValidation, error) {
	iv := ImportValidation{IsValid: true, TotalRows: len(rows), Errors: []bulk.RowError{}, Preview: []NewStudent{}}
	valid, errs, skipped, err := svc.check(ctx, schoolID, rows)
	if err != nil {
		return ImportValidation{}, err
	}
	for _, rowErrs := range errs {
		iv.invalid(rowErrs...)
	}
	for _, row := range skipped {
		iv.invalid(bulk.NewRowError(row, "firstName", "", "errors.import.missingRequired",
			map[string]interface{}{"field": "firstName"}))
	}
	iv.ValidRows = len(valid)
	for _, v := range valid {
		if len(iv.Preview) == PreviewSize {
			break
		}
		iv.Preview = append(iv.Preview, v.ns)
	}
	return iv, nil
}

func (svc *service) ImportFile(ctx context.Context, schoolID, name string, r io.Reader, dryRun bool) (interface{}, error) {
	rows, parseErrs, err := ParseFile(name, r)
	if err != nil {
		return nil, err
	}
	failed := failedRows(parseErrs)

	if dryRun {
		iv, err := svc.ValidateImport(ctx, schoolID, rows)
		if err != nil {
			return nil, err
		}
		iv.TotalRows += failed
		iv.InvalidRows += failed
		if failed > 0 {
			iv.IsValid = false
			iv.Errors = append(parseErrs, iv.Errors...)
		}
		return iv, nil
	}

	res, err := svc.BulkImport(ctx, schoolID, rows)
	if err != nil {
		return nil, err
	}
	res.Total += failed
	res.Failed += failed
	res.Errors = append(parseErrs, res.Errors...)
	return res, nil
}

// failedRows counts the distinct rows of errs.
func failedRows(errs []bulk.RowError) int {
	seen := make(map[int]bool, len(errs))
	for _, e := range errs {
		seen[e.Row] = true
	}
	return len(seen)
}

func (svc *service) Export(ctx context.Context, w io.Writer, filter *QueryFilter) error {
	students, err := svc.Query(ctx, filter, []core.DBOrdering{{Field: "last_name", Ascending: true}, {Field: "first_name", Ascending: true}})
	if err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(students))
	for _, s := range students {
		rows = append(rows, []interface{}{
			s.Matricule, s.LastName, s.FirstName, s.DOB, s.Gender, s.Status, s.BirthPlace, s.Nationality, s.EmergencyPhone,
		})
	}
	return bulk.WriteXLSX(w, "Students", exportHeader, rows)
}
