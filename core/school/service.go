package school

import (
	"context"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
)

var (
	// errors
	ErrNotFound           = core.NotFound("errors.school.notFound")
	ErrAlreadyExists      = core.Conflict("errors.school.alreadyExists")
	ErrYearNotFound       = core.NotFound("errors.school.yearNotFound")
	ErrTermNotFound       = core.NotFound("errors.school.termNotFound")
	ErrSubjectNotFound    = core.NotFound("errors.school.subjectNotFound")
	ErrSubjectExists      = core.Conflict("errors.school.subjectExists")
	ErrNoActiveSchoolYear = core.NotFound("errors.school.noActiveSchoolYear")
	ErrInvalidDates       = core.NewAppError(core.CodeValidation, "errors.school.invalidDates")
)

// ImportColumns are the header aliases accepted by ImportCSV.
var ImportColumns = bulk.Columns{
	"name":    {"name", "nom", "schoolname"},
	"code":    {"code", "schoolcode"},
	"address": {"address", "adresse"},
	"phone":   {"phone", "telephone", "téléphone", "tel"},
	"email":   {"email", "mail", "courriel"},
}

type (
	Repository interface {
		// ExistingSchoolCodes returns the subset of codes already taken.
		ExistingSchoolCodes(ctx context.Context, codes []string) ([]string, error)
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchool(ctx context.Context, id string) (School, error)
		QuerySchools(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		UpdateSchool(ctx context.Context, sch School) (School, error)
		DeleteSchool(ctx context.Context, id string) error

		CreateSchoolYear(ctx context.Context, year SchoolYear) (SchoolYear, error)
		QuerySchoolYears(ctx context.Context, schoolID string) ([]SchoolYear, error)
		GetSchoolYear(ctx context.Context, schoolID, id string) (SchoolYear, error)
		GetActiveSchoolYear(ctx context.Context, schoolID string) (SchoolYear, error)
		// SetActiveSchoolYear deactivates every other year of the school.
		SetActiveSchoolYear(ctx context.Context, schoolID, id string) error

		CreateTerm(ctx context.Context, term Term) (Term, error)
		QueryTerms(ctx context.Context, schoolYearID string) ([]Term, error)
		GetTerm(ctx context.Context, id string) (Term, error)

		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		QuerySubjects(ctx context.Context, schoolID string) ([]Subject, error)
		GetSubject(ctx context.Context, schoolID, id string) (Subject, error)
		SubjectCodeExists(ctx context.Context, schoolID, code string) (bool, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewSchool) (School, error)
		BulkCreate(ctx context.Context, rows []NewSchool, skipDuplicates bool) (BulkResult, error)
		// ImportCSV parses a CSV of schools and feeds it to BulkCreate.
		ImportCSV(ctx context.Context, r io.Reader, skipDuplicates bool) (BulkResult, error)
		Get(ctx context.Context, id string) (School, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error)
		Update(ctx context.Context, id string, us UpdateSchool) (School, error)
		Delete(ctx context.Context, id string) error

		CreateYear(ctx context.Context, schoolID string, ny NewSchoolYear) (SchoolYear, error)
		Years(ctx context.Context, schoolID string) ([]SchoolYear, error)
		GetYear(ctx context.Context, schoolID, id string) (SchoolYear, error)
		ActiveYear(ctx context.Context, schoolID string) (SchoolYear, error)
		SetActiveYear(ctx context.Context, schoolID, id string) (SchoolYear, error)

		CreateTerm(ctx context.Context, schoolID string, nt NewTerm) (Term, error)
		Terms(ctx context.Context, schoolID, schoolYearID string) ([]Term, error)
		GetTerm(ctx context.Context, schoolID, id string) (Term, error)

		CreateSubject(ctx context.Context, schoolID string, ns NewSubject) (Subject, error)
		Subjects(ctx context.Context, schoolID string) ([]Subject, error)
		GetSubject(ctx context.Context, schoolID, id string) (Subject, error)
	}

	service struct {
		tx       core.Transactor
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.Transactor, repo Repository, validate *validator.Validate) Service {
	return &service{tx: tx, repo: repo, validate: validate}
}

// NormalizeCode upper-cases a school or subject code.
func NormalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

func (svc *service) Create(ctx context.Context, ns NewSchool) (School, error) {
	ns.Clean()
	taken, err := svc.repo.ExistingSchoolCodes(ctx, []string{ns.Code})
	if err != nil {
		return School{}, err
	}
	if len(taken) > 0 {
		return School{}, ErrAlreadyExists.With(map[string]interface{}{"code": ns.Code})
	}
	return svc.repo.CreateSchool(ctx, newSchool(ns))
}

func newSchool(ns NewSchool) School {
	now := core.NowFunc().UTC()
	return School{
		Name:      ns.Name,
		Code:      ns.Code,
		Address:   ns.Address,
		Phone:     ns.Phone,
		Email:     ns.Email,
		LogoURL:   ns.LogoURL,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (svc *service) BulkCreate(ctx context.Context, rows []NewSchool, skipDuplicates bool) (BulkResult, error) {
	res := newBulkResult(len(rows))

	codes := make([]string, 0, len(rows))
	for i := range rows {
		rows[i].Clean()
		if rows[i].Code != "" {
			codes = append(codes, rows[i].Code)
		}
	}
	taken := make(map[string]bool, len(codes))
	if len(codes) > 0 {
		existing, err := svc.repo.ExistingSchoolCodes(ctx, codes)
		if err != nil {
			return BulkResult{}, err
		}
		for _, code := range existing {
			taken[code] = true
		}
	}

	valid := make([]NewSchool, 0, len(rows))
	for i, ns := range rows {
		if err := svc.validate.Struct(ns); err != nil {
			res.fail(i, ns.Code, bulk.FromError(i, err)...)
			continue
		}
		if taken[ns.Code] {
			res.fail(i, ns.Code, bulk.NewRowError(i, "code", ns.Code, ErrAlreadyExists.Key, map[string]interface{}{"code": ns.Code}))
			continue
		}
		taken[ns.Code] = true
		valid = append(valid, ns)
	}

	if len(valid) > 0 {
		err := svc.tx.InTx(ctx, func(ctx context.Context) error {
			for _, ns := range valid {
				sch, err := svc.repo.CreateSchool(ctx, newSchool(ns))
				if err != nil {
					return errors.Wrapf(err, "creating school %s", ns.Code)
				}
				res.Created = append(res.Created, sch)
			}
			return nil
		})
		if err != nil {
			return BulkResult{}, err
		}
		res.Succeeded = len(res.Created)
	}

	res.Success = len(res.Errors) == 0 || skipDuplicates
	return res, nil
}

func (svc *service) ImportCSV(ctx context.Context, r io.Reader, skipDuplicates bool) (BulkResult, error) {
	tbl, err := bulk.ReadCSV(r)
	if err != nil {
		return BulkResult{}, err
	}
	recs, missing := tbl.Records(ImportColumns, "name", "code")
	if len(missing) > 0 {
		return BulkResult{}, core.NewAppError(core.CodeValidation, "errors.import.missingColumns",
			map[string]interface{}{"columns": strings.Join(missing, ", ")})
	}

	rows := make([]NewSchool, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, NewSchool{
			Name:    rec.Get("name"),
			Code:    rec.Get("code"),
			Address: rec.Get("address"),
			Phone:   rec.Get("phone"),
			Email:   rec.Get("email"),
		})
	}
	res, err := svc.BulkCreate(ctx, rows, skipDuplicates)
	if err != nil {
		return BulkResult{}, err
	}
	for i := range res.Errors {
		res.Errors[i].Row = recs[res.Errors[i].Index].Row
	}
	return res, nil
}

func (svc *service) Get(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]School, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QuerySchools(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateSchool) (School, error) {
	sch, err := svc.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, err
	}
	if us.Name != nil {
		sch.Name = core.CleanString(*us.Name)
	}
	if us.Address != nil {
		sch.Address = core.CleanString(*us.Address)
	}
	if us.Phone != nil {
		sch.Phone = core.CleanString(*us.Phone)
	}
	if us.Email != nil {
		sch.Email = core.CleanString(*us.Email, true /* lower */)
	}
	if us.LogoURL != nil {
		sch.LogoURL = core.CleanString(*us.LogoURL)
	}
	if us.Status != nil {
		sch.Status = *us.Status
	}
	sch.UpdatedAt = core.NowFunc().UTC()
	return svc.repo.UpdateSchool(ctx, sch)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteSchool(ctx, id)
}

func (svc *service) CreateYear(ctx context.Context, schoolID string, ny NewSchoolYear) (SchoolYear, error) {
	if _, err := svc.repo.GetSchool(ctx, schoolID); err != nil {
		return SchoolYear{}, err
	}
	var year SchoolYear
	err := svc.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		year, err = svc.repo.CreateSchoolYear(ctx, SchoolYear{
			SchoolID:  schoolID,
			Name:      ny.Name,
			StartDate: ny.StartDate,
			EndDate:   ny.EndDate,
			CreatedAt: core.NowFunc().UTC(),
		})
		if err != nil {
			return err
		}
		if ny.IsActive {
			if err = svc.repo.SetActiveSchoolYear(ctx, schoolID, year.ID); err != nil {
				return err
			}
			year.IsActive = true
		}
		return nil
	})
	return year, err
}

func (svc *service) Years(ctx context.Context, schoolID string) ([]SchoolYear, error) {
	return svc.repo.QuerySchoolYears(ctx, schoolID)
}

func (svc *service) GetYear(ctx context.Context, schoolID, id string) (SchoolYear, error) {
	return svc.repo.GetSchoolYear(ctx, schoolID, id)
}

func (svc *service) ActiveYear(ctx context.Context, schoolID string) (SchoolYear, error) {
	return svc.repo.GetActiveSchoolYear(ctx, schoolID)
}

func (svc *service) SetActiveYear(ctx context.Context, schoolID, id string) (SchoolYear, error) {
	year, err := svc.repo.GetSchoolYear(ctx, schoolID, id)
	if err != nil {
		return SchoolYear{}, err
	}
	if err = svc.tx.InTx(ctx, func(ctx context.Context) error {
		return svc.repo.SetActiveSchoolYear(ctx, schoolID, id)
	}); err != nil {
		return SchoolYear{}, err
	}
	year.IsActive = true
	return year, nil
}

func (svc *service) CreateTerm(ctx context.Context, schoolID string, nt NewTerm) (Term, error) {
	if _, err := svc.repo.GetSchoolYear(ctx, schoolID, nt.SchoolYearID); err != nil {
		return Term{}, err
	}
	return svc.repo.CreateTerm(ctx, Term{
		SchoolYearID: nt.SchoolYearID,
		Name:         nt.Name,
		Order:        nt.Order,
		StartDate:    nt.StartDate,
		EndDate:      nt.EndDate,
		CreatedAt:    core.NowFunc().UTC(),
	})
}

func (svc *service) Terms(ctx context.Context, schoolID, schoolYearID string) ([]Term, error) {
	if _, err := svc.repo.GetSchoolYear(ctx, schoolID, schoolYearID); err != nil {
		return nil, err
	}
	return svc.repo.QueryTerms(ctx, schoolYearID)
}

// GetTerm returns the term if its school year belongs to the school.
func (svc *service) GetTerm(ctx context.Context, schoolID, id string) (Term, error) {
	term, err := svc.repo.GetTerm(ctx, id)
	if err != nil {
		return Term{}, err
	}
	if _, err = svc.repo.GetSchoolYear(ctx, schoolID, term.SchoolYearID); err != nil {
		if errors.Is(err, ErrYearNotFound) {
			return Term{}, ErrTermNotFound
		}
		return Term{}, err
	}
	return term, nil
}

func (svc *service) CreateSubject(ctx context.Context, schoolID string, ns NewSubject) (Subject, error) {
	ns.Code = NormalizeCode(ns.Code)
	exists, err := svc.repo.SubjectCodeExists(ctx, schoolID, ns.Code)
	if err != nil {
		return Subject{}, err
	}
	if exists {
		return Subject{}, ErrSubjectExists.With(map[string]interface{}{"code": ns.Code})
	}
	return svc.repo.CreateSubject(ctx, Subject{
		SchoolID:  schoolID,
		Name:      core.CleanString(ns.Name),
		Code:      ns.Code,
		CreatedAt: core.NowFunc().UTC(),
	})
}

func (svc *service) Subjects(ctx context.Context, schoolID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, schoolID)
}

func (svc *service) GetSubject(ctx context.Context, schoolID, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, schoolID, id)
}
