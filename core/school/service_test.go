package school_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/testutil"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	sch, err := env.SchoolSvc.Create(ctx, school.NewSchool{Name: " Lycée Wima ", Code: " wima ", Email: "CONTACT@Wima.cd"})
	require.NoError(t, err)
	assert.Equal(t, "Lycée Wima", sch.Name)
	assert.Equal(t, "WIMA", sch.Code)
	assert.Equal(t, "contact@wima.cd", sch.Email)
	assert.Equal(t, school.StatusActive, sch.Status)

	_, err = env.SchoolSvc.Create(ctx, school.NewSchool{Name: "Autre", Code: "Wima"})
	assert.ErrorIs(t, err, school.ErrAlreadyExists)

	name, status := "Lycée Wima de Kinshasa", school.StatusSuspended
	us := school.UpdateSchool{Name: &name, Status: &status}
	require.NoError(t, us.Validate(env.Validate))
	sch, err = env.SchoolSvc.Update(ctx, sch.ID, us)
	require.NoError(t, err)
	assert.Equal(t, name, sch.Name)
	assert.Equal(t, school.StatusSuspended, sch.Status)

	found, err := env.SchoolSvc.Query(ctx, &school.QueryFilter{Search: "kinshasa", Status: " SUSPENDED "}, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, sch.ID, found[0].ID)

	require.NoError(t, env.SchoolSvc.Delete(ctx, sch.ID))
	_, err = env.SchoolSvc.Get(ctx, sch.ID)
	assert.ErrorIs(t, err, school.ErrNotFound)
}

func TestBulkCreate(t *testing.T) {
	ctx := context.Background()

	rows := func() []school.NewSchool {
		return []school.NewSchool{
			{Name: "Collège Boboto", Code: "boboto"},
			{Name: "Institut Gombe", Code: "EPL"},
			{Name: "", Code: "NONAME"},
			{Name: "Collège Boboto bis", Code: "BOBOTO"},
			{Name: "Lycée Mokengeli", Code: "MOK", Email: "not-an-email"},
		}
	}

	tests := []struct {
		name           string
		skipDuplicates bool
		wantSuccess    bool
	}{
		{name: "strict", skipDuplicates: false, wantSuccess: false},
		{name: "skip duplicates", skipDuplicates: true, wantSuccess: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.NewEnv(t)
			testutil.CreateSchool(t, env.SchoolRepo, "EPL")

			res, err := env.SchoolSvc.BulkCreate(ctx, rows(), tt.skipDuplicates)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, res.Success)
			assert.Equal(t, 5, res.Total)
			assert.Equal(t, 1, res.Succeeded)
			assert.Equal(t, 4, res.Failed)
			require.Len(t, res.Created, 1)
			assert.Equal(t, "BOBOTO", res.Created[0].Code)

			byIndex := make(map[int]school.BulkError)
			for _, e := range res.Errors {
				byIndex[e.Index] = e
			}
			assert.Equal(t, school.ErrAlreadyExists.Key, byIndex[1].Key())
			assert.Equal(t, "EPL", byIndex[1].Code)
			assert.Equal(t, "name", byIndex[2].Field)
			assert.Equal(t, "NONAME", byIndex[2].Code)
			assert.Equal(t, school.ErrAlreadyExists.Key, byIndex[3].Key())
			assert.Equal(t, "BOBOTO", byIndex[3].Code)
			assert.Equal(t, "email", byIndex[4].Field)
			assert.Zero(t, byIndex[1].Row)

			res.Localize(env.Catalog, env.Uni, core.LocaleEN)
			assert.NotEqual(t, school.ErrAlreadyExists.Key, res.Errors[0].Error)
		})
	}
}

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)

	_, err := env.SchoolSvc.ImportCSV(ctx, strings.NewReader("Nom;Adresse\nLycée Wima;Kinshasa\n"), false)
	assert.True(t, core.IsCode(err, core.CodeValidation), "got %v", err)

	_, err = env.SchoolSvc.ImportCSV(ctx, strings.NewReader(""), false)
	assert.ErrorIs(t, err, bulk.ErrEmptyFile)

	data := "Nom;Code;Téléphone\nLycée Wima;wima;+243 81 000 0000\n;X;\n"
	res, err := env.SchoolSvc.ImportCSV(ctx, strings.NewReader(data), true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Equal(t, "X", res.Errors[0].Code)
	assert.Equal(t, "+243 81 000 0000", res.Created[0].Phone)
}

func TestYearsAndTerms(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	schoolID := sch.School.ID

	bad := school.NewSchoolYear{Name: "2025-2026", StartDate: "2026-07-01", EndDate: "2025-09-01"}
	assert.ErrorIs(t, bad.Validate(env.Validate), school.ErrInvalidDates)

	ny := school.NewSchoolYear{Name: " 2025-2026 ", StartDate: "2025-09-01", EndDate: "2026-07-02", IsActive: true}
	require.NoError(t, ny.Validate(env.Validate))
	year, err := env.SchoolSvc.CreateYear(ctx, schoolID, ny)
	require.NoError(t, err)
	assert.Equal(t, "2025-2026", year.Name)
	assert.True(t, year.IsActive)

	active, err := env.SchoolSvc.ActiveYear(ctx, schoolID)
	require.NoError(t, err)
	assert.Equal(t, year.ID, active.ID)

	years, err := env.SchoolSvc.Years(ctx, schoolID)
	require.NoError(t, err)
	require.Len(t, years, 2)
	assert.Equal(t, year.ID, years[0].ID)
	assert.False(t, years[1].IsActive)

	_, err = env.SchoolSvc.SetActiveYear(ctx, schoolID, sch.Year.ID)
	require.NoError(t, err)
	active, err = env.SchoolSvc.ActiveYear(ctx, schoolID)
	require.NoError(t, err)
	assert.Equal(t, sch.Year.ID, active.ID)

	other := testutil.CreateSchool(t, env.SchoolRepo, "WIMA")
	_, err = env.SchoolSvc.SetActiveYear(ctx, other.School.ID, year.ID)
	assert.ErrorIs(t, err, school.ErrYearNotFound)

	nt := school.NewTerm{SchoolYearID: year.ID, Name: "Trimestre 1", Order: 1, StartDate: "2025-09-01", EndDate: "2025-12-19"}
	require.NoError(t, nt.Validate(env.Validate))
	term, err := env.SchoolSvc.CreateTerm(ctx, schoolID, nt)
	require.NoError(t, err)

	got, err := env.SchoolSvc.GetTerm(ctx, schoolID, term.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trimestre 1", got.Name)
	_, err = env.SchoolSvc.GetTerm(ctx, other.School.ID, term.ID)
	assert.ErrorIs(t, err, school.ErrTermNotFound)

	_, err = env.SchoolSvc.CreateTerm(ctx, other.School.ID, nt)
	assert.ErrorIs(t, err, school.ErrYearNotFound)

	terms, err := env.SchoolSvc.Terms(ctx, schoolID, year.ID)
	require.NoError(t, err)
	assert.Len(t, terms, 1)
}

func TestSubjects(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")

	sub, err := env.SchoolSvc.CreateSubject(ctx, sch.School.ID, school.NewSubject{Name: " Physique ", Code: "phys"})
	require.NoError(t, err)
	assert.Equal(t, "PHYS", sub.Code)
	assert.Equal(t, "Physique", sub.Name)

	_, err = env.SchoolSvc.CreateSubject(ctx, sch.School.ID, school.NewSubject{Name: "Maths", Code: "math"})
	assert.ErrorIs(t, err, school.ErrSubjectExists)

	other := testutil.CreateSchool(t, env.SchoolRepo, "WIMA")
	_, err = env.SchoolSvc.CreateSubject(ctx, other.School.ID, school.NewSubject{Name: "Physique", Code: "PHYS"})
	require.NoError(t, err)

	subjects, err := env.SchoolSvc.Subjects(ctx, sch.School.ID)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)

	_, err = env.SchoolSvc.GetSubject(ctx, other.School.ID, sub.ID)
	assert.ErrorIs(t, err, school.ErrSubjectNotFound)
}
