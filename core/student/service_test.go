package student_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/testutil"
)

func TestFormatMatricule(t *testing.T) {
	assert.Equal(t, "EP240001", student.FormatMatricule("EP", 2024, 1))
	assert.Equal(t, "WI251234", student.FormatMatricule("WI", 2025, 1234))
	assert.Equal(t, "EP2412345", student.FormatMatricule("EP", 2024, 12345))

	assert.Equal(t, "WI", student.MatriculePrefix(" wima "))
	assert.Equal(t, "XX", student.MatriculePrefix("e"))
}

func TestNormalize(t *testing.T) {
	dobs := []struct{ in, want string }{
		{"15/03/2012", "2012-03-15"},
		{"3/15/2012", "2012-03-15"},
		{"05/06/2012", "2012-05-06"},
		{" 2012-03-15 ", "2012-03-15"},
		{"mars 2012", "mars 2012"},
	}
	for _, tt := range dobs {
		assert.Equal(t, tt.want, student.NormalizeDOB(tt.in), tt.in)
	}

	genders := []struct{ in, want string }{
		{"m", student.GenderMale},
		{"Homme", student.GenderMale},
		{" féminin ", student.GenderFemale},
		{"F", student.GenderFemale},
		{"x", ""},
	}
	for _, tt := range genders {
		assert.Equal(t, tt.want, student.NormalizeGender(tt.in), tt.in)
	}

	assert.Equal(t, "EPL001", student.NormalizeMatricule(" epl 001 "))
}

func TestParseTable(t *testing.T) {
	tbl := &bulk.Table{
		Header: []string{"Prénom", "Nom", "Date de naissance", "Sexe"},
		Rows: [][]string{
			{"Awe", "Nzita", "15/03/2012", "F"},
			{"Bela", "", "01/02/2011", "M"},
		},
	}
	rows, errs, err := student.ParseTable(tbl)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Row)
	assert.Equal(t, "2012-03-15", rows[0].DOB)
	assert.Equal(t, student.GenderFemale, rows[0].Gender)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Row)
	assert.Equal(t, "lastName", errs[0].Field)

	_, _, err = student.ParseTable(&bulk.Table{Header: []string{"Prénom", "Sexe"}, Rows: [][]string{{"Awe", "F"}}})
	assert.True(t, core.IsCode(err, core.CodeValidation), "got %v", err)
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	schoolID := sch.School.ID

	ns := student.NewStudent{FirstName: " Awe ", LastName: "Nzita", DOB: "2012-03-15", Gender: student.GenderFemale}
	require.NoError(t, ns.Validate(env.Validate))
	stu, err := env.StudentSvc.Create(ctx, schoolID, ns)
	require.NoError(t, err)
	assert.Equal(t, "Awe", stu.FirstName)
	assert.Equal(t, "EP240001", stu.Matricule)
	assert.Equal(t, student.StatusActive, stu.Status)
	assert.NotEmpty(t, stu.AdmissionDate)

	stu2, err := env.StudentSvc.Create(ctx, schoolID, ns)
	require.NoError(t, err)
	assert.Equal(t, "EP240002", stu2.Matricule)

	withMat := ns
	withMat.Matricule = " ep240001 "
	require.NoError(t, withMat.Validate(env.Validate))
	_, err = env.StudentSvc.Create(ctx, schoolID, withMat)
	assert.ErrorIs(t, err, student.ErrMatriculeExists)

	bad := student.NewStudent{FirstName: "Awe", LastName: "Nzita", DOB: "15/03/2012"}
	assert.Error(t, bad.Validate(env.Validate))

	t.Run("no active year", func(t *testing.T) {
		sch2, err := env.SchoolSvc.Create(ctx, school.NewSchool{Name: "Lycée Wima", Code: "WIMA"})
		require.NoError(t, err)
		_, err = env.StudentSvc.Create(ctx, sch2.ID, ns)
		assert.ErrorIs(t, err, school.ErrNoActiveSchoolYear)
	})

	t.Run("update and delete", func(t *testing.T) {
		status, last := student.StatusTransferred, " Nzita Mbuyi "
		us := student.UpdateStudent{Status: &status, LastName: &last}
		require.NoError(t, us.Validate(env.Validate))
		upd, err := env.StudentSvc.Update(ctx, schoolID, stu.ID, us)
		require.NoError(t, err)
		assert.Equal(t, "Nzita Mbuyi", upd.LastName)
		assert.Equal(t, student.StatusTransferred, upd.Status)
		assert.Equal(t, "Nzita Mbuyi Awe", upd.FullName())

		found, err := env.StudentSvc.Query(ctx, &student.QueryFilter{SchoolID: schoolID, Status: "Transferred"}, nil)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, stu.ID, found[0].ID)

		require.NoError(t, env.StudentSvc.Delete(ctx, schoolID, stu2.ID))
		_, err = env.StudentSvc.Get(ctx, schoolID, stu2.ID)
		assert.ErrorIs(t, err, student.ErrNotFound)
	})
}

func importRows() []student.ImportRow {
	return []student.ImportRow{
		{Row: 2, NewStudent: student.NewStudent{FirstName: "Awe", LastName: "Nzita", DOB: "2012-03-15"}},
		{Row: 3, NewStudent: student.NewStudent{FirstName: "Bela", LastName: "Mukendi", DOB: "2011-01-02", Matricule: "epl-001"}},
		{Row: 4, NewStudent: student.NewStudent{FirstName: "Chance", LastName: "Kasongo", DOB: "2011-13-45"}},
		{Row: 5, NewStudent: student.NewStudent{FirstName: "Dora", LastName: "Lumbu", DOB: "2012-06-01", Matricule: "EPL-009"}},
		{Row: 6, NewStudent: student.NewStudent{FirstName: "Eli", LastName: "Tshala", DOB: "2012-07-01", Matricule: "EPL-009"}},
		{Row: 7, NewStudent: student.NewStudent{FirstName: "", LastName: "Sans Prénom", DOB: "2012-07-01"}},
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	schoolID := sch.School.ID
	testutil.CreateStudent(t, env.StudentRepo, schoolID, "Anciens", "Eleve", "EPL-001")

	t.Run("validate", func(t *testing.T) {
		iv, err := env.StudentSvc.ValidateImport(ctx, schoolID, importRows())
		require.NoError(t, err)
		assert.False(t, iv.IsValid)
		assert.Equal(t, 6, iv.TotalRows)
		assert.Equal(t, 2, iv.ValidRows)
		assert.Equal(t, 4, iv.InvalidRows)
		require.Len(t, iv.Preview, 2)
		assert.Equal(t, "Awe", iv.Preview[0].FirstName)
		assert.Equal(t, "EPL-009", iv.Preview[1].Matricule)

		byRow := make(map[int]bulk.RowError)
		for _, e := range iv.Errors {
			byRow[e.Row] = e
		}
		assert.Equal(t, student.ErrMatriculeExists.Key, byRow[3].Key())
		assert.Equal(t, "dob", byRow[4].Field)
		assert.Equal(t, student.ErrMatriculeExists.Key, byRow[6].Key())
		assert.Equal(t, "errors.import.missingRequired", byRow[7].Key())

		students, err := env.StudentSvc.Query(ctx, &student.QueryFilter{SchoolID: schoolID}, nil)
		require.NoError(t, err)
		assert.Len(t, students, 1)
	})

	t.Run("import", func(t *testing.T) {
		res, err := env.StudentSvc.BulkImport(ctx, schoolID, importRows())
		require.NoError(t, err)
		assert.Equal(t, 6, res.Total)
		assert.Equal(t, 2, res.Succeeded)
		assert.Equal(t, 3, res.Failed)
		assert.Equal(t, 1, res.Skipped)

		students, err := env.StudentSvc.Query(ctx, &student.QueryFilter{SchoolID: schoolID, Search: "awe"}, nil)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "EP240001", students[0].Matricule)
	})

	t.Run("file", func(t *testing.T) {
		data := "prénom,nom,date de naissance,sexe\nFelix,Ilunga,2/1/2013,m\nGrace,,2013-05-05,f\n"
		out, err := env.StudentSvc.ImportFile(ctx, schoolID, "eleves.csv", strings.NewReader(data), true)
		require.NoError(t, err)
		iv, ok := out.(student.ImportValidation)
		require.True(t, ok, "got %T", out)
		assert.Equal(t, 2, iv.TotalRows)
		assert.Equal(t, 1, iv.ValidRows)
		assert.Equal(t, 1, iv.InvalidRows)
		assert.Equal(t, "2013-02-01", iv.Preview[0].DOB)
		assert.Equal(t, 3, iv.Errors[0].Row)

		out, err = env.StudentSvc.ImportFile(ctx, schoolID, "eleves.csv", strings.NewReader(data), false)
		require.NoError(t, err)
		res, ok := out.(student.ImportResult)
		require.True(t, ok, "got %T", out)
		assert.Equal(t, 2, res.Total)
		assert.Equal(t, 1, res.Succeeded)
		assert.Equal(t, 1, res.Failed)

		_, err = env.StudentSvc.ImportFile(ctx, schoolID, "eleves.pdf", strings.NewReader(data), false)
		assert.ErrorIs(t, err, bulk.ErrUnsupportedFormat)
	})

	t.Run("export", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, env.StudentSvc.Export(ctx, &buf, &student.QueryFilter{SchoolID: schoolID}))

		wb, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer wb.Close()
		rows, err := wb.GetRows("Students")
		require.NoError(t, err)
		require.Len(t, rows, 5)
		assert.Equal(t, "Matricule", rows[0][0])
		assert.Equal(t, []string{"EP240001", "Nzita", "Awe", "2012-03-15"}, rows[4][:4])
	})
}
