package student

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/bulk"
)

// PreviewSize is the number of rows returned by ValidateImport.
const PreviewSize = 10

var requiredColumns = []string{"firstName", "lastName", "dob"}

// ImportColumns are the header aliases of an import file, normalized with bulk.NormalizeHeader.
var ImportColumns = bulk.Columns{
	"firstName":        {"firstname", "prenom", "prénom", "prenoms", "prénoms"},
	"lastName":         {"lastname", "nom", "surname", "nomdefamille"},
	"dob":              {"dob", "dateofbirth", "birthdate", "datenaissance", "datedenaissance", "naissance"},
	"gender":           {"gender", "sexe", "sex", "genre"},
	"matricule":        {"matricule", "studentid"},
	"birthPlace":       {"birthplace", "lieudenaissance", "lieunaissance"},
	"nationality":      {"nationality", "nationalite", "nationalité"},
	"address":          {"address", "adresse"},
	"emergencyContact": {"emergencycontact", "contacturgence", "personneacontacter"},
	"emergencyPhone":   {"emergencyphone", "telephoneurgence", "téléphoneurgence"},
	"previousSchool":   {"previousschool", "ecoleprecedente", "écoleprécédente"},
}

// NormalizeDOB turns A/B/C into an ISO date: C-B-A when A > 12 (day first),
// C-A-B otherwise. Other values are returned trimmed.
func NormalizeDOB(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return s
	}
	a, b, c := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if n, err := strconv.Atoi(a); err == nil && n > 12 {
		return fmt.Sprintf("%s-%s-%s", c, pad2(b), pad2(a))
	}
	return fmt.Sprintf("%s-%s-%s", c, pad2(a), pad2(b))
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeGender maps the spellings found in school files to M or F.
// Anything else yields "".
func NormalizeGender(s string) string {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MALE", "MASCULIN", "H", "HOMME":
		return GenderMale
	case "F", "FEMALE", "FEMININ", "FÉMININ", "FEMME":
		return GenderFemale
	}
	return ""
}

// NormalizeMatricule upper-cases a matricule and strips its spaces.
func NormalizeMatricule(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// ParseFile reads a CSV or XLSX import file. Rows missing a required value are
// returned as errors, the others as ImportRows.
func ParseFile(name string, r io.Reader) ([]ImportRow, []bulk.RowError, error) {
	tbl, err := bulk.ReadFile(name, r)
	if err != nil {
		return nil, nil, err
	}
	return ParseTable(tbl)
}

func ParseTable(tbl *bulk.Table) ([]ImportRow, []bulk.RowError, error) {
	recs, missing := tbl.Records(ImportColumns, requiredColumns...)
	if len(missing) > 0 {
		return nil, nil, core.NewAppError(core.CodeValidation, "errors.import.missingColumns",
			map[string]interface{}{"columns": strings.Join(missing, ", ")})
	}

	rows := make([]ImportRow, 0, len(recs))
	var errs []bulk.RowError
	for _, rec := range recs {
		var rowErrs []bulk.RowError
		for _, col := range requiredColumns {
			if rec.Get(col) == "" {
				rowErrs = append(rowErrs, bulk.NewRowError(rec.Row, col, "", "errors.import.missingRequired",
					map[string]interface{}{"field": col}))
			}
		}
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		rows = append(rows, ImportRow{Row: rec.Row, NewStudent: recordToStudent(rec)})
	}
	return rows, errs, nil
}

func recordToStudent(rec bulk.Record) NewStudent {
	return NewStudent{
		FirstName:        rec.Get("firstName"),
		LastName:         rec.Get("lastName"),
		DOB:              NormalizeDOB(rec.Get("dob")),
		Gender:           NormalizeGender(rec.Get("gender")),
		Matricule:        rec.Get("matricule"),
		BirthPlace:       rec.Get("birthPlace"),
		Nationality:      rec.Get("nationality"),
		Address:          rec.Get("address"),
		EmergencyContact: rec.Get("emergencyContact"),
		EmergencyPhone:   rec.Get("emergencyPhone"),
		PreviousSchool:   rec.Get("previousSchool"),
	}
}
