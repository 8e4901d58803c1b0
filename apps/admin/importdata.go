package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/ecolehub/backend/core/bulk"
	"github.com/ecolehub/backend/core/student"
)

func (cli *commandLine) printRowErrors(errs []bulk.RowError) {
	bulk.Localize(errs, cli.cat, cli.uni, cli.locale)
	for _, e := range errs {
		switch {
		case e.Field != "":
			_, _ = fmt.Fprintf(cli.out, "  row %d: %s: %s\n", e.Row, e.Field, e.Error)
		default:
			_, _ = fmt.Fprintf(cli.out, "  row %d: %s\n", e.Row, e.Error)
		}
	}
}

func (cli *commandLine) importSchools(path string, skipDuplicates bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening import file")
	}
	defer func() { _ = f.Close() }()

	res, err := cli.schoolSvc.ImportCSV(context.Background(), f, skipDuplicates)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "schools: %d total, %d created, %d failed\n", res.Total, res.Succeeded, res.Failed)
	for _, sch := range res.Created {
		_, _ = fmt.Fprintf(cli.out, "  %s  %s  %s\n", sch.ID, sch.Code, sch.Name)
	}
	res.Localize(cli.cat, cli.uni, cli.locale)
	for _, e := range res.Errors {
		switch {
		case e.Field != "":
			_, _ = fmt.Fprintf(cli.out, "  row %d (%s): %s: %s\n", e.Row, e.Code, e.Field, e.Error)
		default:
			_, _ = fmt.Fprintf(cli.out, "  row %d (%s): %s\n", e.Row, e.Code, e.Error)
		}
	}
	return nil
}

func (cli *commandLine) importStudents(schoolID, path string, dryRun bool) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening import file")
	}
	defer func() { _ = f.Close() }()

	out, err := cli.studentSvc.ImportFile(context.Background(), schoolID, filepath.Base(path), f, dryRun)
	if err != nil {
		return err
	}
	switch res := out.(type) {
	case student.ImportValidation:
		_, _ = fmt.Fprintf(cli.out, "students: %d rows, %d valid, %d invalid (valid: %t)\n",
			res.TotalRows, res.ValidRows, res.InvalidRows, res.IsValid)
		for _, ns := range res.Preview {
			_, _ = fmt.Fprintf(cli.out, "  %s %s  %s\n", ns.LastName, ns.FirstName, ns.DOB)
		}
		cli.printRowErrors(res.Errors)
	case student.ImportResult:
		_, _ = fmt.Fprintf(cli.out, "students: %d total, %d imported, %d failed, %d skipped\n",
			res.Total, res.Succeeded, res.Failed, res.Skipped)
		cli.printRowErrors(res.Errors)
	}
	return nil
}
