package bulk

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// XLSXContentType is the MIME type of the workbooks written by WriteXLSX.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteXLSX writes a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, sheet string, header []string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	cells := make([]interface{}, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return errors.Wrap(err, "writing header")
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating header style")
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err = f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return errors.Wrap(err, "styling header")
	}

	for i, row := range rows {
		row := row
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d", i+2)
		}
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
