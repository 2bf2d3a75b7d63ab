package excel

import (
	"encoding/csv"
	"fmt"
	"io"

	"attrition/domain/employee"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet written by WriteXLSX
const SheetName = "Scored Employees"

// Header returns the export header: raw columns followed by the derived fields
func Header(columns []string) []string {
	out := make([]string, 0, len(columns)+len(employee.DerivedAttributes))
	out = append(out, columns...)
	return append(out, employee.DerivedAttributes...)
}

// WriteCSV writes records as a flat CSV table
func WriteCSV(w io.Writer, columns []string, records []employee.ScoredRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(columns)); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(r.Row(columns)); err != nil {
			return fmt.Errorf("write CSV row for employee %s: %w", r.EmployeeID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes records to a single-sheet workbook. The probability column is numeric.
func WriteXLSX(w io.Writer, columns []string, records []employee.ScoredRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	header := Header(columns)
	headerCells := make([]interface{}, len(header))
	for i, h := range header {
		headerCells[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerCells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		cells := make([]interface{}, 0, len(header))
		for _, c := range columns {
			cells = append(cells, r.Attributes[c])
		}
		cells = append(cells, r.Probability, r.Label, r.Flag)

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return fmt.Errorf("write row for employee %s: %w", r.EmployeeID(), err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush workbook: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
