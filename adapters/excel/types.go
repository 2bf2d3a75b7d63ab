package excel

import "attrition/domain/employee"

// ExcelData represents the complete tabular dataset
type ExcelData struct {
	Headers []string          // Column headers, in file order
	Rows    []employee.Record // Data rows keyed by header
}
