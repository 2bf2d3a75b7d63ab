package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"attrition/domain/core"
	"attrition/domain/employee"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// File types
const (
	TypeCSV  = "csv"
	TypeXLSX = "xlsx"
)

// MaxUploadBytes bounds the size of a single uploaded file
const MaxUploadBytes = 32 << 20

// FileType maps a file name to a supported type
func FileType(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return TypeCSV, nil
	case ".xlsx", ".xlsm":
		return TypeXLSX, nil
	}
	return "", fmt.Errorf("unsupported file type %q: expected .csv or .xlsx", filepath.Ext(name))
}

// DataReader handles reading Excel and CSV files
type DataReader struct {
	logger zerolog.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(logger zerolog.Logger) *DataReader {
	return &DataReader{logger: logger.With().Str("component", "data_reader").Logger()}
}

// ReadFile reads a dataset from disk
func (r *DataReader) ReadFile(path string) (*ExcelData, error) {
	fileType, err := FileType(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s file not found: %w", strings.ToUpper(fileType), err)
	}
	defer f.Close()
	return r.Read(f, fileType)
}

// Read reads a dataset of the given type
func (r *DataReader) Read(src io.Reader, fileType string) (*ExcelData, error) {
	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch fileType {
	case TypeCSV:
		rows, err = r.readCSVRows(src)
	case TypeXLSX:
		rows, err = r.readExcelRows(src)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	if err != nil {
		return nil, err
	}

	data, err := processRows(rows)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().
		Str("type", fileType).
		Int("columns", len(data.Headers)).
		Int("rows", len(data.Rows)).
		Dur("elapsed", time.Since(start)).
		Msg("dataset read")
	return data, nil
}

// readExcelRows reads the first worksheet
func (r *DataReader) readExcelRows(src io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no worksheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// readCSVRows decodes the text encoding and reads all records.
// UTF-8 and UTF-16 are recognised by BOM; other non-UTF-8 input is read as Windows-1252.
func (r *DataReader) readCSVRows(src io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(io.LimitReader(src, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return nil, fmt.Errorf("CSV file exceeds %d bytes", MaxUploadBytes)
	}

	text, err := decodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(text)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func decodeText(raw []byte) ([]byte, error) {
	utf16BOM := bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF})
	if utf16BOM || utf8.Valid(raw) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		return out, err
	}
	return charmap.Windows1252.NewDecoder().Bytes(raw)
}

// sniffDelimiter picks ';' or tab when the header line uses it instead of ','
func sniffDelimiter(text []byte) rune {
	line := text
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// processRows converts raw string rows into ExcelData format.
// Headers are NFC-normalised; blank headers become column_N and repeated
// headers get a numeric suffix. Fully blank rows are skipped.
func processRows(rows [][]string) (*ExcelData, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	seen := make(map[string]int, len(headerRow))
	for i, header := range headerRow {
		h := strings.TrimSpace(norm.NFC.String(header))
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = h + "_" + strconv.Itoa(n+1)
		}
		seen[h]++
		headers[i] = h
	}

	var dataRows []employee.Record
	for _, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rec := make(employee.Record, len(headers))
		for j, h := range headers {
			if j < len(row) {
				rec[h] = strings.TrimSpace(row[j])
			} else {
				rec[h] = ""
			}
		}
		dataRows = append(dataRows, rec)
	}

	if len(dataRows) == 0 {
		return nil, fmt.Errorf("%w: file must have a header row and at least one data row", core.ErrEmptyDataset)
	}

	return &ExcelData{Headers: headers, Rows: dataRows}, nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
