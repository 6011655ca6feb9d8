// Package tabular turns uploaded delivery files into ordered headers and raw
// rows. Supported formats: xlsx/xls workbooks, delimited text with "," or
// ";" separators, and HTML tables. Nothing here interprets cell contents;
// values stay verbatim for provenance.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"

	"deliverydesk/internal"
)

// FormatError is fatal for an ingestion call: the file cannot be parsed into
// rows at all, nothing gets persisted.
type FormatError struct {
	FileName string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.FileName, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Table is one parsed file: header names in source order plus raw rows keyed
// by those headers.
type Table struct {
	Headers []string
	Rows    []internal.RawRow
}

// Parse dispatches on file extension, falling back to the declared content
// type.
func Parse(content []byte, fileName, contentType string) (Table, error) {
	lower := strings.ToLower(fileName)
	ct := strings.ToLower(contentType)

	switch {
	case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls") || strings.Contains(ct, "spreadsheetml"):
		return parseXLSX(content, fileName)
	case strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") || strings.Contains(ct, "text/html"):
		return parseHTMLTable(content, fileName)
	case strings.HasSuffix(lower, ".csv") || strings.HasSuffix(lower, ".txt") || strings.Contains(ct, "text/csv") || strings.Contains(ct, "text/plain"):
		return parseCSV(content, fileName)
	default:
		return Table{}, &FormatError{FileName: fileName, Err: fmt.Errorf("unsupported file format")}
	}
}

func parseXLSX(content []byte, fileName string) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, &FormatError{FileName: fileName, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, &FormatError{FileName: fileName, Err: fmt.Errorf("workbook has no sheets")}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, &FormatError{FileName: fileName, Err: err}
	}
	if len(rows) == 0 {
		return Table{}, &FormatError{FileName: fileName, Err: fmt.Errorf("sheet %s has no header row", sheets[0])}
	}

	return buildTable(rows[0], rows[1:]), nil
}

func parseCSV(content []byte, fileName string) (Table, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = detectDelimiter(content)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return Table{}, &FormatError{FileName: fileName, Err: fmt.Errorf("missing header row: %w", err)}
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, &FormatError{FileName: fileName, Err: err}
		}
		records = append(records, record)
	}

	return buildTable(header, records), nil
}

func parseHTMLTable(content []byte, fileName string) (Table, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Table{}, &FormatError{FileName: fileName, Err: err}
	}

	table := doc.Find("table").First()
	rows := table.Find("tr")
	if rows.Length() < 1 {
		return Table{}, &FormatError{FileName: fileName, Err: fmt.Errorf("no table found")}
	}

	var header []string
	rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
		header = append(header, cell.Text())
	})

	var records [][]string
	rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Text())
		})
		records = append(records, cells)
	})

	return buildTable(header, records), nil
}

// buildTable trims and dedupes header names (later duplicates get a ".N"
// suffix so every cell keeps its own provenance key), pads short rows and
// drops fully empty ones.
func buildTable(header []string, records [][]string) Table {
	headers := make([]string, 0, len(header))
	seen := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, dup := seen[name]; dup {
			base := name
			for dup {
				name = fmt.Sprintf("%s.%d", base, n)
				n++
				_, dup = seen[name]
			}
			seen[base] = n
		}
		seen[name] = 1
		headers = append(headers, name)
	}

	rows := make([]internal.RawRow, 0, len(records))
	for _, record := range records {
		empty := true
		cells := make(map[string]string, len(headers))
		for i, name := range headers {
			value := ""
			if i < len(record) {
				value = strings.TrimSpace(record[i])
			}
			if value != "" {
				empty = false
			}
			cells[name] = value
		}
		if empty {
			continue
		}
		rows = append(rows, internal.RawRow{Columns: headers, Cells: cells})
	}

	return Table{Headers: headers, Rows: rows}
}

func detectDelimiter(content []byte) rune {
	line := content
	if idx := bytes.IndexByte(content, '\n'); idx >= 0 {
		line = content[:idx]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}
