package recipients

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned when the CSV has no usable header row.
var ErrNoHeader = errors.New("csv header row is empty or missing")

// EmailColumn is the column every recipient CSV must contain.
const EmailColumn = "Email"

// Row maps a CSV column name to the value in one data row.
type Row map[string]string

// Email returns the row's Email value.
func (r Row) Email() string {
	return r[EmailColumn]
}

// List is the parsed form of a recipient CSV: the header row plus one
// Row per non-blank data line, in file order.
type List struct {
	Headers []string
	Rows    []Row
}

// HasEmailColumn reports whether the header row contains the required
// Email column. Callers must check this before validating rows; the
// parser itself does not interpret column names.
func (l *List) HasEmailColumn() bool {
	for _, h := range l.Headers {
		if h == EmailColumn {
			return true
		}
	}
	return false
}

// ParseList parses recipient CSV text. The first line is the header
// row; quoted fields may contain commas and doubled quotes; blank
// lines are skipped; fields are trimmed of surrounding whitespace.
// Rows shorter than the header are padded with empty strings, extra
// trailing fields are dropped.
func ParseList(text string) (*List, error) {
	reader := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv header: %w", err)
	}

	headers := make([]string, len(header))
	empty := true
	for i, h := range header {
		headers[i] = strings.TrimSpace(h)
		if headers[i] != "" {
			empty = false
		}
	}
	if empty {
		return nil, ErrNoHeader
	}

	list := &List{Headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse csv row %d: %w", len(list.Rows)+2, err)
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		list.Rows = append(list.Rows, row)
	}

	return list, nil
}
