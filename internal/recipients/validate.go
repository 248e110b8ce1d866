package recipients

import "regexp"

// emailPattern accepts local@domain.tld with no whitespace, a single
// '@' and at least one dot in the domain.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether addr looks like a deliverable address.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// invalidEmailReason is the per-row reason recorded when the Email
// field is absent or malformed.
const invalidEmailReason = "Email (Invalid)"

// InvalidRow is a row excluded from sending, with the fields that
// caused its exclusion.
type InvalidRow struct {
	Row           Row
	MissingFields []string
}

// Summary aggregates validation results and column diagnostics for a
// (template, mode, headers) triple.
type Summary struct {
	Total          int      `json:"total"`
	Valid          int      `json:"valid"`
	Invalid        int      `json:"invalid"`
	MissingColumns []string `json:"missing_columns"`
	ExtraColumns   []string `json:"extra_columns"`
}

// Validation partitions a list's rows into valid and invalid. The two
// partitions are disjoint, order-preserving subsequences of the input.
type Validation struct {
	Valid   []Row
	Invalid []InvalidRow
	Summary Summary
}

// Validate checks every row of the list. A row is invalid when its
// Email field fails the address pattern, or, in personalized mode,
// when any placeholder has no value in that row. Columns unused by the
// template are reported in the summary but never invalidate a row.
func Validate(list *List, personalized bool, placeholders []string) *Validation {
	v := &Validation{
		Valid:   []Row{},
		Invalid: []InvalidRow{},
	}

	headerSet := make(map[string]bool, len(list.Headers))
	for _, h := range list.Headers {
		headerSet[h] = true
	}
	placeholderSet := make(map[string]bool, len(placeholders))
	for _, ph := range placeholders {
		placeholderSet[ph] = true
	}

	missingColumns := []string{}
	if personalized {
		for _, ph := range placeholders {
			if !headerSet[ph] {
				missingColumns = append(missingColumns, ph)
			}
		}
	}

	extraColumns := []string{}
	for _, h := range list.Headers {
		if h != EmailColumn && !placeholderSet[h] {
			extraColumns = append(extraColumns, h)
		}
	}

	for _, row := range list.Rows {
		var missing []string
		if !ValidEmail(row.Email()) {
			missing = append(missing, invalidEmailReason)
		}
		if personalized {
			for _, ph := range placeholders {
				if row[ph] == "" {
					missing = append(missing, ph)
				}
			}
		}

		if len(missing) == 0 {
			v.Valid = append(v.Valid, row)
		} else {
			v.Invalid = append(v.Invalid, InvalidRow{Row: row, MissingFields: missing})
		}
	}

	v.Summary = Summary{
		Total:          len(list.Rows),
		Valid:          len(v.Valid),
		Invalid:        len(v.Invalid),
		MissingColumns: missingColumns,
		ExtraColumns:   extraColumns,
	}

	return v
}
