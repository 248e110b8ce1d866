// Package report renders campaign reports from dispatch outcomes and
// persists the latest report per sender.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/zapsend/zapsend/internal/dispatch"
	"github.com/zapsend/zapsend/internal/recipients"
)

// dateLayout matches the long date used in report headers and file
// names, e.g. "01 September 2026".
const dateLayout = "02 January 2006"

// Record is the full report of one completed run.
type Record struct {
	Outcomes   []dispatch.Outcome `json:"outcomes"`
	Summary    recipients.Summary `json:"summary"`
	Subject    string             `json:"subject"`
	FinishedAt time.Time          `json:"finished_at"`
}

func counts(outcomes []dispatch.Outcome) (sent, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case dispatch.StatusSent:
			sent++
		case dispatch.StatusFailed:
			failed++
		}
	}
	return sent, failed
}

// BuildText renders the plain-text report: a header block, summary
// counts, and one detail line per outcome.
func BuildText(rec *Record) string {
	sent, failed := counts(rec.Outcomes)

	var b strings.Builder
	b.WriteString("--- EMAIL REPORT ---\n")
	fmt.Fprintf(&b, "Subject: %s\n", rec.Subject)
	fmt.Fprintf(&b, "Date: %s\n\n", rec.FinishedAt.Format(dateLayout))
	b.WriteString("--- SUMMARY ---\n")
	fmt.Fprintf(&b, "Total rows in CSV: %d\n", rec.Summary.Total)
	fmt.Fprintf(&b, "Sent: %d\n", sent)
	fmt.Fprintf(&b, "Failed: %d\n", failed)
	fmt.Fprintf(&b, "Skipped (invalid): %d\n\n", rec.Summary.Invalid)
	b.WriteString("--- DETAILED LOG ---\n")

	for _, o := range rec.Outcomes {
		if o.Error != "" {
			fmt.Fprintf(&b, "%s --> %s (%s)\n", o.Email, o.Status, o.Error)
		} else {
			fmt.Fprintf(&b, "%s --> %s\n", o.Email, o.Status)
		}
	}

	return b.String()
}

// BuildCSV renders the outcome list as CSV. The email is always
// quoted; an empty reason becomes "-"; embedded quotes are doubled.
func BuildCSV(outcomes []dispatch.Outcome) string {
	var b strings.Builder
	b.WriteString("Email,Status,Error/Reason\n")

	for _, o := range outcomes {
		reason := "-"
		if o.Error != "" {
			reason = quote(o.Error)
		}
		fmt.Fprintf(&b, "%s,%s,%s\n", quote(o.Email), o.Status, reason)
	}

	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Filename builds the download name for a report artifact.
func Filename(subject string, finishedAt time.Time, ext string) string {
	return fmt.Sprintf("Email Report - %s - %s.%s", subject, finishedAt.Format(dateLayout), ext)
}
