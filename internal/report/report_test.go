package report

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zapsend/zapsend/internal/dispatch"
	"github.com/zapsend/zapsend/internal/recipients"
)

func sampleRecord() *Record {
	return &Record{
		Outcomes: []dispatch.Outcome{
			{Email: "john@example.com", Status: dispatch.StatusSent},
			{Email: "jane@example.com", Status: dispatch.StatusFailed, Error: "Could not connect to the mail server. Please check your network connection."},
			{Email: "bad-email", Status: dispatch.StatusSkipped, Error: "Missing fields: Email (Invalid)"},
		},
		Summary: recipients.Summary{Total: 3, Valid: 2, Invalid: 1},
		Subject: "Q3 Update",
		FinishedAt: time.Date(2026, time.September, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestBuildText(t *testing.T) {
	got := BuildText(sampleRecord())

	want := "--- EMAIL REPORT ---\n" +
		"Subject: Q3 Update\n" +
		"Date: 01 September 2026\n\n" +
		"--- SUMMARY ---\n" +
		"Total rows in CSV: 3\n" +
		"Sent: 1\n" +
		"Failed: 1\n" +
		"Skipped (invalid): 1\n\n" +
		"--- DETAILED LOG ---\n" +
		"john@example.com --> Sent\n" +
		"jane@example.com --> Failed (Could not connect to the mail server. Please check your network connection.)\n" +
		"bad-email --> Skipped (Missing fields: Email (Invalid))\n"

	if got != want {
		t.Errorf("BuildText mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildCSV(t *testing.T) {
	got := BuildCSV(sampleRecord().Outcomes)

	want := "Email,Status,Error/Reason\n" +
		`"john@example.com",Sent,-` + "\n" +
		`"jane@example.com",Failed,"Could not connect to the mail server. Please check your network connection."` + "\n" +
		`"bad-email",Skipped,"Missing fields: Email (Invalid)"` + "\n"

	if got != want {
		t.Errorf("BuildCSV mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildCSVDoublesEmbeddedQuotes(t *testing.T) {
	got := BuildCSV([]dispatch.Outcome{
		{Email: "a@example.com", Status: dispatch.StatusFailed, Error: `server said "no"`},
	})

	if !strings.Contains(got, `"server said ""no"""`) {
		t.Errorf("embedded quotes not doubled: %s", got)
	}
}

func TestFilename(t *testing.T) {
	at := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	got := Filename("Q3 Update", at, "txt")
	want := "Email Report - Q3 Update - 01 September 2026.txt"
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	rec := sampleRecord()
	if err := store.Save("ada@example.com", rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("ada@example.com")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Subject != rec.Subject {
		t.Errorf("Subject = %q, want %q", loaded.Subject, rec.Subject)
	}
	if len(loaded.Outcomes) != len(rec.Outcomes) {
		t.Errorf("got %d outcomes, want %d", len(loaded.Outcomes), len(rec.Outcomes))
	}
	if loaded.Outcomes[1].Error != rec.Outcomes[1].Error {
		t.Errorf("outcome error lost in round trip")
	}
}

func TestStoreOverwriteAndIsolation(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "reports.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	first := sampleRecord()
	if err := store.Save("ada@example.com", first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := sampleRecord()
	second.Subject = "Follow-up"
	if err := store.Save("ada@example.com", second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load("ada@example.com")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Subject != "Follow-up" {
		t.Errorf("latest report not returned, got subject %q", loaded.Subject)
	}

	if _, err := store.Load("other@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load for unknown sender = %v, want ErrNotFound", err)
	}
}
