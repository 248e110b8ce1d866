package recipients

import (
	"errors"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRows    []Row
		wantErr     error
	}{
		{
			name:        "simple",
			input:       "Email,FirstName\njohn@example.com,John\njane@example.com,Jane",
			wantHeaders: []string{"Email", "FirstName"},
			wantRows: []Row{
				{"Email": "john@example.com", "FirstName": "John"},
				{"Email": "jane@example.com", "FirstName": "Jane"},
			},
		},
		{
			name:        "quoted field with comma",
			input:       "Email,Company\na@b.com,\"Acme, Inc.\"",
			wantHeaders: []string{"Email", "Company"},
			wantRows: []Row{
				{"Email": "a@b.com", "Company": "Acme, Inc."},
			},
		},
		{
			name:        "doubled quotes inside quoted field",
			input:       "Email,Note\na@b.com,\"say \"\"hi\"\"\"",
			wantHeaders: []string{"Email", "Note"},
			wantRows: []Row{
				{"Email": "a@b.com", "Note": `say "hi"`},
			},
		},
		{
			name:        "blank lines skipped",
			input:       "Email,Name\n\na@b.com,A\n\n\nb@c.com,B\n",
			wantHeaders: []string{"Email", "Name"},
			wantRows: []Row{
				{"Email": "a@b.com", "Name": "A"},
				{"Email": "b@c.com", "Name": "B"},
			},
		},
		{
			name:        "short row padded with empty strings",
			input:       "Email,First,Last\na@b.com,A",
			wantHeaders: []string{"Email", "First", "Last"},
			wantRows: []Row{
				{"Email": "a@b.com", "First": "A", "Last": ""},
			},
		},
		{
			name:        "fields trimmed",
			input:       "Email , Name\n  a@b.com ,  Alice  ",
			wantHeaders: []string{"Email", "Name"},
			wantRows: []Row{
				{"Email": "a@b.com", "Name": "Alice"},
			},
		},
		{
			name:        "crlf line endings",
			input:       "Email,Name\r\na@b.com,A\r\n",
			wantHeaders: []string{"Email", "Name"},
			wantRows: []Row{
				{"Email": "a@b.com", "Name": "A"},
			},
		},
		{
			name:        "header only",
			input:       "Email,Name",
			wantHeaders: []string{"Email", "Name"},
			wantRows:    nil,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrNoHeader,
		},
		{
			name:    "whitespace only",
			input:   "   \n  \n",
			wantErr: ErrNoHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := ParseList(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseList() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseList() error = %v", err)
			}

			if len(list.Headers) != len(tt.wantHeaders) {
				t.Fatalf("headers = %v, want %v", list.Headers, tt.wantHeaders)
			}
			for i, h := range tt.wantHeaders {
				if list.Headers[i] != h {
					t.Errorf("header[%d] = %q, want %q", i, list.Headers[i], h)
				}
			}

			if len(list.Rows) != len(tt.wantRows) {
				t.Fatalf("got %d rows, want %d", len(list.Rows), len(tt.wantRows))
			}
			for i, want := range tt.wantRows {
				for key, val := range want {
					if list.Rows[i][key] != val {
						t.Errorf("row %d %q = %q, want %q", i, key, list.Rows[i][key], val)
					}
				}
			}
		})
	}
}

func TestParseListEveryRowHasEveryHeader(t *testing.T) {
	list, err := ParseList("Email,A,B,C\nx@y.com,1\nz@w.com,1,2,3")
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	for i, row := range list.Rows {
		for _, h := range list.Headers {
			if _, ok := row[h]; !ok {
				t.Errorf("row %d missing key %q", i, h)
			}
		}
	}
}

func TestHasEmailColumn(t *testing.T) {
	withEmail, err := ParseList("Email,Name\na@b.com,A")
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	if !withEmail.HasEmailColumn() {
		t.Error("HasEmailColumn() = false, want true")
	}

	withoutEmail, err := ParseList("Address,Name\na@b.com,A")
	if err != nil {
		t.Fatalf("ParseList() error = %v", err)
	}
	if withoutEmail.HasEmailColumn() {
		t.Error("HasEmailColumn() = true, want false")
	}
}
