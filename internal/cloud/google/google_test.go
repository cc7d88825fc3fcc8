package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"billtrack/internal/cloud"
)

func TestFindRow(t *testing.T) {
	rows := [][]any{
		{"User", "Snapshot", "Revision", "Updated At"},
		{"a@example.com", "{}", "1", "2026-01-01T00:00:00Z"},
		{"b@example.com", "{}", "2", "2026-01-02T00:00:00Z"},
		{},
		{"  c@example.com  ", "{}", "3", "2026-01-03T00:00:00Z"},
	}

	tests := []struct {
		key  string
		want int
	}{
		{"a@example.com", 1},
		{"b@example.com", 2},
		{"c@example.com", 4},
		{"missing@example.com", -1},
		// The header row never matches, even for a literal "User" key.
		{"User", -1},
	}
	for _, tt := range tests {
		if got := findRow(rows, tt.key); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestRowToSnapshot(t *testing.T) {
	row := []any{"a@example.com", `{"version":"1.0"}`, "7", "2026-02-01T10:30:00Z"}
	snap, err := rowToSnapshot(row)
	if err != nil {
		t.Fatalf("rowToSnapshot: %v", err)
	}
	if snap.Key != "a@example.com" {
		t.Errorf("key = %q", snap.Key)
	}
	if string(snap.Envelope) != `{"version":"1.0"}` {
		t.Errorf("envelope = %s", snap.Envelope)
	}
	if snap.Revision != 7 {
		t.Errorf("revision = %d", snap.Revision)
	}
	if want := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC); !snap.UpdatedAt.Equal(want) {
		t.Errorf("updated at = %v, want %v", snap.UpdatedAt, want)
	}
}

func TestRowToSnapshot_ShortAndBadRows(t *testing.T) {
	if _, err := rowToSnapshot([]any{"only-key"}); err == nil {
		t.Error("short row should fail")
	}
	if _, err := rowToSnapshot([]any{"k", "{}", "not-a-number"}); err == nil {
		t.Error("bad revision should fail")
	}
	if _, err := rowToSnapshot([]any{"k", "{}", "1", "yesterday"}); err == nil {
		t.Error("bad timestamp should fail")
	}

	// Revision and timestamp columns are optional for rows written by
	// older builds.
	snap, err := rowToSnapshot([]any{"k", "{}"})
	if err != nil {
		t.Fatalf("two-column row: %v", err)
	}
	if snap.Revision != 0 || !snap.UpdatedAt.IsZero() {
		t.Errorf("defaults not zero: %+v", snap)
	}
}

func TestSnapshotRowRoundTrip(t *testing.T) {
	snap := cloud.Snapshot{
		Key:       "a@example.com",
		Envelope:  []byte(`{"bills":[]}`),
		Revision:  42,
		UpdatedAt: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	row := snapshotRow(snap)
	back, err := rowToSnapshot(row)
	if err != nil {
		t.Fatalf("rowToSnapshot: %v", err)
	}
	if back.Key != snap.Key || back.Revision != snap.Revision {
		t.Errorf("got %+v", back)
	}
	if string(back.Envelope) != string(snap.Envelope) {
		t.Errorf("envelope = %s", back.Envelope)
	}
	if !back.UpdatedAt.Equal(snap.UpdatedAt) {
		t.Errorf("updated at = %v", back.UpdatedAt)
	}
}

func TestReadJSONSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")
	if err := os.WriteFile(path, []byte(`{"installed":{}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		inline  string
		file    string
		want    string
		wantErr bool
	}{
		{name: "inline wins", inline: `{"a":1}`, file: path, want: `{"a":1}`},
		{name: "file fallback", file: path, want: `{"installed":{}}`},
		{name: "missing file", file: filepath.Join(dir, "nope.json"), wantErr: true},
		{name: "nothing set", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readJSONSource(tt.inline, tt.file)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("readJSONSource: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("New without spreadsheet id should fail")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-id"})
	if err == nil {
		t.Fatal("New without oauth material should fail")
	}
	if !strings.Contains(err.Error(), "oauth client credentials") {
		t.Errorf("error = %v", err)
	}
}
