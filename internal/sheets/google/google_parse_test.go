package google

import (
	"testing"

	gsheet "google.golang.org/api/sheets/v4"
)

func TestRowOf(t *testing.T) {
	values := [][]interface{}{
		{"ID", "Owner"},
		{"tx-1", "u1"},
		{},
		{" tx-3 ", "u1"},
		{"tx-1-copy", "u1"},
	}

	tests := []struct {
		id   string
		want int
	}{
		{"tx-1", 2},
		{"tx-3", 4},
		{"tx-1-copy", 5},
		{"ID", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := rowOf(values, tt.id); got != tt.want {
				t.Errorf("rowOf(%q) = %d, want %d", tt.id, got, tt.want)
			}
		})
	}

	if got := rowOf(nil, "tx-1"); got != 0 {
		t.Errorf("rowOf(nil) = %d, want 0", got)
	}
}

func TestSheetIDByTitle(t *testing.T) {
	sheets := []*gsheet.Sheet{
		nil,
		{Properties: &gsheet.SheetProperties{Title: "Summary", SheetId: 0}},
		{Properties: &gsheet.SheetProperties{Title: "Ledger", SheetId: 1234}},
	}
	id, ok := sheetIDByTitle(sheets, "ledger")
	if !ok || id != 1234 {
		t.Errorf("sheetIDByTitle() = %d, %v; want 1234, true", id, ok)
	}
	if _, ok := sheetIDByTitle(sheets, "Archive"); ok {
		t.Error("sheetIDByTitle() found a sheet that does not exist")
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{1: "A", 11: "K", 26: "Z", 27: "AA", 52: "AZ", 703: "AAA"}
	for n, want := range tests {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
	if lastColumn() != "K" {
		t.Errorf("lastColumn() = %q, want K", lastColumn())
	}
}

func TestNewRequiresSpreadsheet(t *testing.T) {
	_, err := New(t.Context(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v", err)
	}

	_, err = New(t.Context(), Config{SpreadsheetID: "abc"})
	if err == nil {
		t.Error("New() should fail without credentials")
	}
}
