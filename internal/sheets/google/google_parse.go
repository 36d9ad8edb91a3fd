package google

import (
	"fmt"
	"strings"

	ports "fintrack/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// rowOf returns the 1-based row whose first cell equals id, skipping the
// header row. It returns 0 when there is none.
func rowOf(values [][]interface{}, id string) int {
	for i, row := range values {
		if i == 0 || len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func sheetIDByTitle(sheets []*gsheet.Sheet, title string) (int64, bool) {
	for _, s := range sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		if strings.EqualFold(s.Properties.Title, title) {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

// lastColumn is the A1 letter of the last header column.
func lastColumn() string {
	return columnName(len(ports.Header))
}

// columnName converts a 1-based column index to its A1 letters.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
