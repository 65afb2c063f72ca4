package sheets

import (
	"fmt"
	"time"

	"github.com/teemow/agentleads/internal/agents"
)

// NamePrefix starts every spreadsheet name.
const NamePrefix = "Agents_Data_"

// SpreadsheetName returns the timestamped name for a new spreadsheet.
func SpreadsheetName(t time.Time) string {
	return NamePrefix + t.Format("02-01-2006_15-04-05")
}

// Headers returns the header row.
func Headers(withContacts bool) []string {
	h := []string{"Agent Name", "LinkedIn URL", "Zillow Profile"}
	if withContacts {
		h = append(h, "Email", "Phone")
	}
	return h
}

// BuildRows returns the header row followed by one row per agent. When
// contacts are given, email and phone columns are joined on LinkedIn URL.
func BuildRows(offices []agents.Office, contacts []agents.ContactResult) [][]any {
	byURL := make(map[string]agents.ContactResult, len(contacts))
	for _, c := range contacts {
		if c.LinkedInURL != "" {
			byURL[c.LinkedInURL] = c
		}
	}
	withContacts := len(byURL) > 0

	headers := Headers(withContacts)
	rows := make([][]any, 0, agents.CountAgents(offices)+1)
	rows = append(rows, toRow(headers))

	for _, a := range agents.Flatten(offices) {
		row := []any{a.Name, a.LinkedIn, a.ZillowProfile}
		if withContacts {
			c := byURL[a.LinkedIn]
			row = append(row, c.Email, c.Phone)
		}
		rows = append(rows, row)
	}
	return rows
}

// ColumnName converts a 1-based column number to its A1 letters.
func ColumnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}

// DataRange returns the A1 range covering columns columns of sheet.
func DataRange(sheet string, columns int) string {
	return fmt.Sprintf("%s!A1:%s", sheet, ColumnName(columns))
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
