// Package sheets writes agent leads to a new Google Sheets spreadsheet.
//
// The spreadsheet is created as a Drive file inside a configured folder path,
// then filled with a header row and one row per agent, and its columns are
// resized to fit.
package sheets
