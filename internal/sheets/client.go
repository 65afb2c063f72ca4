package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// Client wraps the Google Sheets API service
type Client struct {
	service *sheets.Service
}

// NewClient creates a Sheets client. Authentication is supplied through
// opts, typically option.WithHTTPClient.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	return &Client{service: service}, nil
}

// UpdateValues writes values to range as raw input and returns the number
// of updated cells.
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, writeRange string, values [][]any) (int64, error) {
	if spreadsheetID == "" {
		return 0, fmt.Errorf("spreadsheetID is required")
	}

	resp, err := c.service.Spreadsheets.Values.Update(spreadsheetID, writeRange, &sheets.ValueRange{
		Values: values,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to update values in %s: %w", spreadsheetID, err)
	}
	return resp.UpdatedCells, nil
}

// AutoResizeColumns fits columns [start, end) of a sheet to their content.
func (c *Client) AutoResizeColumns(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error {
	if spreadsheetID == "" {
		return fmt.Errorf("spreadsheetID is required")
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: start,
					EndIndex:   end,
					// SheetId 0 and StartIndex 0 are meaningful.
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}

	if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to resize columns in %s: %w", spreadsheetID, err)
	}
	return nil
}
