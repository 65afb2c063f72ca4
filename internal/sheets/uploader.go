package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/agentleads/internal/agents"
	"github.com/teemow/agentleads/internal/drive"
	"github.com/teemow/agentleads/internal/logging"
)

// DefaultSheet is the first sheet of a new spreadsheet.
const DefaultSheet = "Sheet1"

// Files is the Drive access the uploader needs.
type Files interface {
	ResolveFolderPath(ctx context.Context, path []string, create bool) (string, error)
	CreateFile(ctx context.Context, name, mimeType string, parents []string) (*drive.FileInfo, error)
}

// Values is the Sheets access the uploader needs.
type Values interface {
	UpdateValues(ctx context.Context, spreadsheetID, writeRange string, values [][]any) (int64, error)
	AutoResizeColumns(ctx context.Context, spreadsheetID string, sheetID, start, end int64) error
}

// UploadResult describes a created spreadsheet.
type UploadResult struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Name          string `json:"name"`
	URL           string `json:"url"`
	Rows          int    `json:"rows"`
	UpdatedCells  int64  `json:"updated_cells"`
}

// Uploader creates and fills spreadsheets.
type Uploader struct {
	files      Files
	values     Values
	folderPath []string
	logger     *slog.Logger

	// CreateFolders creates missing folders on the path instead of failing.
	CreateFolders bool

	now func() time.Time
}

// NewUploader creates an uploader that stores spreadsheets in folderPath.
func NewUploader(files Files, values Values, folderPath []string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		files:      files,
		values:     values,
		folderPath: folderPath,
		logger:     logger,
		now:        time.Now,
	}
}

// SpreadsheetURL returns the browser URL of a spreadsheet.
func SpreadsheetURL(id string) string {
	return "https://docs.google.com/spreadsheets/d/" + id
}

// Upload writes one row per agent to a new spreadsheet.
func (u *Uploader) Upload(ctx context.Context, offices []agents.Office, contacts []agents.ContactResult) (*UploadResult, error) {
	logger := logging.WithStage(u.logger, "upload")

	folderID, err := u.files.ResolveFolderPath(ctx, u.folderPath, u.CreateFolders)
	if err != nil {
		return nil, fmt.Errorf("failed to find destination folder: %w", err)
	}
	logger.Info("found destination folder", logging.Operation("resolve_folder"), slog.String("folder_id", folderID))

	name := SpreadsheetName(u.now())
	file, err := u.files.CreateFile(ctx, name, drive.SpreadsheetMimeType, []string{folderID})
	if err != nil {
		return nil, fmt.Errorf("failed to create spreadsheet: %w", err)
	}
	logger.Info("created spreadsheet", logging.Operation("create_spreadsheet"), slog.String("spreadsheet_id", file.ID), slog.String("name", name))

	values := BuildRows(offices, contacts)
	columns := len(values[0])

	updated, err := u.values.UpdateValues(ctx, file.ID, DataRange(DefaultSheet, columns), values)
	if err != nil {
		return nil, err
	}
	logger.Info("uploaded rows", logging.Operation("update_values"), slog.Int("rows", len(values)-1), slog.Int64("updated_cells", updated))

	if err := u.values.AutoResizeColumns(ctx, file.ID, 0, 0, int64(columns)); err != nil {
		return nil, err
	}

	url := file.WebViewLink
	if url == "" {
		url = SpreadsheetURL(file.ID)
	}
	return &UploadResult{
		SpreadsheetID: file.ID,
		Name:          name,
		URL:           url,
		Rows:          len(values) - 1,
		UpdatedCells:  updated,
	}, nil
}
