package drive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	// FolderMimeType is the MIME type for Google Drive folders
	FolderMimeType = "application/vnd.google-apps.folder"

	// SpreadsheetMimeType is the MIME type for Google Sheets files
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

	// RootFolderID is the alias of the user's My Drive root
	RootFolderID = "root"

	fileFields = "id, name, mimeType, webViewLink, parents, createdTime"
)

// ErrFolderNotFound is returned when a folder on a path does not exist.
var ErrFolderNotFound = errors.New("folder not found")

// Client wraps the Google Drive API service
type Client struct {
	service *drive.Service
}

// NewClient creates a Drive client. Authentication is supplied through opts,
// typically option.WithHTTPClient.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	driveService, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}
	return &Client{service: driveService}, nil
}

// FindFolder returns the ID of the first non-trashed folder called name
// inside parentID, or "" when there is none. An empty parentID searches
// the whole Drive.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("folder name is required")
	}

	fileList, err := c.service.Files.List().
		Context(ctx).
		Q(folderQuery(name, parentID)).
		Spaces("drive").
		Fields("files(id, name)").
		PageSize(1).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to find folder %s: %w", name, err)
	}

	if len(fileList.Files) == 0 {
		return "", nil
	}
	return fileList.Files[0].Id, nil
}

// ResolveFolderPath walks path from My Drive and returns the ID of the last
// folder. Missing folders are created when create is set; otherwise the
// walk stops with ErrFolderNotFound. An empty path resolves to the root.
func (c *Client) ResolveFolderPath(ctx context.Context, path []string, create bool) (string, error) {
	current := RootFolderID
	for _, name := range path {
		id, err := c.FindFolder(ctx, name, current)
		if err != nil {
			return "", err
		}
		if id == "" {
			if !create {
				return "", fmt.Errorf("%w: %s", ErrFolderNotFound, name)
			}
			folder, err := c.CreateFolder(ctx, name, []string{current})
			if err != nil {
				return "", err
			}
			id = folder.ID
		}
		current = id
	}
	return current, nil
}

// CreateFolder creates a new folder in Google Drive
func (c *Client) CreateFolder(ctx context.Context, name string, parentFolders []string) (*FileInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name is required")
	}
	return c.create(ctx, &drive.File{Name: name, MimeType: FolderMimeType, Parents: parentFolders}, "folder")
}

// CreateFile creates an empty file, such as a Google Sheets spreadsheet,
// inside parentFolders.
func (c *Client) CreateFile(ctx context.Context, name, mimeType string, parentFolders []string) (*FileInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	if mimeType == "" {
		return nil, fmt.Errorf("mime type is required")
	}
	return c.create(ctx, &drive.File{Name: name, MimeType: mimeType, Parents: parentFolders}, "file")
}

func (c *Client) create(ctx context.Context, file *drive.File, kind string) (*FileInfo, error) {
	if len(file.Parents) == 0 {
		file.Parents = nil
	}

	driveFile, err := c.service.Files.Create(file).
		Context(ctx).
		Fields(fileFields).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}

	return convertToFileInfo(driveFile), nil
}

// folderQuery builds the Drive search query for a folder by name.
func folderQuery(name, parentID string) string {
	parts := []string{
		fmt.Sprintf("name = '%s'", escapeQuery(name)),
		fmt.Sprintf("mimeType = '%s'", FolderMimeType),
		"trashed = false",
	}
	if parentID != "" {
		parts = append(parts, fmt.Sprintf("'%s' in parents", escapeQuery(parentID)))
	}
	return strings.Join(parts, " and ")
}

// escapeQuery escapes a string literal for the Drive query language.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// convertToFileInfo keeps the fields of fileFields. An unparsable
// createdTime is left zero.
func convertToFileInfo(f *drive.File) *FileInfo {
	info := &FileInfo{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		WebViewLink: f.WebViewLink,
		Parents:     f.Parents,
	}
	if t, err := time.Parse(time.RFC3339, f.CreatedTime); err == nil {
		info.CreatedTime = t
	}
	return info
}
