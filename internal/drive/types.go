package drive

import "time"

// FileInfo is the subset of Drive file metadata the uploader works with.
type FileInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`

	// WebViewLink opens the file in the matching Google editor.
	WebViewLink string    `json:"webViewLink,omitempty"`
	Parents     []string  `json:"parents,omitempty"`
	CreatedTime time.Time `json:"createdTime"`
}

func (f *FileInfo) IsFolder() bool {
	return f.MimeType == FolderMimeType
}
