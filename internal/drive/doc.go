// Package drive provides a client for the Google Drive API operations the
// uploader needs: walking a folder path from My Drive, creating folders and
// creating empty Google Workspace files inside them.
//
// Example usage:
//
//	client, err := drive.NewClient(ctx, option.WithHTTPClient(httpClient))
//	if err != nil {
//	    return err
//	}
//
//	folderID, err := client.ResolveFolderPath(ctx, []string{"leads", "agents"}, false)
//	if err != nil {
//	    return err
//	}
//
//	file, err := client.CreateFile(ctx, "Agents_Data", drive.SpreadsheetMimeType, []string{folderID})
package drive
