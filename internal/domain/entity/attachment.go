package entity

import "time"

// FileUpload is metadata for a file attached to an application.
// The blob itself lives in file storage under FileKey.
type FileUpload struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FileKey    string    `json:"fileKey"`
	FileType   string    `json:"fileType"`
	UploadedAt time.Time `json:"uploadedAt"`
}

func cloneFiles(files []FileUpload) []FileUpload {
	if files == nil {
		return []FileUpload{}
	}
	return append([]FileUpload(nil), files...)
}
