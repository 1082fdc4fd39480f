package port

import (
	"context"
	"io"
)

// StoredFile describes a blob written to file storage
type StoredFile struct {
	Key      string
	MimeType string
	Size     int64
}

// FileStorage keeps uploaded attachment blobs addressed by opaque key
type FileStorage interface {
	// Save sniffs, checks and writes r, returning the generated key
	Save(ctx context.Context, filename string, r io.Reader) (*StoredFile, error)
	// Open returns the blob for key; the caller closes it
	Open(ctx context.Context, key string) (io.ReadCloser, *StoredFile, error)
	Exists(ctx context.Context, key string) bool
}
