package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/access-portal/internal/application/port"
)

// DefaultMaxSize is the upload cap (10MB)
const DefaultMaxSize int64 = 10 << 20

// DefaultAllowedTypes lists the accepted attachment formats
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var (
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrInvalidFileType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidKey      = errors.New("invalid file key")
)

// Option configures LocalFileStorage
type Option func(*LocalFileStorage)

// WithMaxSize overrides DefaultMaxSize
func WithMaxSize(n int64) Option {
	return func(s *LocalFileStorage) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithAllowedTypes overrides DefaultAllowedTypes
func WithAllowedTypes(types []string) Option {
	return func(s *LocalFileStorage) {
		if len(types) > 0 {
			s.allowed = types
		}
	}
}

// LocalFileStorage implements port.FileStorage on the local filesystem.
// Blobs are stored flat under baseDir as "<uuid><ext>".
type LocalFileStorage struct {
	baseDir string
	maxSize int64
	allowed []string
	logger  *zap.Logger
}

// NewLocalFileStorage creates the base directory and returns the storage
func NewLocalFileStorage(baseDir string, logger *zap.Logger, opts ...Option) (*LocalFileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &LocalFileStorage{
		baseDir: baseDir,
		maxSize: DefaultMaxSize,
		allowed: DefaultAllowedTypes,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxSize returns the configured upload cap
func (s *LocalFileStorage) MaxSize() int64 {
	return s.maxSize
}

// Save reads at most maxSize bytes from r, sniffs the content type and writes the blob
func (s *LocalFileStorage) Save(ctx context.Context, filename string, r io.Reader) (*port.StoredFile, error) {
	content, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.maxSize {
		return nil, ErrFileTooLarge
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(content)
	if !s.isAllowed(mtype) {
		s.logger.Info("Rejected upload",
			zap.String("filename", filename),
			zap.String("detected", mtype.String()))
		return nil, fmt.Errorf("%w: %s", ErrInvalidFileType, mtype.String())
	}

	key := uuid.NewString() + mtype.Extension()
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, bytes.NewReader(content)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		s.logger.Error("Failed to store file", zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	s.logger.Info("File stored",
		zap.String("key", key),
		zap.String("filename", filename),
		zap.String("mime_type", mtype.String()),
		zap.Int("size", len(content)))

	return &port.StoredFile{
		Key:      key,
		MimeType: baseType(mtype.String()),
		Size:     int64(len(content)),
	}, nil
}

// Open returns the blob stored under key
func (s *LocalFileStorage) Open(ctx context.Context, key string) (io.ReadCloser, *port.StoredFile, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to rewind file: %w", err)
	}

	return f, &port.StoredFile{Key: key, MimeType: baseType(mtype.String()), Size: info.Size()}, nil
}

func (s *LocalFileStorage) isAllowed(mtype *mimetype.MIME) bool {
	for _, allowed := range s.allowed {
		if mtype.Is(allowed) {
			return true
		}
	}
	return false
}

// resolve maps key to a path inside baseDir. Keys are single path elements.
func (s *LocalFileStorage) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	absPath, err := filepath.Abs(filepath.Join(s.baseDir, key))
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return absPath, nil
}

func baseType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}

var _ port.FileStorage = (*LocalFileStorage)(nil)
