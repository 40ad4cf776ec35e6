package core

// service.go holds the Service type and the staged-file lifecycle: saving
// uploads into the staging directory, resolving client-supplied paths back
// into it safely, and expiring old files.

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxFileSize is the upload size limit when none is configured (16MB).
const DefaultMaxFileSize int64 = 16 * 1024 * 1024

const defaultSampleRows = 5

// TxRunner runs a function inside one storage transaction. Store calls made
// with the context it passes to fn join that transaction.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// noTx runs fn directly. Used when no transaction manager is configured,
// as in tests backed by in-memory stores.
type noTx struct{}

func (noTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service provides the import business logic on top of the persistence
// stores. One Service is shared by all requests.
type Service struct {
	logs        ImportLogStore
	records     RecordStore
	tx          TxRunner
	uploadsDir  string
	maxFileSize int64
	sampleRows  int
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMaxFileSize overrides the upload size limit.
func WithMaxFileSize(n int64) ServiceOption {
	return func(s *Service) { s.maxFileSize = n }
}

// WithSampleRows overrides how many rows a preview samples.
func WithSampleRows(n int) ServiceOption {
	return func(s *Service) { s.sampleRows = n }
}

// WithTxRunner makes each import's record insert and log finish commit
// atomically.
func WithTxRunner(tx TxRunner) ServiceOption {
	return func(s *Service) { s.tx = tx }
}

// NewService creates a Service. The uploads directory is created if missing.
func NewService(logs ImportLogStore, records RecordStore, uploadsDir string, opts ...ServiceOption) (*Service, error) {
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	s := &Service{
		logs:        logs,
		records:     records,
		tx:          noTx{},
		uploadsDir:  uploadsDir,
		maxFileSize: DefaultMaxFileSize,
		sampleRows:  defaultSampleRows,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MaxFileSize returns the configured upload size limit.
func (s *Service) MaxFileSize() int64 { return s.maxFileSize }

// StagedFile describes a saved upload.
type StagedFile struct {
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
	FileSize int64  `json:"file_size"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename reduces a client-supplied filename to a safe base name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}

// SaveUpload validates and writes an uploaded file into the staging
// directory. The stored name is prefixed with a random ID so concurrent
// uploads of the same filename never clobber each other.
func (s *Service) SaveUpload(filename string, r io.Reader) (*StagedFile, error) {
	if !SupportedExtension(filename) {
		return nil, fmt.Errorf("%w: use %s", ErrUnsupportedFormat, strings.Join(SupportedExtensions, ", "))
	}

	safe := sanitizeFilename(filename)
	stored := uuid.New().String() + "_" + safe
	path := filepath.Join(s.uploadsDir, stored)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create staged file: %w", err)
	}
	defer f.Close()

	// +1 so a file exactly at the limit still fits and anything beyond
	// trips the check.
	n, err := io.Copy(f, io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if n > s.maxFileSize {
		os.Remove(path)
		return nil, fmt.Errorf("%w: limit is %dMB", ErrFileTooLarge, s.maxFileSize/(1024*1024))
	}

	return &StagedFile{Filename: safe, Filepath: path, FileSize: n}, nil
}

// resolveStagedPath verifies a client-supplied path points inside the
// staging directory and exists. Paths are attacker-controlled input.
func (s *Service) resolveStagedPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	dir, err := filepath.Abs(s.uploadsDir)
	if err != nil {
		return "", fmt.Errorf("resolve uploads directory: %w", err)
	}
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return abs, nil
}

// originalFilename strips the staging ID prefix from a stored file name.
func originalFilename(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i >= 0 && i == 36 {
		// 36 bytes is exactly a UUID prefix.
		return base[i+1:]
	}
	return base
}

// RemoveStagedFile deletes a staged file after a terminal import attempt.
// Missing files are not an error; cleanup may have raced.
func (s *Service) RemoveStagedFile(path string) {
	abs, err := s.resolveStagedPath(path)
	if err != nil {
		return
	}
	os.Remove(abs)
}

// CleanupOldFiles removes staged files older than the retention window and
// returns how many were deleted.
func (s *Service) CleanupOldFiles(days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	entries, err := os.ReadDir(s.uploadsDir)
	if err != nil {
		return 0, fmt.Errorf("read uploads directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.uploadsDir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
