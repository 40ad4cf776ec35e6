// Package session tracks one import attempt from file selection to commit.
// It is the client-side state machine behind interactive frontends: every
// transition is explicit, and operations that do not apply to the current
// state are rejected instead of silently ignored.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mobidash/importd/internal/client"
	"github.com/mobidash/importd/internal/core"
)

// State is the lifecycle phase of a session.
type State int

const (
	// StateIdle means no file is selected.
	StateIdle State = iota
	// StateStaged means a local file passed validation and awaits preview.
	StateStaged
	// StatePreviewed means the server analyzed the file; mapping is editable.
	StatePreviewed
	// StateCommitting means a commit request is in flight.
	StateCommitting
	// StateCommitted means the import finished; the outcome is available.
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStaged:
		return "staged"
	case StatePreviewed:
		return "previewed"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

var (
	// ErrNoFile is returned when an operation needs a selected file.
	ErrNoFile = errors.New("no file selected")
	// ErrNoPreview is returned when an operation needs a completed preview.
	ErrNoPreview = errors.New("file has not been previewed")
	// ErrRequestInProgress rejects a second preview while one is running.
	ErrRequestInProgress = errors.New("preview request already in progress")
	// ErrCommitInProgress rejects a second commit while one is running.
	ErrCommitInProgress = errors.New("commit already in progress")
	// ErrAlreadyCommitted rejects commits after a session finished.
	ErrAlreadyCommitted = errors.New("session already committed")
	// ErrMappingIncomplete rejects commits while required fields are unmapped.
	ErrMappingIncomplete = errors.New("required fields are not mapped")
	// ErrUnknownColumn rejects mapping to a column the file does not have.
	ErrUnknownColumn = errors.New("column not present in the file")
	// ErrHistoryFetch wraps a failed history refresh. The last fetched list
	// stays available, so callers may treat it as non-fatal.
	ErrHistoryFetch = errors.New("history refresh failed")
)

// API is the slice of the import client a session drives.
type API interface {
	Upload(ctx context.Context, importType core.ImportType, filename string, r io.Reader) (*client.UploadResult, error)
	Execute(ctx context.Context, params client.ExecuteParams) (*core.ImportOutcome, error)
	History(ctx context.Context, limit int) ([]core.ImportLogEntry, error)
}

// Session is one import attempt. Safe for concurrent use.
type Session struct {
	mu  sync.Mutex
	api API

	importType  core.ImportType
	maxFileSize int64

	state      State
	localPath  string
	fileSize   int64
	remotePath string
	preview    *core.PreviewResult
	mapping    core.FieldMapping
	outcome    *core.ImportOutcome

	previewInFlight bool
	commitAttempt   int
	commitKey       string

	history []core.ImportLogEntry
}

// Option customizes a Session.
type Option func(*Session)

// WithMaxFileSize sets the local size limit checked at selection time.
func WithMaxFileSize(n int64) Option {
	return func(s *Session) { s.maxFileSize = n }
}

// New creates an idle session for one import type.
func New(api API, importType core.ImportType, opts ...Option) *Session {
	s := &Session{
		api:         api,
		importType:  importType,
		maxFileSize: core.DefaultMaxFileSize,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SelectFile validates a local file and stages it for preview. Selecting a
// new file resets any previous preview, mapping and outcome.
func (s *Session) SelectFile(path string) error {
	if !core.SupportedExtension(path) {
		return fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
	}
	if info.Size() > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes", core.ErrFileTooLarge, info.Size())
	}
	if info.Size() == 0 {
		return core.ErrEmptyFile
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitting {
		return ErrCommitInProgress
	}

	s.reset()
	s.localPath = path
	s.fileSize = info.Size()
	s.state = StateStaged
	return nil
}

// Clear drops the selected file and returns the session to idle.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitting {
		return ErrCommitInProgress
	}
	s.reset()
	return nil
}

// reset clears all per-file state. Caller holds the lock.
func (s *Session) reset() {
	s.state = StateIdle
	s.localPath = ""
	s.fileSize = 0
	s.remotePath = ""
	s.preview = nil
	s.mapping = nil
	s.outcome = nil
	s.commitAttempt = 0
	s.commitKey = ""
}

// RequestPreview uploads the staged file and stores the server's analysis.
// The detected mapping becomes the session's initial mapping. Only one
// preview may be in flight at a time.
func (s *Session) RequestPreview(ctx context.Context) (*core.PreviewResult, error) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return nil, ErrNoFile
	}
	if s.state == StateCommitting {
		s.mu.Unlock()
		return nil, ErrCommitInProgress
	}
	if s.state == StateCommitted {
		s.mu.Unlock()
		return nil, ErrAlreadyCommitted
	}
	if s.previewInFlight {
		s.mu.Unlock()
		return nil, ErrRequestInProgress
	}
	s.previewInFlight = true
	path := s.localPath
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.previewInFlight = false
		s.mu.Unlock()
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", core.ErrFileNotFound, path)
	}
	defer f.Close()

	result, err := s.api.Upload(ctx, s.importType, filepath.Base(path), f)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The file may have been cleared or swapped while uploading. Discard
	// the stale result rather than attaching it to the wrong file.
	if s.localPath != path {
		return nil, ErrNoFile
	}

	s.remotePath = result.Filepath
	s.preview = result.Preview
	s.mapping = result.Preview.DetectedMapping.Clone()
	s.commitKey = ""
	s.state = StatePreviewed
	return result.Preview, nil
}

// Preview returns the last analysis, or nil before one completed.
func (s *Session) Preview() *core.PreviewResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// SetMapping assigns a source column to a logical field. An empty column
// unmaps the field. Changing the mapping invalidates the commit key.
func (s *Session) SetMapping(field, column string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle, StateStaged:
		return ErrNoPreview
	case StateCommitting:
		return ErrCommitInProgress
	case StateCommitted:
		return ErrAlreadyCommitted
	}

	if column == "" {
		delete(s.mapping, field)
		s.commitKey = ""
		return nil
	}

	if !slices.Contains(s.preview.Columns, column) {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, column)
	}
	s.mapping[field] = column
	s.commitKey = ""
	return nil
}

// Mapping returns a copy of the current mapping. Mutating the copy does not
// affect the session.
func (s *Session) Mapping() core.FieldMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping.Clone()
}

// MappingComplete reports whether every required field is mapped.
func (s *Session) MappingComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.preview == nil {
		return false
	}
	for _, field := range s.preview.RequiredFields {
		if s.mapping[field] == "" {
			return false
		}
	}
	return true
}

// Commit submits the import. The idempotency key is derived from the staged
// file and mapping, so retrying after a timeout or transport failure reuses
// the same key and cannot double-import. A rejected commit returns the
// session to the previewed state for correction.
func (s *Session) Commit(ctx context.Context) (*core.ImportOutcome, error) {
	s.mu.Lock()
	switch s.state {
	case StateIdle, StateStaged:
		s.mu.Unlock()
		return nil, ErrNoPreview
	case StateCommitting:
		s.mu.Unlock()
		return nil, ErrCommitInProgress
	case StateCommitted:
		s.mu.Unlock()
		return nil, ErrAlreadyCommitted
	}

	complete := true
	for _, field := range s.preview.RequiredFields {
		if s.mapping[field] == "" {
			complete = false
			break
		}
	}
	if !complete {
		s.mu.Unlock()
		return nil, ErrMappingIncomplete
	}

	if s.commitKey == "" {
		s.commitAttempt++
		s.commitKey = commitKey(s.remotePath, s.mapping, s.commitAttempt)
	}

	params := client.ExecuteParams{
		Filepath:       s.remotePath,
		ImportType:     s.importType,
		Mapping:        s.mapping.Clone(),
		IdempotencyKey: s.commitKey,
	}
	s.state = StateCommitting
	s.mu.Unlock()

	outcome, err := s.api.Execute(ctx, params)

	s.mu.Lock()
	if err != nil {
		// Retryable failures keep the key so a re-commit is deduplicated
		// server-side. Rejections get a fresh key once the input changes.
		s.state = StatePreviewed
		if !client.Retryable(err) {
			s.commitKey = ""
		}
		s.mu.Unlock()
		return nil, err
	}

	s.outcome = outcome
	s.state = StateCommitted
	s.mu.Unlock()

	// Best effort: surface the finished import in the history list.
	_, _ = s.RefreshHistory(ctx, core.DefaultHistoryLimit)

	return outcome, nil
}

// Outcome returns the commit result, or nil before the session committed.
func (s *Session) Outcome() *core.ImportOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// RefreshHistory fetches the latest import history. On failure the
// previously fetched list stays available through History and the error is
// wrapped in ErrHistoryFetch.
func (s *Session) RefreshHistory(ctx context.Context, limit int) ([]core.ImportLogEntry, error) {
	entries, err := s.api.History(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHistoryFetch, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = entries
	return entries, nil
}

// History returns the most recently fetched history list.
func (s *Session) History() []core.ImportLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// commitKey derives a deterministic idempotency key from the staged file,
// the mapping and the attempt counter.
func commitKey(remotePath string, mapping core.FieldMapping, attempt int) string {
	fields := make([]string, 0, len(mapping))
	for field := range mapping {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(remotePath)
	for _, field := range fields {
		b.WriteByte('|')
		b.WriteString(field)
		b.WriteByte('=')
		b.WriteString(mapping[field])
	}
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(attempt))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
