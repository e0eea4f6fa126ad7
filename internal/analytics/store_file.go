package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileState struct {
	Latest  Snapshot   `json:"latest"`
	History []Snapshot `json:"history"`
}

// FileStore keeps counters in memory and mirrors every change to a JSON file
// (whole-file overwrite). One mutex covers the read-modify-write-persist
// sequence for both request-path increments and the background snapshot.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	state  fileState

	now func() time.Time
}

// NewFileStore loads prior state from path if present, otherwise starts at
// zero and persists immediately.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &FileStore{path: path, logger: logger, now: time.Now}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.state); err != nil {
			logger.Warn("analytics file unreadable, starting fresh", "path", path, "error", err)
			s.resetLocked()
		} else {
			logger.Info("loaded analytics data", "path", path)
		}
	case errors.Is(err, os.ErrNotExist):
		s.resetLocked()
		s.persistLocked(context.Background())
		logger.Info("initialized new analytics data", "path", path)
	default:
		return nil, err
	}

	return s, nil
}

func (s *FileStore) Increment(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case KindRegistration:
		s.state.Latest.Registrations++
	case KindVerification:
		s.state.Latest.Verifications++
	case KindRejection:
		s.state.Latest.Rejections++
	}
	s.state.Latest.Timestamp = s.now().Unix()
	s.persistLocked(ctx)
	return nil
}

func (s *FileStore) TakeSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.Latest
	snapshot.Timestamp = s.now().Unix()
	s.state.History = append(s.state.History, snapshot)
	if n := len(s.state.History); n > HistoryLimit {
		s.state.History = s.state.History[n-HistoryLimit:]
	}
	s.persistLocked(ctx)
	return nil
}

func (s *FileStore) Latest(context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Latest, nil
}

func (s *FileStore) History(context.Context) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.state.History))
	copy(out, s.state.History)
	return out, nil
}

func (s *FileStore) resetLocked() {
	s.state = fileState{
		Latest:  Snapshot{Timestamp: s.now().Unix()},
		History: []Snapshot{},
	}
}

// persistLocked overwrites the backing file. Failures are logged and
// swallowed: analytics never escalates into the request path.
func (s *FileStore) persistLocked(ctx context.Context) {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal analytics data", "error", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.logger.ErrorContext(ctx, "save analytics data", "path", s.path, "error", err)
	}
}
