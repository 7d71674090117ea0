package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileStore keeps the run state in a local JSON file. Missing or
// unreadable files load as the zero state.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger.Named("state")}
}

// Load reads the state file. A missing or corrupt file yields the zero
// state and a nil error.
func (f *FileStore) Load(_ context.Context) (RunState, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.logger.Warn("state file unreadable, starting empty",
				zap.String("path", f.path), zap.Error(err))
		}
		return RunState{}, nil
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		f.logger.Warn("state file corrupt, starting empty",
			zap.String("path", f.path), zap.Error(err))
		return RunState{}, nil
	}
	return s, nil
}

// Save writes the state file atomically via a temp file rename.
func (f *FileStore) Save(_ context.Context, s RunState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
