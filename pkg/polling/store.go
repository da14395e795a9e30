package polling

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists one session as JSON on disk, letting a host suspend
// a session across restarts. It holds at most the in-flight session and
// is cleared when the session emits its terminal decision.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store that persists the session at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the stored session. It returns nil with no error when
// nothing is stored.
func (f *FileStore) Load() (*SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}
	s := &SessionState{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}
	return s, nil
}

// Save writes the session, replacing any previous one. The write goes to
// a temporary file first so the stored state is never half-written.
func (f *FileStore) Save(s *SessionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create the state directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Clear removes any stored session.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session state: %w", err)
	}
	return nil
}
