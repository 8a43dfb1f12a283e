package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	apperrors "github.com/kbukum/filestream/errors"
	"github.com/kbukum/filestream/pipeline"
)

// Store persists checkpoints by key.
type Store interface {
	// Load returns the checkpoint at key, or (nil, nil) if there is none.
	Load(ctx context.Context, key string) (pipeline.State, error)
	// Save replaces the checkpoint at key.
	Save(ctx context.Context, key string, state pipeline.State) error
	// Delete removes the checkpoint at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

func encode(key string, state pipeline.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, apperrors.InvalidState("checkpoint is not serializable").
			WithCause(err).
			WithDetail("checkpoint_key", key)
	}
	return data, nil
}

func decode(key string, data []byte) (pipeline.State, error) {
	var state pipeline.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.InvalidState("stored checkpoint is not valid JSON").
			WithCause(err).
			WithDetail("checkpoint_key", key)
	}
	return state, nil
}

// MemoryStore keeps checkpoints in process. States are stored encoded, so
// a loaded state has the same shapes as one read back from disk or Redis.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Load returns the checkpoint at key.
func (s *MemoryStore) Load(_ context.Context, key string) (pipeline.State, error) {
	s.mu.RLock()
	data, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(key, data)
}

// Save replaces the checkpoint at key.
func (s *MemoryStore) Save(_ context.Context, key string, state pipeline.State) error {
	data, err := encode(key, state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = data
	return nil
}

// Delete removes the checkpoint at key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Len returns the number of stored checkpoints.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// FileStore keeps one JSON file per key under a directory. Saves write a
// temporary file and rename it over the old one, so a crash never leaves a
// truncated checkpoint.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, apperrors.InvalidInput("checkpoint_dir", "directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.CheckpointFailed("init", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", apperrors.InvalidInput("checkpoint_key", "key must match "+validKey.String())
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Load reads the checkpoint file for key.
func (s *FileStore) Load(_ context.Context, key string) (pipeline.State, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.CheckpointFailed("load", key, err)
	}
	return decode(key, data)
}

// Save writes the checkpoint file for key.
func (s *FileStore) Save(_ context.Context, key string, state pipeline.State) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	data, err := encode(key, state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return apperrors.CheckpointFailed("save", key, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // already renamed on success

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return apperrors.CheckpointFailed("save", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return apperrors.CheckpointFailed("save", key, err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.CheckpointFailed("save", key, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return apperrors.CheckpointFailed("save", key, err)
	}
	return nil
}

// Delete removes the checkpoint file for key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.CheckpointFailed("delete", key, err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*FileStore)(nil)
)
