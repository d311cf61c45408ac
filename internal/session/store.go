package session

import (
	"os"
	"strconv"
	"strings"
)

// ProfileIDStore persists a single value: the active profile id. It is
// deliberately narrow; the profile list itself is never stored locally.
type ProfileIDStore interface {
	Load() (int64, bool, error)
	Save(id int64) error
	Clear() error
}

// FileProfileIDStore keeps the active profile id in a small text file,
// the desktop equivalent of the browser's localStorage key.
type FileProfileIDStore struct {
	path string
}

func NewFileProfileIDStore(path string) *FileProfileIDStore {
	return &FileProfileIDStore{path: path}
}

func (f *FileProfileIDStore) Load() (int64, bool, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		// corrupt file is the same as no selection
		return 0, false, nil
	}
	return id, true, nil
}

func (f *FileProfileIDStore) Save(id int64) error {
	return os.WriteFile(f.path, []byte(strconv.FormatInt(id, 10)), 0o600)
}

func (f *FileProfileIDStore) Clear() error {
	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemoryProfileIDStore is an in-memory ProfileIDStore for tests and
// embedders that do not want durable selection.
type MemoryProfileIDStore struct {
	id  int64
	set bool
}

func (m *MemoryProfileIDStore) Load() (int64, bool, error) { return m.id, m.set, nil }

func (m *MemoryProfileIDStore) Save(id int64) error {
	m.id, m.set = id, true
	return nil
}

func (m *MemoryProfileIDStore) Clear() error {
	m.id, m.set = 0, false
	return nil
}
