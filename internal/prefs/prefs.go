package prefs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kyleking/gen-console/internal/config"
)

const (
	valueSuffix = ".value"
	metaSuffix  = ".meta"
)

// Store is a process-wide string key/value preference store. Writes are
// synchronous and unversioned; the last writer wins.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
	Keys() ([]string, error)
}

// Entry is the sidecar metadata written next to every value
type Entry struct {
	Key       string    `json:"key"`
	UpdatedAt time.Time `json:"updated_at"`
	Size      int       `json:"size"`
}

// FileStore implements Store with one value file and one metadata file per key
type FileStore struct {
	directory string
	mu        sync.RWMutex
}

// NewFileStore creates the preference directory if needed
func NewFileStore(directory string) (*FileStore, error) {
	directory = config.ExpandPath(directory)

	if err := os.MkdirAll(directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preferences directory: %w", err)
	}

	return &FileStore{directory: directory}, nil
}

// Dir returns the directory holding the preference files
func (s *FileStore) Dir() string {
	return s.directory
}

// Get returns the stored value and whether the key exists
func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.valuePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("failed to read preference %q: %w", key, err)
	}

	return string(data), true, nil
}

// Set stores value under key, replacing any previous value
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	valuePath := s.valuePath(key)

	if err := writeFileAtomic(valuePath, []byte(value)); err != nil {
		return fmt.Errorf("failed to write preference %q: %w", key, err)
	}

	meta, err := json.Marshal(Entry{Key: key, UpdatedAt: time.Now(), Size: len(value)})
	if err != nil {
		os.Remove(valuePath)
		return fmt.Errorf("failed to marshal preference metadata: %w", err)
	}

	if err := writeFileAtomic(s.metaPath(key), meta); err != nil {
		os.Remove(valuePath)
		return fmt.Errorf("failed to write preference metadata: %w", err)
	}

	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range []string{s.valuePath(key), s.metaPath(key)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete preference %q: %w", key, err)
		}
	}

	return nil
}

// Clear removes every stored preference
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("failed to read preferences directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, valueSuffix) && !strings.HasSuffix(name, metaSuffix) {
			continue
		}

		if err := os.Remove(filepath.Join(s.directory, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	return nil
}

// Keys lists stored keys in sorted order, recovered from the metadata files
func (s *FileStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string

	err := filepath.WalkDir(s.directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Unreadable sidecars are skipped rather than failing the listing
			return nil
		}

		keys = append(keys, entry.Key)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}

	sort.Strings(keys)

	return keys, nil
}

func (s *FileStore) valuePath(key string) string {
	return filepath.Join(s.directory, hashKey(key)+valueSuffix)
}

func (s *FileStore) metaPath(key string) string {
	return filepath.Join(s.directory, hashKey(key)+metaSuffix)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}

// writeFileAtomic writes through a temp file so a crash never leaves a torn value
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// MemoryStore is an in-process Store, used when no preference directory is configured
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]

	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.values = map[string]string{}
	m.mu.Unlock()

	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys, nil
}
