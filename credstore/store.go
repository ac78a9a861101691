// Package credstore persists the ambient refresh cookie between CLI runs.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileName = "session.json"

// Record is the persisted form of the cookies set by one origin.
type Record struct {
	Origin  string         `json:"origin"`
	Cookies []StoredCookie `json:"cookies"`
	SavedAt time.Time      `json:"savedAt"`
}

type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func (c StoredCookie) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

// Store loads and saves the persisted record. Load returns an empty record
// when nothing has been saved yet.
type Store interface {
	Load() (Record, error)
	Save(rec Record) error
	Clear() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// FileStore keeps the record as JSON in a single file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores the record under dir, creating dir on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, fileName)}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("[FileStore.Load] %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("[FileStore.Load] decoding %s: %w", s.path, err)
	}
	return rec, nil
}

func (s *FileStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("[FileStore.Save] %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("[FileStore.Save] %w", err)
	}

	// Write then rename so a crash never leaves a truncated file behind.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("[FileStore.Save] %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("[FileStore.Save] %w", err)
	}
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("[FileStore.Clear] %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and short-lived processes.
type MemoryStore struct {
	mu  sync.RWMutex
	rec Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.rec
	rec.Cookies = append([]StoredCookie(nil), s.rec.Cookies...)
	return rec, nil
}

func (s *MemoryStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Cookies = append([]StoredCookie(nil), rec.Cookies...)
	s.rec = rec
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = Record{}
	return nil
}
