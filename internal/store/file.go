package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"gopkg.in/yaml.v3"
)

// FileStore хранит Record в yaml-файле. Отсутствующий файл: пустая запись.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) SaveUser(u domain.User) error {
	return s.update(func(r *Record) {
		r.UserID, r.UserName = u.ID, u.Name
	})
}

func (s *FileStore) SaveSession(sid string) error {
	return s.update(func(r *Record) {
		r.Session = sid
	})
}

func (s *FileStore) SaveCredential(c domain.Credential) error {
	return s.update(func(r *Record) {
		r.Scheme, r.Token = c.Scheme, c.Token
	})
}

func (s *FileStore) ClearCredential() error {
	return s.update(func(r *Record) {
		r.Scheme, r.Token = "", ""
	})
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

func (s *FileStore) update(fn func(r *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read()
	if err != nil {
		return err
	}
	fn(&rec)
	return s.write(rec)
}

func (s *FileStore) read() (Record, error) {
	var rec Record
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read store: %w", err)
	}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("parse store %s: %w", s.path, err)
	}
	return rec, nil
}

// write пишет через временный файл, чтобы не оставить обрезанную запись.
func (s *FileStore) write(rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return nil
}
