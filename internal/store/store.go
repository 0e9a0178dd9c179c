package store

import (
	"errors"
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"
)

var ErrNoUser = errors.New("no stored user")

// Record хранит то, что клиент помнит между запусками (профиль и текущий канал).
type Record struct {
	UserID   domain.UserID `yaml:"user_id,omitempty"`
	UserName string        `yaml:"user_name,omitempty"`
	Scheme   domain.Scheme `yaml:"scheme,omitempty"`
	Token    string        `yaml:"token,omitempty"`
	Session  string        `yaml:"session,omitempty"`
}

func (r Record) User() (domain.User, bool) {
	if r.UserID == "" {
		return domain.User{}, false
	}
	return domain.User{ID: r.UserID, Name: r.UserName}, true
}

func (r Record) Credential() (domain.Credential, bool) {
	c := domain.Credential{Scheme: r.Scheme, Token: r.Token}
	if c.Empty() {
		return domain.Credential{}, false
	}
	return c, true
}

type Store interface {
	Load() (Record, error)
	SaveUser(u domain.User) error
	SaveSession(sid string) error
	SaveCredential(c domain.Credential) error
	ClearCredential() error
	Clear() error
}

type MemoryStore struct {
	mu  sync.Mutex
	rec Record
}

func NewMemoryStore(rec Record) *MemoryStore {
	return &MemoryStore{rec: rec}
}

func (m *MemoryStore) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.UserID, m.rec.UserName = u.ID, u.Name
	return nil
}

func (m *MemoryStore) SaveSession(sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Session = sid
	return nil
}

func (m *MemoryStore) SaveCredential(c domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Scheme, m.rec.Token = c.Scheme, c.Token
	return nil
}

func (m *MemoryStore) ClearCredential() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec.Scheme, m.rec.Token = "", ""
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	return nil
}
