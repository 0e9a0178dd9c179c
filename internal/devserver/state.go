package devserver

import (
	"errors"
	"slices"
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotMember       = errors.New("not a channel member")
)

type channel struct {
	members  []domain.UserID
	messages []domain.Frame
}

// State: всё хранилище dev-сервера в памяти процесса.
type State struct {
	mu       sync.Mutex
	users    map[domain.UserID]domain.User
	sessions map[string]domain.UserID
	channels map[uint64]*channel
	nextID   uint64
}

func NewState() *State {
	return &State{
		users:    make(map[domain.UserID]domain.User),
		sessions: make(map[string]domain.UserID),
		channels: make(map[uint64]*channel),
	}
}

// CreateUser заводит пользователя и сессию, возвращает значение cookie.
func (s *State) CreateUser(name string) (domain.User, string) {
	u := domain.User{ID: domain.UserID(uuid.NewString()), Name: name}
	sid := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.sessions[sid] = u.ID
	return u, sid
}

func (s *State) UserBySession(sid string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[sid]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *State) User(id domain.UserID) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return u, nil
}

func (s *State) CreateChannel(a, b domain.UserID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.channels[s.nextID] = &channel{members: []domain.UserID{a, b}}
	return s.nextID
}

func (s *State) Members(cid uint64) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[cid]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return slices.Clone(ch.members), nil
}

// CheckMember: канал существует и uid в нём.
func (s *State) CheckMember(cid uint64, uid domain.UserID) error {
	members, err := s.Members(cid)
	if err != nil {
		return err
	}
	if !slices.Contains(members, uid) {
		return ErrNotMember
	}
	return nil
}

func (s *State) Append(cid uint64, f domain.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[cid]
	if !ok {
		return ErrChannelNotFound
	}
	ch.messages = append(ch.messages, f)
	return nil
}

func (s *State) Messages(cid uint64) ([]domain.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[cid]
	if !ok {
		return nil, ErrChannelNotFound
	}
	return slices.Clone(ch.messages), nil
}

// DeleteChannel возвращает false, если канала уже нет.
func (s *State) DeleteChannel(cid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[cid]; !ok {
		return false
	}
	delete(s.channels, cid)
	return true
}
