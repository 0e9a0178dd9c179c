package devserver

import (
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"
)

type Conn interface {
	Send(v any) error
	Close() error
	UserID() domain.UserID
	ChannelID() uint64
}

// Hub: сокеты по каналам в порядке подключения.
type Hub struct {
	mu       sync.RWMutex
	channels map[uint64][]Conn
}

func NewHub() *Hub {
	return &Hub{channels: make(map[uint64][]Conn)}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels[c.ChannelID()] = append(h.channels[c.ChannelID()], c)
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cs := h.channels[c.ChannelID()]
	for i, x := range cs {
		if x == c {
			cs = append(cs[:i], cs[i+1:]...)
			break
		}
	}
	if len(cs) == 0 {
		delete(h.channels, c.ChannelID())
		return
	}
	h.channels[c.ChannelID()] = cs
}

func (h *Hub) Broadcast(channelID uint64, f domain.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.channels[channelID] {
		_ = c.Send(f) // best-effort
	}
}

// Online: пользователи с открытым сокетом, без повторов.
func (h *Hub) Online(channelID uint64) []domain.UserID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[domain.UserID]struct{})
	var ids []domain.UserID
	for _, c := range h.channels[channelID] {
		if _, ok := seen[c.UserID()]; ok {
			continue
		}
		seen[c.UserID()] = struct{}{}
		ids = append(ids, c.UserID())
	}
	return ids
}
