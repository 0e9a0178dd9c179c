package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/transport/ws"
	"github.com/cwrk-planet/pairchat/pkg/errs"
)

type fakeBackend struct {
	mu         sync.Mutex
	names      map[domain.UserID]string
	online     []domain.UserID
	channel    []domain.UserID
	backlog    []domain.Frame
	backlogErr error
	leaveErr   error
	leaves     int

	// gate, если задан, держит FetchBacklog и LeaveChannel до закрытия или отмены ctx
	gate chan struct{}
	held atomic.Int32
}

func (b *fakeBackend) hold(ctx context.Context) error {
	b.mu.Lock()
	gate := b.gate
	b.mu.Unlock()
	if gate == nil {
		return nil
	}
	b.held.Add(1)
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		names:   map[domain.UserID]string{"u1": "Alice", "u2": "Bob"},
		online:  []domain.UserID{"u2", "u1"},
		channel: []domain.UserID{"u1", "u2"},
	}
}

func (b *fakeBackend) FetchDisplayName(_ context.Context, id domain.UserID) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.names[id]
	if !ok {
		return "", fmt.Errorf("%w: no user %s", errs.ErrTransientFetch, id)
	}
	return name, nil
}

func (b *fakeBackend) FetchOnlineIDs(context.Context, domain.Credential) ([]domain.UserID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.UserID(nil), b.online...), nil
}

func (b *fakeBackend) FetchChannelUserIDs(context.Context, domain.Credential) ([]domain.UserID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.UserID(nil), b.channel...), nil
}

func (b *fakeBackend) FetchBacklog(ctx context.Context, _ domain.Credential) ([]domain.Frame, error) {
	if err := b.hold(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Frame(nil), b.backlog...), b.backlogErr
}

func (b *fakeBackend) LeaveChannel(ctx context.Context, _ domain.Credential, _ domain.UserID) error {
	if err := b.hold(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaves++
	return b.leaveErr
}

func (b *fakeBackend) setOnline(ids ...domain.UserID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = ids
}

// fakeConn: соединение в памяти; тест сам кладёт события.
type fakeConn struct {
	events    chan ws.Event
	mu        sync.Mutex
	sent      []domain.Frame
	closed    bool
	aborted   bool
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	c := &fakeConn{events: make(chan ws.Event, 64)}
	c.events <- ws.Event{Kind: ws.EventOpened}
	return c
}

func (c *fakeConn) Events() <-chan ws.Event { return c.events }

func (c *fakeConn) Send(f domain.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: closed", errs.ErrConnection)
	}
	c.sent = append(c.sent, f)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		c.events <- ws.Event{Kind: ws.EventClosed, Reason: ws.ErrClosedLocally}
		close(c.events)
	})
	return nil
}

func (c *fakeConn) Abort() {
	c.mu.Lock()
	c.closed, c.aborted = true, true
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.events) })
}

func (c *fakeConn) wasAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

func (c *fakeConn) push(f domain.Frame) { c.events <- ws.Event{Kind: ws.EventFrame, Frame: f} }

func (c *fakeConn) drop(reason error) {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		c.events <- ws.Event{Kind: ws.EventClosed, Reason: reason}
		close(c.events)
	})
}

func (c *fakeConn) frames() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Frame(nil), c.sent...)
}

func (c *fakeConn) dialer() DialFunc {
	return func(context.Context) (Connection, error) { return c, nil }
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.RenderEvent
}

func (s *recordingSink) Emit(ev domain.RenderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) all() []domain.RenderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RenderEvent(nil), s.events...)
}

func (s *recordingSink) has(want domain.RenderEvent) bool {
	for _, ev := range s.all() {
		if ev == want {
			return true
		}
	}
	return false
}

type countingNotifier struct{ n atomic.Int32 }

func (c *countingNotifier) Notify(string) { c.n.Add(1) }

type fakeStore struct{ cleared atomic.Int32 }

func (s *fakeStore) ClearCredential() error {
	s.cleared.Add(1)
	return nil
}

type nopSender struct{}

func (nopSender) SendAction(domain.Action) error { return nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
