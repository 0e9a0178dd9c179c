package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"
)

type fakeTimer struct {
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: c.now + d, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now += d
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			t.fn()
		}
	}
}

func (c *fakeClock) active() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func syncDispatch(fn func()) { fn() }

type recordingSender struct {
	actions []domain.Action
	err     error
}

func (s *recordingSender) SendAction(a domain.Action) error {
	if s.err != nil {
		return s.err
	}
	s.actions = append(s.actions, a)
	return nil
}

func (s *recordingSender) count(a domain.Action) int {
	n := 0
	for _, got := range s.actions {
		if got == a {
			n++
		}
	}
	return n
}

type recordingSink struct {
	events []domain.RenderEvent
}

func (s *recordingSink) Emit(ev domain.RenderEvent) { s.events = append(s.events, ev) }

type fakeNames struct {
	names map[domain.UserID]string
	calls atomic.Int32
	gate  chan struct{}
	fail  bool
}

func (f *fakeNames) FetchDisplayName(_ context.Context, id domain.UserID) (string, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.fail {
		return "", errs.ErrTransientFetch
	}
	name, ok := f.names[id]
	if !ok {
		return "", errors.New("unknown user")
	}
	return name, nil
}

type fakeOnline struct {
	mu  sync.Mutex
	ids []domain.UserID
	err error
}

func (f *fakeOnline) set(ids ...domain.UserID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = ids
	f.err = nil
}

func (f *fakeOnline) FetchOnlineIDs(context.Context, domain.Credential) ([]domain.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.UserID(nil), f.ids...), nil
}
