package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/gorilla/websocket"
)

type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

type EventKind int

const (
	EventOpened EventKind = iota
	EventFrame
	EventClosed
)

type Event struct {
	Kind   EventKind
	Frame  domain.Frame
	Reason error
}

var (
	ErrClosedLocally = errors.New("closed by client")
	ErrAborted       = errors.New("aborted")
)

type Options struct {
	URL          string
	Header       http.Header
	PingEvery    time.Duration
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
}

func (o *Options) defaults() {
	if o.PingEvery <= 0 {
		o.PingEvery = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Conn: клиентское соединение сессии. Connecting -> Open -> Closed,
// Closed терминальное, переподключения нет. Единственный читатель и писатель сокета.
type Conn struct {
	conn         *websocket.Conn
	pingEvery    time.Duration
	writeTimeout time.Duration

	state  atomic.Int32
	sendMu chan struct{}
	closed chan struct{}
	events chan Event

	abortOnce sync.Once
	aborted   chan struct{}

	closeOnce sync.Once
	reason    error
}

// Dial открывает сокет. Первым событием в Events всегда идёт Opened.
func Dial(ctx context.Context, opts Options) (*Conn, error) {
	opts.defaults()

	conn, resp, err := opts.Dialer.DialContext(ctx, opts.URL, opts.Header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: dial: %v", errs.ErrAuthExpired, err)
		}
		return nil, fmt.Errorf("%w: dial: %v", errs.ErrConnection, err)
	}

	c := &Conn{
		conn:         conn,
		pingEvery:    opts.PingEvery,
		writeTimeout: opts.WriteTimeout,
		sendMu:       make(chan struct{}, 1),
		closed:       make(chan struct{}),
		events:       make(chan Event, 64),
		aborted:      make(chan struct{}),
	}
	c.state.Store(int32(StateOpen))
	c.events <- Event{Kind: EventOpened}

	go c.pingLoop()
	go c.readLoop()

	return c, nil
}

func (c *Conn) State() State { return State(c.state.Load()) }

// Events закрывается после Closed (или сразу после Abort).
func (c *Conn) Events() <-chan Event { return c.events }

// Send пишет кадр; вне состояния Open: errs.ErrConnection.
func (c *Conn) Send(f domain.Frame) error {
	if c.State() != StateOpen {
		return fmt.Errorf("%w: send on %s socket", errs.ErrConnection, c.State())
	}
	select {
	case c.sendMu <- struct{}{}:
	case <-c.closed:
		return fmt.Errorf("%w: send cancelled", errs.ErrConnection)
	}
	defer func() { <-c.sendMu }()

	if c.State() != StateOpen {
		return fmt.Errorf("%w: send on %s socket", errs.ErrConnection, c.State())
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: write: %v", errs.ErrConnection, err)
	}
	return nil
}

// Close: штатное закрытие, подписчик получит Closed(ErrClosedLocally).
func (c *Conn) Close() error {
	if c.State() == StateClosed {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.writeTimeout))
	return c.shutdown(ErrClosedLocally)
}

// Abort вызывается при выгрузке, отменяет ожидающие отправки и закрывает сокет без события Closed.
func (c *Conn) Abort() {
	c.abortOnce.Do(func() { close(c.aborted) })
	_ = c.shutdown(ErrAborted)
}

func (c *Conn) shutdown(reason error) error {
	var err error
	c.closeOnce.Do(func() {
		c.reason = reason
		c.state.Store(int32(StateClosed))
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer close(c.events)

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.pingEvery))
	})
	c.conn.SetPingHandler(func(data string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.pingEvery))
		err := c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.writeTimeout))
		var ne net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil
		}
		return err
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			_ = c.shutdown(err)
			break
		}
		f, ok := domain.DecodeFrame(data)
		if !ok {
			slog.Warn("ws: dropping frame", "err", errs.ErrProtocol, "bytes", len(data))
			continue
		}
		select {
		case c.events <- Event{Kind: EventFrame, Frame: f}:
		case <-c.aborted:
			return
		}
	}

	select {
	case <-c.aborted:
		return
	default:
	}
	select {
	case c.events <- Event{Kind: EventClosed, Reason: c.reason}:
	case <-c.aborted:
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
		case <-c.closed:
			return
		}
	}
}
