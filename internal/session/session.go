package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/service"
	"github.com/cwrk-planet/pairchat/internal/transport/ws"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const keyBuffer = 256

// Backend: REST-коллабораторы, нужные сессии.
type Backend interface {
	service.NameFetcher
	service.OnlineFetcher
	FetchChannelUserIDs(ctx context.Context, cred domain.Credential) ([]domain.UserID, error)
	FetchBacklog(ctx context.Context, cred domain.Credential) ([]domain.Frame, error)
	LeaveChannel(ctx context.Context, cred domain.Credential, uid domain.UserID) error
}

type CredentialStore interface {
	ClearCredential() error
}

// Connection: то, что сессия использует от ws.Conn.
type Connection interface {
	Events() <-chan ws.Event
	Send(f domain.Frame) error
	Close() error
	Abort()
}

type DialFunc func(ctx context.Context) (Connection, error)

// DialWS адаптирует ws.Dial к DialFunc.
func DialWS(opts ws.Options) DialFunc {
	return func(ctx context.Context) (Connection, error) {
		c, err := ws.Dial(ctx, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

type Config struct {
	Self       domain.User // пустое имя будет запрошено при открытии
	Credential domain.Credential
	Backend    Backend
	Store      CredentialStore
	Sink       domain.Sink
	Notifier   domain.Notifier
	Dial       DialFunc

	TypingDebounce time.Duration
	Clock          service.Clock
	Now            func() time.Time
}

func (c *Config) validate() error {
	switch {
	case c.Self.ID == "":
		return fmt.Errorf("%w: session without user id", errs.ErrInvalidInput)
	case c.Credential.Empty():
		return fmt.Errorf("%w: session without credential", errs.ErrInvalidInput)
	case c.Backend == nil || c.Sink == nil || c.Dial == nil || c.Store == nil:
		return fmt.Errorf("%w: session collaborators missing", errs.ErrInvalidInput)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return nil
}

// Session: контекст одной чат-сессии. Всё состояние меняется только
// горутиной Run; UI и таймеры присылают в неё функции через inputs.
type Session struct {
	cfg Config

	names    *service.NameResolver
	presence *service.PresenceTracker
	typing   *service.TypingController
	router   *Router

	inputs     chan func()
	keys       chan struct{}
	unload     chan struct{}
	unloadOnce sync.Once
	done       chan struct{}
	started    atomic.Bool

	loopCtx context.Context // контекст Run, отменяется и выгрузкой
	conn    Connection
	ready   bool
	ended   bool
}

func New(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		inputs: make(chan func()),
		keys:   make(chan struct{}, keyBuffer),
		unload: make(chan struct{}),
		done:   make(chan struct{}),
	}

	s.names = service.NewNameResolver(cfg.Backend)
	if cfg.Self.Name != "" {
		s.names.Seed(cfg.Self.ID, cfg.Self.Name)
	}
	s.presence = service.NewPresenceTracker(cfg.Self.ID, cfg.Credential, cfg.Backend, s.names)
	s.typing = service.NewTypingController(cfg.Self.ID, cfg.TypingDebounce, cfg.Clock, s.dispatch, s, cfg.Sink)
	s.router = NewRouter(cfg.Self.ID, s.names, s.presence, s.typing)

	return s, nil
}

// Done закрывается, когда Run вернулся.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run открывает соединение и крутит цикл до закрытия сокета, выгрузки или отмены ctx.
// После leaved возвращает errs.ErrAuthExpired, после неожиданного закрытия: errs.ErrConnection.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: session already started", errs.ErrInvalidInput)
	}
	defer close(s.done)
	defer s.typing.Stop()

	if s.cfg.Credential.Expired(s.cfg.Now()) {
		s.forget()
		return fmt.Errorf("%w: token expired", errs.ErrAuthExpired)
	}

	// выгрузка отменяет всё, что цикл сейчас ждёт от сервера
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.unload:
			cancel()
		case <-ctx.Done():
		}
	}()
	s.loopCtx = ctx

	conn, err := s.cfg.Dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, errs.ErrAuthExpired) {
			s.forget()
		}
		return err
	}
	s.conn = conn

	events := conn.Events()
	for {
		select {
		case <-ctx.Done():
			conn.Abort()
			return nil

		case <-s.keys:
			s.keystroke()

		case fn := <-s.inputs:
			// нажатия, поставленные раньше, обрабатываются раньше
			s.drainKeys()
			fn()

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case ws.EventOpened:
				s.bootstrap(ctx)
			case ws.EventFrame:
				s.handle(ctx, ev.Frame)
			case ws.EventClosed:
				if ctx.Err() != nil {
					conn.Abort()
					return nil
				}
				return s.closed(ev.Reason)
			}
		}
	}
}

func (s *Session) bootstrap(ctx context.Context) {
	ctx, span := otel.Tracer("pairchat/session").Start(ctx, "session.bootstrap")
	defer span.End()

	var (
		g       errgroup.Group
		backlog []domain.Frame
		loaded  bool
	)

	if _, ok := s.names.Lookup(s.cfg.Self.ID); !ok {
		g.Go(func() error {
			_, err := s.names.Resolve(ctx, s.cfg.Self.ID)
			return err
		})
	}
	g.Go(func() error {
		ids, err := s.cfg.Backend.FetchChannelUserIDs(ctx, s.cfg.Credential)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if id == s.cfg.Self.ID {
				continue
			}
			if _, err := s.names.Resolve(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		frames, err := s.cfg.Backend.FetchBacklog(ctx, s.cfg.Credential)
		if err != nil {
			return err
		}
		backlog, loaded = frames, true
		return nil
	})
	g.Go(func() error {
		_, err := s.presence.Refresh(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		slog.Warn("session: bootstrap incomplete", "err", err)
	}
	if ctx.Err() != nil {
		return
	}

	if summary := s.presence.Summary(); summary != "" {
		s.cfg.Sink.Emit(domain.StatusLine{Text: summary, Online: true})
	}
	for _, f := range backlog {
		for _, ev := range s.router.Render(ctx, f) {
			s.cfg.Sink.Emit(ev)
		}
	}
	if loaded && len(backlog) == 0 {
		s.cfg.Sink.Emit(domain.ActionBanner{Text: MatchedBanner})
	}

	s.ready = true
	slog.Debug("session: ready", "user", s.cfg.Self.ID, "backlog", len(backlog))
}

func (s *Session) handle(ctx context.Context, f domain.Frame) {
	res, err := s.router.Route(ctx, f)
	if err != nil {
		slog.Warn("session: frame dropped", "err", err, "user", f.UserID)
		return
	}
	for _, ev := range res.Events {
		s.cfg.Sink.Emit(ev)
	}
	if res.Notify && s.cfg.Notifier != nil {
		s.cfg.Notifier.Notify(NewMessageNotice)
	}
	if res.Ended {
		s.end()
	}
}

// end инвалидирует креды и закрывает сокет; Closed придёт событием.
func (s *Session) end() {
	if s.ended {
		return
	}
	s.ended = true
	s.ready = false
	s.typing.Stop()
	s.forget()
	if err := s.conn.Close(); err != nil {
		slog.Debug("session: close", "err", err)
	}
}

func (s *Session) forget() {
	if err := s.cfg.Store.ClearCredential(); err != nil {
		slog.Warn("session: clear credential", "err", err)
	}
}

func (s *Session) closed(reason error) error {
	s.ready = false
	s.cfg.Sink.Emit(domain.StatusLine{Text: "disconnected", Online: false})
	if s.ended {
		return fmt.Errorf("%w: channel closed", errs.ErrAuthExpired)
	}
	return fmt.Errorf("%w: %v", errs.ErrConnection, reason)
}

// dispatch переносит колбэк таймера в цикл; после завершения Run вызов теряется.
func (s *Session) dispatch(fn func()) {
	select {
	case s.inputs <- fn:
	case <-s.done:
	}
}

// call выполняет fn в цикле и ждёт результата.
func (s *Session) call(fn func() error) error {
	result := make(chan error, 1)
	select {
	case s.inputs <- func() { result <- fn() }:
	case <-s.done:
		return fmt.Errorf("%w: session finished", errs.ErrConnection)
	}
	return <-result
}

// Keystroke: нажатие клавиши в поле ввода. Не блокирует, порядок нажатий
// относительно SendText сохраняется. До окончания bootstrap игнорируется.
func (s *Session) Keystroke() {
	select {
	case s.keys <- struct{}{}:
	default:
		// буфер полон: серия и так активна, таймер перезапустят следующие нажатия
	}
}

func (s *Session) keystroke() {
	if !s.ready {
		return
	}
	if err := s.typing.Keystroke(); err != nil {
		slog.Warn("session: send istyping", "err", err)
	}
}

func (s *Session) drainKeys() {
	for {
		select {
		case <-s.keys:
			s.keystroke()
		default:
			return
		}
	}
}

// SendText отправляет текст. Пустая строка не отправляется.
func (s *Session) SendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty message", errs.ErrInvalidInput)
	}
	return s.call(func() error {
		if !s.ready {
			return fmt.Errorf("%w: session not ready", errs.ErrConnection)
		}
		s.typing.MessageSent()
		return s.conn.Send(s.frame(domain.EventText, text))
	})
}

// Leave выводит пользователя из канала: запрос на сервер, очистка кредов, возврат на главную.
func (s *Session) Leave(ctx context.Context) error {
	return s.call(func() error {
		if s.ended {
			return nil
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(s.loopCtx, cancel)
		defer stop()

		if err := s.cfg.Backend.LeaveChannel(ctx, s.cfg.Credential, s.cfg.Self.ID); err != nil {
			return fmt.Errorf("leave channel: %w", err)
		}
		s.cfg.Sink.Emit(domain.ReturnHome{})
		s.end()
		return nil
	})
}

// Unload выгружает UI: сокет рвётся без побочных эффектов закрытия, ожидающие запросы отменяются.
func (s *Session) Unload() {
	s.unloadOnce.Do(func() { close(s.unload) })
}

// SendAction реализует service.ActionSender.
func (s *Session) SendAction(a domain.Action) error {
	if s.conn == nil {
		return fmt.Errorf("%w: not connected", errs.ErrConnection)
	}
	return s.conn.Send(s.frame(domain.EventAction, string(a)))
}

func (s *Session) frame(ev domain.Event, payload string) domain.Frame {
	f := domain.Frame{
		Event:     ev,
		UserID:    s.cfg.Self.ID,
		Payload:   payload,
		ChannelID: s.cfg.Credential.Scheme.Strategy().FrameChannel(s.cfg.Credential.Token),
	}
	if ev == domain.EventText {
		f.Time = domain.StampAt(s.cfg.Now())
	}
	return f
}
