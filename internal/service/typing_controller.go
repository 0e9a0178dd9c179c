package service

import (
	"log/slog"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
)

const DefaultTypingDebounce = 500 * time.Millisecond

type TypingState int

const (
	TypingIdle TypingState = iota
	TypingActive
)

func (s TypingState) String() string {
	if s == TypingActive {
		return "typing"
	}
	return "idle"
}

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

var SystemClock Clock = systemClock{}

type ActionSender interface {
	SendAction(a domain.Action) error
}

// Dispatcher переносит вызов в цикл сессии. Колбэк таймера срабатывает
// в чужой горутине и сам состояние не трогает.
type Dispatcher func(fn func())

// TypingController: индикатор «печатает» по двум направлениям.
// Локальное направление дебаунсится одним таймером, удалённое управляется
// только входящими istyping/endtyping. Все методы вызываются из цикла сессии.
type TypingController struct {
	self     domain.UserID
	delay    time.Duration
	clock    Clock
	dispatch Dispatcher
	sender   ActionSender
	sink     domain.Sink

	local     TypingState
	peer      TypingState
	selfShown bool
	peerShown bool

	timer Timer
	gen   uint64 // номер актуального таймера, устаревшие срабатывания отбрасываются
}

func NewTypingController(self domain.UserID, delay time.Duration, clock Clock, dispatch Dispatcher, sender ActionSender, sink domain.Sink) *TypingController {
	if delay <= 0 {
		delay = DefaultTypingDebounce
	}
	if clock == nil {
		clock = SystemClock
	}
	return &TypingController{
		self:     self,
		delay:    delay,
		clock:    clock,
		dispatch: dispatch,
		sender:   sender,
		sink:     sink,
	}
}

func (c *TypingController) localState() TypingState { return c.local }
func (c *TypingController) peerState() TypingState  { return c.peer }

// Keystroke: очередное нажатие. Первое в серии шлёт istyping и
// показывает плейсхолдер, каждое перезапускает таймер.
func (c *TypingController) Keystroke() error {
	c.stopTimer()

	var err error
	if c.local == TypingIdle {
		c.local = TypingActive
		c.selfShown = true
		c.sink.Emit(domain.TypingPlaceholder{Side: domain.SideSelf, ID: domain.PlaceholderSelf, UserID: c.self})
		err = c.sender.SendAction(domain.ActionIsTyping)
	}

	c.arm()
	return err
}

// MessageSent гасит серию без endtyping: текстовый кадр сам вытесняет плейсхолдер у пира.
func (c *TypingController) MessageSent() {
	c.stopTimer()
	c.local = TypingIdle
	c.hideSelf()
}

// Stop снимает таймер при выгрузке сессии.
func (c *TypingController) Stop() {
	c.stopTimer()
}

func (c *TypingController) arm() {
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.delay, func() {
		c.dispatch(func() { c.expire(gen) })
	})
}

func (c *TypingController) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *TypingController) expire(gen uint64) {
	if gen != c.gen || c.local != TypingActive {
		return
	}
	c.timer = nil
	c.local = TypingIdle
	c.hideSelf()
	if err := c.sender.SendAction(domain.ActionEndTyping); err != nil {
		slog.Warn("typing: send endtyping failed", "err", err)
	}
}

func (c *TypingController) hideSelf() {
	if !c.selfShown {
		return
	}
	c.selfShown = false
	c.sink.Emit(domain.RemovePlaceholder{ID: domain.PlaceholderSelf})
}

// PeerTyping: входящий istyping от пира. Плейсхолдер появляется только
// на переходе Idle -> Typing.
func (c *TypingController) PeerTyping(peer domain.UserID) []domain.RenderEvent {
	if c.peer == TypingActive {
		return nil
	}
	c.peer = TypingActive
	c.peerShown = true
	return []domain.RenderEvent{domain.TypingPlaceholder{Side: domain.SidePeer, ID: domain.PlaceholderPeer, UserID: peer}}
}

// PeerEnded: входящий endtyping, удаление идемпотентно.
func (c *TypingController) PeerEnded() []domain.RenderEvent {
	c.peer = TypingIdle
	c.peerShown = false
	return []domain.RenderEvent{domain.RemovePlaceholder{ID: domain.PlaceholderPeer}}
}

// Supersede: пришёл текст со стороны side, его плейсхолдер убирается если показан.
func (c *TypingController) Supersede(side domain.Side) []domain.RenderEvent {
	switch side {
	case domain.SidePeer:
		c.peer = TypingIdle
		if !c.peerShown {
			return nil
		}
		c.peerShown = false
	default:
		if !c.selfShown {
			return nil
		}
		c.selfShown = false
	}
	return []domain.RenderEvent{domain.RemovePlaceholder{ID: domain.PlaceholderFor(side)}}
}
