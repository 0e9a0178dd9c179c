package render

import (
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"
)

type LineKind int

const (
	LineText LineKind = iota
	LineTyping
	LineBanner
	LineHome
)

// Line: строка ленты чата в порядке поступления.
type Line struct {
	Kind   LineKind
	Side   domain.Side
	ID     string // только у плейсхолдеров
	UserID domain.UserID
	Name   string
	Text   string
	Time   string
}

// Recorder: sink, собирающий ленту. Плейсхолдер с данным id есть в ленте не более одного раза.
type Recorder struct {
	mu       sync.Mutex
	lines    []Line
	status   domain.StatusLine
	home     bool
	onChange func()
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// OnChange вызывается после каждого Emit вне блокировки.
func (r *Recorder) OnChange(fn func()) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

func (r *Recorder) Emit(ev domain.RenderEvent) {
	r.mu.Lock()
	switch ev := ev.(type) {
	case domain.TextBubble:
		r.lines = append(r.lines, Line{
			Kind: LineText, Side: ev.Side, UserID: ev.UserID,
			Name: ev.Name, Text: ev.Payload, Time: ev.Time,
		})
	case domain.TypingPlaceholder:
		if r.indexOf(ev.ID) < 0 {
			r.lines = append(r.lines, Line{Kind: LineTyping, Side: ev.Side, ID: ev.ID, UserID: ev.UserID})
		}
	case domain.RemovePlaceholder:
		if i := r.indexOf(ev.ID); i >= 0 {
			r.lines = append(r.lines[:i], r.lines[i+1:]...)
		}
	case domain.ActionBanner:
		r.lines = append(r.lines, Line{Kind: LineBanner, Text: ev.Text})
	case domain.ReturnHome:
		r.home = true
		r.lines = append(r.lines, Line{Kind: LineHome})
	case domain.StatusLine:
		r.status = ev
	}
	fn := r.onChange
	r.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (r *Recorder) indexOf(id string) int {
	for i, l := range r.lines {
		if l.Kind == LineTyping && l.ID == id {
			return i
		}
	}
	return -1
}

func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

func (r *Recorder) Status() domain.StatusLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Home: пришёл ReturnHome, UI должен вернуться к подбору.
func (r *Recorder) Home() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.home
}
