package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cwrk-planet/pairchat/internal/render"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const inputHeight = 2

// Chat: то, что UI вызывает у сессии. Блокирующие вызовы уходят в tea.Cmd,
// Update не ждёт цикл сессии.
type Chat interface {
	Run(ctx context.Context) error
	Keystroke() // не блокирует
	SendText(text string) error
	Leave(ctx context.Context) error
	Unload()
}

type Model struct {
	ctx   context.Context
	chat  Chat
	rec   *render.Recorder
	theme *render.Theme
	input textarea.Model

	width    int
	height   int
	finished bool
	result   error
	err      error
}

func New(ctx context.Context, chat Chat, rec *render.Recorder) Model {
	ta := textarea.New()
	ta.Placeholder = "Say something..."
	ta.Prompt = "┃ "
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	return Model{
		ctx:    ctx,
		chat:   chat,
		rec:    rec,
		theme:  render.DefaultTheme(),
		input:  ta,
		width:  80,
		height: 24,
	}
}

// Result: чем закончилась сессия.
func (m Model) Result() error { return m.result }

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RefreshMsg:
		return m, nil

	case DoneMsg:
		m.finished = true
		m.result = msg.Err
		m.input.Blur()
		return m, nil

	case ErrorMsg:
		m.err = msg
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.chat.Unload()
		return m, tea.Quit

	case tea.KeyCtrlL:
		if m.finished {
			return m, nil
		}
		chat, ctx := m.chat, m.ctx
		return m, func() tea.Msg {
			if err := chat.Leave(ctx); err != nil {
				return ErrorMsg(err)
			}
			return nil
		}

	case tea.KeyEnter:
		if m.finished {
			return m, tea.Quit
		}
		text := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if text == "" {
			return m, nil
		}
		m.err = nil
		chat := m.chat
		return m, func() tea.Msg {
			if err := chat.SendText(text); err != nil && !errors.Is(err, errs.ErrInvalidInput) {
				return ErrorMsg(err)
			}
			return nil
		}
	}

	if m.finished {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// печатает только ввод символов; стрелки, backspace и прочее не считаются
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
		m.chat.Keystroke()
	}
	return m, cmd
}

func (m Model) View() string {
	status := m.theme.Status(m.rec.Status())

	lines := m.rec.Lines()
	room := m.height - inputHeight - 3
	if room < 1 {
		room = 1
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	body := m.theme.Transcript(lines, m.width)

	hint := "enter: send  ctrl+l: leave  esc: quit"
	switch {
	case m.rec.Home() && m.finished:
		hint = "channel closed  enter: exit"
	case m.rec.Home():
		hint = "channel closed  esc: quit"
	case m.finished:
		hint = "enter: exit"
	}
	footer := m.theme.Meta.Render(hint)
	if m.err != nil {
		footer = m.theme.Offline.Render(m.err.Error())
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", status, body, m.input.View(), footer)
}

// Run поднимает программу bubbletea поверх сессии и возвращает её результат.
func Run(ctx context.Context, chat Chat, rec *render.Recorder) error {
	model := New(ctx, chat, rec)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	rec.OnChange(func() { program.Send(RefreshMsg{}) })
	go func() {
		err := chat.Run(ctx)
		program.Send(DoneMsg{Err: err})
	}()

	final, err := program.Run()
	chat.Unload()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("tui: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.Result()
	}
	return nil
}
