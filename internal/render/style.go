package render

import (
	"strings"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	ColorSelf    = lipgloss.Color("#937dd8")
	ColorPeer    = lipgloss.Color("#0f8b56")
	ColorMuted   = lipgloss.Color("#808080")
	ColorOnline  = lipgloss.Color("#2ECC71")
	ColorOffline = lipgloss.Color("#ff6b6b")
)

const ReturnHomeText = "Channel closed. Press Enter to return home."

type Theme struct {
	Self    lipgloss.Style
	Peer    lipgloss.Style
	Meta    lipgloss.Style
	Banner  lipgloss.Style
	Online  lipgloss.Style
	Offline lipgloss.Style
}

func DefaultTheme() *Theme {
	return &Theme{
		Self:    lipgloss.NewStyle().Foreground(ColorSelf),
		Peer:    lipgloss.NewStyle().Foreground(ColorPeer),
		Meta:    lipgloss.NewStyle().Foreground(ColorMuted),
		Banner:  lipgloss.NewStyle().Foreground(ColorMuted).Italic(true),
		Online:  lipgloss.NewStyle().Foreground(ColorOnline),
		Offline: lipgloss.NewStyle().Foreground(ColorOffline),
	}
}

// Line рисует строку ленты: свои сообщения прижаты вправо, чужие влево, баннеры по центру.
func (t *Theme) Line(l Line, width int) string {
	switch l.Kind {
	case LineText:
		body := t.side(l.Side).Bold(true).Render(l.Name) + " " + l.Text
		if l.Time != "" {
			body += " " + t.Meta.Render(l.Time)
		}
		return t.align(l.Side, width).Render(body)
	case LineTyping:
		return t.align(l.Side, width).Render(t.Meta.Render("..."))
	case LineBanner:
		return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(t.Banner.Render(l.Text))
	case LineHome:
		return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(t.Banner.Render(ReturnHomeText))
	}
	return ""
}

func (t *Theme) Status(s domain.StatusLine) string {
	if !s.Online {
		return t.Offline.Render("●") + " " + s.Text
	}
	return t.Online.Render("●") + " " + s.Text
}

func (t *Theme) Transcript(lines []Line, width int) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, t.Line(l, width))
	}
	return strings.Join(out, "\n")
}

func (t *Theme) side(s domain.Side) lipgloss.Style {
	if s == domain.SideSelf {
		return t.Self
	}
	return t.Peer
}

func (t *Theme) align(s domain.Side, width int) lipgloss.Style {
	pos := lipgloss.Left
	if s == domain.SideSelf {
		pos = lipgloss.Right
	}
	return lipgloss.NewStyle().Width(width).Align(pos)
}
