package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cwrk-planet/pairchat/internal/domain"
)

func TestRecorderPlaceholders(t *testing.T) {
	r := NewRecorder()
	changes := 0
	r.OnChange(func() { changes++ })

	peer := domain.TypingPlaceholder{Side: domain.SidePeer, ID: domain.PlaceholderPeer, UserID: "u2"}
	r.Emit(peer)
	r.Emit(peer)
	if got := typingIDs(r); len(got) != 1 {
		t.Fatalf("placeholder must appear once, got %v", got)
	}

	r.Emit(domain.RemovePlaceholder{ID: domain.PlaceholderPeer})
	r.Emit(domain.RemovePlaceholder{ID: domain.PlaceholderPeer})
	if got := typingIDs(r); len(got) != 0 {
		t.Fatalf("placeholder must be gone, got %v", got)
	}
	if changes != 4 {
		t.Fatalf("changes=%d", changes)
	}
}

func TestRecorderTranscript(t *testing.T) {
	r := NewRecorder()
	r.Emit(domain.ActionBanner{Text: "Matched!"})
	r.Emit(domain.TextBubble{Side: domain.SidePeer, UserID: "u2", Name: "Bob", Payload: "hi", Time: "10:00"})
	r.Emit(domain.StatusLine{Text: "Bob, you", Online: true})
	r.Emit(domain.ReturnHome{})

	lines := r.Lines()
	if len(lines) != 3 || lines[0].Kind != LineBanner || lines[1].Text != "hi" || lines[2].Kind != LineHome {
		t.Fatalf("unexpected lines %+v", lines)
	}
	if !r.Home() || r.Status().Text != "Bob, you" {
		t.Fatalf("status=%+v home=%v", r.Status(), r.Home())
	}

	out := DefaultTheme().Transcript(lines, 60)
	for _, want := range []string{"Matched!", "Bob", "hi", "10:00", ReturnHomeText} {
		if !strings.Contains(out, want) {
			t.Fatalf("transcript misses %q:\n%s", want, out)
		}
	}
}

func TestBell(t *testing.T) {
	var buf bytes.Buffer
	NewBell(&buf).Notify("You got a new message")
	if buf.String() != "\a" {
		t.Fatalf("got %q", buf.String())
	}
	NewBell(nil).Notify("ignored")
}

func typingIDs(r *Recorder) []string {
	var ids []string
	for _, l := range r.Lines() {
		if l.Kind == LineTyping {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
