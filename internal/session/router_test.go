package session

import (
	"context"
	"errors"
	"testing"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/render"
	"github.com/cwrk-planet/pairchat/internal/service"
	"github.com/cwrk-planet/pairchat/pkg/errs"
)

var testCred = domain.Credential{Scheme: domain.SchemeBearer, Token: "tok"}

func newTestRouter(b *fakeBackend) (*Router, *recordingSink) {
	sink := &recordingSink{}
	names := service.NewNameResolver(b)
	presence := service.NewPresenceTracker("u1", testCred, b, names)
	typing := service.NewTypingController("u1", 0, nil, func(fn func()) { fn() }, nopSender{}, sink)
	return NewRouter("u1", names, presence, typing), sink
}

func route(t *testing.T, r *Router, f domain.Frame) Result {
	t.Helper()
	res, err := r.Route(context.Background(), f)
	if err != nil {
		t.Fatalf("Route(%+v): %v", f, err)
	}
	return res
}

func placeholders(rec *render.Recorder) []string {
	var ids []string
	for _, l := range rec.Lines() {
		if l.Kind == render.LineTyping {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

func action(uid domain.UserID, a domain.Action) domain.Frame {
	return domain.Frame{Event: domain.EventAction, UserID: uid, Payload: string(a)}
}

func TestRouteText(t *testing.T) {
	r, _ := newTestRouter(newBackend())

	res := route(t, r, domain.Frame{Event: domain.EventText, UserID: "u2", Payload: "hi", Time: domain.StampText("2024/05/01 09:15")})
	if !res.Notify || res.Ended {
		t.Fatalf("peer text must notify, got %+v", res)
	}
	want := domain.TextBubble{Side: domain.SidePeer, UserID: "u2", Name: "Bob", Payload: "hi", Time: "09:15"}
	if len(res.Events) != 1 || res.Events[0] != want {
		t.Fatalf("unexpected events %+v", res.Events)
	}

	res = route(t, r, domain.Frame{Event: domain.EventText, UserID: "u1", Payload: "yo"})
	if res.Notify {
		t.Fatalf("own text must not notify")
	}
	if b, ok := res.Events[0].(domain.TextBubble); !ok || b.Side != domain.SideSelf || b.Name != "Alice" {
		t.Fatalf("unexpected bubble %+v", res.Events)
	}
}

func TestRouteTextSupersedesPeerPlaceholder(t *testing.T) {
	r, _ := newTestRouter(newBackend())

	route(t, r, action("u2", domain.ActionIsTyping))
	res := route(t, r, domain.Frame{Event: domain.EventText, UserID: "u2", Payload: "done"})
	if len(res.Events) != 2 {
		t.Fatalf("expected remove + bubble, got %+v", res.Events)
	}
	if res.Events[0] != (domain.RemovePlaceholder{ID: domain.PlaceholderPeer}) {
		t.Fatalf("placeholder must be removed first, got %+v", res.Events[0])
	}

	res = route(t, r, domain.Frame{Event: domain.EventText, UserID: "u2", Payload: "again"})
	if len(res.Events) != 1 {
		t.Fatalf("no placeholder to remove now, got %+v", res.Events)
	}
}

func TestRoutePeerTyping(t *testing.T) {
	r, _ := newTestRouter(newBackend())

	first := route(t, r, action("u2", domain.ActionIsTyping))
	second := route(t, r, action("u2", domain.ActionIsTyping))
	if len(first.Events) != 1 || len(second.Events) != 0 {
		t.Fatalf("placeholder only on Idle->Typing: %+v / %+v", first.Events, second.Events)
	}
	if p, ok := first.Events[0].(domain.TypingPlaceholder); !ok || p.ID != domain.PlaceholderPeer || p.Side != domain.SidePeer {
		t.Fatalf("unexpected placeholder %+v", first.Events[0])
	}

	for i := 0; i < 2; i++ {
		res := route(t, r, action("u2", domain.ActionEndTyping))
		if len(res.Events) != 1 || res.Events[0] != (domain.RemovePlaceholder{ID: domain.PlaceholderPeer}) {
			t.Fatalf("endtyping #%d: %+v", i, res.Events)
		}
	}

	if res := route(t, r, action("u1", domain.ActionIsTyping)); len(res.Events) != 0 {
		t.Fatalf("own istyping echo must be ignored, got %+v", res.Events)
	}
	if res := route(t, r, action("u1", domain.ActionEndTyping)); len(res.Events) != 1 || res.Events[0] != (domain.RemovePlaceholder{ID: domain.PlaceholderPeer}) {
		t.Fatalf("endtyping from any author clears the peer placeholder, got %+v", res.Events)
	}
}

func TestRoutePeerTypingInterleavedWithText(t *testing.T) {
	r, _ := newTestRouter(newBackend())
	rec := render.NewRecorder()
	feed := func(f domain.Frame) {
		for _, ev := range route(t, r, f).Events {
			rec.Emit(ev)
		}
	}

	feed(action("u2", domain.ActionIsTyping))
	feed(domain.Frame{Event: domain.EventText, UserID: "u1", Payload: "mine"})
	if got := placeholders(rec); len(got) != 1 || got[0] != domain.PlaceholderPeer {
		t.Fatalf("own text must not touch the peer placeholder, got %v", got)
	}
	feed(action("u2", domain.ActionEndTyping))

	if got := placeholders(rec); len(got) != 0 {
		t.Fatalf("no placeholder expected, got %v", got)
	}
	if lines := rec.Lines(); len(lines) != 1 || lines[0].Text != "mine" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestRouteJoinedAndLeaved(t *testing.T) {
	b := newBackend()
	r, _ := newTestRouter(b)

	res := route(t, r, action("u2", domain.ActionJoined))
	want := []domain.RenderEvent{
		domain.StatusLine{Text: "Bob, you", Online: true},
		domain.ActionBanner{Text: "Bob joined"},
	}
	if len(res.Events) != len(want) || res.Events[0] != want[0] || res.Events[1] != want[1] {
		t.Fatalf("joined: got %+v", res.Events)
	}

	b.setOnline("u1")
	res = route(t, r, action("u2", domain.ActionLeaved))
	want = []domain.RenderEvent{
		domain.StatusLine{Text: "only you", Online: true},
		domain.ActionBanner{Text: "Bob leaved, channel closed"},
		domain.ReturnHome{},
	}
	if !res.Ended || len(res.Events) != len(want) {
		t.Fatalf("leaved: got %+v", res)
	}
	for i := range want {
		if res.Events[i] != want[i] {
			t.Fatalf("leaved event %d: got %+v want %+v", i, res.Events[i], want[i])
		}
	}

	if res := route(t, r, action("u1", domain.ActionJoined)); len(res.Events) != 1 {
		t.Fatalf("own joined yields only the status line, got %+v", res.Events)
	}
}

func TestRouteUnknownAction(t *testing.T) {
	r, _ := newTestRouter(newBackend())
	res := route(t, r, domain.Frame{Event: domain.EventAction, UserID: "u2", Payload: "dance"})
	if len(res.Events) != 0 || res.Notify || res.Ended {
		t.Fatalf("unknown action must be a no-op, got %+v", res)
	}
}

func TestRouteTextUnresolvedNameDropped(t *testing.T) {
	r, _ := newTestRouter(newBackend())
	_, err := r.Route(context.Background(), domain.Frame{Event: domain.EventText, UserID: "ghost", Payload: "boo"})
	if !errors.Is(err, errs.ErrTransientFetch) {
		t.Fatalf("expected ErrTransientFetch, got %v", err)
	}

	res := route(t, r, action("ghost", domain.ActionJoined))
	if len(res.Events) != 1 {
		t.Fatalf("refresh still happens without banner, got %+v", res.Events)
	}
}

func TestRenderBacklog(t *testing.T) {
	r, _ := newTestRouter(newBackend())
	ctx := context.Background()

	if evs := r.Render(ctx, action("u2", domain.ActionIsTyping)); len(evs) != 0 {
		t.Fatalf("backlog typing must be skipped, got %+v", evs)
	}
	if evs := r.Render(ctx, action("u2", domain.ActionLeaved)); len(evs) != 1 || evs[0] != (domain.ActionBanner{Text: "Bob leaved, channel closed"}) {
		t.Fatalf("backlog leaved: %+v", evs)
	}
	evs := r.Render(ctx, domain.Frame{Event: domain.EventText, UserID: "u1", Payload: "old", Time: domain.StampMillis(1)})
	if b, ok := evs[0].(domain.TextBubble); !ok || b.Side != domain.SideSelf || b.Time == "" {
		t.Fatalf("backlog text: %+v", evs)
	}
	// Render не трогает состояние набора: первый живой istyping даёт плейсхолдер
	if res := route(t, r, action("u2", domain.ActionIsTyping)); len(res.Events) != 1 {
		t.Fatalf("Render must not touch typing state, got %+v", res.Events)
	}
}
