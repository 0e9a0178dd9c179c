package session

import (
	"context"
	"log/slog"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/internal/service"
)

const (
	NewMessageNotice = "You got a new message"
	MatchedBanner    = "Matched!"
)

// Result: итог обработки одного кадра.
type Result struct {
	Events []domain.RenderEvent
	Notify bool
	Ended  bool // канал закрыт, сессия должна инвалидировать креды
}

// Router классифицирует входящие кадры и раздаёт их трекеру присутствия,
// индикатору набора и sink. Вызывается только из цикла сессии.
type Router struct {
	self     domain.UserID
	names    *service.NameResolver
	presence *service.PresenceTracker
	typing   *service.TypingController
}

func NewRouter(self domain.UserID, names *service.NameResolver, presence *service.PresenceTracker, typing *service.TypingController) *Router {
	return &Router{self: self, names: names, presence: presence, typing: typing}
}

func (r *Router) side(id domain.UserID) domain.Side {
	if id == r.self {
		return domain.SideSelf
	}
	return domain.SidePeer
}

// Route обрабатывает живой кадр. Ошибка означает, что кадр отброшен целиком
// (текст без имени автора).
func (r *Router) Route(ctx context.Context, f domain.Frame) (Result, error) {
	var res Result

	name, nameErr := r.names.Resolve(ctx, f.UserID)
	side := r.side(f.UserID)

	if f.Event == domain.EventText {
		if nameErr != nil {
			return res, nameErr
		}
		res.Events = append(res.Events, r.typing.Supersede(side)...)
		res.Events = append(res.Events, bubble(f, side, name))
		res.Notify = side == domain.SidePeer
		return res, nil
	}

	action, ok := f.Action()
	if !ok {
		slog.Debug("router: unknown action", "payload", f.Payload, "user", f.UserID)
		return res, nil
	}
	if nameErr != nil {
		slog.Warn("router: actor name unresolved", "err", nameErr, "user", f.UserID, "action", action)
	}

	switch action {
	case domain.ActionWaiting, domain.ActionJoined, domain.ActionOffline:
		res.Events = append(res.Events, r.refresh(ctx)...)
		if action == domain.ActionJoined && side == domain.SidePeer && nameErr == nil {
			res.Events = append(res.Events, domain.ActionBanner{Text: name + " joined"})
		}

	case domain.ActionLeaved:
		res.Events = append(res.Events, r.refresh(ctx)...)
		res.Ended = true
		if side == domain.SidePeer {
			if nameErr == nil {
				res.Events = append(res.Events, domain.ActionBanner{Text: name + " leaved, channel closed"})
			}
			res.Events = append(res.Events, domain.ReturnHome{})
		}

	case domain.ActionIsTyping:
		// эхо собственного istyping игнорируется
		if side == domain.SidePeer {
			res.Events = append(res.Events, r.typing.PeerTyping(f.UserID)...)
		}

	case domain.ActionEndTyping:
		// от любого автора, удаление идемпотентно
		res.Events = append(res.Events, r.typing.PeerEnded()...)
	}

	return res, nil
}

// Render: классификация без побочных эффектов, для кадров бэклога.
func (r *Router) Render(ctx context.Context, f domain.Frame) []domain.RenderEvent {
	name, err := r.names.Resolve(ctx, f.UserID)
	if err != nil {
		slog.Warn("router: backlog frame skipped", "err", err, "user", f.UserID)
		return nil
	}
	side := r.side(f.UserID)

	if f.Event == domain.EventText {
		return []domain.RenderEvent{bubble(f, side, name)}
	}

	action, _ := f.Action()
	if side != domain.SidePeer {
		return nil
	}
	switch action {
	case domain.ActionJoined:
		return []domain.RenderEvent{domain.ActionBanner{Text: name + " joined"}}
	case domain.ActionLeaved:
		return []domain.RenderEvent{domain.ActionBanner{Text: name + " leaved, channel closed"}}
	}
	return nil
}

func (r *Router) refresh(ctx context.Context) []domain.RenderEvent {
	summary, err := r.presence.Refresh(ctx)
	if err != nil {
		slog.Warn("router: presence refresh failed", "err", err)
		return nil
	}
	return []domain.RenderEvent{domain.StatusLine{Text: summary, Online: true}}
}

func bubble(f domain.Frame, side domain.Side, name string) domain.TextBubble {
	return domain.TextBubble{
		Side:    side,
		UserID:  f.UserID,
		Name:    name,
		Payload: f.Payload,
		Time:    f.Time.Clock(),
	}
}
