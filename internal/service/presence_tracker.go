package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"go.opentelemetry.io/otel"
)

type OnlineFetcher interface {
	FetchOnlineIDs(ctx context.Context, cred domain.Credential) ([]domain.UserID, error)
}

type Member struct {
	UserID domain.UserID
	Name   string
}

// PresenceTracker держит текущий список онлайн в канале. Сервер не шлёт
// дельты, поэтому каждый Refresh пересобирает набор целиком из снапшота.
type PresenceTracker struct {
	self    domain.UserID
	cred    domain.Credential
	fetcher OnlineFetcher
	names   *NameResolver

	mu      sync.RWMutex
	members []Member
	summary string
}

func NewPresenceTracker(self domain.UserID, cred domain.Credential, fetcher OnlineFetcher, names *NameResolver) *PresenceTracker {
	return &PresenceTracker{
		self:    self,
		cred:    cred,
		fetcher: fetcher,
		names:   names,
	}
}

// Refresh запрашивает снапшот, резолвит имена и атомарно подменяет набор.
// При ошибке состояние остаётся прежним.
func (t *PresenceTracker) Refresh(ctx context.Context) (string, error) {
	ctx, span := otel.Tracer("pairchat/presence").Start(ctx, "presence.refresh")
	defer span.End()

	ids, err := t.fetcher.FetchOnlineIDs(ctx, t.cred)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("fetch online ids: %w", err)
	}

	members := make([]Member, 0, len(ids))
	seen := make(map[domain.UserID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		name, err := t.names.Resolve(ctx, id)
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		members = append(members, Member{UserID: id, Name: name})
	}

	summary := Summarize(t.self, members)

	t.mu.Lock()
	t.members = members
	t.summary = summary
	t.mu.Unlock()

	return summary, nil
}

func (t *PresenceTracker) Summary() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.summary
}

// Summarize: имена пиров через ", " в порядке снапшота, затем ", you"
// если self онлайн, либо "only you" если кроме self никого.
func Summarize(self domain.UserID, members []Member) string {
	var (
		peers  []string
		online bool
	)
	for _, m := range members {
		if m.UserID == self {
			online = true
			continue
		}
		peers = append(peers, m.Name)
	}

	out := strings.Join(peers, ", ")
	if online {
		if out == "" {
			return "only you"
		}
		out += ", you"
	}
	return out
}
