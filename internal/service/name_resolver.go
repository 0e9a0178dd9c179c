package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/cwrk-planet/pairchat/internal/domain"

	"golang.org/x/sync/singleflight"
)

type NameFetcher interface {
	FetchDisplayName(ctx context.Context, id domain.UserID) (string, error)
}

// NameResolver: кэш userID -> имя. Имена не меняются в течение сессии,
// поэтому запись в кэш однократная.
type NameResolver struct {
	fetcher NameFetcher

	mu    sync.RWMutex
	cache map[domain.UserID]string
	group singleflight.Group
}

func NewNameResolver(fetcher NameFetcher) *NameResolver {
	return &NameResolver{
		fetcher: fetcher,
		cache:   make(map[domain.UserID]string),
	}
}

// Seed кладёт известное имя (например, своё из хранилища). Существующее не перезаписывается.
func (r *NameResolver) Seed(id domain.UserID, name string) {
	if id == "" || name == "" {
		return
	}
	r.store(id, name)
}

func (r *NameResolver) Lookup(id domain.UserID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.cache[id]
	return name, ok
}

// Resolve возвращает имя из кэша, при промахе делает ровно один запрос;
// параллельные вызовы для одного id ждут общий результат.
func (r *NameResolver) Resolve(ctx context.Context, id domain.UserID) (string, error) {
	if name, ok := r.Lookup(id); ok {
		return name, nil
	}

	v, err, _ := r.group.Do(string(id), func() (any, error) {
		if name, ok := r.Lookup(id); ok {
			return name, nil
		}
		name, err := r.fetcher.FetchDisplayName(ctx, id)
		if err != nil {
			return "", err
		}
		return r.store(id, name), nil
	})
	if err != nil {
		return "", fmt.Errorf("resolve name %s: %w", id, err)
	}
	return v.(string), nil
}

func (r *NameResolver) store(id domain.UserID, name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[id]; ok {
		return existing
	}
	r.cache[id] = name
	return name
}
