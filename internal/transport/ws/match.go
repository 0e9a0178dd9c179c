package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/gorilla/websocket"
)

type CredentialSaver interface {
	SaveCredential(cred domain.Credential) error
}

type MatchOptions struct {
	URL          string
	Scheme       domain.Scheme
	Header       http.Header
	WriteTimeout time.Duration
	Dialer       *websocket.Dialer
}

// matchReply: сообщение сервера подбора; заполнено одно из полей в зависимости от схемы.
type matchReply struct {
	ChannelID   string `json:"channel_id"`
	AccessToken string `json:"access_token"`
}

func (r matchReply) credential(scheme domain.Scheme) domain.Credential {
	token := r.ChannelID
	if scheme == domain.SchemeBearer {
		token = r.AccessToken
	}
	return domain.Credential{Scheme: scheme, Token: token}
}

// Matcher ждёт пары на сокете подбора и сохраняет полученный канал.
type Matcher struct {
	opts  MatchOptions
	store CredentialSaver
}

func NewMatcher(opts MatchOptions, store CredentialSaver) *Matcher {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Matcher{opts: opts, store: store}
}

// Match блокируется до пары или отмены ctx. При отмене ничего не сохраняется.
func (m *Matcher) Match(ctx context.Context) (domain.Credential, error) {
	conn, _, err := m.opts.Dialer.DialContext(ctx, m.opts.URL, m.opts.Header)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: match dial: %v", errs.ErrConnection, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return domain.Credential{}, ctx.Err()
			}
			return domain.Credential{}, fmt.Errorf("%w: match read: %v", errs.ErrConnection, err)
		}

		var reply matchReply
		if err := json.Unmarshal(data, &reply); err != nil {
			slog.Warn("match: skipping message", "err", errs.ErrProtocol, "bytes", len(data))
			continue
		}
		cred := reply.credential(m.opts.Scheme)
		if cred.Empty() {
			slog.Debug("match: still waiting")
			continue
		}
		if ctx.Err() != nil {
			return domain.Credential{}, ctx.Err()
		}

		if err := m.store.SaveCredential(cred); err != nil {
			return domain.Credential{}, fmt.Errorf("save credential: %w", err)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(m.opts.WriteTimeout))

		slog.Info("match: paired", "scheme", cred.Scheme)
		return cred, nil
	}
}
