package ws

import (
	"fmt"
	"net/url"
	"path"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"
)

// URL строит адрес сокета: схема ws/wss повторяет http/https базового адреса,
// в query: uid и токен канала по стратегии схемы.
func URL(base, route string, uid domain.UserID, cred *domain.Credential) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: socket url: %v", errs.ErrInvalidInput, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: socket url: unsupported scheme %q", errs.ErrInvalidInput, u.Scheme)
	}
	u.Path = path.Join("/", u.Path, route)

	q := url.Values{}
	q.Set("uid", string(uid))
	if cred != nil {
		cred.Scheme.Strategy().SocketParams(q, cred.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
