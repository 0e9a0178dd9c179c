package domain

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

type Scheme string

// Два варианта развёртывания: сырой id канала или bearer-токен
const (
	SchemeChannel Scheme = "channel"
	SchemeBearer  Scheme = "bearer"
)

func (s Scheme) Valid() bool {
	return s == SchemeChannel || s == SchemeBearer
}

// Strategy решает, как токен канала попадает в сокет, в REST-запрос и в кадр.
type Strategy interface {
	SocketParams(q url.Values, token string)
	Authorize(r *http.Request, token string)
	FrameChannel(token string) string
}

func (s Scheme) Strategy() Strategy {
	if s == SchemeChannel {
		return channelStrategy{}
	}
	return bearerStrategy{}
}

type channelStrategy struct{}

func (channelStrategy) SocketParams(q url.Values, token string) { q.Set("cid", token) }

func (channelStrategy) Authorize(r *http.Request, token string) {
	q := r.URL.Query()
	q.Set("cid", token)
	r.URL.RawQuery = q.Encode()
}

func (channelStrategy) FrameChannel(token string) string { return token }

type bearerStrategy struct{}

func (bearerStrategy) SocketParams(q url.Values, token string) { q.Set("access_token", token) }

func (bearerStrategy) Authorize(r *http.Request, token string) {
	r.Header.Set("Authorization", "Bearer "+token)
}

func (bearerStrategy) FrameChannel(string) string { return "" }

// Credential: непрозрачный токен, привязывающий сессию к каналу.
type Credential struct {
	Scheme Scheme
	Token  string
}

func (c Credential) Empty() bool { return strings.TrimSpace(c.Token) == "" }

type channelClaims struct {
	ChannelID uint64
	jwt.StandardClaims
}

// Expired смотрит exp у bearer-токена без проверки подписи (ключа у клиента нет).
// Токен, который не разбирается как JWT, считается действующим.
func (c Credential) Expired(now time.Time) bool {
	if c.Scheme != SchemeBearer || c.Empty() {
		return false
	}
	claims := &channelClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(c.Token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != 0 && now.Unix() > claims.ExpiresAt
}
