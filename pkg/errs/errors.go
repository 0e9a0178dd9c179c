package errs

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthExpired      = errors.New("channel credential expired")

	// сетевые ошибки сессии
	ErrTransientFetch = errors.New("fetch failed")
	ErrProtocol       = errors.New("malformed frame")
	ErrConnection     = errors.New("connection closed")
)

// FromHTTP обратен серверному ToHTTP, переводит статус ответа API в ошибку клиента.
func FromHTTP(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrNotAuthenticated
	case status == http.StatusBadRequest:
		return ErrInvalidInput
	default:
		return ErrTransientFetch
	}
}

// Transient: ошибки, после которых триггер просто отбрасывается.
func Transient(err error) bool {
	return errors.Is(err, ErrTransientFetch) || errors.Is(err, ErrProtocol)
}
