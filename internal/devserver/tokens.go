package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/pairchat/internal/domain"
	"github.com/cwrk-planet/pairchat/pkg/errs"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// ChannelClaims описывает access-токен канала (sub = user id).
type ChannelClaims struct {
	ChannelID uint64
	jwt.StandardClaims
}

// TokenSigner выпускает токены каналов, HS256.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenSigner(secret []byte, issuer string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, issuer: issuer, ttl: ttl}
}

func (s *TokenSigner) Sign(channelID uint64, uid domain.UserID, now time.Time) (string, error) {
	claims := ChannelClaims{
		ChannelID: channelID,
		StandardClaims: jwt.StandardClaims{
			Subject:   string(uid),
			Issuer:    s.issuer,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse проверяет подпись и срок. Просроченный токен: errs.ErrAuthExpired.
func (s *TokenSigner) Parse(token string) (*ChannelClaims, error) {
	claims := &ChannelClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, fmt.Errorf("%w: %v", errs.ErrAuthExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || !claims.VerifyIssuer(s.issuer, true) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
