package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for malformed, expired or wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by session tokens.
type Claims struct {
	Remember bool `json:"remember,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret      []byte
	ttl         time.Duration
	rememberTTL time.Duration
	issuer      string
	now         func() time.Time
}

func NewTokens(secret string, ttl, rememberTTL time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if rememberTTL < ttl {
		rememberTTL = ttl
	}
	return &Tokens{
		secret:      []byte(secret),
		ttl:         ttl,
		rememberTTL: rememberTTL,
		issuer:      "learnpath",
		now:         time.Now,
	}
}

// Issue signs a token for userID. Remembered sessions get the longer lifetime.
func (t *Tokens) Issue(userID int64, remember bool) (string, time.Time, error) {
	now := t.now()
	ttl := t.ttl
	if remember {
		ttl = t.rememberTTL
	}
	expires := now.Add(ttl)

	claims := Claims{
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies raw and returns the user id in its subject.
func (t *Tokens) Parse(raw string) (int64, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
