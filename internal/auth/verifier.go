// Package auth verifies the bearer credential presented at attach time and
// re-checked on every inbound event. It fails closed: any parse, signature
// or claim problem yields ErrUnauthorized with no further detail.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Talk/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID   domain.UserID
	Username string
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

type claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type jwtVerifier struct {
	secret []byte
}

func NewVerifier(secret string) Verifier {
	return &jwtVerifier{secret: []byte(secret)}
}

func (v *jwtVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrUnauthorized
	}
	c, ok := token.Claims.(*claims)
	if !ok || c.UserID == "" || len(c.UserID) > domain.MaxUserIDLen {
		return Identity{}, ErrUnauthorized
	}
	username := c.Username
	if username == "" {
		username = c.UserID
	}
	if len(username) > domain.MaxUsernameLen {
		username = username[:domain.MaxUsernameLen]
	}
	return Identity{UserID: domain.UserID(c.UserID), Username: username}, nil
}

// IssueToken mints a short-lived HS256 token for the login endpoint.
func IssueToken(secret, userID, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}
