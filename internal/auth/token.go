package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

type sessionClaims struct {
	UserID uint `json:"uid"`
	jwt.StandardClaims
}

// TokenSigner signs and verifies the session cookie value. The token only
// references a server-side session; it grants nothing on its own.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer using an HMAC secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign issues an HS256 token for a session.
func (s *TokenSigner) Sign(sessionID string, userID uint, issuedAt, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			Id:        sessionID,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates signature and expiry and returns the session ID and user ID.
func (s *TokenSigner) Parse(token string) (string, uint, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", 0, err
	}
	if !parsed.Valid || claims.Id == "" {
		return "", 0, errors.New("invalid session token")
	}
	return claims.Id, claims.UserID, nil
}
