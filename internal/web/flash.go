package web

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	flashCookie = "flash"
	flashTTL    = 5 * time.Minute
)

type flashClaims struct {
	Flashes []string `json:"flashes"`
	jwt.StandardClaims
}

// flashKey returns the HMAC key for flash cookies, or a random per-process
// key when secret is empty.
func flashKey(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(fmt.Sprintf("web: generate flash key: %v", err))
	}
	return key
}

// setFlash queues a notice for the next rendered view.
func (s *Server) setFlash(c echo.Context, message string) {
	messages := []string{message}
	if pending, ok := c.Get(flashCookie).([]string); ok {
		messages = append(pending, message)
	}
	c.Set(flashCookie, messages)

	claims := flashClaims{
		Flashes: messages,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(flashTTL).Unix(),
		},
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.flashKey)
	if err != nil {
		s.log.Error("Failed to sign flash", zap.Error(err))
		return
	}

	c.SetCookie(&http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns and clears the notices carried by the request. Cookies
// that are not signed with the server key are discarded.
func (s *Server) popFlashes(c echo.Context) []string {
	cookie, err := c.Cookie(flashCookie)
	if err != nil || cookie.Value == "" {
		return []string{}
	}

	c.SetCookie(&http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	var claims flashClaims
	_, err = jwt.ParseWithClaims(cookie.Value, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.flashKey, nil
	})
	if err != nil {
		s.log.Debug("Discarding flash cookie", zap.Error(err))
		return []string{}
	}
	if claims.Flashes == nil {
		return []string{}
	}
	return claims.Flashes
}
