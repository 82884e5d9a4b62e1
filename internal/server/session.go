package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// CookieName is the name of the client session cookie
	CookieName = "companion_session"
	// sessionHeader carries the same token for clients that cannot keep cookies
	sessionHeader = "X-Session-Token"
)

// mintSession signs a new client session token valid for ttl.
func mintSession(key []byte, ttl time.Duration, now time.Time) (token, subject string, err error) {
	subject = uuid.NewString()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session: %w", err)
	}
	return token, subject, nil
}

// parseSession returns the session subject of a valid token.
func parseSession(key []byte, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("session has no subject")
	}
	return claims.Subject, nil
}

// SetSessionCookie sets the HTTP-only client session cookie
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   false, // Set to true in production with HTTPS
	})
}

// GetSessionToken reads the token from the cookie, falling back to the header.
func GetSessionToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.Header.Get(sessionHeader)
}

// clientID identifies the calling browser session, minting a new one when the
// request carries no valid token. The token is echoed in a cookie and header.
func (s *Server) clientID(w http.ResponseWriter, r *http.Request) (string, error) {
	if tok := GetSessionToken(r); tok != "" {
		sub, err := parseSession(s.sessionKey, tok)
		if err == nil {
			return sub, nil
		}
		s.log.Debug("rejected client session", logrus.Fields{"error": err.Error()})
	}

	tok, sub, err := mintSession(s.sessionKey, s.cfg.SessionTTL, time.Now())
	if err != nil {
		return "", err
	}
	SetSessionCookie(w, tok, s.cfg.SessionTTL)
	w.Header().Set(sessionHeader, tok)
	return sub, nil
}
