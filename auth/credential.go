// Package auth holds the credential pair, its durable store, and the
// refresh-token exchange against the backend.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the access/refresh token pair issued at login and replaced
// wholesale by a successful refresh. The store owns it exclusively.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Valid reports whether the pair is usable for outgoing calls.
func (c *Credential) Valid() bool {
	return c != nil && c.AccessToken != ""
}

// ExpiresAt returns the access token's exp claim when it is a JWT.
// Opaque tokens return a zero time.
func (c *Credential) ExpiresAt() time.Time {
	if c == nil || c.AccessToken == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ExpiresSoon reports whether the access token lapses within the window.
// Opaque tokens always report false; the 401 replay path catches those.
func (c *Credential) ExpiresSoon(window time.Duration) bool {
	exp := c.ExpiresAt()
	if exp.IsZero() {
		return false
	}
	return time.Now().Add(window).After(exp)
}
