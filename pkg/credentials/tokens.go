package credentials

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens is the persisted credential pair for one session.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// AuthorizationHeader formats the access token for the Authorization header.
func (t Tokens) AuthorizationHeader() string {
	if t.AccessToken == "" {
		return ""
	}
	typ := strings.TrimSpace(t.TokenType)
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// ExpiresAt returns the access token expiry, reading the JWT exp claim when
// no explicit expiry was stored.
func (t Tokens) ExpiresAt() (time.Time, bool) {
	if !t.Expiry.IsZero() {
		return t.Expiry, true
	}
	return AccessExpiry(t.AccessToken)
}

// Expired reports whether the access token is known to expire within skew of now.
// Tokens without a known expiry are never considered expired.
func (t Tokens) Expired(now time.Time, skew time.Duration) bool {
	exp, ok := t.ExpiresAt()
	if !ok {
		return false
	}
	return !exp.After(now.Add(skew))
}

// AccessExpiry reads the exp claim of a JWT without verifying its signature.
func AccessExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
