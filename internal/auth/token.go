// Package auth issues and verifies the stateless access tokens handed
// out after sign-in. A token is base64url(JSON claims) + "." +
// base64url(HMAC-SHA256 over the payload); validity is decided from
// the claims alone, with no per-request store lookup.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Claims is the identity embedded in an access token. Role is the
// account-level role; per-tree grants live in the membership table.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	JTI  string `json:"jti"`
	Exp  int64  `json:"exp"`
}

// Expired reports whether the expiry instant has passed.
func (c Claims) Expired() bool {
	return time.Now().Unix() >= c.Exp
}

// complete reports whether every claim a valid token must carry is set.
func (c Claims) complete() bool {
	return c.Sub != "" && c.Name != "" && c.JTI != "" && c.Exp != 0
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

var encoding = base64.RawURLEncoding

// IssueToken signs claims into a compact two-part token.
func IssueToken(secret []byte, claims Claims) (string, error) {
	body, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := encoding.EncodeToString(body)
	return payload + "." + sign(secret, payload), nil
}

// ParseToken checks the signature before decoding anything, then
// returns the embedded claims. An expired but otherwise well-formed
// token yields ErrExpiredToken; everything else is ErrInvalidToken.
func ParseToken(secret []byte, token string) (Claims, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(signature, ".") {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(signature), []byte(sign(secret, payload))) {
		return Claims{}, ErrInvalidToken
	}
	body, err := encoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(body, &claims); err != nil || !claims.complete() {
		return Claims{}, ErrInvalidToken
	}
	if claims.Expired() {
		return Claims{}, ErrExpiredToken
	}
	return claims, nil
}

func sign(secret []byte, payload string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return encoding.EncodeToString(mac.Sum(nil))
}

// HashToken returns the hex SHA-256 digest under which refresh tokens
// are stored and looked up.
func HashToken(value string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(value)))
}
