// Package security implements the signed admin session credential checked at
// the edge on every protected request. Verification is a pure function of
// (token, secret, clock): no store lookup, no allocation-heavy parsing before
// the signature holds.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// AdminRole is the single privileged role a session token may carry.
const AdminRole = "admin"

var ErrSecretRequired = errors.New("security: signing secret is required")

type sessionPayload struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
	// Exp is an absolute expiry in epoch milliseconds.
	Exp int64 `json:"exp"`
}

// SessionSigner mints and verifies admin session tokens of the form
// base64url(payload) + "." + base64url(hmac-sha256(payload segment)).
type SessionSigner struct {
	Secret []byte

	// Now is swapped out by tests.
	Now func() time.Time
}

func NewSessionSigner(secret []byte) (*SessionSigner, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}
	return &SessionSigner{Secret: secret}, nil
}

func (s *SessionSigner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Mint issues a token for uid expiring after ttl.
func (s *SessionSigner) Mint(uid string, ttl time.Duration) (string, error) {
	if len(s.Secret) == 0 {
		return "", ErrSecretRequired
	}
	payload, err := json.Marshal(sessionPayload{
		UID:  uid,
		Role: AdminRole,
		Exp:  s.now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}
	segment := base64.RawURLEncoding.EncodeToString(payload)
	return segment + "." + s.sign(segment), nil
}

// Verify reports whether token is a well-formed, correctly signed, unexpired
// admin credential. Malformed input verifies to false, it never errors.
func (s *SessionSigner) Verify(token string) bool {
	if len(s.Secret) == 0 || token == "" {
		return false
	}
	segment, sig, ok := strings.Cut(token, ".")
	if !ok || segment == "" || sig == "" {
		return false
	}

	// Signature first: the payload is untrusted bytes until the MAC holds.
	want, err := base64.RawURLEncoding.DecodeString(s.sign(segment))
	if err != nil {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	if !hmac.Equal(want, got) {
		return false
	}

	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return false
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return false
	}
	if payload.Role != AdminRole {
		return false
	}
	if payload.UID == "" {
		return false
	}
	if payload.Exp <= s.now().UnixMilli() {
		return false
	}
	return true
}

// UID extracts the subject of an already-verified token. Callers must gate
// on Verify first; UID alone performs no signature check.
func (s *SessionSigner) UID(token string) string {
	segment, _, ok := strings.Cut(token, ".")
	if !ok {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return ""
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.UID
}

func (s *SessionSigner) sign(segment string) string {
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write([]byte(segment))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
