package security

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testSigner(t *testing.T) *SessionSigner {
	t.Helper()
	s, err := NewSessionSigner([]byte("test-secret"))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s
}

func TestMintThenVerify(t *testing.T) {
	s := testSigner(t)
	token, err := s.Mint("user-1", 8*time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !s.Verify(token) {
		t.Error("freshly minted token must verify")
	}
	if got := s.UID(token); got != "user-1" {
		t.Errorf("uid = %q, want user-1", got)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	s := testSigner(t)
	token, _ := s.Mint("user-1", time.Hour)

	segment, sig, _ := strings.Cut(token, ".")
	raw, _ := base64.RawURLEncoding.DecodeString(sig)
	raw[0] ^= 0x01
	tampered := segment + "." + base64.RawURLEncoding.EncodeToString(raw)

	if s.Verify(tampered) {
		t.Error("flipping one signature byte must fail verification")
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	s := testSigner(t)
	token, _ := s.Mint("user-1", time.Hour)
	_, sig, _ := strings.Cut(token, ".")

	forged, _ := json.Marshal(map[string]any{
		"uid":  "attacker",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).UnixMilli(),
	})
	if s.Verify(base64.RawURLEncoding.EncodeToString(forged) + "." + sig) {
		t.Error("payload swap with a stale signature must fail")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := testSigner(t)
	s.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	token, _ := s.Mint("user-1", time.Minute)

	s.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC) }
	if s.Verify(token) {
		t.Error("expired token must not verify")
	}
}

func TestVerifyRejectsNonAdminRole(t *testing.T) {
	s := testSigner(t)
	payload, _ := json.Marshal(map[string]any{
		"uid":  "user-1",
		"role": "moderator",
		"exp":  time.Now().Add(time.Hour).UnixMilli(),
	})
	segment := base64.RawURLEncoding.EncodeToString(payload)
	token := segment + "." + s.sign(segment)
	if s.Verify(token) {
		t.Error("only the admin role is accepted")
	}
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	s := testSigner(t)
	cases := map[string]map[string]any{
		"no uid": {"role": "admin", "exp": time.Now().Add(time.Hour).UnixMilli()},
		"no exp": {"uid": "user-1", "role": "admin"},
	}
	for name, claims := range cases {
		payload, _ := json.Marshal(claims)
		segment := base64.RawURLEncoding.EncodeToString(payload)
		if s.Verify(segment + "." + s.sign(segment)) {
			t.Errorf("%s: token must not verify", name)
		}
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	s := testSigner(t)
	for _, token := range []string{
		"",
		"no-dot",
		".",
		"a.",
		".b",
		"!!!.???",
		base64.RawURLEncoding.EncodeToString([]byte("not json")) + "." + s.sign("x"),
	} {
		if s.Verify(token) {
			t.Errorf("Verify(%q) = true, want false", token)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	s := testSigner(t)
	token, _ := s.Mint("user-1", time.Hour)

	other, _ := NewSessionSigner([]byte("different-secret"))
	if other.Verify(token) {
		t.Error("token signed under another secret must not verify")
	}
}
