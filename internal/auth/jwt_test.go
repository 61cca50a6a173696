package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/snippet-vault/internal/clock"
)

var tokenEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestTokenService(t *testing.T) (*TokenService, *clock.Mock) {
	t.Helper()
	mc := clock.NewMock(tokenEpoch)
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", mc)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts, mc
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short", nil); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_NilClockDefaultsToReal(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", nil)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	token, _ := ts.Generate("u1")
	if _, err := ts.Validate(token); err != nil {
		t.Errorf("Validate() with real clock error = %v", err)
	}
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts, _ := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("token has %d dots, want 2 (header.payload.signature)", n)
	}
}

func TestGenerate_EmptySubject(t *testing.T) {
	ts, _ := newTestTokenService(t)

	if _, err := ts.Generate(""); err == nil {
		t.Error("Generate(\"\") should fail")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts, _ := newTestTokenService(t)

	token, _ := ts.Generate("user-abc-123")
	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("Validate() userID = %q, want user-abc-123", got)
	}
}

func TestValidate_ExpiresAfterSessionLifetime(t *testing.T) {
	ts, mc := newTestTokenService(t)
	token, _ := ts.Generate("user-123")

	mc.Advance(SessionLifetime - time.Minute)
	if _, err := ts.Validate(token); err != nil {
		t.Fatalf("token should still be valid just before expiry: %v", err)
	}

	mc.Advance(2 * time.Minute)
	_, err := ts.Validate(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts, _ := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", clock.NewMock(tokenEpoch))

	good, _ := ts.Generate("user-123")
	foreign, _ := other.Generate("user-123")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"different secret", foreign},
		// {"alg":"none","typ":"JWT"} . {"sub":"x"} . (no signature)
		{"alg none", "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJ4In0."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Errorf("Validate(%q) should fail", tt.name)
			}
		})
	}
}
