package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt.MinCost keeps each hash in the millisecond range.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(bcrypt.MinCost)
}

// =========================================================================
// CheckStrength
// =========================================================================

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     error
	}{
		{"too short", "abc1234", ErrPasswordTooShort},
		{"exactly min", "abcd1234", nil},
		{"unicode counts runes", "пароль密码!", nil},
		{"72 bytes", strings.Repeat("a", 72), nil},
		{"73 bytes", strings.Repeat("a", 73), ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CheckStrength(tt.password); !errors.Is(err, tt.want) {
				t.Errorf("CheckStrength() = %v, want %v", err, tt.want)
			}
		})
	}
}

// =========================================================================
// Hash / Verify
// =========================================================================

func TestHash_SaltedBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	h1, err := ps.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, _ := ps.Hash("same-password")

	if !strings.HasPrefix(h1, "$2") {
		t.Errorf("Hash() does not look like bcrypt: %q", h1)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password must differ (random salt)")
	}
}

func TestHash_RejectsOver72Bytes(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, _ := ps.Hash("correct-horse-battery-staple")

	if err := ps.Verify(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Verify() correct password error = %v", err)
	}
	if err := ps.Verify(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() wrong password = %v, want ErrPasswordMismatch", err)
	}
	if err := ps.Verify("", "anything"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() empty hash = %v, want ErrPasswordMismatch", err)
	}

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() garbage hash = %v, want a non-mismatch error", err)
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  leading and trailing  "} {
		t.Run(pw, func(t *testing.T) {
			hash, err := ps.Hash(pw)
			if err != nil {
				t.Fatalf("Hash(%q) error = %v", pw, err)
			}
			if err := ps.Verify(hash, pw); err != nil {
				t.Errorf("Verify() failed for %q: %v", pw, err)
			}
		})
	}
}
