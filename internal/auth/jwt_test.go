package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService(t *testing.T) {
	if _, err := NewTokenService("short", 0); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}

	ts, err := NewTokenService("this-is-16-chars", 0)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error: %v", err)
	}
	if ts.SessionTTL() != DefaultSessionTTL {
		t.Errorf("SessionTTL() = %v, want %v", ts.SessionTTL(), DefaultSessionTTL)
	}
}

// =========================================================================
// SESSION TOKENS
// =========================================================================

func TestGenerate_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("token has %d dots, want 2", n)
	}
}

func TestGenerate_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)
	if _, err := ts.Generate(""); err == nil {
		t.Fatal("Generate(\"\") should fail")
	}
}

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("user-abc-123")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "user-abc-123" {
		t.Errorf("Validate() userID = %q, want %q", got, "user-abc-123")
	}
}

func TestValidate_Expired(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("user-123", -time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}
	if _, err := ts.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Validate() error = %v, want ErrTokenExpired", err)
	}
}

func TestValidate_SessionTTLFromClock(t *testing.T) {
	ts := newTestTokenService(t)
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issued }

	token, err := ts.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	ts.now = func() time.Time { return issued.Add(59 * time.Minute) }
	if _, err := ts.Validate(token); err != nil {
		t.Errorf("token should still be valid after 59m: %v", err)
	}
	ts.now = func() time.Time { return issued.Add(61 * time.Minute) }
	if _, err := ts.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("token should expire after the 1h TTL, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

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
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Fatal("Validate() should fail")
			}
		})
	}
}

// =========================================================================
// RESET TOKENS
// =========================================================================

func TestResetToken_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateReset("local:cp1k")
	if err != nil {
		t.Fatalf("GenerateReset() error = %v", err)
	}
	uid, err := ts.ValidateReset(token)
	if err != nil {
		t.Fatalf("ValidateReset() error = %v", err)
	}
	if uid != "local:cp1k" {
		t.Errorf("uid = %q", uid)
	}
}

func TestResetToken_ExpiresAfter30Minutes(t *testing.T) {
	ts := newTestTokenService(t)
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issued }
	token, _ := ts.GenerateReset("local:cp1k")

	ts.now = func() time.Time { return issued.Add(31 * time.Minute) }
	if _, err := ts.ValidateReset(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("ValidateReset() after 31m = %v, want ErrTokenExpired", err)
	}
}

func TestPurposesDoNotMix(t *testing.T) {
	ts := newTestTokenService(t)

	session, _ := ts.Generate("user-1")
	reset, _ := ts.GenerateReset("local:cp1k")

	if _, err := ts.ValidateReset(session); err == nil {
		t.Error("a session token must not be accepted as a reset token")
	}
	if _, err := ts.Validate(reset); err == nil {
		t.Error("a reset token must not be accepted as a session")
	}
}
