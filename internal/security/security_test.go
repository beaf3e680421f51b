package security

import (
	"net/http/httptest"
	"testing"
)

func TestHashPasswordKnownVector(t *testing.T) {
	// pbkdf2_hmac("sha256", b"password", b"salt", 100000)
	want := "0394a2ede332c9a13eb82e9b24631604c31df978b4e2f0fbd2c549944f9d79a5"
	if got := HashPassword("password", "salt"); got != want {
		t.Fatalf("HashPassword()=%s want %s", got, want)
	}
}

func TestVerifyPassword(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("new salt: %v", err)
	}
	if len(salt) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", salt)
	}
	hash := HashPassword("s3cret", salt)
	if !VerifyPassword("s3cret", salt, hash) {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword("wrong", salt, hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestNewSessionTokenIsURLSafeAndUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		tok, err := NewSessionToken()
		if err != nil {
			t.Fatalf("new token: %v", err)
		}
		if len(tok) != 32 {
			t.Fatalf("expected 32 chars, got %d (%q)", len(tok), tok)
		}
		for _, c := range tok {
			if c == '+' || c == '/' || c == '=' {
				t.Fatalf("token %q is not url safe", tok)
			}
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := BearerToken(req); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
	req.Header.Set("Authorization", "bearer  abc ")
	if got := BearerToken(req); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
	req.Header.Set("Authorization", "Basic abc")
	if got := BearerToken(req); got != "" {
		t.Fatalf("expected empty for basic auth, got %q", got)
	}
}
