package security

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("unexpected hash format: %q", hash)
	}

	ok, err := VerifyPassword(hash, "pw123")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected password to verify")
	}

	ok, err = VerifyPassword(hash, "wrong")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	// OAuth-only accounts have no hash; verification is false, never an error.
	ok, err := VerifyPassword("", "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("empty hash must never verify")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	cases := []string{
		"$argon2id$v=19$bad",
		"plain-text",
		"$argon2i$v=19$m=65536,t=3,p=2$salt$hash",
	}
	for _, encoded := range cases {
		if _, err := VerifyPassword(encoded, "pw"); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestHashPasswordSalted(t *testing.T) {
	h1, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := HashPassword("pw123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected per-hash salt to differ")
	}
}
