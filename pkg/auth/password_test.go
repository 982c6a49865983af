package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if CheckPassword("wrong password", hash) {
		t.Fatalf("expected non-matching password to fail")
	}
}

func TestHashPasswordProducesUniqueDigests(t *testing.T) {
	a, err := HashPassword("same input")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	b, err := HashPassword("same input")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if a == b {
		t.Fatalf("expected salted digests to differ")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got: %v", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
}

func TestCheckPasswordRejectsMalformedHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("malformed stored hash must not verify")
	}
}
