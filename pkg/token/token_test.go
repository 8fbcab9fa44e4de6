package token

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	tok, err := Generate("secret", 42, "a@b.com", "alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	claims, err := Verify("secret", tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "a@b.com" || claims.Username != "alice" {
		t.Errorf("载荷不一致: %+v", claims)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, err := Generate("secret", 1, "a@b.com", "alice", time.Hour)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify("other-secret", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	tok, err := Generate("secret", 1, "a@b.com", "alice", -time.Minute)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := Verify("secret", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := Verify("secret", "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}
