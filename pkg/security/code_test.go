package security_test

import (
	"errors"
	"testing"

	"github.com/gebeya-market/gebeya-backend/pkg/security"
)

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := security.GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}

func TestGenerateNumericCodeRejectsBadLength(t *testing.T) {
	if _, err := security.GenerateNumericCode(2); err == nil {
		t.Fatal("expected error for short code")
	}
	if _, err := security.GenerateNumericCode(11); err == nil {
		t.Fatal("expected error for long code")
	}
}

func TestHashAndVerifyCode(t *testing.T) {
	hash, err := security.HashCode("482910")
	if err != nil {
		t.Fatalf("HashCode returned error: %v", err)
	}
	if hash == "482910" {
		t.Fatal("hash must not equal the code")
	}

	if err := security.VerifyCode("482910", hash); err != nil {
		t.Fatalf("VerifyCode failed for the correct code: %v", err)
	}
	if err := security.VerifyCode("000000", hash); !errors.Is(err, security.ErrCodeMismatch) {
		t.Fatalf("expected ErrCodeMismatch, got %v", err)
	}
}

func TestVerifyCodeBadHash(t *testing.T) {
	err := security.VerifyCode("123456", "not-a-hash")
	if err == nil || errors.Is(err, security.ErrCodeMismatch) {
		t.Fatalf("expected malformed hash error, got %v", err)
	}
}
