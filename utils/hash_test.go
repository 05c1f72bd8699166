package utils

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("mật-khẩu-123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "mật-khẩu-123" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword("mật-khẩu-123", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPassword("sai-mật-khẩu", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestGenerateSecureRandomString(t *testing.T) {
	a, err := GenerateSecureRandomString(48)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateSecureRandomString(48)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 48 || len(b) != 48 {
		t.Fatalf("lengths = %d/%d, want 48", len(a), len(b))
	}
	if a == b {
		t.Fatal("two generated tokens are identical")
	}
}

func TestGenerateOTP(t *testing.T) {
	otp, err := GenerateOTP(6)
	if err != nil {
		t.Fatal(err)
	}
	if len(otp) != 6 {
		t.Fatalf("OTP length = %d, want 6", len(otp))
	}
	for _, r := range otp {
		if r < '0' || r > '9' {
			t.Fatalf("OTP contains non-digit %q", r)
		}
	}
}
