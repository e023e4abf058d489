// ABOUTME: Unit tests for email-verification tokens
// ABOUTME: Tests valid tokens, tampering, wrong purpose and expiry

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerificationSigner_ValidToken(t *testing.T) {
	signer := NewVerificationSigner([]byte("test-secret-key-for-jwt-signing"))

	token, err := signer.Sign("user-123", "a@example.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}

	if claims.UserID != "user-123" || claims.Email != "a@example.com" {
		t.Errorf("Verify() = %+v, want user-123 / a@example.com", claims)
	}
}

func TestVerificationSigner_InvalidToken(t *testing.T) {
	signer := NewVerificationSigner([]byte("test-secret-key-for-jwt-signing"))
	other := NewVerificationSigner([]byte("different-secret"))

	foreign, err := other.Sign("user-123", "a@example.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestVerificationSigner_Expired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	signer := NewVerificationSigner([]byte("secret")).WithClock(func() time.Time { return now })

	token, err := signer.Sign("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	now = now.Add(VerificationTTL + time.Second)
	if _, err := signer.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestVerificationSigner_WrongPurpose(t *testing.T) {
	secret := []byte("secret")
	signer := NewVerificationSigner(secret)

	claims := jwt.MapClaims{
		"sub":   "user-1",
		"email": "a@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := signer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerificationSigner_RejectsOtherAlgorithms(t *testing.T) {
	secret := []byte("secret")
	signer := NewVerificationSigner(secret)

	claims := jwt.MapClaims{
		"sub":     "user-1",
		"email":   "a@example.com",
		"purpose": "verify_email",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	if _, err := signer.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
	}
}
