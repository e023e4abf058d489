// ABOUTME: Signed email-verification tokens
// ABOUTME: Uses HS256 JWTs with a purpose claim and a fixed lifetime

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

const (
	// VerificationTTL is how long an email-verification link stays valid.
	VerificationTTL = 24 * time.Hour

	purposeVerifyEmail = "verify_email"
)

// VerificationClaims identify the account an email-verification token was
// issued for.
type VerificationClaims struct {
	UserID string
	Email  string
}

// VerificationSigner issues and checks email-verification tokens.
type VerificationSigner struct {
	secret []byte
	now    func() time.Time
}

// NewVerificationSigner creates a signer with the given HMAC secret.
func NewVerificationSigner(secret []byte) *VerificationSigner {
	return &VerificationSigner{secret: secret, now: time.Now}
}

// WithClock replaces the clock. Used by tests.
func (v *VerificationSigner) WithClock(now func() time.Time) *VerificationSigner {
	v.now = now
	return v
}

// Sign creates a token for userID and email valid for VerificationTTL.
func (v *VerificationSigner) Sign(userID, email string) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub":     userID,
		"email":   email,
		"purpose": purposeVerifyEmail,
		"iat":     now.Unix(),
		"exp":     now.Add(VerificationTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify validates the token and returns the claims it was issued with.
func (v *VerificationSigner) Verify(tokenString string) (*VerificationClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if purpose, _ := claims["purpose"].(string); purpose != purposeVerifyEmail {
		return nil, fmt.Errorf("%w: wrong purpose", ErrInvalidToken)
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingClaim)
	}

	return &VerificationClaims{UserID: sub, Email: email}, nil
}
