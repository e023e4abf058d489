// ABOUTME: API key generation, fingerprinting and verification
// ABOUTME: Raw keys are shown once; only their SHA-256 fingerprint is stored

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lautrek/tollgate/internal/store"
)

// ErrInvalidCredential is returned for every credential that does not resolve
// to an identity: absent, malformed, unknown, expired or unverified.
var ErrInvalidCredential = errors.New("invalid credential")

const (
	// DefaultAPIKeyPrefix tags keys issued by this product.
	DefaultAPIKeyPrefix = "lt_"

	// apiKeyBytes is the entropy of a key before encoding.
	apiKeyBytes = 32

	// minKeyBody is the shortest accepted key body after the prefix.
	minKeyBody = 40
)

// APIKeyStore is the subset of the store the API key authority needs.
type APIKeyStore interface {
	GetUserByAPIKeyHash(ctx context.Context, hash string) (*store.User, error)
	UpdateAPIKeyHash(ctx context.Context, id, hash string) error
}

// APIKeyAuthority issues and verifies API keys.
type APIKeyAuthority struct {
	store  APIKeyStore
	prefix string
	logger *slog.Logger
}

// NewAPIKeyAuthority creates an authority. An empty prefix uses DefaultAPIKeyPrefix.
func NewAPIKeyAuthority(s APIKeyStore, prefix string) *APIKeyAuthority {
	if prefix == "" {
		prefix = DefaultAPIKeyPrefix
	}
	return &APIKeyAuthority{
		store:  s,
		prefix: prefix,
		logger: slog.Default().With("component", "apikeys"),
	}
}

// Prefix returns the tag every issued key starts with.
func (a *APIKeyAuthority) Prefix() string {
	return a.prefix
}

// Generate returns a new raw API key.
func (a *APIKeyAuthority) Generate() (string, error) {
	token, err := randomToken(apiKeyBytes)
	if err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return a.prefix + token, nil
}

// Fingerprint returns the storage form of a raw key.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Verify resolves a presented key to an identity. It has no side effects.
func (a *APIKeyAuthority) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" || !strings.HasPrefix(token, a.prefix) || len(token) < len(a.prefix)+minKeyBody {
		return nil, ErrInvalidCredential
	}

	user, err := a.store.GetUserByAPIKeyHash(ctx, Fingerprint(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, fmt.Errorf("looking up api key: %w", err)
	}

	return identityFromUser(user)
}

// Rotate issues a new key for a user. The previous key stops verifying as
// soon as this returns.
func (a *APIKeyAuthority) Rotate(ctx context.Context, userID string) (string, error) {
	key, err := a.Generate()
	if err != nil {
		return "", err
	}

	if err := a.store.UpdateAPIKeyHash(ctx, userID, Fingerprint(key)); err != nil {
		return "", fmt.Errorf("storing rotated api key: %w", err)
	}

	a.logger.Info("rotated api key", "user_id", userID)
	return key, nil
}

// randomToken returns n random bytes, URL-safe base64 encoded without padding.
func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
