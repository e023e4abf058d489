// ABOUTME: argon2id password hashing and strength validation
// ABOUTME: Hashes are self-describing PHC strings so verification needs only the stored value

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

// DefaultArgon2Params: time=3, memory=64MiB, parallelism=4.
var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

// Upper bounds on parameters read back from a stored hash. A corrupt or
// hostile row must not make Verify allocate gigabytes.
const (
	maxArgon2Time   = 16
	maxArgon2Memory = 1 << 20 // 1 GiB
	maxArgon2KeyLen = 128
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher struct {
	params Argon2Params
	salts  io.Reader
}

// NewPasswordHasher creates a hasher that writes hashes with p.
func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: p, salts: rand.Reader}
}

// WithSaltSource returns a copy of h that reads salts from r.
func (h *PasswordHasher) WithSaltSource(r io.Reader) *PasswordHasher {
	c := *h
	c.salts = r
	return &c
}

// Hash returns the PHC encoding of password:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<key>
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := io.ReadFull(h.salts, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	return h.encode(salt, key), nil
}

// Placeholder returns a well-formed hash with the hasher's parameters and an
// all-zero salt and key. Verifying against it costs a full argon2 evaluation
// and fails for any realistic password. It needs no randomness.
func (h *PasswordHasher) Placeholder() string {
	return h.encode(make([]byte, h.params.SaltLen), make([]byte, h.params.KeyLen))
}

func (h *PasswordHasher) encode(salt, key []byte) string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify reports whether password matches encoded. Any malformed hash is a
// mismatch.
func (h *PasswordHasher) Verify(password, encoded string) bool {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false
	}

	other := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(key, other) == 1
}

// NeedsRehash reports whether encoded was produced with parameters other
// than the hasher's current ones.
func (h *PasswordHasher) NeedsRehash(encoded string) bool {
	p, salt, _, err := decodeHash(encoded)
	if err != nil {
		return true
	}
	return p.Time != h.params.Time ||
		p.Memory != h.params.Memory ||
		p.Threads != h.params.Threads ||
		p.KeyLen != h.params.KeyLen ||
		uint32(len(salt)) != h.params.SaltLen
}

func decodeHash(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &threads); err != nil {
		return p, nil, nil, fmt.Errorf("parsing parameters: %w", err)
	}
	if p.Time == 0 || p.Time > maxArgon2Time || p.Memory == 0 || p.Memory > maxArgon2Memory || threads == 0 || threads > 255 {
		return p, nil, nil, fmt.Errorf("parameters out of range")
	}
	p.Threads = uint8(threads)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, fmt.Errorf("decoding salt")
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgon2KeyLen {
		return p, nil, nil, fmt.Errorf("decoding key")
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))

	return p, salt, key, nil
}

// Password length bounds, counted in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// ValidatePasswordStrength checks every rule and returns all violations.
func ValidatePasswordStrength(password string) (bool, []string) {
	var violations []string

	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if n > MaxPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at most %d characters", MaxPasswordLength))
	}

	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !lower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !digit {
		violations = append(violations, "password must contain a digit")
	}

	return len(violations) == 0, violations
}
