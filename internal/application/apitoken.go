package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidTokenHash         = errors.New("invalid API token hash format")
	ErrIncompatibleTokenVersion = errors.New("incompatible API token hash version")
)

// Argon2idParams are the cost parameters encoded into a token hash.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// CreateTokenHash hashes an API token for PROOFSHIP_API_TOKEN_HASH.
func CreateTokenHash(token string, params Argon2idParams) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("API token must not be blank")
	}
	salt := make([]byte, params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(token), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	// $argon2id$v=19$m=...,t=...,p=...$salt$hash
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, params.Memory, params.Iterations, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// TokenVerifier checks presented API tokens against one stored hash.
type TokenVerifier struct {
	params Argon2idParams
	salt   []byte
	hash   []byte
}

// NewTokenVerifier parses an encoded argon2id hash.
func NewTokenVerifier(encoded string) (*TokenVerifier, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrInvalidTokenHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	if version != argon2.Version {
		return nil, ErrIncompatibleTokenVersion
	}

	var params Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenHash, err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		return nil, ErrInvalidTokenHash
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(hash))

	return &TokenVerifier{params: params, salt: salt, hash: hash}, nil
}

// Verify returns ErrUnauthorized unless token matches the stored hash.
func (v *TokenVerifier) Verify(token string) error {
	if v == nil || token == "" {
		return ErrUnauthorized
	}
	candidate := argon2.IDKey([]byte(token), v.salt, v.params.Iterations, v.params.Memory, v.params.Parallelism, v.params.KeyLength)
	if subtle.ConstantTimeCompare(v.hash, candidate) == 1 {
		return nil
	}
	return ErrUnauthorized
}
