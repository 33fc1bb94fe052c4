package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash is returned when an encoded hash cannot be parsed.
var ErrInvalidHash = errors.New("invalid argon2id hash")

// Argon2idParams defines the tuning parameters for Argon2id hashing.
type Argon2idParams struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

// DefaultParams are the password hashing settings for admin accounts.
var DefaultParams = Argon2idParams{
	Time:       1,
	Memory:     64 * 1024,
	Threads:    4,
	KeyLength:  32,
	SaltLength: 16,
}

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher struct {
	params Argon2idParams
}

// NewPasswordHasher builds a hasher; zero fields fall back to DefaultParams.
func NewPasswordHasher(params Argon2idParams) *PasswordHasher {
	return &PasswordHasher{params: withDefaults(params)}
}

// Hash returns the encoded form argon2id$t$m$p$salt$hash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	return HashArgon2id(password, h.params)
}

// Verify reports whether password matches the encoded hash.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	return VerifyArgon2id(password, encoded)
}

// HashArgon2id hashes the supplied value with Argon2id using the provided parameters.
func HashArgon2id(value string, params Argon2idParams) (string, error) {
	params = withDefaults(params)

	salt := make([]byte, int(params.SaltLength))
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(value), salt, params.Time, params.Memory, params.Threads, params.KeyLength)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Time, params.Memory, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyArgon2id compares a plain value against an encoded Argon2id hash.
func VerifyArgon2id(value, encoded string) (bool, error) {
	decoded, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(value), decoded.salt, decoded.params.Time, decoded.params.Memory, decoded.params.Threads, uint32(len(decoded.hash)))
	return subtle.ConstantTimeCompare(computed, decoded.hash) == 1, nil
}

func withDefaults(params Argon2idParams) Argon2idParams {
	if params.Time == 0 {
		params.Time = DefaultParams.Time
	}
	if params.Memory == 0 {
		params.Memory = DefaultParams.Memory
	}
	if params.Threads == 0 {
		params.Threads = DefaultParams.Threads
	}
	if params.KeyLength == 0 {
		params.KeyLength = DefaultParams.KeyLength
	}
	if params.SaltLength == 0 {
		params.SaltLength = DefaultParams.SaltLength
	}
	return params
}

type decodedHash struct {
	params Argon2idParams
	salt   []byte
	hash   []byte
}

func decodeHash(encoded string) (decodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return decodedHash{}, ErrInvalidHash
	}
	if parts[0] != "argon2id" {
		return decodedHash{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[0])
	}
	var nums [3]uint32
	for i, raw := range parts[1:4] {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return decodedHash{}, fmt.Errorf("%w: parameter %d: %v", ErrInvalidHash, i+1, err)
		}
		nums[i] = uint32(parsed)
	}
	if nums[0] == 0 || nums[1] == 0 {
		return decodedHash{}, fmt.Errorf("%w: zero cost parameter", ErrInvalidHash)
	}
	if nums[2] == 0 || nums[2] > 255 {
		return decodedHash{}, fmt.Errorf("%w: thread count must be between 1 and 255", ErrInvalidHash)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return decodedHash{}, fmt.Errorf("%w: decode salt: %v", ErrInvalidHash, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return decodedHash{}, fmt.Errorf("%w: decode hash", ErrInvalidHash)
	}
	return decodedHash{
		params: Argon2idParams{
			Time:       nums[0],
			Memory:     nums[1],
			Threads:    uint8(nums[2]),
			KeyLength:  uint32(len(hash)),
			SaltLength: uint32(len(salt)),
		},
		salt: salt,
		hash: hash,
	}, nil
}
