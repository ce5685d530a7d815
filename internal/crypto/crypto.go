package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	SaltSize  = 32                         // Argon2id salt size in bytes
	KeySize   = chacha20poly1305.KeySize   // 32-byte symmetric key
	NonceSize = chacha20poly1305.NonceSizeX

	// Argon2id defaults. 64 MiB keeps derivation usable on low-end
	// phones while staying expensive for offline brute force.
	DefaultMemory  = 64 * 1024
	DefaultTime    = 3
	DefaultThreads = 2
)

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrAuthFailed        = errors.New("authentication failed")
)

// Params holds the Argon2id key-derivation parameters. They travel with
// the encrypted blob so old vaults keep decrypting after defaults change.
type Params struct {
	Memory  uint32 `json:"m"`
	Time    uint32 `json:"t"`
	Threads uint8  `json:"p"`
	Salt    []byte `json:"salt"`
}

// DefaultParams returns the current defaults with a fresh random salt.
func DefaultParams() (Params, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Params{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	return Params{
		Memory:  DefaultMemory,
		Time:    DefaultTime,
		Threads: DefaultThreads,
		Salt:    salt,
	}, nil
}

// DeriveKey derives a symmetric key from a password. Deterministic: the
// same (password, params) always yields the same key.
func DeriveKey(password []byte, p Params) []byte {
	return argon2.IDKey(password, p.Salt, p.Time, p.Memory, p.Threads, KeySize)
}

// Encrypt seals plaintext with XChaCha20-Poly1305 under a fresh random
// nonce. The returned ciphertext includes the authentication tag.
func Encrypt(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// Decrypt opens ciphertext and verifies its tag. Any bit-flip in the
// nonce or ciphertext fails with ErrAuthFailed; corrupted plaintext is
// never returned.
func Decrypt(key, nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize || len(ciphertext) < chacha20poly1305.Overhead {
		return nil, ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}

	return plaintext, nil
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
