package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize     = 32     // Salt size in bytes
	KeySize      = 32     // AES-256 wrapping key size
	NonceSize    = 12     // GCM nonce size
	TagSize      = 16     // GCM authentication tag size
	DefaultIters = 210000 // PBKDF2 iterations (OWASP minimum)
	MinIters     = 1000   // Lower bound accepted from a stored config
)

var (
	ErrInvalidSealed = errors.New("invalid sealed record")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrWeakKDF       = errors.New("kdf iterations below minimum")
)

// KDF derives wrapping keys from a passphrase
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a KDF with a random salt and default iterations
func NewKDF() (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &KDF{Salt: salt, Iterations: DefaultIters}, nil
}

// LoadKDF rebuilds a KDF from stored parameters
func LoadKDF(salt []byte, iterations int) (*KDF, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	if iterations < MinIters {
		return nil, ErrWeakKDF
	}
	return &KDF{Salt: append([]byte(nil), salt...), Iterations: iterations}, nil
}

// DeriveKey derives a wrapping key from a passphrase
func (k *KDF) DeriveKey(passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Wrapper seals and opens key material records
type Wrapper struct {
	aead cipher.AEAD
	key  []byte
}

// NewWrapper creates a wrapper over a KeySize wrapping key. The wrapper keeps
// its own copy of key.
func NewWrapper(key []byte) (*Wrapper, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("wrapping key must be %d bytes, got %d", KeySize, len(key))
	}
	own := append([]byte(nil), key...)

	block, err := aes.NewCipher(own)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Wrapper{aead: aead, key: own}, nil
}

// Seal encrypts material and binds it to label
func (w *Wrapper) Seal(label string, material []byte) ([]byte, error) {
	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, NonceSize, NonceSize+len(material)+TagSize)
	copy(out, nonce)
	return w.aead.Seal(out, nonce, material, []byte(label)), nil
}

// Open decrypts a record sealed under the same label
func (w *Wrapper) Open(label string, sealed []byte) ([]byte, error) {
	if len(sealed) < NonceSize+TagSize {
		return nil, ErrInvalidSealed
	}

	nonce, body := sealed[:NonceSize], sealed[NonceSize:]
	material, err := w.aead.Open(nil, nonce, body, []byte(label))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return material, nil
}

// Destroy clears the wrapping key from memory
func (w *Wrapper) Destroy() {
	ClearBytes(w.key)
}

// ClearBytes zeroes a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare compares two byte slices in constant time
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom returns n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
