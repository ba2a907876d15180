// Package custody envelope-encrypts Ed25519 seed material with a
// process-wide master key. The master key never leaves the process and
// the plaintext seed never touches persistent storage: identities store
// only the AES-256-GCM envelope produced here.
package custody

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
)

// Common errors returned by this package.
var (
	ErrNoMasterKey      = errors.New("no master key configured: signing material is unavailable")
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes")
	ErrInvalidEnvelope  = errors.New("invalid key envelope")
	ErrDecryptFailed    = errors.New("envelope decryption failed (wrong master key or corrupt data)")
)

const (
	// MasterKeySize is the required master key length in bytes.
	MasterKeySize = 32

	// ivSize is the AES-GCM nonce length (96 bits).
	ivSize = 12

	// tagSize is the AES-GCM authentication tag length (128 bits).
	tagSize = 16
)

// envelopeInfo binds derived keys to this envelope format so the master
// key can be reused for other purposes without key-stream overlap.
const envelopeInfo = "fides/seed-envelope/v1"

// EncryptedKey is the AES-256-GCM envelope around an Ed25519 seed.
// IV, Ciphertext and Tag are stored separately so the format is explicit
// on disk rather than relying on Go's tag-appending convention.
type EncryptedKey struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
}

// Custodian encrypts and decrypts seed envelopes with a key derived from
// the process master key. A nil Custodian fails closed: every operation
// returns ErrNoMasterKey.
type Custodian struct {
	envelopeKey []byte
}

// New creates a Custodian from a 32-byte master key. The envelope key is
// derived with HKDF-SHA256 so the raw master key is never used directly
// as cipher material.
func New(masterKey []byte) (*Custodian, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidMasterKey, len(masterKey))
	}

	kdf := hkdf.New(sha256.New, masterKey, nil, []byte(envelopeInfo))
	key := make([]byte, MasterKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive envelope key: %w", err)
	}

	return &Custodian{envelopeKey: key}, nil
}

// FromEnv creates a Custodian from the FIDES_MASTER_KEY environment
// variable (hex encoded). Returns (nil, nil) if the variable is unset:
// callers get a fail-closed nil Custodian rather than an error, so that
// read-only deployments without signing material still start.
func FromEnv() (*Custodian, error) {
	raw := os.Getenv("FIDES_MASTER_KEY")
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("FIDES_MASTER_KEY is not valid hex: %w", err)
	}
	return New(key)
}

// Encrypt seals a seed into an AES-256-GCM envelope with a fresh random
// 96-bit IV.
func (c *Custodian) Encrypt(seed []byte) (*EncryptedKey, error) {
	if c == nil {
		return nil, ErrNoMasterKey
	}

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := aead.Seal(nil, iv, seed, nil)

	// Go appends the tag to the ciphertext; split it out.
	split := len(sealed) - tagSize
	return &EncryptedKey{
		IV:         iv,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens an envelope and returns the plaintext seed. The caller
// owns the returned slice and should zero it when done.
func (c *Custodian) Decrypt(env *EncryptedKey) ([]byte, error) {
	if c == nil {
		return nil, ErrNoMasterKey
	}
	if env == nil || len(env.IV) != ivSize || len(env.Tag) != tagSize {
		return nil, ErrInvalidEnvelope
	}

	aead, err := c.aead()
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+tagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	seed, err := aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return seed, nil
}

func (c *Custodian) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.envelopeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Zero overwrites a byte slice in place. Used for plaintext seeds that
// must not outlive their stack frame.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
