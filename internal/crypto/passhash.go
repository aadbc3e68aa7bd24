// Package crypto implements server-side password hashing.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const saltLen = 16

// Params are Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1, KeyLen: 32}

// Hasher derives and checks password hashes.
type Hasher struct{ p Params }

// NewHasher returns a hasher using p.
func NewHasher(p Params) *Hasher { return &Hasher{p: p} }

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash derives the Argon2id hash of password with salt.
func (h *Hasher) Hash(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.Memory, h.p.Threads, h.p.KeyLen)
}

// New hashes password with a fresh random salt.
func (h *Hasher) New(password []byte) (hash, salt []byte, err error) {
	salt, err = RandBytes(saltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.Hash(password, salt), salt, nil
}

// Verify compares password against expected in constant time.
func (h *Hasher) Verify(password, salt, expected []byte) bool {
	return subtle.ConstantTimeCompare(h.Hash(password, salt), expected) == 1
}

// Fingerprint is a short digest of a stored hash. Embedding it in a reset token
// makes the token stop working as soon as the password changes.
func Fingerprint(hash []byte) string {
	sum := sha256.Sum256(hash)
	return hex.EncodeToString(sum[:8])
}
