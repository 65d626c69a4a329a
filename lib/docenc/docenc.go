// Package docenc implements the `.rcn` bundle encryption of spec §6: an
// Argon2-derived key feeding AES-256-GCM (stdlib crypto/aes + crypto/cipher;
// golang.org/x/crypto has no higher-level AEAD convenience beyond what
// cipher.NewGCM already provides, so this one concern stays on the standard
// library — see DESIGN.md), plus read compatibility for the legacy XOR
// format it replaced.
package docenc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/argon2"

	"github.com/gravitational/rustconn/lib/secret"
)

// Strength is the closed set of KDF cost parameters (spec §6).
type Strength int

const (
	Standard Strength = iota
	High
	Maximum
)

type argonParams struct {
	time, memory uint32
	threads      uint8
}

func paramsFor(s Strength) argonParams {
	switch s {
	case High:
		return argonParams{time: 4, memory: 256 * 1024, threads: 4}
	case Maximum:
		return argonParams{time: 6, memory: 1024 * 1024, threads: 4}
	default:
		return argonParams{time: 2, memory: 64 * 1024, threads: 4}
	}
}

const (
	magicCurrent = "RCN2"
	magicLegacyXOR = "RCN1"
	saltSize       = 16
)

// Encrypt seals plaintext for the given strength, always producing the
// current AES-256-GCM format.
func Encrypt(plaintext []byte, password secret.Value, strength Strength) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, trace.Wrap(err)
	}
	p := paramsFor(strength)
	key := argon2.IDKey(password.ExposeBytes(), salt, p.time, p.memory, p.threads, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, trace.Wrap(err)
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, 4+1+saltSize+len(nonce)+len(ciphertext))
	out = append(out, magicCurrent...)
	out = append(out, byte(strength))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt opens a `.rcn` bundle, transparently reading the legacy XOR
// format for documents created before the AES-256-GCM migration.
func Decrypt(data []byte, password secret.Value) ([]byte, error) {
	if len(data) < 4 {
		return nil, trace.BadParameter("docenc: truncated document")
	}
	magic := string(data[:4])
	switch magic {
	case magicCurrent:
		return decryptCurrent(data[4:], password)
	case magicLegacyXOR:
		return decryptLegacyXOR(data[4:], password), nil
	default:
		return nil, trace.BadParameter("docenc: unrecognized document format")
	}
}

func decryptCurrent(rest []byte, password secret.Value) ([]byte, error) {
	if len(rest) < 1+saltSize {
		return nil, trace.BadParameter("docenc: truncated header")
	}
	strength := Strength(rest[0])
	salt := rest[1 : 1+saltSize]
	body := rest[1+saltSize:]

	p := paramsFor(strength)
	key := argon2.IDKey(password.ExposeBytes(), salt, p.time, p.memory, p.threads, 32)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if len(body) < gcm.NonceSize() {
		return nil, trace.BadParameter("docenc: truncated body")
	}
	nonce, ciphertext := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errDecryptFailed
	}
	return plaintext, nil
}

// decryptLegacyXOR reverses the pre-GCM format: a repeating-key XOR stream
// keyed by SHA-256(password), kept for read compatibility with bundles
// exported by older RustConn builds. Never used for new writes.
func decryptLegacyXOR(ciphertext []byte, password secret.Value) []byte {
	sum := sha256.Sum256(password.ExposeBytes())
	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		out[i] = b ^ sum[i%len(sum)]
	}
	return out
}

var errDecryptFailed = errors.New("docenc: decryption failed (wrong password or corrupt document)")
