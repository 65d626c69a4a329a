// Package keepassxc implements the KeePassXC browser-proxy protocol of spec
// §4.1/§6: a Unix socket carrying 4-byte little-endian length-prefixed JSON
// frames, an X25519 key exchange, and TweetNaCl box encryption for every
// message after change-public-keys.
package keepassxc

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"

	"golang.org/x/crypto/nacl/box"

	"github.com/gravitational/rustconn/lib/errs"
)

// MaxFrameSize is the 10 MB cap of spec §6 ("Frames larger than 10 MB are
// rejected").
const MaxFrameSize = 10 * 1024 * 1024

// writeFrame writes a length-prefixed frame: 4-byte little-endian length
// followed by payload.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return errs.NewSecretError(errs.SecretProtocolError, "", io.ErrShortWrite)
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	_, err := w.Write(payload)
	if err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame, rejecting any length above
// MaxFrameSize before allocating a buffer for it.
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, errs.NewSecretError(errs.SecretProtocolError, "", io.ErrShortBuffer)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return buf, nil
}

// keyPair is the client's X25519 key pair used for the box key exchange.
type keyPair struct {
	public  *[32]byte
	private *[32]byte
}

func generateKeyPair(rand io.Reader) (keyPair, error) {
	pub, priv, err := box.GenerateKey(rand)
	if err != nil {
		return keyPair{}, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return keyPair{public: pub, private: priv}, nil
}

// changePublicKeysRequest is the first message of the exchange (spec §6).
type changePublicKeysRequest struct {
	Action    string `json:"action"`
	PublicKey string `json:"publicKey"`
	Nonce     string `json:"nonce"`
	ClientID  string `json:"clientID"`
}

type changePublicKeysResponse struct {
	Action    string `json:"action"`
	PublicKey string `json:"publicKey"`
	Success   string `json:"success"`
	Version   string `json:"version"`
}

// encryptedRequest is the envelope every message after change-public-keys
// uses: a nacl box-sealed, base64-encoded "message" field.
type encryptedRequest struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Nonce     string `json:"nonce"`
	ClientID  string `json:"clientID"`
}

type encryptedResponse struct {
	Action  string `json:"action"`
	Message string `json:"message"`
	Nonce   string `json:"nonce"`
	Error   string `json:"error,omitempty"`
}

func b64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return b, nil
}

// sealMessage nacl-box-seals payload (as JSON) for the peer with the given
// nonce, returning the base64 ciphertext; the caller encodes the nonce.
func sealMessage(payload interface{}, nonce *[24]byte, peerPublic, ourPrivate *[32]byte) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	sealed := box.Seal(nil, plaintext, nonce, peerPublic, ourPrivate)
	return b64(sealed), nil
}

// openMessage reverses sealMessage into dst.
func openMessage(ciphertextB64 string, nonce *[24]byte, peerPublic, ourPrivate *[32]byte, dst interface{}) error {
	ciphertext, err := unb64(ciphertextB64)
	if err != nil {
		return err
	}
	plain, ok := box.Open(nil, ciphertext, nonce, peerPublic, ourPrivate)
	if !ok {
		return errs.NewSecretError(errs.SecretProtocolError, "", io.ErrUnexpectedEOF)
	}
	return json.Unmarshal(plain, dst)
}
