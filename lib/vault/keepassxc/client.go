package keepassxc

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

// Backend implements lib/vault.Backend against a running KeePassXC instance
// over its browser-proxy Unix socket (spec §4.1/§6).
type Backend struct {
	socketPath string
	clientID   string

	mu        sync.Mutex
	conn      net.Conn
	keys      keyPair
	peerKey   *[32]byte
	associated bool
	assocID   string
	assocKey  string // base64 locally generated id public key sent with associate
}

// New builds a Backend that will dial socketPath lazily on first use.
func New(socketPath string) *Backend {
	return &Backend{socketPath: socketPath, clientID: uuid.NewString()}
}

func (b *Backend) Name() string { return "keepassxc" }

func (b *Backend) IsAvailable(ctx context.Context) bool {
	conn, err := net.Dial("unix", b.socketPath)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// ensureAssociated performs change-public-keys then associate once per
// Backend lifetime; no test-associate request is sent (spec §4.1: "Associates once per run").
func (b *Backend) ensureAssociated(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.associated {
		return nil
	}

	conn, err := net.Dial("unix", b.socketPath)
	if err != nil {
		return errs.NewSecretError(errs.SecretBackendUnavailable, "", err)
	}
	b.conn = conn

	kp, err := generateKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	b.keys = kp

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	req := changePublicKeysRequest{
		Action:    "change-public-keys",
		PublicKey: b64(kp.public[:]),
		Nonce:     b64(nonce[:]),
		ClientID:  b.clientID,
	}
	payload, _ := json.Marshal(req)
	if err := writeFrame(conn, payload); err != nil {
		return err
	}
	respBytes, err := readFrame(conn)
	if err != nil {
		return err
	}
	var resp changePublicKeysResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	if resp.Success != "true" {
		return errs.NewSecretError(errs.SecretBackendLocked, "", fmt.Errorf("change-public-keys rejected"))
	}
	peerKeyBytes, err := unb64(resp.PublicKey)
	if err != nil {
		return err
	}
	var peerKey [32]byte
	copy(peerKey[:], peerKeyBytes)
	b.peerKey = &peerKey

	if err := b.associate(); err != nil {
		return err
	}
	b.associated = true
	return nil
}

// associate issues a single "associate" request (spec §6); it does not
// follow it with "test-associate".
func (b *Backend) associate() error {
	var reqNonce [24]byte
	if _, err := rand.Read(reqNonce[:]); err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	idKeyPair, err := generateKeyPair(rand.Reader)
	if err != nil {
		return err
	}
	inner := map[string]string{
		"action": "associate",
		"key":    b64(b.keys.public[:]),
		"idKey":  b64(idKeyPair.public[:]),
	}
	sealed, err := sealMessage(inner, &reqNonce, b.peerKey, b.keys.private)
	if err != nil {
		return err
	}
	env := encryptedRequest{Action: "associate", Message: sealed, Nonce: b64(reqNonce[:]), ClientID: b.clientID}
	if err := b.send(env); err != nil {
		return err
	}
	var resp encryptedResponse
	if err := b.recv(&resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errs.NewSecretError(errs.SecretBackendLocked, "", fmt.Errorf("associate failed: %s", resp.Error))
	}

	var respNonce [24]byte
	nonceBytes, err := unb64(resp.Nonce)
	if err != nil {
		return err
	}
	copy(respNonce[:], nonceBytes)
	var associated struct {
		ID string `json:"id"`
	}
	if err := openMessage(resp.Message, &respNonce, b.peerKey, b.keys.private, &associated); err != nil {
		return err
	}

	b.assocID = associated.ID
	b.assocKey = b64(idKeyPair.public[:])
	return nil
}

func (b *Backend) send(env encryptedRequest) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return writeFrame(b.conn, payload)
}

func (b *Backend) recv(dst *encryptedResponse) error {
	raw, err := readFrame(b.conn)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// getLogins performs "get-logins" for url, returning (username, password, found).
func (b *Backend) getLogins(ctx context.Context, url string) (string, string, bool, error) {
	if err := b.ensureAssociated(ctx); err != nil {
		return "", "", false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var reqNonce [24]byte
	if _, err := rand.Read(reqNonce[:]); err != nil {
		return "", "", false, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	inner := map[string]interface{}{
		"action": "get-logins",
		"url":    url,
		"keys": []map[string]string{
			{"id": b.assocID, "key": b.assocKey},
		},
	}
	sealed, err := sealMessage(inner, &reqNonce, b.peerKey, b.keys.private)
	if err != nil {
		return "", "", false, err
	}
	env := encryptedRequest{Action: "get-logins", Message: sealed, Nonce: b64(reqNonce[:]), ClientID: b.clientID}
	if err := b.send(env); err != nil {
		return "", "", false, err
	}
	var resp encryptedResponse
	if err := b.recv(&resp); err != nil {
		return "", "", false, err
	}
	if resp.Error != "" {
		return "", "", false, nil
	}

	var respNonce [24]byte
	nonceBytes, err := unb64(resp.Nonce)
	if err != nil {
		return "", "", false, err
	}
	copy(respNonce[:], nonceBytes)

	var out struct {
		Entries []struct {
			Login    string `json:"login"`
			Password string `json:"password"`
		} `json:"entries"`
	}
	if err := openMessage(resp.Message, &respNonce, b.peerKey, b.keys.private, &out); err != nil {
		return "", "", false, err
	}
	if len(out.Entries) == 0 {
		return "", "", false, nil
	}
	return out.Entries[0].Login, out.Entries[0].Password, true, nil
}

// Retrieve looks up url (the spec's display key, matched against the URL
// field of a KeePassXC entry per spec §4.1's key-shape table) via
// get-logins.
func (b *Backend) Retrieve(ctx context.Context, key string) (types.Credentials, bool, error) {
	username, password, found, err := b.getLogins(ctx, key)
	if err != nil || !found {
		return types.Credentials{}, found, err
	}
	return types.Credentials{Username: username, Password: secret.New(password)}, true, nil
}

// Store is unsupported: RustConn treats KeePassXC as read-only through the
// browser-proxy protocol, which has no "set-login" primitive in the spec's
// exchange (change-public-keys/associate/test-associate/get-logins only).
func (b *Backend) Store(ctx context.Context, key string, creds types.Credentials) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, fmt.Errorf("keepassxc backend is read-only via the browser-proxy protocol"))
}

// Delete is unsupported for the same reason as Store.
func (b *Backend) Delete(ctx context.Context, key string) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, fmt.Errorf("keepassxc backend is read-only via the browser-proxy protocol"))
}
