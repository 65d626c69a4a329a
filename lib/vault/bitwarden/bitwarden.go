// Package bitwarden implements the Bitwarden CLI credential backend of spec
// §4.1: shelling out to the `bw` executable and parsing its JSON output,
// matching the CLI-subprocess style of the other vault backends (see
// lib/vault/onepassword, lib/vault/passbolt) and the pipeline's own
// os/exec.CommandContext usage in lib/session.
package bitwarden

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sync"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

// Backend drives `bw` in unlock-once-per-process mode: the session token
// returned by `bw unlock` is cached in-memory as a secret.Value and exported
// via the child process's environment on every subsequent invocation, never
// written to disk or logged.
type Backend struct {
	execPath string
	password secret.Value

	mu      sync.Mutex
	session secret.Value
}

// New builds a Backend that will unlock lazily with password on first use.
func New(execPath string, password secret.Value) *Backend {
	if execPath == "" {
		execPath = "bw"
	}
	return &Backend{execPath: execPath, password: password}
}

func (b *Backend) Name() string { return "bitwarden" }

func (b *Backend) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(b.execPath)
	return err == nil
}

func (b *Backend) ensureSession(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.session.Empty() {
		return b.session.Expose(), nil
	}

	cmd := exec.CommandContext(ctx, b.execPath, "unlock", "--raw", "--passwordenv", "RUSTCONN_BW_PASSWORD")
	cmd.Env = append(cmd.Environ(), "RUSTCONN_BW_PASSWORD="+b.password.Expose())
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", errs.NewSecretError(errs.SecretBackendLocked, "", err)
	}
	token := bytes.TrimSpace(stdout.Bytes())
	b.session = secret.NewBytes(token)
	return b.session.Expose(), nil
}

type bwItem struct {
	Name  string `json:"name"`
	Login struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"login"`
}

func (b *Backend) run(ctx context.Context, args ...string) ([]byte, error) {
	session, err := b.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, b.execPath, args...)
	cmd.Env = append(cmd.Environ(), "BW_SESSION="+session)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, errs.NewSecretError(errs.SecretProtocolError, "", err)
	}
	return stdout.Bytes(), nil
}

func (b *Backend) Retrieve(ctx context.Context, key string) (types.Credentials, bool, error) {
	out, err := b.run(ctx, "get", "item", key, "--response")
	if err != nil {
		return types.Credentials{}, false, err
	}
	var resp struct {
		Success bool   `json:"success"`
		Data    bwItem `json:"data"`
	}
	if err := json.Unmarshal(out, &resp); err != nil || !resp.Success {
		return types.Credentials{}, false, nil
	}
	return types.Credentials{
		Username: resp.Data.Login.Username,
		Password: secret.New(resp.Data.Login.Password),
	}, true, nil
}

// Store is unsupported: editing Bitwarden vault items from an unattended CLI
// session risks corrupting organization-shared items with no server-side
// review step, unlike the single-user KDBX/libsecret backends.
func (b *Backend) Store(ctx context.Context, key string, creds types.Credentials) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

var errUnsupported = errUnsupportedOp{}

type errUnsupportedOp struct{}

func (errUnsupportedOp) Error() string { return "bitwarden backend is read-only" }
