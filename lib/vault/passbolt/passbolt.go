// Package passbolt implements the Passbolt CLI credential backend of spec
// §4.1 via the third-party `passbolt-cli` tool (itself a thin wrapper around
// the GOPenPGP-based Passbolt API client), matching the os/exec + JSON
// subprocess pattern used by lib/vault/bitwarden and lib/vault/onepassword.
package passbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

// Backend drives `passbolt-cli get resource --name <key> --json`. Passbolt
// GPG unlocking is handled entirely by the CLI's own configured keyring, so
// this backend carries no key material itself.
type Backend struct {
	execPath string
}

func New(execPath string) *Backend {
	if execPath == "" {
		execPath = "passbolt-cli"
	}
	return &Backend{execPath: execPath}
}

func (b *Backend) Name() string { return "passbolt" }

func (b *Backend) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(b.execPath)
	return err == nil
}

type resource struct {
	Username string `json:"username"`
	Password string `json:"password"`
	URI      string `json:"uri"`
}

func (b *Backend) Retrieve(ctx context.Context, key string) (types.Credentials, bool, error) {
	cmd := exec.CommandContext(ctx, b.execPath, "get", "resource", "--name", key, "--json")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return types.Credentials{}, false, nil
	}
	var r resource
	if err := json.Unmarshal(stdout.Bytes(), &r); err != nil {
		return types.Credentials{}, false, errs.NewSecretError(errs.SecretProtocolError, key, err)
	}
	if r.Password == "" {
		return types.Credentials{}, false, nil
	}
	return types.Credentials{Username: r.Username, Password: secret.New(r.Password)}, true, nil
}

// Store is unsupported: Passbolt resources are shared-organization records
// whose write path requires the full Passbolt API's re-encryption-per-user
// fanout, which `passbolt-cli` does not expose as a single subprocess call.
func (b *Backend) Store(ctx context.Context, key string, creds types.Credentials) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

type errUnsupportedOp struct{}

func (errUnsupportedOp) Error() string { return "passbolt backend is read-only" }

var errUnsupported = errUnsupportedOp{}
