// Package onepassword implements the 1Password CLI credential backend of
// spec §4.1, shelling out to `op` and parsing its JSON item output.
package onepassword

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

// Backend drives `op item get <key> --format json`, relying on the ambient
// `op` session already established by the user (via `op signin`) rather than
// managing its own session token, since 1Password CLI sessions are tied to
// a single shell's environment and do not export cleanly across processes.
type Backend struct {
	execPath string
	vault    string
}

// New builds a Backend. vault, if non-empty, scopes lookups to a specific
// 1Password vault name.
func New(execPath, vault string) *Backend {
	if execPath == "" {
		execPath = "op"
	}
	return &Backend{execPath: execPath, vault: vault}
}

func (b *Backend) Name() string { return "onepassword" }

func (b *Backend) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(b.execPath)
	return err == nil
}

type opField struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

func (b *Backend) Retrieve(ctx context.Context, key string) (types.Credentials, bool, error) {
	args := []string{"item", "get", key, "--format", "json"}
	if b.vault != "" {
		args = append(args, "--vault", b.vault)
	}
	cmd := exec.CommandContext(ctx, b.execPath, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return types.Credentials{}, false, nil
	}

	var item struct {
		Fields []opField `json:"fields"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &item); err != nil {
		return types.Credentials{}, false, errs.NewSecretError(errs.SecretProtocolError, key, err)
	}

	var username, password string
	for _, f := range item.Fields {
		switch f.ID {
		case "username":
			username = f.Value
		case "password":
			password = f.Value
		}
	}
	if password == "" {
		return types.Credentials{}, false, nil
	}
	return types.Credentials{Username: username, Password: secret.New(password)}, true, nil
}

// Store is unsupported for the same reason as lib/vault/bitwarden: writing
// vault items via an unattended CLI session has no place in this backend's
// read-only lookup contract.
func (b *Backend) Store(ctx context.Context, key string, creds types.Credentials) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	return errs.NewSecretError(errs.SecretProtocolError, key, errUnsupported)
}

type errUnsupportedOp struct{}

func (errUnsupportedOp) Error() string { return "onepassword backend is read-only" }

var errUnsupported = errUnsupportedOp{}
