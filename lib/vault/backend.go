// Package vault implements the Credential Resolution Core (spec §4.1, C1):
// the backend registry, the TTL cache, the single-flight resolver, and the
// group-inheritance and rename-propagation algorithms.
package vault

import (
	"context"

	"github.com/gravitational/rustconn/types"
)

// Backend is the capability set every credential backend implements (spec
// §4.1): store, retrieve, delete, and a liveness probe. Implementations are
// async (context-aware) and fallible.
type Backend interface {
	// Name identifies the backend for logging and the preferred_backend
	// selection (e.g. "libsecret", "keepassxc", "kdbx", "bitwarden",
	// "onepassword", "passbolt").
	Name() string
	Store(ctx context.Context, key string, creds types.Credentials) error
	// Retrieve returns (creds, true, nil) on a hit, (zero, false, nil) on a
	// clean miss, and a non-nil error (usually *errs.SecretError) on any
	// other failure.
	Retrieve(ctx context.Context, key string) (types.Credentials, bool, error)
	Delete(ctx context.Context, key string) error
	IsAvailable(ctx context.Context) bool
}
