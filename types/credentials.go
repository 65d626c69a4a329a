package types

import (
	"time"

	"github.com/gravitational/rustconn/lib/secret"
)

// Credentials is the resolved tuple produced by C1 (spec §3).
type Credentials struct {
	Username        string
	Password        secret.Value
	KeyPassphrase   secret.Value
	Domain          string
	SaveCredentials bool
}

// CachedCredentials pairs Credentials with the instant they were cached
// (spec §3); expiry is evaluated by the cache, not by this type, so it stays
// clock-agnostic and trivially comparable in tests.
type CachedCredentials struct {
	Credentials Credentials
	CachedAt    time.Time
}
