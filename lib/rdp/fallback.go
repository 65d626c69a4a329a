package rdp

import (
	"context"

	"github.com/gravitational/rustconn/lib/pipeline/build"
	"github.com/gravitational/rustconn/lib/session"
)

// Fallback launches an external RDP viewer (xfreerdp/wlfreerdp) for a
// session whose embedded engine is unavailable (spec §4.2). It reuses the
// same BuildContext/build.Build path as every other external protocol so
// the password-over-stdin contract is enforced in exactly one place
// (lib/pipeline/build.Build, lib/session.Launch).
func Fallback(ctx context.Context, bctx *build.BuildContext) (*session.Result, error) {
	argv, stdin, err := build.Build(bctx)
	if err != nil {
		return nil, err
	}
	return session.Launch(ctx, argv, stdin)
}
