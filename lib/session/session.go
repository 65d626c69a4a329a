// Package session launches the external-process side of every non-embedded
// protocol (and the embedded-RDP fallback), per spec §6's subprocess
// contract: "arguments built by C3, secrets handed over out-of-band (stdin
// or dedicated file), exit code surfaced to the session manager."
package session

import (
	"context"
	"errors"
	"os/exec"

	"github.com/gravitational/trace"

	"github.com/gravitational/rustconn/lib/pipeline/build"
)

// Result is what the caller needs once the subprocess exits.
type Result struct {
	ExitCode int
}

// Launch runs argv[0] with argv[1:], optionally writing stdin.Data to the
// child's stdin before closing it (the password-handoff path of spec §6).
// It never passes secrets as arguments or environment variables.
func Launch(ctx context.Context, argv build.Argv, stdin *build.StdinPayload) (*Result, error) {
	if len(argv) == 0 {
		return nil, trace.BadParameter("session: empty argument vector")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	if stdin != nil && !stdin.Data.Empty() {
		w, err := cmd.StdinPipe()
		if err != nil {
			return nil, trace.Wrap(err)
		}
		go func() {
			defer w.Close()
			w.Write(stdin.Data.ExposeBytes())
		}()
	}

	err := cmd.Run()
	if err == nil {
		return &Result{ExitCode: 0}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitErr.ExitCode()}, nil
	}
	return nil, trace.Wrap(err)
}
