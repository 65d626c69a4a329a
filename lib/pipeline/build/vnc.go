package build

import (
	"os"

	"github.com/gravitational/trace"
)

// buildVNC implements spec §4.3's VNC rule: "VNC passes through a -passwd
// file never a flag value". The password file is written with mode 0600 and
// its path is returned as an extra argv element after "-passwd". Nothing in
// this package or in lib/session.Launch removes the file afterwards.
func buildVNC(c *BuildContext) (Argv, *StdinPayload, error) {
	port, err := formatPort(c.Connection.Port)
	if err != nil {
		return nil, nil, err
	}

	argv := Argv{"vncviewer", c.Connection.Host + "::" + port}

	if !c.Credentials.Password.Empty() {
		f, err := os.CreateTemp("", "rustconn-vnc-*.passwd")
		if err != nil {
			return nil, nil, trace.Wrap(err)
		}
		defer f.Close()
		if err := f.Chmod(0o600); err != nil {
			return nil, nil, trace.Wrap(err)
		}
		if _, err := f.WriteString(c.Credentials.Password.Expose()); err != nil {
			return nil, nil, trace.Wrap(err)
		}
		argv = append(argv, "-passwd", f.Name())
	}

	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)
	return argv, nil, nil
}
