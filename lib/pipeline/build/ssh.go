package build

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/crypto/ssh/agent"
)

// agentHasIdentity reports whether a reachable ssh-agent holds at least one
// identity, so the builder can skip an explicit key file (spec §4.3: "SSH
// uses either an agent, a key file ... or an external helper").
func agentHasIdentity() bool {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return false
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return false
	}
	defer conn.Close()
	ag := agent.NewClient(conn)
	keys, err := ag.List()
	return err == nil && len(keys) > 0
}

// buildSSH implements the SSH command-assembly rules of spec §4.3: passwords
// are never passed on the command line; an agent or a key file with
// IdentitiesOnly is used instead. There is no external-helper form: when
// neither an agent nor a key file is available, no authentication option is
// added.
func buildSSH(c *BuildContext) (Argv, *StdinPayload, error) {
	username, err := c.expand("username", c.Connection.Username, false)
	if err != nil {
		return nil, nil, err
	}
	port, err := formatPort(c.Connection.Port)
	if err != nil {
		return nil, nil, err
	}

	argv := Argv{"ssh"}
	if cfg := c.Connection.SSH; cfg != nil {
		if cfg.ProxyJump != "" {
			jump, err := c.expand("ssh.proxy_jump", cfg.ProxyJump, false)
			if err != nil {
				return nil, nil, err
			}
			argv = append(argv, "-J", jump)
		}
		switch {
		case cfg.UseAgent && agentHasIdentity():
			// nothing to add: the system agent is used implicitly.
		case cfg.IdentityFile != "":
			argv = append(argv, "-i", cfg.IdentityFile, "-o", "IdentitiesOnly=yes")
		}
	}

	argv = append(argv, "-p", port)

	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)

	target := c.Connection.Host
	if username != "" {
		target = fmt.Sprintf("%s@%s", username, c.Connection.Host)
	}
	argv = append(argv, target)

	return argv, nil, nil
}
