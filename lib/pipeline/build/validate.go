package build

import (
	"net"
	"regexp"
	"strconv"

	"github.com/gravitational/rustconn/lib/errs"
)

// hostnameRE accepts RFC-1123-style hostnames: labels of letters, digits and
// hyphens, dot-separated, no leading/trailing hyphen per label.
var hostnameRE = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,62}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,62}[a-zA-Z0-9])?)*$`)

// validateHost enforces spec §4.3: "The host field must be a syntactically
// valid hostname or IP literal. Hosts containing shell metacharacters are
// rejected."
func validateHost(host string) error {
	if host == "" {
		return errs.NewVariableError(errs.VarInvalidSyntax, "host", "host must not be empty")
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	if hostnameRE.MatchString(host) {
		return nil
	}
	return errs.NewVariableError(errs.VarUnsafeValue, "host", "not a syntactically valid hostname or IP literal")
}

// formatPort serialises a port after bounds checking (spec §4.3: "Ports are
// serialised as decimal integers after bounds checking").
func formatPort(port int) (string, error) {
	if port < 1 || port > 65535 {
		return "", errs.NewVariableError(errs.VarInvalidSyntax, "port", "out of range [1, 65535]")
	}
	return strconv.Itoa(port), nil
}
