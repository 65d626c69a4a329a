package build

import "github.com/gravitational/rustconn/lib/errs"

// buildZeroTrust builds the argument vector for a Zero-Trust CLI (e.g. `tsh`,
// a Boundary client). The provider names its own executable; RustConn only
// validates and forwards the resource identifier.
func buildZeroTrust(c *BuildContext) (Argv, *StdinPayload, error) {
	zt := c.Connection.ZeroTrust
	if zt == nil || zt.Provider == "" || zt.Resource == "" {
		return nil, nil, errs.NewVariableError(errs.VarInvalidSyntax, "zerotrust", "zero-trust connections require a provider and a resource")
	}
	resource, err := c.expand("zerotrust.resource", zt.Resource, false)
	if err != nil {
		return nil, nil, err
	}
	argv := Argv{zt.Provider, "connect", resource}
	extra, err := customArgs(c)
	if err != nil {
		return nil, nil, err
	}
	argv = append(argv, extra...)
	return argv, nil, nil
}
