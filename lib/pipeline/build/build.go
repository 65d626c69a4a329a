// Package build assembles the protocol-specific argument vector (or the
// embedded-RDP connect request) from a resolved Connection, its Credentials,
// and the variable scope used to expand it (spec §4.3, C3).
package build

import (
	"github.com/google/shlex"
	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/lib/pipeline/vars"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

// StdinPayload is what must be written to the spawned subprocess's stdin
// after it starts; Protocol-specific builders use it to hand over passwords
// without ever putting them on the command line (spec §4.3).
type StdinPayload struct {
	Data   secret.Value
	Stream bool // true if Data should be streamed rather than written once
}

// Argv is the final, validated argument vector: Argv[0] is the program to
// exec, the rest are its arguments.
type Argv []string

// SecretValues is the set of plaintext secret-variable values observed while
// building an Argv; the log redactor (Redact) uses it to find and mask them
// wherever they appear in the final argv, per spec §4.3's "Log redaction".
type SecretValues map[string]struct{}

func (s SecretValues) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

// BuildContext carries everything a single protocol builder needs.
type BuildContext struct {
	Connection  *types.Connection
	Credentials types.Credentials
	Scope       *vars.Scope
	Secrets     SecretValues
}

// expand runs Scope.SubstituteAndValidate and records the result as a known
// secret if isSecret is true, so Redact can find it later.
func (c *BuildContext) expand(field, value string, isSecret bool) (string, error) {
	out, err := c.Scope.SubstituteAndValidate(field, value)
	if err != nil {
		return "", err
	}
	if isSecret {
		c.Secrets.add(out)
	}
	return out, nil
}

// Builder is the per-protocol command-assembly function (spec §4.3: "Each
// protocol owns a small function that: starts from a fixed base command,
// appends validated fields, and returns the final argument vector").
type Builder func(c *BuildContext) (Argv, *StdinPayload, error)

var builders = map[types.Protocol]Builder{
	types.ProtocolSSH:        buildSSH,
	types.ProtocolRDP:        buildRDPExternal,
	types.ProtocolVNC:        buildVNC,
	types.ProtocolSPICE:      buildSPICE,
	types.ProtocolTelnet:     buildTelnet,
	types.ProtocolSerial:     buildSerial,
	types.ProtocolKubernetes: buildKubernetes,
	types.ProtocolZeroTrust:  buildZeroTrust,
}

// Build validates the protocol, expands and validates the host, and
// dispatches to the protocol-specific builder, which merges and filters
// custom_args/custom_args_raw itself.
func Build(c *BuildContext) (Argv, *StdinPayload, error) {
	if err := c.Connection.Protocol.Validate(); err != nil {
		return nil, nil, err
	}
	host, err := c.expand("host", c.Connection.Host, false)
	if err != nil {
		return nil, nil, err
	}
	if err := validateHost(host); err != nil {
		return nil, nil, err
	}
	c.Connection.Host = host

	b, ok := builders[c.Connection.Protocol]
	if !ok {
		return nil, nil, errs.NewProtocolError(errs.ProtoUnsupported, nil)
	}
	return b(c)
}

// dangerousPrefixes lists the protocol-specific dangerous custom-arg
// prefixes of spec §4.3.
var dangerousPrefixes = map[types.Protocol][]string{
	types.ProtocolRDP: {"/p:", "/password:", "/shell:", "/proxy:"},
}

// filterCustomArgs drops any element containing NUL, CR or LF and any
// element matching a protocol-specific dangerous prefix (spec §4.3).
func filterCustomArgs(proto types.Protocol, args []string) []string {
	prefixes := dangerousPrefixes[proto]
	out := make([]string, 0, len(args))
	for _, a := range args {
		if indexOfControl(a) {
			continue
		}
		dangerous := false
		for _, p := range prefixes {
			if len(a) >= len(p) && a[:len(p)] == p {
				dangerous = true
				break
			}
		}
		if dangerous {
			continue
		}
		out = append(out, a)
	}
	return out
}

func indexOfControl(s string) bool {
	for _, r := range s {
		if r == 0 || r == '\n' || r == '\r' {
			return true
		}
	}
	return false
}

// SplitCustomArgs tokenises a free-text custom-args string (the form
// original_source/ stores alongside the list form) using shell-word
// semantics before filterCustomArgs runs, so both representations funnel
// through the same validator (SPEC_FULL.md §4.3, "Custom-args tokenisation").
func SplitCustomArgs(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	toks, err := shlex.Split(raw)
	if err != nil {
		return nil, errs.NewVariableError(errs.VarInvalidSyntax, "custom_args_raw", err.Error())
	}
	return toks, nil
}

// customArgs returns the connection's fully filtered extra arguments,
// merging the list and free-text forms.
func customArgs(c *BuildContext) ([]string, error) {
	all := append([]string{}, c.Connection.CustomArgs...)
	if c.Connection.CustomArgsRaw != "" {
		extra, err := SplitCustomArgs(c.Connection.CustomArgsRaw)
		if err != nil {
			return nil, err
		}
		all = append(all, extra...)
	}
	return filterCustomArgs(c.Connection.Protocol, all), nil
}
