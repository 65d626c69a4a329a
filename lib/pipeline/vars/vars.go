// Package vars implements the ${name} variable resolution and sanitisation
// rules of spec §4.3 (C3).
package vars

import (
	"strings"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/types"
)

// DefaultMaxDepth is the default recursion ceiling for nested ${...}
// expansion (spec §4.3).
const DefaultMaxDepth = 10

// Scope resolves a variable name against connection-local then global
// scopes, in that order (spec §4.3).
type Scope struct {
	Local  map[string]types.Variable
	Global map[string]types.Variable
	// MaxDepth overrides DefaultMaxDepth when non-zero.
	MaxDepth int
}

// lookup finds name in Local then Global.
func (s *Scope) lookup(name string) (types.Variable, bool) {
	if v, ok := s.Local[name]; ok {
		return v, true
	}
	v, ok := s.Global[name]
	return v, ok
}

func (s *Scope) maxDepth() int {
	if s.MaxDepth > 0 {
		return s.MaxDepth
	}
	return DefaultMaxDepth
}

// refRE-free manual scanner: ${ and the matching closing } with no nesting
// inside a single token (variable names never contain '{' or '}').
func findToken(s string) (start, end int, name string, found bool) {
	i := strings.Index(s, "${")
	if i < 0 {
		return 0, 0, "", false
	}
	j := strings.Index(s[i+2:], "}")
	if j < 0 {
		return 0, 0, "", false
	}
	return i, i + 2 + j + 1, s[i+2 : i+2+j], true
}

// Substitute expands every ${name} token in s, recursively, failing with
// CircularReference if a name is reachable from itself and with
// MaxDepthExceeded past the configured depth (spec §4.3, property 2 of
// spec §8). Property 1 (idempotence on strings with no tokens) follows
// directly: findToken returns !found and s is returned unchanged.
func (s *Scope) Substitute(input string) (string, error) {
	return s.substitute(input, map[string]struct{}{}, 0)
}

func (s *Scope) substitute(input string, visited map[string]struct{}, depth int) (string, error) {
	start, end, name, found := findToken(input)
	if !found {
		return input, nil
	}
	if depth >= s.maxDepth() {
		return "", errs.NewVariableError(errs.VarMaxDepthExceeded, name, "maximum nesting depth exceeded")
	}
	if _, seen := visited[name]; seen {
		return "", errs.NewVariableError(errs.VarCircularReference, name, "variable references itself")
	}
	v, ok := s.lookup(name)
	if !ok {
		return "", errs.NewVariableError(errs.VarUndefined, name, "no such variable")
	}

	visited[name] = struct{}{}
	expandedValue, err := s.substitute(v.Value, visited, depth+1)
	delete(visited, name)
	if err != nil {
		return "", err
	}

	rest := input[:start] + expandedValue + input[end:]
	return s.substitute(rest, visited, depth)
}

// forbidden is the shell-metacharacter set of spec §4.3.
const forbidden = "\x00\n\r;|&`$()<>"

// ValidateCommandValue checks v against the forbidden character set before
// it may appear in a command argument or shell-command string (spec §4.3,
// property 3 of spec §8).
func ValidateCommandValue(name, v string) error {
	if i := strings.IndexAny(v, forbidden); i >= 0 {
		return errs.NewVariableError(errs.VarUnsafeValue, name, "contains a forbidden shell metacharacter")
	}
	return nil
}

// SubstituteAndValidate expands input and then validates the *whole*
// resulting string against the forbidden set, matching spec §4.3's
// ordering ("the substitution does not proceed" on a failing check — i.e.
// validation happens on the substituted result before it is used).
func (s *Scope) SubstituteAndValidate(name, input string) (string, error) {
	out, err := s.Substitute(input)
	if err != nil {
		return "", err
	}
	if err := ValidateCommandValue(name, out); err != nil {
		return "", err
	}
	return out, nil
}
