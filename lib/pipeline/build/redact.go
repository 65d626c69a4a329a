package build

import (
	"strings"
)

// passwordPrefixes are argv-element prefixes known to carry a password
// directly (spec §4.3, "Log redaction"); any element beginning with one of
// these is masked regardless of whether it matched a known secret value.
var passwordPrefixes = []string{"/p:", "/password:", "-passwd", "--password"}

// Redact produces a log-safe rendering of argv: any element that is a known
// secret-variable value, or that begins with a known password-carrying
// prefix, is replaced by "{key}=****" where key is argv[i-1] when it looks
// like a flag, or the element's own prefix otherwise. This gives property 11
// (spec §8): the rendered string never contains a secret value as a
// substring.
func Redact(argv Argv, secrets SecretValues) string {
	out := make([]string, len(argv))
	for i, a := range argv {
		switch {
		case len(secrets) > 0 && isKnownSecret(a, secrets):
			out[i] = maskFor(argv, i, secrets)
		case hasPasswordPrefix(a):
			out[i] = maskFor(argv, i, secrets)
		default:
			out[i] = a
		}
	}
	quoted := make([]string, len(out))
	for i, s := range out {
		quoted[i] = shlexQuote(s)
	}
	return strings.Join(quoted, " ")
}

func isKnownSecret(s string, secrets SecretValues) bool {
	if s == "" {
		return false
	}
	_, ok := secrets[s]
	return ok
}

func hasPasswordPrefix(s string) bool {
	for _, p := range passwordPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func maskFor(argv Argv, i int, secrets SecretValues) string {
	if i > 0 && strings.HasPrefix(argv[i-1], "-") && !isKnownSecret(argv[i-1], secrets) {
		return argv[i-1] + "=****"
	}
	for _, p := range passwordPrefixes {
		if strings.HasPrefix(argv[i], p) {
			return p + "=****"
		}
	}
	return "secret=****"
}

// shlexQuote renders s the way it would need to be quoted to round-trip
// through shlex.Split (used by SplitCustomArgs), giving the redacted log
// line a realistic, copy-pasteable shape.
func shlexQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
