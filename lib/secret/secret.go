// Package secret provides the in-memory wrapper type every credential field
// must use (spec §3, "Secret value"). Its String and GoString methods return
// a fixed placeholder, so a stray %v or %s in a log statement prints that
// placeholder instead of the plaintext; the only way to read
// the plaintext is the explicit Expose call.
package secret

import "fmt"

// redacted is what every formatting path prints instead of the plaintext.
const redacted = "[REDACTED]"

// Value owns a secret byte slice. The zero Value is empty, not nil-unsafe.
type Value struct {
	b []byte
}

// New wraps a copy of plaintext in a byte slice owned by the returned Value.
// The caller's string is immutable and cannot be zeroed.
func New(plaintext string) Value {
	if plaintext == "" {
		return Value{}
	}
	b := make([]byte, len(plaintext))
	copy(b, plaintext)
	return Value{b: b}
}

// NewBytes wraps a copy of b.
func NewBytes(b []byte) Value {
	if len(b) == 0 {
		return Value{}
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return Value{b: cp}
}

// Empty reports whether the wrapped value has zero length.
func (v Value) Empty() bool { return len(v.b) == 0 }

// Expose returns the plaintext. Callers must not retain the returned string
// beyond the immediate use site (Go strings are immutable and cannot be
// zeroed, which is why every other path through this package stays in
// []byte); this is the single, explicit, named exception to the "never
// plaintext" rule in spec §5.
func (v Value) Expose() string {
	return string(v.b)
}

// ExposeBytes returns the plaintext as a byte slice sharing the wrapper's
// backing array. Callers that need to zero the plaintext themselves (e.g.
// after writing it to a pipe) should use this form and Zero the result.
func (v Value) ExposeBytes() []byte {
	return v.b
}

// Zero overwrites the backing array with zero bytes. Call this as soon as a
// Value is no longer needed; it is also safe (a no-op) to call more than
// once or on an empty Value.
func (v *Value) Zero() {
	for i := range v.b {
		v.b[i] = 0
	}
	v.b = nil
}

// Equal performs a constant-time-irrelevant but wrapper-safe comparison,
// useful for tests; it is not exposed as the == operator because Value must
// never be compared by accident in a way that looks like it tells you
// something about the plaintext.
func (v Value) Equal(other Value) bool {
	if len(v.b) != len(other.b) {
		return false
	}
	for i := range v.b {
		if v.b[i] != other.b[i] {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer but deliberately never returns the
// plaintext, satisfying spec §3's "never implements the default
// debug/display formatting" by making the default formatting harmless.
func (v Value) String() string { return redacted }

// GoString implements fmt.GoStringer for the same reason as String.
func (v Value) GoString() string { return redacted }

// MarshalJSON guarantees a Value never leaks into a persisted document or an
// API response by accident.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", redacted)), nil
}

// MarshalYAML mirrors MarshalJSON for the YAML-backed connection store.
func (v Value) MarshalYAML() (interface{}, error) {
	return redacted, nil
}
