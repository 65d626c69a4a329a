package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"
)

// MACAddress is a parsed, canonically-formatted 48-bit MAC address, used for
// the optional Wake-on-LAN field on Connection (spec §3). Canonical form is
// lower-case, colon-separated octets ("aa:bb:cc:dd:ee:ff"); ParseMAC accepts
// colon or hyphen separators and either case on input, satisfying property
// 12 (spec §8): format(parse(s)) == canonical(s).
type MACAddress [6]byte

// ParseMAC parses s into a MACAddress, accepting "aa:bb:cc:dd:ee:ff" or
// "aa-bb-cc-dd-ee-ff" in any case.
func ParseMAC(s string) (MACAddress, error) {
	norm := strings.ReplaceAll(s, "-", ":")
	parts := strings.Split(norm, ":")
	if len(parts) != 6 {
		return MACAddress{}, trace.BadParameter("invalid MAC address %q", s)
	}
	var mac MACAddress
	for i, p := range parts {
		if len(p) != 2 {
			return MACAddress{}, trace.BadParameter("invalid MAC address %q", s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return MACAddress{}, trace.BadParameter("invalid MAC address %q: %v", s, err)
		}
		mac[i] = byte(v)
	}
	return mac, nil
}

// String returns the canonical lower-case, colon-separated form.
func (m MACAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// MarshalYAML persists MACAddress in canonical form.
func (m MACAddress) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML parses MACAddress from its persisted string form.
func (m *MACAddress) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMAC(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
