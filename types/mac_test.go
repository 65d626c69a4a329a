package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseMAC_AcceptsColonAndHyphenSeparators(t *testing.T) {
	colon, err := ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	hyphen, err := ParseMAC("AA-BB-CC-DD-EE-FF")
	require.NoError(t, err)

	require.Equal(t, colon, hyphen)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", colon.String())
}

func TestParseMAC_RejectsMalformedInput(t *testing.T) {
	cases := []string{"", "aa:bb:cc:dd:ee", "zz:bb:cc:dd:ee:ff", "aabbccddeeff"}
	for _, c := range cases {
		_, err := ParseMAC(c)
		require.Error(t, err, c)
	}
}

func TestMACAddress_YAMLRoundTrip(t *testing.T) {
	mac, err := ParseMAC("01:23:45:67:89:ab")
	require.NoError(t, err)

	out, err := yaml.Marshal(mac)
	require.NoError(t, err)

	var roundTripped MACAddress
	require.NoError(t, yaml.Unmarshal(out, &roundTripped))
	require.Equal(t, mac, roundTripped)
}
