package build

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/lib/pipeline/vars"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

func newCtx(conn *types.Connection) *BuildContext {
	return &BuildContext{
		Connection: conn,
		Scope:      &vars.Scope{},
		Secrets:    SecretValues{},
	}
}

func TestBuild_SSHWithIdentityFile(t *testing.T) {
	conn := &types.Connection{
		Name: "web-01", Protocol: types.ProtocolSSH, Host: "10.0.0.1", Port: 22, Username: "alice",
		SSH: &types.SSHConfig{IdentityFile: "/home/alice/.ssh/id_ed25519"},
	}
	argv, stdin, err := Build(newCtx(conn))
	require.NoError(t, err)
	require.Nil(t, stdin)
	require.Equal(t, "ssh", argv[0])
	require.Contains(t, argv, "-i")
	require.Contains(t, argv, "/home/alice/.ssh/id_ed25519")
	require.Equal(t, "alice@10.0.0.1", argv[len(argv)-1])
}

func TestBuild_RejectsBadPort(t *testing.T) {
	conn := &types.Connection{Name: "x", Protocol: types.ProtocolSSH, Host: "10.0.0.1", Port: 70000}
	_, _, err := Build(newCtx(conn))
	require.Error(t, err)
}

func TestBuild_RejectsInvalidHost(t *testing.T) {
	conn := &types.Connection{Name: "x", Protocol: types.ProtocolSSH, Host: "bad host!", Port: 22}
	_, _, err := Build(newCtx(conn))
	require.Error(t, err)
}

func TestBuild_RDPPasswordOnlyViaStdin(t *testing.T) {
	conn := &types.Connection{
		Name: "win-01", Protocol: types.ProtocolRDP, Host: "10.0.0.2", Port: 3389, Username: "bob",
		RDP: &types.RDPConfig{},
	}
	ctx := newCtx(conn)
	ctx.Credentials = types.Credentials{Username: "bob", Password: secret.New("hunter2")}
	argv, stdin, err := Build(ctx)
	require.NoError(t, err)
	require.NotNil(t, stdin)
	require.Equal(t, "hunter2", stdin.Data.Expose())
	for _, a := range argv {
		require.NotContains(t, a, "hunter2")
	}
}

func TestFilterCustomArgs_DropsDangerousRDPPrefixes(t *testing.T) {
	out := filterCustomArgs(types.ProtocolRDP, []string{"/w:1024", "/p:hunter2", "/shell:evil"})
	require.Equal(t, []string{"/w:1024"}, out)
}

func TestFilterCustomArgs_DropsControlCharacters(t *testing.T) {
	out := filterCustomArgs(types.ProtocolSSH, []string{"ok", "bad\x00arg", "also\nbad"})
	require.Equal(t, []string{"ok"}, out)
}

func TestRedact_MasksKnownSecretAndPasswordPrefix(t *testing.T) {
	argv := Argv{"xfreerdp", "/v:10.0.0.2", "/p:hunter2", "--token", "s3cr3t"}
	secrets := SecretValues{"s3cr3t": struct{}{}}
	out := Redact(argv, secrets)
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "s3cr3t")
	require.True(t, strings.Contains(out, "****"))
}

func TestSplitCustomArgs_Tokenizes(t *testing.T) {
	toks, err := SplitCustomArgs(`--foo "bar baz" -x`)
	require.NoError(t, err)
	require.Equal(t, []string{"--foo", "bar baz", "-x"}, toks)
}
