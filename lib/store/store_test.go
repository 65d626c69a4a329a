package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/types"
)

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	defer m.Close()

	snap := m.Snapshot()
	require.Empty(t, snap.Connections)
	require.Empty(t, snap.Groups)
}

func TestLoad_RejectsUnsupportedMajorVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"2.0\"\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsInvalidForest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")
	doc := "version: \"1.0\"\ngroups:\n  - id: a\n    name: A\n    parent_id: ghost\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestPutConnection_PersistsOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.yaml")

	m, err := Load(path)
	require.NoError(t, err)

	conn := &types.Connection{ID: "c1", Name: "web-01", Protocol: types.ProtocolSSH, Host: "10.0.0.1", Port: 22}
	require.NoError(t, m.PutConnection(conn))
	m.Close()

	reloaded, err := Load(path)
	require.NoError(t, err)
	defer reloaded.Close()

	snap := reloaded.Snapshot()
	require.Len(t, snap.Connections, 1)
	require.Equal(t, "web-01", snap.Connections[0].Name)
}

func TestPutConnection_RejectsInvalidConnection(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	defer m.Close()

	bad := &types.Connection{ID: "c1", Name: "", Protocol: types.ProtocolSSH, Port: 22}
	require.Error(t, m.PutConnection(bad))
}

func TestPutGroup_RejectsCycleIntroducedByEdit(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	defer m.Close()

	a := "a"
	b := "b"
	require.NoError(t, m.PutGroup(&types.ConnectionGroup{ID: "a", Name: "A"}))
	require.NoError(t, m.PutGroup(&types.ConnectionGroup{ID: "b", Name: "B", ParentID: &a}))

	err = m.PutGroup(&types.ConnectionGroup{ID: "a", Name: "A", ParentID: &b})
	require.Error(t, err)
}

func TestGetVariable_ReturnsStoredGlobal(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	defer m.Close()

	m.PutVariable(types.Variable{Name: "env", Value: "prod"})

	v, ok := m.GetVariable("env")
	require.True(t, ok)
	require.Equal(t, "prod", v.Value)

	_, ok = m.GetVariable("missing")
	require.False(t, ok)
}

func TestSnapshot_IsIndependentOfLaterMutation(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "store.yaml"))
	require.NoError(t, err)
	defer m.Close()

	conn := &types.Connection{ID: "c1", Name: "web-01", Protocol: types.ProtocolSSH, Host: "10.0.0.1", Port: 22}
	require.NoError(t, m.PutConnection(conn))

	snap := m.Snapshot()
	require.Len(t, snap.Connections, 1)

	conn.Name = "mutated-after-snapshot"
	require.Equal(t, "web-01", snap.Connections[0].Name)
}
