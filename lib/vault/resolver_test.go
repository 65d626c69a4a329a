package vault

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/lib/pipeline/vars"
	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/lib/vault/cache"
	"github.com/gravitational/rustconn/types"
)

// fakeBackend is an in-memory Backend used to exercise Resolver without any
// real credential store.
type fakeBackend struct {
	name      string
	available bool
	entries   map[string]types.Credentials
	calls     int
}

func newFakeBackend(name string) *fakeBackend {
	return &fakeBackend{name: name, available: true, entries: map[string]types.Credentials{}}
}

func (f *fakeBackend) Name() string { return f.name }
func (f *fakeBackend) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeBackend) Store(ctx context.Context, key string, creds types.Credentials) error {
	f.entries[key] = creds
	return nil
}
func (f *fakeBackend) Retrieve(ctx context.Context, key string) (types.Credentials, bool, error) {
	f.calls++
	c, ok := f.entries[key]
	return c, ok, nil
}
func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	delete(f.entries, key)
	return nil
}

func newTestResolver(backend Backend) (*Resolver, *Registry) {
	reg := NewRegistry()
	reg.Register(KindLibSecret, backend)
	c := cache.New(time.Minute, 16, clockwork.NewFakeClock())
	return NewResolver(reg, c, KindLibSecret, nil), reg
}

func TestResolve_NoneSource(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	conn := &types.Connection{Name: "c1", Protocol: types.ProtocolSSH, PasswordSource: types.NoneSource{}}
	res, err := resolver.Resolve(context.Background(), conn, nil, &vars.Scope{})
	require.NoError(t, err)
	require.False(t, res.NeedsPrompt)
}

func TestResolve_PromptSourceNeedsPrompt(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	conn := &types.Connection{Name: "c1", Protocol: types.ProtocolSSH, PasswordSource: types.PromptSource{}}
	res, err := resolver.Resolve(context.Background(), conn, nil, &vars.Scope{})
	require.NoError(t, err)
	require.True(t, res.NeedsPrompt)
}

func TestResolve_VaultSourceHitAndCacheReuse(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	conn := &types.Connection{Name: "c1", Protocol: types.ProtocolSSH, PasswordSource: types.VaultSource{}}
	backend.entries[DisplayKey(conn)] = types.Credentials{Username: "alice", Password: secret.New("hunter2")}

	res, err := resolver.Resolve(context.Background(), conn, nil, &vars.Scope{})
	require.NoError(t, err)
	require.False(t, res.NeedsPrompt)
	require.Equal(t, "alice", res.Credentials.Username)

	// Second resolve should hit the cache, not the backend again.
	_, err = resolver.Resolve(context.Background(), conn, nil, &vars.Scope{})
	require.NoError(t, err)
	require.Equal(t, 1, backend.calls)
}

func TestResolve_VaultSourceMissNeedsPrompt(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	conn := &types.Connection{Name: "missing", Protocol: types.ProtocolSSH, PasswordSource: types.VaultSource{}}
	res, err := resolver.Resolve(context.Background(), conn, nil, &vars.Scope{})
	require.NoError(t, err)
	require.True(t, res.NeedsPrompt)
}

func TestResolve_InheritWalksAncestors(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	root := &types.ConnectionGroup{ID: "root", Name: "Root", PasswordSource: types.VaultSource{}, Username: "root-user"}
	child := &types.ConnectionGroup{ID: "child", Name: "Child", ParentID: &root.ID}
	groups := []*types.ConnectionGroup{root, child}

	backend.entries[GroupKey(root)] = types.Credentials{Username: "root-user", Password: secret.New("rootpass")}

	conn := &types.Connection{Name: "leaf", Protocol: types.ProtocolSSH, GroupID: &child.ID, PasswordSource: types.InheritSource{}}
	res, err := resolver.Resolve(context.Background(), conn, groups, &vars.Scope{})
	require.NoError(t, err)
	require.False(t, res.NeedsPrompt)
	require.Equal(t, "root-user", res.Credentials.Username)
}

func TestRename_PropagatesAndInvalidatesCache(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	backend.entries["old-key"] = types.Credentials{Username: "alice", Password: secret.New("hunter2")}
	resolver.Cache.Insert("old-key", backend.entries["old-key"])

	err := resolver.Rename(context.Background(), "old-key", "new-key")
	require.NoError(t, err)

	_, stillThere := backend.entries["old-key"]
	require.False(t, stillThere)
	moved, ok := backend.entries["new-key"]
	require.True(t, ok)
	require.Equal(t, "alice", moved.Username)

	_, cached := resolver.Cache.Get("old-key")
	require.False(t, cached)
}

func TestRename_MissingOldKeyIsNotAnError(t *testing.T) {
	backend := newFakeBackend("fake")
	resolver, _ := newTestResolver(backend)

	err := resolver.Rename(context.Background(), "nonexistent", "new-key")
	require.NoError(t, err)
}
