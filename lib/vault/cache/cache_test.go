package cache

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/lib/secret"
	"github.com/gravitational/rustconn/types"
)

func TestCache_InsertGet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, 16, clock)

	creds := types.Credentials{Username: "alice", Password: secret.New("s3cr3t")}
	c.Insert("key1", creds)

	got, ok := c.Get("key1")
	require.True(t, ok)
	require.Equal(t, "alice", got.Username)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, 16, clock)
	c.Insert("key1", types.Credentials{Username: "alice"})

	clock.Advance(61 * time.Second)

	_, ok := c.Get("key1")
	require.False(t, ok)
}

func TestCache_InvalidateRemoves(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, 16, clock)
	c.Insert("key1", types.Credentials{Username: "alice"})
	c.Invalidate("key1")
	_, ok := c.Get("key1")
	require.False(t, ok)
}

func TestCache_InvalidateAllClears(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := New(time.Minute, 16, clock)
	c.Insert("a", types.Credentials{Username: "1"})
	c.Insert("b", types.Credentials{Username: "2"})
	c.InvalidateAll()
	_, ok1 := c.Get("a")
	_, ok2 := c.Get("b")
	require.False(t, ok1)
	require.False(t, ok2)
}
