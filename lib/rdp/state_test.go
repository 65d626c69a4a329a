package rdp

import (
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_HappyPathTransitions(t *testing.T) {
	m := NewStateMachine(DefaultReconnectPolicy(), clockwork.NewFakeClock())
	require.Equal(t, StateIdle, m.State())

	m.BeginConnect()
	require.Equal(t, StateConnecting, m.State())

	m.Authenticating()
	require.Equal(t, StateAuthenticating, m.State())

	m.Active()
	require.Equal(t, StateActive, m.State())
	require.Equal(t, 0, m.Attempt())

	m.Suspend()
	require.Equal(t, StateSuspended, m.State())

	m.Resume()
	require.Equal(t, StateActive, m.State())

	m.Disconnect()
	require.Equal(t, StateDisconnected, m.State())
}

func TestStateMachine_SecurityFallbackOrder(t *testing.T) {
	m := NewStateMachine(DefaultReconnectPolicy(), clockwork.NewFakeClock())
	m.BeginConnect()

	p1, ok := m.NextSecurityFallback()
	require.True(t, ok)
	require.Equal(t, SecurityNLA, p1)

	p2, ok := m.NextSecurityFallback()
	require.True(t, ok)
	require.Equal(t, SecurityTLS, p2)

	p3, ok := m.NextSecurityFallback()
	require.True(t, ok)
	require.Equal(t, SecurityRDP, p3)

	_, ok = m.NextSecurityFallback()
	require.False(t, ok)
}

func TestStateMachine_TransportFailedBacksOffThenReconnects(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := ReconnectPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
	m := NewStateMachine(policy, clock)
	m.BeginConnect()
	m.Authenticating()
	m.Active()

	done := make(chan struct{})
	go func() {
		m.TransportFailed()
		close(done)
	}()
	clock.BlockUntil(1)
	clock.Advance(policy.MaxDelay)
	<-done

	require.Equal(t, StateReconnectBackoff, m.State())
	require.Equal(t, 1, m.Attempt())

	m.BeginConnect()
	require.Equal(t, StateConnecting, m.State())
}

func TestStateMachine_ExhaustsAttemptBudgetToDisconnected(t *testing.T) {
	clock := clockwork.NewFakeClock()
	policy := ReconnectPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Second}
	m := NewStateMachine(policy, clock)
	m.BeginConnect()
	m.Authenticating()
	m.Active()

	for i := 0; i < policy.MaxAttempts; i++ {
		done := make(chan struct{})
		go func() {
			m.TransportFailed()
			close(done)
		}()
		clock.BlockUntil(1)
		clock.Advance(policy.MaxDelay)
		<-done
		require.Equal(t, StateReconnectBackoff, m.State())
	}

	// One more failure beyond the budget must go straight to Disconnected,
	// with no further sleep.
	m.TransportFailed()
	require.Equal(t, StateDisconnected, m.State())
}

func TestReconnectPolicy_DelayStaysWithinCeiling(t *testing.T) {
	policy := DefaultReconnectPolicy()
	rnd := rand.New(rand.NewSource(42))
	for attempt := 1; attempt <= 10; attempt++ {
		d := policy.delay(attempt, rnd)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, policy.MaxDelay)
	}
}
