package rdp

import (
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
)

// State is the connection state machine of spec §4.2.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateSuspended
	StateReconnectBackoff
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateReconnectBackoff:
		return "reconnect_backoff"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SecurityProtocol is the fixed fallback order tried when the connection's
// setting is Auto (spec §4.2: "fall back to the next-lower security method
// in a fixed order {NLA, TLS, RDP}").
type SecurityProtocol int

const (
	SecurityNLA SecurityProtocol = iota
	SecurityTLS
	SecurityRDP
)

var securityFallbackOrder = []SecurityProtocol{SecurityNLA, SecurityTLS, SecurityRDP}

// ReconnectPolicy configures the backoff of spec §4.2: "exponential with
// jitter, capped at a configured ceiling (default 30s); gives up after N
// attempts (default 5)".
type ReconnectPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultReconnectPolicy matches the spec's stated defaults.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{MaxAttempts: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
}

// delay returns the jittered backoff delay for the given 1-indexed attempt.
func (p ReconnectPolicy) delay(attempt int, rnd *rand.Rand) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	jitter := time.Duration(rnd.Int63n(int64(d) / 2))
	return d/2 + jitter
}

// StateMachine drives the Idle/Connecting/.../ReconnectBackoff transitions
// of spec §4.2. It does not itself own the socket or pixel buffer; Worker
// composes a StateMachine with those.
type StateMachine struct {
	state State

	policy  ReconnectPolicy
	attempt int
	clock   clockwork.Clock
	rnd     *rand.Rand

	securityIdx int
}

// NewStateMachine builds a StateMachine in the Idle state. clock lets tests
// fast-forward through reconnect backoff deterministically.
func NewStateMachine(policy ReconnectPolicy, clock clockwork.Clock) *StateMachine {
	return &StateMachine{state: StateIdle, policy: policy, clock: clock, rnd: rand.New(rand.NewSource(1))}
}

func (m *StateMachine) State() State { return m.state }

// BeginConnect transitions Idle/Disconnected/ReconnectBackoff -> Connecting.
func (m *StateMachine) BeginConnect() {
	m.state = StateConnecting
	m.securityIdx = 0
}

// NextSecurityFallback advances to the next-lower security protocol in the
// fixed order, returning false once the order is exhausted (spec §4.2).
func (m *StateMachine) NextSecurityFallback() (SecurityProtocol, bool) {
	if m.securityIdx >= len(securityFallbackOrder) {
		return 0, false
	}
	p := securityFallbackOrder[m.securityIdx]
	m.securityIdx++
	return p, true
}

// Authenticating transitions Connecting -> Authenticating.
func (m *StateMachine) Authenticating() { m.state = StateAuthenticating }

// Active transitions Authenticating -> Active and resets the reconnect
// attempt counter (a successful connection clears backoff history).
func (m *StateMachine) Active() {
	m.state = StateActive
	m.attempt = 0
}

// Suspend transitions Active -> Suspended.
func (m *StateMachine) Suspend() { m.state = StateSuspended }

// Resume transitions Suspended -> Active.
func (m *StateMachine) Resume() { m.state = StateActive }

// Disconnect transitions to Disconnected (a terminal, user-initiated close).
func (m *StateMachine) Disconnect() { m.state = StateDisconnected }

// TransportFailed transitions Active/Connecting/Authenticating ->
// ReconnectBackoff, or to Disconnected if the attempt budget is exhausted.
// It blocks for the computed backoff delay using the injected clock, so
// tests can drive it with a clockwork.FakeClock instead of a real sleep.
func (m *StateMachine) TransportFailed() {
	m.attempt++
	if m.attempt > m.policy.MaxAttempts {
		m.state = StateDisconnected
		return
	}
	m.state = StateReconnectBackoff
	m.clock.Sleep(m.policy.delay(m.attempt, m.rnd))
}

// Attempt returns the current reconnect attempt count (0 before any
// transport failure since the last Active state).
func (m *StateMachine) Attempt() int { return m.attempt }
