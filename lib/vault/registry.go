package vault

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/gravitational/ttlmap"
	"github.com/sirupsen/logrus"
)

// Kind names a backend kind for configuration and key-convention lookups
// (spec §4.1 table).
type Kind string

const (
	KindLibSecret   Kind = "libsecret"
	KindKeePassXC   Kind = "keepassxc"
	KindKDBX        Kind = "kdbx"
	KindBitwarden   Kind = "bitwarden"
	KindOnePassword Kind = "onepassword"
	KindPassbolt    Kind = "passbolt"
)

// Registry holds one Backend instance per enabled kind and dispatches by the
// user's preferred_backend selection (spec §4.1). Registry itself is a
// handle: callers obtain it by value copy-of-pointer (never a lock), per
// spec §5 ("Shared backend instances are behind a registry; callers obtain a
// cloneable handle, not a lock").
type Registry struct {
	mu       sync.RWMutex
	backends map[Kind]Backend
	log      *logrus.Entry

	// probeCache short-circuits repeated IsAvailable probes for a backend
	// that answers slowly (a D-Bus round trip, a socket dial) when the
	// resolver calls resolveVault many times in a row for the same
	// backend; it is intentionally separate from cache.Cache, which caches
	// resolved credentials, not backend health.
	probeCache *ttlmap.TTLMap
}

// probeCacheSize bounds how many distinct backend kinds get a cached probe
// result; the set is closed (six kinds today), so this is generous headroom
// rather than a real limit.
const probeCacheSize = 32

// probeCacheTTL is how long a cached IsAvailable result is trusted before
// the next call re-probes the real backend.
const probeCacheTTL = 10 * time.Second

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	probeCache, _ := ttlmap.New(probeCacheSize)
	return &Registry{
		backends:   make(map[Kind]Backend),
		log:        logrus.WithField("component", "vault.registry"),
		probeCache: probeCache,
	}
}

// IsAvailableCached returns the backend's IsAvailable result, probing at
// most once per probeCacheTTL window per kind.
func (r *Registry) IsAvailableCached(ctx context.Context, kind Kind) (bool, error) {
	backend, err := r.MustGet(kind)
	if err != nil {
		return false, trace.Wrap(err)
	}
	if cached, ok := r.probeCache.Get(string(kind)); ok {
		return cached.(bool), nil
	}
	available := backend.IsAvailable(ctx)
	if err := r.probeCache.Set(string(kind), available, probeCacheTTL); err != nil {
		r.log.WithError(err).Warn("vault: failed to cache backend probe result")
	}
	return available, nil
}

// Register enables a backend under kind, overwriting any previous instance.
func (r *Registry) Register(kind Kind, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[kind] = b
}

// Get returns the backend registered under kind, or (nil, false).
func (r *Registry) Get(kind Kind) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[kind]
	return b, ok
}

// MustGet returns the backend registered under kind or a trace.NotFound
// error, matching the escalation spec §4.1 calls for when a backend is
// simply missing from configuration.
func (r *Registry) MustGet(kind Kind) (Backend, error) {
	b, ok := r.Get(kind)
	if !ok {
		return nil, trace.NotFound("no backend registered for kind %q", kind)
	}
	return b, nil
}

// Availability is the result of probing one backend.
type Availability struct {
	Kind      Kind
	Available bool
}

// ProbeAll calls IsAvailable on every registered backend concurrently and
// logs one Warn line per unavailable backend (spec §4.1, "Backend
// unavailable at startup → degrade silently to 'prompt every time'; log at
// warn level"). It returns once every probe has completed.
func (r *Registry) ProbeAll(ctx context.Context) []Availability {
	r.mu.RLock()
	snapshot := make(map[Kind]Backend, len(r.backends))
	for k, b := range r.backends {
		snapshot[k] = b
	}
	r.mu.RUnlock()

	results := make([]Availability, len(snapshot))
	var wg sync.WaitGroup
	i := 0
	for kind, b := range snapshot {
		wg.Add(1)
		idx, kind, b := i, kind, b
		go func() {
			defer wg.Done()
			available := b.IsAvailable(ctx)
			results[idx] = Availability{Kind: kind, Available: available}
			if !available {
				r.log.WithField("backend", kind).Warn("credential backend unavailable at startup; saved-password features disabled for this backend")
			}
		}()
		i++
	}
	wg.Wait()
	return results
}
