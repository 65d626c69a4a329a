// Package store is the connection-store manager of spec §6: a
// version-tagged YAML document holding connections, groups and variables,
// with a debounced single-writer and snapshot-clone readers so C1's rename
// propagation and C3's group-hierarchy walk have a concrete document to
// operate against.
package store

import (
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/gravitational/rustconn/types"
)

// CurrentMajorVersion is the only major version this build understands
// (spec §6: "lib/store.Load refuses unknown major versions").
const CurrentMajorVersion = 1

// document is the on-disk shape. Credentials are never stored here (spec
// §6).
type document struct {
	Version     string                        `yaml:"version"`
	Groups      []*types.ConnectionGroup       `yaml:"groups,omitempty"`
	Connections []*types.Connection            `yaml:"connections,omitempty"`
	Variables   map[string]types.Variable      `yaml:"variables,omitempty"`
}

// Manager owns the single in-memory copy of the store and serializes all
// writes through one debounced goroutine (spec §6, "single-writer
// discipline"); readers get snapshots with their own slices, map and copies
// of each record struct, so they can iterate without racing the writer.
// Pointer, map and slice fields inside a record are not copied and remain
// shared with the store.
type Manager struct {
	path     string
	debounce time.Duration

	mu  sync.RWMutex
	doc document

	dirty    chan struct{}
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	log *logrus.Entry
}

// DefaultDebounce matches the 2s quiescence window this store uses for
// batching rapid successive edits (e.g. drag-reordering several
// connections) into one write.
const DefaultDebounce = 2 * time.Second

// Load reads path, or starts an empty document (version CurrentMajorVersion)
// if it does not exist.
func Load(path string) (*Manager, error) {
	m := &Manager{
		path:     path,
		debounce: DefaultDebounce,
		dirty:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		log:      logrus.WithField("component", "store"),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		m.doc = document{Version: "1.0", Variables: map[string]types.Variable{}}
		go m.writerLoop()
		return m, nil
	}
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, trace.Wrap(err)
	}
	major, err := majorOf(doc.Version)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if major != CurrentMajorVersion {
		return nil, trace.BadParameter("store: unsupported document version %q (major %d, want %d)", doc.Version, major, CurrentMajorVersion)
	}
	if doc.Variables == nil {
		doc.Variables = map[string]types.Variable{}
	}
	if err := types.ValidateForest(doc.Groups); err != nil {
		return nil, trace.Wrap(err)
	}
	m.doc = doc

	go m.writerLoop()
	return m, nil
}

func majorOf(version string) (int, error) {
	if version == "" {
		return 0, trace.BadParameter("store: missing version field")
	}
	var major int
	for _, r := range version {
		if r == '.' {
			break
		}
		if r < '0' || r > '9' {
			return 0, trace.BadParameter("store: malformed version %q", version)
		}
		major = major*10 + int(r-'0')
	}
	return major, nil
}

// Snapshot returns a cloned view safe for the caller to range over without
// holding any lock (spec's "snapshot-clone readers"). Each group and
// connection struct is copied one level deep; nested pointers, maps and
// slices (sub-configs, LocalVars, CustomArgs and the like) are shared.
type Snapshot struct {
	Groups      []*types.ConnectionGroup
	Connections []*types.Connection
	Variables   map[string]types.Variable
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	groups := make([]*types.ConnectionGroup, len(m.doc.Groups))
	for i, g := range m.doc.Groups {
		cp := *g
		groups[i] = &cp
	}
	conns := make([]*types.Connection, len(m.doc.Connections))
	for i, c := range m.doc.Connections {
		cp := *c
		conns[i] = &cp
	}
	vars := make(map[string]types.Variable, len(m.doc.Variables))
	for k, v := range m.doc.Variables {
		vars[k] = v
	}
	return Snapshot{Groups: groups, Connections: conns, Variables: vars}
}

// GetVariable implements lib/vault.VariableLookup.
func (m *Manager) GetVariable(name string) (types.Variable, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.doc.Variables[name]
	return v, ok
}

// PutConnection inserts or replaces a connection by ID and marks the
// document dirty.
func (m *Manager) PutConnection(c *types.Connection) error {
	if err := c.Validate(); err != nil {
		return trace.Wrap(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.doc.Connections {
		if existing.ID == c.ID {
			m.doc.Connections[i] = c
			m.markDirty()
			return nil
		}
	}
	m.doc.Connections = append(m.doc.Connections, c)
	m.markDirty()
	return nil
}

// PutGroup inserts or replaces a group by ID, re-validating the whole forest
// so a cycle introduced by this edit is rejected before it is ever
// persisted.
func (m *Manager) PutGroup(g *types.ConnectionGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make([]*types.ConnectionGroup, 0, len(m.doc.Groups)+1)
	replaced := false
	for _, existing := range m.doc.Groups {
		if existing.ID == g.ID {
			next = append(next, g)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, g)
	}
	if err := types.ValidateForest(next); err != nil {
		return trace.Wrap(err)
	}
	m.doc.Groups = next
	m.markDirty()
	return nil
}

// PutVariable inserts or replaces a global variable.
func (m *Manager) PutVariable(v types.Variable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc.Variables[v.Name] = v
	m.markDirty()
}

func (m *Manager) markDirty() {
	select {
	case m.dirty <- struct{}{}:
	default:
	}
}

// writerLoop debounces successive edits into one write after Debounce of
// quiescence (spec §6, "Connection-store single-writer discipline and
// debounce").
func (m *Manager) writerLoop() {
	defer close(m.done)
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-m.dirty:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(m.debounce)
			timerC = timer.C
		case <-timerC:
			if err := m.flush(); err != nil {
				m.log.WithError(err).Error("store: flush failed")
			}
			timerC = nil
		case <-m.stop:
			if timer != nil {
				timer.Stop()
			}
			_ = m.flush()
			return
		}
	}
}

func (m *Manager) flush() error {
	m.mu.RLock()
	doc := m.doc
	m.mu.RUnlock()

	lock := flock.New(m.path + ".lock")
	if err := lock.Lock(); err != nil {
		return trace.Wrap(err)
	}
	defer lock.Unlock()

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return trace.Wrap(err)
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return trace.Wrap(err)
	}
	return os.Rename(tmp, m.path)
}

// Close stops the writer goroutine after flushing any pending edit.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}
