package types

import "github.com/gravitational/trace"

// ConnectionGroup is a node in the connection tree (spec §3).
type ConnectionGroup struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	ParentID *string `yaml:"parent_id,omitempty"`

	PasswordSource PasswordSource `yaml:"-"`
	Username       string         `yaml:"username,omitempty"`
	Domain         string         `yaml:"domain,omitempty"`
}

// GroupKey returns the non-KDBX backends' lookup key for a group's inherited
// secret: the group's own identifier (spec §4.1, "Inherit").
func (g *ConnectionGroup) GroupKey() string { return g.ID }

// ValidateForest checks that groups forms a forest: every ParentID either is
// nil or refers to another group in the set, and no cycles exist. It is
// checked on every mutation per spec §3.
func ValidateForest(groups []*ConnectionGroup) error {
	byID := make(map[string]*ConnectionGroup, len(groups))
	for _, g := range groups {
		if _, dup := byID[g.ID]; dup {
			return trace.BadParameter("duplicate group id %q", g.ID)
		}
		byID[g.ID] = g
	}
	for _, g := range groups {
		if g.ParentID == nil {
			continue
		}
		if _, ok := byID[*g.ParentID]; !ok {
			return trace.BadParameter("group %q has unknown parent %q", g.ID, *g.ParentID)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(groups))
	var visit func(id string, chain map[string]bool) error
	visit = func(id string, chain map[string]bool) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return trace.BadParameter("cycle detected in group hierarchy at %q", id)
		}
		state[id] = visiting
		g := byID[id]
		if g.ParentID != nil {
			if chain[*g.ParentID] {
				return trace.BadParameter("cycle detected in group hierarchy at %q", id)
			}
			chain[id] = true
			if err := visit(*g.ParentID, chain); err != nil {
				return err
			}
			delete(chain, id)
		}
		state[id] = done
		return nil
	}
	for _, g := range groups {
		if err := visit(g.ID, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// Ancestors returns g's parent chain, nearest first, using the snapshot in
// groups. It assumes the forest invariant already holds (ValidateForest was
// called on mutation) so it does not re-detect cycles; callers resolving
// Inherit (spec §4.1) use this directly and are bounded by construction
// (property 5, spec §8).
func Ancestors(groupID string, groups []*ConnectionGroup) []*ConnectionGroup {
	byID := make(map[string]*ConnectionGroup, len(groups))
	for _, g := range groups {
		byID[g.ID] = g
	}
	var out []*ConnectionGroup
	seen := map[string]bool{}
	cur, ok := byID[groupID]
	for ok && cur.ParentID != nil && !seen[*cur.ParentID] {
		seen[*cur.ParentID] = true
		parent, found := byID[*cur.ParentID]
		if !found {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}
