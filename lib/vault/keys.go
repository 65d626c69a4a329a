package vault

import (
	"fmt"
	"strings"

	"github.com/gravitational/rustconn/types"
)

// VariableSecretKey is the backend key under which a secret Variable's value
// is stored (spec §4.1, step "Variable(name)"): "rustconn/var/{name}".
func VariableSecretKey(name string) string {
	return fmt.Sprintf("rustconn/var/%s", name)
}

// DisplayKey returns the flat-key backends' lookup key for a connection.
func DisplayKey(c *types.Connection) string {
	return c.DisplayKey()
}

// GroupKey returns the non-KDBX backends' lookup key for a group's
// inherited secret: the group's own identifier (spec §4.1, "Inherit").
func GroupKey(g *types.ConnectionGroup) string {
	return g.GroupKey()
}

// KDBXGroupPath returns the hierarchical KDBX path for a connection,
// "RustConn/{group-path}/{name} ({protocol})" (spec §4.1 table, §6).
func KDBXGroupPath(c *types.Connection, groups []*types.ConnectionGroup) string {
	var segments []string
	if c.GroupID != nil {
		ancestors := append([]*types.ConnectionGroup{}, types.Ancestors(*c.GroupID, groups)...)
		// Ancestors returns nearest-first; we want root-first for a path.
		byID := make(map[string]*types.ConnectionGroup, len(groups))
		for _, g := range groups {
			byID[g.ID] = g
		}
		if self, ok := byID[*c.GroupID]; ok {
			segments = append(segments, self.Name)
		}
		for _, a := range ancestors {
			segments = append([]string{a.Name}, segments...)
		}
	}
	path := strings.Join(append([]string{"RustConn"}, segments...), "/")
	return fmt.Sprintf("%s/%s", path, c.DisplayKey())
}

// KDBXGroupPathForGroup returns the hierarchical KDBX path used to look up
// an ancestor group's own inherited secret entry.
func KDBXGroupPathForGroup(g *types.ConnectionGroup, groups []*types.ConnectionGroup) string {
	ancestors := types.Ancestors(g.ID, groups)
	var segments []string
	for i := len(ancestors) - 1; i >= 0; i-- {
		segments = append(segments, ancestors[i].Name)
	}
	segments = append(segments, g.Name)
	return strings.Join(append([]string{"RustConn"}, segments...), "/")
}
