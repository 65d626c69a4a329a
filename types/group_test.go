package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestValidateForest_AcceptsValidTree(t *testing.T) {
	root := &ConnectionGroup{ID: "root", Name: "Root"}
	child := &ConnectionGroup{ID: "child", Name: "Child", ParentID: strPtr("root")}
	grandchild := &ConnectionGroup{ID: "grandchild", Name: "Grandchild", ParentID: strPtr("child")}

	err := ValidateForest([]*ConnectionGroup{root, child, grandchild})
	require.NoError(t, err)
}

func TestValidateForest_RejectsDuplicateID(t *testing.T) {
	a := &ConnectionGroup{ID: "dup", Name: "A"}
	b := &ConnectionGroup{ID: "dup", Name: "B"}
	err := ValidateForest([]*ConnectionGroup{a, b})
	require.Error(t, err)
}

func TestValidateForest_RejectsUnknownParent(t *testing.T) {
	orphan := &ConnectionGroup{ID: "orphan", Name: "Orphan", ParentID: strPtr("ghost")}
	err := ValidateForest([]*ConnectionGroup{orphan})
	require.Error(t, err)
}

func TestValidateForest_RejectsCycle(t *testing.T) {
	a := &ConnectionGroup{ID: "a", Name: "A", ParentID: strPtr("b")}
	b := &ConnectionGroup{ID: "b", Name: "B", ParentID: strPtr("a")}
	err := ValidateForest([]*ConnectionGroup{a, b})
	require.Error(t, err)
}

func TestValidateForest_RejectsSelfCycle(t *testing.T) {
	a := &ConnectionGroup{ID: "a", Name: "A", ParentID: strPtr("a")}
	err := ValidateForest([]*ConnectionGroup{a})
	require.Error(t, err)
}

func TestAncestors_NearestFirstOrdering(t *testing.T) {
	root := &ConnectionGroup{ID: "root", Name: "Root"}
	mid := &ConnectionGroup{ID: "mid", Name: "Mid", ParentID: strPtr("root")}
	leaf := &ConnectionGroup{ID: "leaf", Name: "Leaf", ParentID: strPtr("mid")}
	groups := []*ConnectionGroup{root, mid, leaf}

	ancestors := Ancestors("leaf", groups)
	require.Equal(t, []*ConnectionGroup{mid, root}, ancestors)
}

func TestAncestors_RootHasNoAncestors(t *testing.T) {
	root := &ConnectionGroup{ID: "root", Name: "Root"}
	ancestors := Ancestors("root", []*ConnectionGroup{root})
	require.Empty(t, ancestors)
}

func TestAncestors_UnknownGroupIDReturnsEmpty(t *testing.T) {
	root := &ConnectionGroup{ID: "root", Name: "Root"}
	ancestors := Ancestors("nonexistent", []*ConnectionGroup{root})
	require.Empty(t, ancestors)
}
