package hier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mryildirim91/locus/internal/hier"
	"github.com/mryildirim91/locus/internal/testutil"
)

func buildTree() (*testutil.Tree, map[string]*testutil.TreeNode) {
	tree := testutil.NewTree()
	nodes := make(map[string]*testutil.TreeNode)

	nodes["rootA"] = tree.AddRoot("rootA", "scene-1")
	nodes["rootB"] = tree.AddRoot("rootB", "scene-1")
	nodes["rootC"] = tree.AddRoot("rootC", "scene-2")

	nodes["childA1"] = tree.AddChild(nodes["rootA"], "childA1")
	nodes["childA2"] = tree.AddChild(nodes["childA1"], "childA2")
	nodes["childB1"] = tree.AddChild(nodes["rootB"], "childB1")
	nodes["childC1"] = tree.AddChild(nodes["rootC"], "childC1")

	return tree, nodes
}

func TestDistance(t *testing.T) {
	tree, nodes := buildTree()

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"same node", "childA1", "childA1", 0},
		{"direct parent", "childA1", "rootA", 1},
		{"grandparent", "childA2", "rootA", 2},
		{"not an ancestor", "childA1", "rootB", -1},
		{"descendant is not an ancestor", "rootA", "childA1", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hier.Distance(tree, nodes[tt.from], nodes[tt.to])
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAncestor(t *testing.T) {
	tree, nodes := buildTree()

	assert.True(t, hier.IsAncestor(tree, nodes["rootA"], nodes["childA2"]))
	assert.True(t, hier.IsAncestor(tree, nodes["childA1"], nodes["childA2"]))
	assert.False(t, hier.IsAncestor(tree, nodes["childA2"], nodes["rootA"]))
	assert.False(t, hier.IsAncestor(tree, nodes["rootA"], nodes["rootA"]), "a node is not its own ancestor")
}

func TestRoot(t *testing.T) {
	tree, nodes := buildTree()

	assert.Same(t, nodes["rootA"], hier.Root(tree, nodes["childA2"]))
	assert.Same(t, nodes["rootA"], hier.Root(tree, nodes["rootA"]))
}

func TestSameContainer(t *testing.T) {
	tree, nodes := buildTree()

	assert.True(t, hier.SameContainer(tree, nodes["childA1"], nodes["childB1"]))
	assert.False(t, hier.SameContainer(tree, nodes["childA1"], nodes["childC1"]))
}

func TestSameRootFamily(t *testing.T) {
	tree, nodes := buildTree()

	assert.True(t, hier.SameRootFamily(tree, nodes["childA2"], nodes["childB1"]),
		"roots A and B share a container")
	assert.False(t, hier.SameRootFamily(tree, nodes["childA2"], nodes["childC1"]))
}

func TestDescendants(t *testing.T) {
	tree, nodes := buildTree()

	var names []string
	for n := range tree.Descendants(nodes["rootA"]) {
		names = append(names, n.(*testutil.TreeNode).Name)
	}

	assert.ElementsMatch(t, []string{"childA1", "childA2"}, names)
}
