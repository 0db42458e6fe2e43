// Package testutil provides fixtures shared by the engine's tests: an
// in-memory hierarchy and a handful of instrumented service types.
package testutil

import (
	"iter"

	"github.com/mryildirim91/locus/internal/hier"
)

// TreeNode is a node in the in-memory test hierarchy.
type TreeNode struct {
	Name      string
	Container hier.ContainerID

	parent   *TreeNode
	children []*TreeNode
}

// Tree is an in-memory hier.Hierarchy for tests.
type Tree struct {
	roots []*TreeNode
}

var _ hier.Hierarchy = (*Tree)(nil)

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{}
}

// AddRoot adds a root node in the given container.
func (t *Tree) AddRoot(name string, container hier.ContainerID) *TreeNode {
	node := &TreeNode{Name: name, Container: container}
	t.roots = append(t.roots, node)
	return node
}

// AddChild adds a child node under parent, inheriting its container.
func (t *Tree) AddChild(parent *TreeNode, name string) *TreeNode {
	node := &TreeNode{Name: name, Container: parent.Container, parent: parent}
	parent.children = append(parent.children, node)
	return node
}

// ContainerOf implements hier.Hierarchy.
func (t *Tree) ContainerOf(node hier.Node) (hier.ContainerID, bool) {
	tn, ok := node.(*TreeNode)
	if !ok || tn.Container == "" {
		return "", false
	}
	return tn.Container, true
}

// Ancestors implements hier.Hierarchy.
func (t *Tree) Ancestors(node hier.Node) iter.Seq[hier.Node] {
	return func(yield func(hier.Node) bool) {
		tn, ok := node.(*TreeNode)
		if !ok {
			return
		}
		for cur := tn.parent; cur != nil; cur = cur.parent {
			if !yield(cur) {
				return
			}
		}
	}
}

// Descendants implements hier.Hierarchy.
func (t *Tree) Descendants(node hier.Node) iter.Seq[hier.Node] {
	return func(yield func(hier.Node) bool) {
		tn, ok := node.(*TreeNode)
		if !ok {
			return
		}
		var walk func(n *TreeNode) bool
		walk = func(n *TreeNode) bool {
			for _, child := range n.children {
				if !yield(child) {
					return false
				}
				if !walk(child) {
					return false
				}
			}
			return true
		}
		walk(tn)
	}
}
