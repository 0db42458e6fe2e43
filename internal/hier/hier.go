// Package hier provides the hierarchy queries the resolution engine needs.
// The engine never owns the object graph; it only asks three questions of
// it: which container a node belongs to, who a node's ancestors are, and
// who its descendants are. Everything else (distance ranking, root lookup,
// container comparison) is derived here from those three primitives.
package hier

import "iter"

// Node identifies a participant in the hierarchical object graph.
// Node values must be comparable; in practice they are pointers into the
// host framework's object model.
type Node = any

// ContainerID identifies a unit of the hierarchy with its own identity,
// such as a document or scene.
type ContainerID string

// Hierarchy is the abstract object-graph capability the engine depends on.
// Implementations are supplied by the host framework.
type Hierarchy interface {
	// ContainerOf returns the container holding node, if any.
	ContainerOf(node Node) (ContainerID, bool)

	// Ancestors yields node's ancestors from nearest to farthest.
	// The node itself is not yielded.
	Ancestors(node Node) iter.Seq[Node]

	// Descendants yields every node below node, in unspecified order.
	// The node itself is not yielded.
	Descendants(node Node) iter.Seq[Node]
}

// Distance returns the number of steps from `from` up its ancestor chain
// to `to`. It returns 0 when the nodes are the same and -1 when `to` is
// not an ancestor of `from`.
func Distance(h Hierarchy, from, to Node) int {
	if from == to {
		return 0
	}

	steps := 0
	for ancestor := range h.Ancestors(from) {
		steps++
		if ancestor == to {
			return steps
		}
	}

	return -1
}

// IsAncestor reports whether ancestor appears in node's ancestor chain.
// A node is not its own ancestor.
func IsAncestor(h Hierarchy, ancestor, node Node) bool {
	for a := range h.Ancestors(node) {
		if a == ancestor {
			return true
		}
	}
	return false
}

// Root returns the topmost ancestor of node, or node itself when it has
// no ancestors.
func Root(h Hierarchy, node Node) Node {
	root := node
	for a := range h.Ancestors(node) {
		root = a
	}
	return root
}

// SameContainer reports whether both nodes belong to the same container.
// Nodes outside any container are never in the same container.
func SameContainer(h Hierarchy, a, b Node) bool {
	ca, ok := h.ContainerOf(a)
	if !ok {
		return false
	}

	cb, ok := h.ContainerOf(b)
	if !ok {
		return false
	}

	return ca == cb
}

// SameRootFamily reports whether the root ancestors of both nodes live in
// the same container. This is the reachability test for registrations
// that span a root node, its sibling roots, and everything below them.
func SameRootFamily(h Hierarchy, a, b Node) bool {
	return SameContainer(h, Root(h, a), Root(h, b))
}
