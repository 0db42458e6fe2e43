package locus

import "github.com/mryildirim91/locus/internal/hier"

// Node identifies a client in the hierarchical object graph.
// Node values must be comparable; in practice they are pointers into
// the host framework's object model.
type Node = hier.Node

// ContainerID identifies a unit of the hierarchy with its own identity,
// such as a document or scene.
type ContainerID = hier.ContainerID

// Hierarchy is the abstract object-graph capability the engine depends
// on. It is the only thing the engine ever asks of the host framework's
// object model.
type Hierarchy = hier.Hierarchy
