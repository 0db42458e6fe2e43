package locus

import (
	"context"
	"fmt"
	"reflect"
)

// LoadKind identifies how a LocateExisting descriptor obtains its
// backing resource.
type LoadKind int

const (
	// LoadNone means the descriptor has no backing resource.
	LoadNone LoadKind = iota

	// LoadNamed searches (and may load) a container identified by name.
	LoadNamed

	// LoadIndexed searches (and may load) a container identified by index.
	LoadIndexed

	// LoadActiveGraph searches the already-active portion of the
	// hierarchy. Nothing is ever loaded for this kind.
	LoadActiveGraph
)

// String returns the string representation of the LoadKind.
func (k LoadKind) String() string {
	switch k {
	case LoadNone:
		return "None"
	case LoadNamed:
		return "Named"
	case LoadIndexed:
		return "Indexed"
	case LoadActiveGraph:
		return "ActiveGraph"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// LoadSpec describes how to obtain the backing resource for a
// LocateExisting descriptor.
type LoadSpec struct {
	Kind LoadKind

	// Name identifies the container for LoadNamed.
	Name string

	// Index identifies the container for LoadIndexed.
	Index int

	// Async selects asynchronous loading when the container is not yet
	// available. Synchronous loads block the resolution call.
	Async bool
}

// String returns a readable representation of the spec.
func (s LoadSpec) String() string {
	switch s.Kind {
	case LoadNamed:
		return fmt.Sprintf("Named(%q)", s.Name)
	case LoadIndexed:
		return fmt.Sprintf("Indexed(%d)", s.Index)
	default:
		return s.Kind.String()
	}
}

// ResourceLoader is the asset-loading boundary for the LocateExisting
// strategy. The engine only searches and awaits; loading mechanics
// belong to the host framework.
type ResourceLoader interface {
	// Find searches the resource described by spec for an instance
	// satisfying the defining type.
	Find(spec LoadSpec, defining reflect.Type) (any, bool)

	// Load makes the resource described by spec available so a
	// subsequent Find can succeed. It must respect ctx cancellation.
	Load(ctx context.Context, spec LoadSpec) error
}
