package locus

import (
	"encoding/json"
	"fmt"

	"github.com/mryildirim91/locus/internal/hier"
)

// Visibility is the predicate over the hierarchy that decides which
// clients may see a locally registered service.
type Visibility int

const (
	// VisibleToSelf makes the registration visible only to the node that
	// registered it.
	VisibleToSelf Visibility = iota

	// VisibleToDescendants makes the registration visible to the
	// registering node and everything below it.
	VisibleToDescendants

	// VisibleToAncestors makes the registration visible to the
	// registering node and its ancestor chain.
	VisibleToAncestors

	// VisibleToRootSiblingsAndDescendants makes the registration visible
	// to every node whose root ancestor shares a container with the
	// registering node's root ancestor.
	VisibleToRootSiblingsAndDescendants

	// VisibleToSameContainer makes the registration visible to every node
	// in the registering node's container.
	VisibleToSameContainer

	// VisibleToAllContainers makes the registration visible to every node
	// that belongs to some container.
	VisibleToAllContainers

	// VisibleEverywhere makes the registration visible to every request,
	// including requests made without a client.
	VisibleEverywhere
)

// String returns the string representation of the Visibility.
func (v Visibility) String() string {
	switch v {
	case VisibleToSelf:
		return "Self"
	case VisibleToDescendants:
		return "Descendants"
	case VisibleToAncestors:
		return "Ancestors"
	case VisibleToRootSiblingsAndDescendants:
		return "RootSiblingsAndDescendants"
	case VisibleToSameContainer:
		return "SameContainer"
	case VisibleToAllContainers:
		return "AllContainers"
	case VisibleEverywhere:
		return "Everywhere"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// IsValid checks if the visibility is valid.
func (v Visibility) IsValid() bool {
	return v >= VisibleToSelf && v <= VisibleEverywhere
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Visibility) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Self":
		*v = VisibleToSelf
	case "Descendants":
		*v = VisibleToDescendants
	case "Ancestors":
		*v = VisibleToAncestors
	case "RootSiblingsAndDescendants":
		*v = VisibleToRootSiblingsAndDescendants
	case "SameContainer":
		*v = VisibleToSameContainer
	case "AllContainers":
		*v = VisibleToAllContainers
	case "Everywhere":
		*v = VisibleEverywhere
	default:
		return VisibilityError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Visibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return v.UnmarshalText([]byte(s))
}

// reaches reports whether a registration made at registerer with this
// visibility is reachable from client. A nil client reaches only
// VisibleEverywhere registrations.
func (v Visibility) reaches(h Hierarchy, registerer, client Node) bool {
	if v == VisibleEverywhere {
		return true
	}

	if client == nil {
		return false
	}

	// Without a hierarchy there is no ancestry or container identity to
	// consult; only the registering node itself can be reached.
	if h == nil {
		switch v {
		case VisibleToSelf, VisibleToDescendants, VisibleToAncestors,
			VisibleToRootSiblingsAndDescendants, VisibleToSameContainer:
			return client == registerer
		default:
			return false
		}
	}

	switch v {
	case VisibleToSelf:
		return client == registerer
	case VisibleToDescendants:
		return client == registerer || hier.IsAncestor(h, registerer, client)
	case VisibleToAncestors:
		return client == registerer || hier.IsAncestor(h, client, registerer)
	case VisibleToRootSiblingsAndDescendants:
		return client == registerer || hier.SameRootFamily(h, registerer, client)
	case VisibleToSameContainer:
		return client == registerer || hier.SameContainer(h, registerer, client)
	case VisibleToAllContainers:
		_, ok := h.ContainerOf(client)
		return ok
	default:
		return false
	}
}
