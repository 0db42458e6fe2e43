package locus

import (
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Registry holds service descriptors indexed both by concrete
// implementation type and by each declared defining type. It is
// populated once at startup from metadata discovery and is read-mostly
// afterwards: the only later mutation is caching of derived closed
// descriptors on first request of an open family.
//
// Registration is not safe to run concurrently with resolution.
type Registry struct {
	mu sync.RWMutex

	byConcrete map[reflect.Type]*Descriptor
	byDefining map[reflect.Type]*Descriptor
	open       []*Descriptor
	derived    map[derivedKey]*Descriptor

	log *zap.Logger
}

// derivedKey is the structural key for a closed specialization: the
// open family plus the requested type.
type derivedKey struct {
	family    *Descriptor
	requested reflect.Type
}

// NewRegistry creates an empty registry. A nil logger disables
// diagnostics.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}

	return &Registry{
		byConcrete: make(map[reflect.Type]*Descriptor),
		byDefining: make(map[reflect.Type]*Descriptor),
		derived:    make(map[derivedKey]*Descriptor),
		log:        log,
	}
}

// Register validates and indexes a descriptor. Two descriptors claiming
// the same non-abstract defining type are a configuration conflict: the
// registry logs a warning and lets the most recent registration win, a
// deliberately permissive policy favoring plugin composability over
// strictness.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		var st reflect.Type
		if d != nil {
			st = d.ConcreteType
		}
		return RegistrationError{ServiceType: st, Operation: "register", Cause: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d.IsOpen() {
		r.open = append(r.open, d)
		return nil
	}

	if d.ConcreteType != nil {
		r.byConcrete[d.ConcreteType] = d
	}

	for _, dt := range d.DefiningTypes {
		if prev, ok := r.byDefining[dt]; ok && prev != d && dt.Kind() != reflect.Interface {
			r.log.Warn("conflicting service registration, most recent wins",
				zap.String("definingType", formatType(dt)),
				zap.String("previous", formatType(prev.ConcreteType)),
				zap.String("replacement", formatType(d.ConcreteType)),
			)
		}
		r.byDefining[dt] = d
	}

	return nil
}

// FindByConcreteType returns the descriptor registered for the given
// concrete implementation type.
func (r *Registry) FindByConcreteType(t reflect.Type) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byConcrete[t]
	return d, ok
}

// FindByDefiningType returns the descriptor serving the given defining
// type. A closed-lookup miss falls back to the registered open families,
// so one descriptor can serve an unbounded family of closed types; the
// derived closed descriptor is cached for subsequent requests.
func (r *Registry) FindByDefiningType(t reflect.Type) (*Descriptor, bool) {
	r.mu.RLock()
	if d, ok := r.byDefining[t]; ok {
		r.mu.RUnlock()
		return d, true
	}
	r.mu.RUnlock()

	return r.specialize(t)
}

// specialize derives (or returns the cached) closed descriptor for t
// from the open families.
func (r *Registry) specialize(t reflect.Type) (*Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have derived it while we swapped locks.
	if d, ok := r.byDefining[t]; ok {
		return d, true
	}

	for _, family := range r.open {
		key := derivedKey{family: family, requested: t}
		if d, ok := r.derived[key]; ok {
			return d, true
		}

		concrete, ok := family.Specialize(t)
		if !ok {
			continue
		}

		closed := family.derive(concrete, t)
		r.derived[key] = closed
		r.byDefining[t] = closed
		if concrete != nil {
			r.byConcrete[concrete] = closed
		}
		return closed, true
	}

	return nil, false
}

// All returns every directly registered descriptor, including derived
// closed specializations that have been requested so far. The slice is
// a copy; mutating it does not affect the registry.
func (r *Registry) All() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[*Descriptor]struct{})
	out := make([]*Descriptor, 0, len(r.byDefining))

	for _, d := range r.byDefining {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	return out
}

// AllServing returns every registered descriptor whose defining-type
// set contains t.
func (r *Registry) AllServing(t reflect.Type) []*Descriptor {
	var out []*Descriptor
	for _, d := range r.All() {
		if d.ServesType(t) {
			out = append(out, d)
		}
	}
	return out
}

// Count returns the number of distinct registered descriptors.
func (r *Registry) Count() int {
	return len(r.All())
}

// Contains reports whether some descriptor serves the defining type.
func (r *Registry) Contains(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byDefining[t]
	return ok
}
