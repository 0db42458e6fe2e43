package locus

import (
	"context"
	"iter"
	"reflect"
)

// typeOf returns the reflect.Type for T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// TryGet resolves T without a requesting client. It reports false
// instead of returning an error, for call sites that treat absence as a
// normal outcome.
func TryGet[T any](rt *Runtime) (T, bool) {
	var zero T

	value, err := rt.Resolve(typeOf[T]())
	if err != nil {
		return zero, false
	}

	typed, ok := value.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

// TryGetFor resolves T on behalf of a client node, reporting false on
// any failure.
func TryGetFor[T any](rt *Runtime, client Node) (T, bool) {
	var zero T

	value, err := rt.ResolveFor(typeOf[T](), client)
	if err != nil {
		return zero, false
	}

	typed, ok := value.(T)
	if !ok {
		return zero, false
	}

	return typed, true
}

// Get resolves T without a requesting client, suspending on in-flight
// and asynchronous constructions until ctx is cancelled.
func Get[T any](ctx context.Context, rt *Runtime) (T, error) {
	var zero T

	value, err := rt.ResolveContext(ctx, typeOf[T]())
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, ResolutionError{
			DefiningType: typeOf[T](),
			Cause:        TypeMismatchError{Requested: typeOf[T](), Got: reflect.TypeOf(value)},
		}
	}

	return typed, nil
}

// GetFor resolves T on behalf of a client node, suspending on in-flight
// and asynchronous constructions until ctx is cancelled.
func GetFor[T any](ctx context.Context, rt *Runtime, client Node) (T, error) {
	var zero T

	value, err := rt.ResolveForContext(ctx, typeOf[T](), client)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, ResolutionError{
			DefiningType: typeOf[T](),
			Cause:        TypeMismatchError{Requested: typeOf[T](), Got: reflect.TypeOf(value)},
		}
	}

	return typed, nil
}

// GetManagedFor resolves T for a client with lifecycle management
// extended to Transient values: the produced value runs the realization
// hooks and is recorded for teardown.
func GetManagedFor[T any](rt *Runtime, client Node) (T, error) {
	var zero T

	value, err := rt.ResolveManagedFor(typeOf[T](), client)
	if err != nil {
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return zero, ResolutionError{
			DefiningType: typeOf[T](),
			Cause:        TypeMismatchError{Requested: typeOf[T](), Got: reflect.TypeOf(value)},
		}
	}

	return typed, nil
}

// MustGet resolves T without a client and panics on failure. Intended
// for startup wiring where a missing service is a programming error.
func MustGet[T any](rt *Runtime) T {
	value, err := Get[T](context.Background(), rt)
	if err != nil {
		panic(err)
	}
	return value
}

// GetAll lazily yields every distinct service currently available as T:
// scoped registrations reachable without a client first, then one
// instance per registered descriptor serving T. Candidates that fail to
// resolve are skipped. Stopping iteration early stops resolution.
func GetAll[T any](rt *Runtime) iter.Seq[T] {
	return GetAllFor[T](rt, nil)
}

// GetAllFor is GetAll on behalf of a client node: reachable scope
// entries come first, nearest first, then descriptor-backed services.
func GetAllFor[T any](rt *Runtime, client Node) iter.Seq[T] {
	defining := typeOf[T]()

	return func(yield func(T) bool) {
		seen := make(map[any]struct{})

		emit := func(value any) bool {
			typed, ok := value.(T)
			if !ok {
				return true
			}
			if vt := reflect.TypeOf(value); vt != nil && vt.Comparable() {
				if _, dup := seen[value]; dup {
					return true
				}
				seen[value] = struct{}{}
			}
			return yield(typed)
		}

		for _, entry := range rt.ledger.VisibleEntries(defining, client) {
			value, ok := materializeForAll(rt, entry, defining, client)
			if !ok {
				continue
			}
			if !emit(value) {
				return
			}
		}

		for _, desc := range rt.registry.AllServing(defining) {
			// Singletons resolve clientless so a nearer scope entry (already
			// yielded above) cannot shadow the descriptor-backed instance.
			node := client
			if desc.Lifetime == Singleton {
				node = nil
			}
			value, err := rt.resolver.resolveTop(rt.ctx, desc.DefiningTypes[0], node, false)
			if err != nil {
				continue
			}
			if !emit(value) {
				return
			}
		}
	}
}

// materializeForAll turns a scope entry into a value of the defining
// type, invoking providers where needed. A declining provider is not an
// error here; the entry is simply skipped.
func materializeForAll(rt *Runtime, entry *ScopeEntry, defining reflect.Type, client Node) (any, bool) {
	value := entry.Value()

	if satisfies(value, defining) {
		return value, true
	}

	switch p := value.(type) {
	case ValueProvider:
		produced, ok := p.TryGetFor(client)
		if !ok || !satisfies(produced, defining) {
			return nil, false
		}
		rt.releases.track(client, produced)
		return produced, true
	case AsyncValueProvider:
		produced, err := p.GetFor(rt.ctx, client)
		if err != nil || !satisfies(produced, defining) {
			return nil, false
		}
		rt.releases.track(client, produced)
		return produced, true
	}

	return nil, false
}

// WatchFor returns a typed channel that receives each replacement
// instance registered for T. The channel closes when the runtime
// closes.
func WatchFor[T any](rt *Runtime) <-chan T {
	in := rt.Watch(typeOf[T]())
	out := make(chan T, 1)

	go func() {
		defer close(out)
		for value := range in {
			typed, ok := value.(T)
			if !ok {
				continue
			}
			select {
			case out <- typed:
			default:
			}
		}
	}()

	return out
}

// Contains reports whether some registered descriptor serves T.
func Contains[T any](rt *Runtime) bool {
	return rt.registry.Contains(typeOf[T]())
}
