// Package locus is a service-location runtime for applications built as
// object hierarchies, such as game engines and plugin hosts. Services
// are described by metadata descriptors, constructed on demand or
// eagerly at build time, cached as singletons at most once each, and
// torn down in reverse order when the runtime closes.
//
// # Overview
//
// The runtime owns four cooperating pieces:
//   - a Registry of service descriptors, indexed by concrete and
//     defining types, with open-family specialization
//   - an instance cache guaranteeing at-most-once Singleton
//     construction, even under concurrent and asynchronous requests
//   - a scope Ledger of locally registered services whose visibility is
//     governed by hierarchy rules, consulted before the global cache
//   - a lifecycle coordinator that runs realization hooks in a fixed
//     order and teardown in reverse registration order
//
// Nothing is ambient or static: construct a Runtime, register, Build,
// resolve, Close.
//
//	rt := locus.New(locus.WithLogger(logger), locus.WithHierarchy(tree))
//	rt.Register(&locus.Descriptor{
//	    ConcreteType:  reflect.TypeFor[*Mixer](),
//	    DefiningTypes: []reflect.Type{reflect.TypeFor[AudioService]()},
//	    Strategy:      locus.Direct,
//	    Lifetime:      locus.Singleton,
//	    Activation:    locus.Lazy,
//	    Constructors:  []any{NewMixer},
//	})
//	if err := rt.Build(); err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	audio, err := locus.GetFor[AudioService](ctx, rt, player)
//
// # Construction Strategies
//
// A descriptor names how its service comes into being: Direct
// constructor invocation with recursive dependency resolution and field
// injection, a companion Initializer (synchronous or asynchronous), a
// ValueProvider that decides per requesting client, or locating an
// already-existing object through a ResourceLoader. Provider-style
// results unwrap until a value satisfying every defining type emerges.
//
// # Scoped Visibility
//
// Hierarchy nodes can register services locally with a Visibility rule
// (own node, descendants, ancestors, same container, everywhere). A
// request made on behalf of a client sees the nearest reachable entry;
// scope entries always win over descriptor-backed singletons.
//
// # Concurrency
//
// Resolution is safe for concurrent use. Requests for a Singleton under
// construction await the in-flight instance rather than constructing a
// second one; re-entrant requests for the type being constructed fail
// with a CircularDependencyError instead of deadlocking. The suspending
// variants (Get, GetFor, ResolveContext) honor context cancellation and
// the runtime's shutdown signal.
package locus
