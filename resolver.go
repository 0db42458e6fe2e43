package locus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"

	"go.uber.org/zap"
)

const (
	maxResolutionDepth = 100
	maxUnwrapDepth     = 32
)

// resolutionContext is the transient per-call state of one top-level
// resolution and all of its recursive sub-resolutions: the set of types
// currently being constructed (circular-dependency detection) and the
// pending cache entries this call chain reserved. It is discarded when
// the top-level call returns and is never persisted.
type resolutionContext struct {
	ctx    context.Context
	client Node

	inProgress map[reflect.Type]struct{}
	stack      []reflect.Type
	owned      map[*instanceEntry]struct{}
}

func newResolutionContext(ctx context.Context, client Node) *resolutionContext {
	return &resolutionContext{
		ctx:        ctx,
		client:     client,
		inProgress: make(map[reflect.Type]struct{}),
		owned:      make(map[*instanceEntry]struct{}),
	}
}

func (rc *resolutionContext) enter(t reflect.Type) error {
	if len(rc.stack) >= maxResolutionDepth {
		return fmt.Errorf("resolution depth exceeded %d, aborting", maxResolutionDepth)
	}

	if _, busy := rc.inProgress[t]; busy {
		return CircularDependencyError{ServiceType: t, Chain: append([]reflect.Type(nil), rc.stack...)}
	}

	rc.inProgress[t] = struct{}{}
	rc.stack = append(rc.stack, t)
	return nil
}

func (rc *resolutionContext) leave(t reflect.Type) {
	delete(rc.inProgress, t)
	if n := len(rc.stack); n > 0 && rc.stack[n-1] == t {
		rc.stack = rc.stack[:n-1]
	}
}

// resolver is the resolution engine. It owns no state of its own; it
// operates on the runtime's registry, cache, ledger, and lifecycle
// coordinator.
type resolver struct {
	registry *Registry
	cache    *instanceCache
	ledger   *Ledger
	life     *lifecycle
	loader   ResourceLoader
	releases *releaseTable
	log      *zap.Logger

	// shutdown is the runtime's root cancellation signal. Every
	// asynchronous production step is attached to it.
	shutdown context.Context
}

// resolveTop is the entry point used by the locator facade. Failures
// raised anywhere in the recursive chain surface here as one structured
// ResolutionError attributed to the requested defining type.
func (r *resolver) resolveTop(ctx context.Context, defining reflect.Type, client Node, managed bool) (any, error) {
	if defining == nil {
		return nil, ResolutionError{DefiningType: defining, Cause: ErrServiceTypeNil}
	}

	rc := newResolutionContext(ctx, client)

	value, err := r.resolve(rc, defining)
	if err != nil {
		return nil, ResolutionError{DefiningType: defining, Cause: err}
	}

	if managed {
		if d, ok := r.registry.FindByDefiningType(defining); ok && d.Lifetime == Transient {
			r.life.admit(value)
		}
	}

	return value, nil
}

// resolve is the central algorithm: scope check, global cache check,
// construction, provider unwrapping, caching, lifecycle.
func (r *resolver) resolve(rc *resolutionContext, defining reflect.Type) (any, error) {
	// 1. Scope check: a scoped registration visible to the client wins
	// over everything descriptor-based.
	if entry, ok := r.ledger.Select(defining, rc.client); ok {
		if value, ok, err := r.materializeEntry(rc, entry, defining); err != nil {
			return nil, err
		} else if ok {
			return value, nil
		}
	}

	// 2. Global cache check. Pending constructions reserved by this very
	// call chain are cycles, not instances to await.
	if entry, ok := r.cache.get(defining); ok {
		return r.awaitEntry(rc, entry, defining)
	}

	// 3. Construction.
	desc, ok := r.registry.FindByDefiningType(defining)
	if !ok {
		return nil, MissingDependencyError{DependencyType: defining}
	}

	closed, err := r.closedType(desc, defining)
	if err != nil {
		return nil, err
	}

	progressKey := closed
	if progressKey == nil {
		progressKey = defining
	}

	if err := rc.enter(progressKey); err != nil {
		return nil, err
	}
	defer rc.leave(progressKey)

	if desc.Lifetime == Transient {
		return r.produceTransient(rc, desc, defining)
	}

	return r.produceSingleton(rc, desc, defining, closed)
}

// closedType determines the concrete, closed type the descriptor will
// build for the request. Provider-based strategies may legitimately not
// know it; Direct construction infers it from the constructors when the
// descriptor leaves it open.
func (r *resolver) closedType(desc *Descriptor, defining reflect.Type) (reflect.Type, error) {
	if desc.ConcreteType != nil {
		return desc.ConcreteType, nil
	}

	if desc.Strategy == Direct {
		for _, ctor := range desc.Constructors {
			if t := reflect.TypeOf(ctor); t != nil && t.NumOut() > 0 && !isErrorType(t.Out(0)) {
				return t.Out(0), nil
			}
		}
		return nil, UnresolvableTypeError{DefiningType: defining, Source: desc.DeclaringSource}
	}

	return nil, nil
}

// produceSingleton reserves a pending cache entry under the closed
// concrete type and every defining type before constructing, so that
// re-entrant requests made during construction of dependents observe
// the same in-flight instance rather than triggering a second
// construction.
func (r *resolver) produceSingleton(rc *resolutionContext, desc *Descriptor, defining, closed reflect.Type) (any, error) {
	fut := newFuture()
	keys := cacheKeys(desc, closed, defining)

	entry, created := r.cache.storePending(keys, fut)
	if !created {
		return r.awaitEntry(rc, entry, defining)
	}
	rc.owned[entry] = struct{}{}

	value, err := r.construct(rc, desc, defining, closed)
	if err == nil {
		if desc.Strategy.IsProviderBased() {
			value, err = r.unwrap(rc, desc, value)
		} else {
			err = checkDefiningTypes(value, desc.DefiningTypes)
		}
	}

	if err != nil {
		// No partially constructed instance may remain cached.
		r.cache.remove(entry)
		delete(rc.owned, entry)
		fut.complete(nil, err)
		return nil, err
	}

	r.cache.realize(entry, value)
	r.life.admit(value)
	fut.complete(value, nil)
	delete(rc.owned, entry)

	return value, nil
}

// produceTransient produces a fresh value per request; nothing is
// cached. Values supporting a release callback are tracked against the
// requesting client.
func (r *resolver) produceTransient(rc *resolutionContext, desc *Descriptor, defining reflect.Type) (any, error) {
	value, err := r.construct(rc, desc, defining, nil)
	if err != nil {
		return nil, err
	}

	value, err = r.unwrap(rc, desc, value)
	if err != nil {
		return nil, err
	}

	r.releases.track(rc.client, value)

	return value, nil
}

// awaitEntry returns the entry's value, suspending on a pending
// construction. A pending entry reserved by this same call chain is a
// circular dependency, not something to wait for.
func (r *resolver) awaitEntry(rc *resolutionContext, entry *instanceEntry, defining reflect.Type) (any, error) {
	value, pending, realized := r.cache.snapshot(entry)
	if realized {
		return value, nil
	}

	if _, own := rc.owned[entry]; own {
		return nil, CircularDependencyError{ServiceType: defining, Chain: append([]reflect.Type(nil), rc.stack...)}
	}

	if pending == nil {
		return value, nil
	}

	return pending.await(rc.ctx)
}

// construct dispatches to the descriptor's construction strategy.
func (r *resolver) construct(rc *resolutionContext, desc *Descriptor, defining, closed reflect.Type) (any, error) {
	switch desc.Strategy {
	case Direct:
		return r.constructDirect(rc, desc, closed)

	case UseInitializer, UseInitializerAsync:
		return r.constructInitializer(rc, desc, defining, closed)

	case UseProvider:
		provider, ok := desc.Provider.(ValueProvider)
		if !ok {
			return nil, ConstructionError{
				ServiceType: closed,
				Strategy:    desc.Strategy,
				Cause:       fmt.Errorf("provider %T does not implement ValueProvider", desc.Provider),
			}
		}
		return r.invokeProvider(rc, desc, closed, provider)

	case UseProviderAsync:
		provider, ok := desc.Provider.(AsyncValueProvider)
		if !ok {
			return nil, ConstructionError{
				ServiceType: closed,
				Strategy:    desc.Strategy,
				Cause:       fmt.Errorf("provider %T does not implement AsyncValueProvider", desc.Provider),
			}
		}
		return r.awaitUser(rc, closed, desc.Strategy, func(ctx context.Context) (any, error) {
			return provider.GetFor(ctx, rc.client)
		})

	case LocateExisting:
		return r.locateExisting(rc, desc, defining)

	default:
		return nil, StrategyError{Value: desc.Strategy}
	}
}

// constructDirect picks the candidate constructor with the most
// parameters that can all be resolved. If no candidate with parameters
// is fully resolvable, the zero-parameter constructor (if any) is used
// and dependency injection is attempted post-construction through
// tagged fields.
func (r *resolver) constructDirect(rc *resolutionContext, desc *Descriptor, closed reflect.Type) (any, error) {
	if len(desc.Constructors) == 0 {
		return nil, ProviderExhaustedError{ServiceType: closed, DefiningType: desc.DefiningTypes[0]}
	}

	ctors := append([]any(nil), desc.Constructors...)
	sort.SliceStable(ctors, func(i, j int) bool {
		return reflect.TypeOf(ctors[i]).NumIn() > reflect.TypeOf(ctors[j]).NumIn()
	})

	var firstErr error

	for _, ctor := range ctors {
		ctorType := reflect.TypeOf(ctor)

		args, err := r.resolveArgs(rc, closed, ctorType)
		if err != nil {
			// A circular dependency is a hard failure, not a reason to
			// try a smaller constructor.
			var circular CircularDependencyError
			if errors.As(err, &circular) {
				return nil, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		value, err := r.invokeConstructor(closed, ctor, args)
		if err != nil {
			return nil, err
		}

		if ctorType.NumIn() == 0 {
			if err := r.injectFields(rc, value); err != nil {
				return nil, err
			}
		}

		return value, nil
	}

	return nil, firstErr
}

// resolveArgs resolves every parameter of the constructor, attributing
// missing dependencies to the service under construction.
func (r *resolver) resolveArgs(rc *resolutionContext, owner reflect.Type, ctorType reflect.Type) ([]reflect.Value, error) {
	args := make([]reflect.Value, ctorType.NumIn())

	for i := range ctorType.NumIn() {
		paramType := ctorType.In(i)

		value, err := r.resolve(rc, paramType)
		if err != nil {
			var missing MissingDependencyError
			if errors.As(err, &missing) && missing.ServiceType == nil {
				return nil, MissingDependencyError{ServiceType: owner, DependencyType: paramType}
			}
			return nil, err
		}

		args[i] = reflect.ValueOf(value)
	}

	return args, nil
}

// invokeConstructor calls the constructor with panic recovery.
func (r *resolver) invokeConstructor(closed reflect.Type, ctor any, args []reflect.Value) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = ConstructionPanicError{ServiceType: closed, Panic: rec, Stack: debug.Stack()}
		}
	}()

	results := reflect.ValueOf(ctor).Call(args)

	if len(results) == 2 && !results[1].IsNil() {
		return nil, ConstructionError{
			ServiceType: closed,
			Strategy:    Direct,
			Cause:       results[1].Interface().(error),
		}
	}

	return results[0].Interface(), nil
}

// constructInitializer builds the companion object (via Direct when it
// is given as a constructor function) and delegates production to it. A
// zero-argument initializer returning (nil, nil) falls through to
// Direct construction.
func (r *resolver) constructInitializer(rc *resolutionContext, desc *Descriptor, defining, closed reflect.Type) (any, error) {
	companion, err := r.buildCompanion(rc, desc, closed)
	if err != nil {
		return nil, err
	}

	if desc.Strategy == UseInitializerAsync {
		init, ok := companion.(AsyncInitializer)
		if !ok {
			return nil, ConstructionError{
				ServiceType: closed,
				Strategy:    desc.Strategy,
				Cause:       fmt.Errorf("initializer %T does not implement AsyncInitializer", companion),
			}
		}
		return r.awaitUser(rc, closed, desc.Strategy, init.ProduceAsync)
	}

	init, ok := companion.(Initializer)
	if !ok {
		return nil, ConstructionError{
			ServiceType: closed,
			Strategy:    desc.Strategy,
			Cause:       fmt.Errorf("initializer %T does not implement Initializer", companion),
		}
	}

	value, err := r.invokeInitializer(closed, init)
	if err != nil {
		return nil, err
	}

	if value == nil {
		// Fall through to Direct construction.
		return r.constructDirect(rc, desc, closed)
	}

	return value, nil
}

func (r *resolver) invokeInitializer(closed reflect.Type, init Initializer) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = ConstructionPanicError{ServiceType: closed, Panic: rec, Stack: debug.Stack()}
		}
	}()

	value, produceErr := init.Produce()
	if produceErr != nil {
		return nil, ConstructionError{ServiceType: closed, Strategy: UseInitializer, Cause: produceErr}
	}

	return value, nil
}

// buildCompanion turns the descriptor's Initializer payload into a live
// companion object, resolving its constructor dependencies when needed.
func (r *resolver) buildCompanion(rc *resolutionContext, desc *Descriptor, closed reflect.Type) (any, error) {
	init := desc.Initializer

	if t := reflect.TypeOf(init); t != nil && t.Kind() == reflect.Func {
		args, err := r.resolveArgs(rc, closed, t)
		if err != nil {
			return nil, err
		}
		return r.invokeConstructor(closed, init, args)
	}

	return init, nil
}

func (r *resolver) invokeProvider(rc *resolutionContext, desc *Descriptor, closed reflect.Type, provider ValueProvider) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			value = nil
			err = ConstructionPanicError{ServiceType: closed, Panic: rec, Stack: debug.Stack()}
		}
	}()

	v, ok := provider.TryGetFor(rc.client)
	if !ok {
		return nil, ProviderExhaustedError{ServiceType: closed, DefiningType: desc.DefiningTypes[0]}
	}

	return v, nil
}

// locateExisting searches the designated external resource for a
// pre-existing compatible instance, optionally loading the resource
// first and searching again.
func (r *resolver) locateExisting(rc *resolutionContext, desc *Descriptor, defining reflect.Type) (any, error) {
	if r.loader == nil {
		return nil, ConstructionError{
			ServiceType: desc.ConcreteType,
			Strategy:    LocateExisting,
			Cause:       fmt.Errorf("no resource loader configured"),
		}
	}

	if value, ok := r.loader.Find(desc.Load, defining); ok {
		return value, nil
	}

	// The active graph is never loaded on demand; a miss is a miss.
	if desc.Load.Kind == LoadActiveGraph {
		return nil, MissingDependencyError{DependencyType: defining}
	}

	if desc.Load.Async {
		if _, err := r.awaitUser(rc, desc.ConcreteType, LocateExisting, func(ctx context.Context) (any, error) {
			return nil, r.loader.Load(ctx, desc.Load)
		}); err != nil {
			return nil, err
		}
	} else if err := r.loader.Load(rc.ctx, desc.Load); err != nil {
		return nil, ConstructionError{ServiceType: desc.ConcreteType, Strategy: LocateExisting, Cause: err}
	}

	if value, ok := r.loader.Find(desc.Load, defining); ok {
		return value, nil
	}

	return nil, MissingDependencyError{DependencyType: defining}
}

// unwrap peels provider layers off the produced value until it satisfies
// every defining type of the descriptor.
func (r *resolver) unwrap(rc *resolutionContext, desc *Descriptor, value any) (any, error) {
	for depth := 0; depth <= maxUnwrapDepth; depth++ {
		if value == nil {
			return nil, ProviderExhaustedError{ServiceType: desc.ConcreteType, DefiningType: desc.DefiningTypes[0]}
		}

		if satisfiesAll(value, desc.DefiningTypes) {
			return value, nil
		}

		var err error
		switch v := value.(type) {
		case Initializer:
			value, err = r.invokeInitializer(desc.ConcreteType, v)
		case ValueProvider:
			value, err = r.invokeProvider(rc, desc, desc.ConcreteType, v)
		case AsyncInitializer:
			value, err = r.awaitUser(rc, desc.ConcreteType, UseInitializerAsync, v.ProduceAsync)
		case AsyncValueProvider:
			value, err = r.awaitUser(rc, desc.ConcreteType, UseProviderAsync, func(ctx context.Context) (any, error) {
				return v.GetFor(ctx, rc.client)
			})
		default:
			return nil, ProviderExhaustedError{ServiceType: desc.ConcreteType, DefiningType: desc.DefiningTypes[0]}
		}

		if err != nil {
			return nil, err
		}
	}

	return nil, ProviderExhaustedError{ServiceType: desc.ConcreteType, DefiningType: desc.DefiningTypes[0]}
}

// materializeEntry turns a selected scope entry into a value for the
// client. A provider entry declining to produce is not an error; the
// resolution falls through to the descriptor path.
func (r *resolver) materializeEntry(rc *resolutionContext, entry *ScopeEntry, defining reflect.Type) (any, bool, error) {
	value := entry.Value()

	if satisfies(value, defining) {
		return value, true, nil
	}

	switch p := value.(type) {
	case ValueProvider:
		v, ok := p.TryGetFor(rc.client)
		if !ok {
			return nil, false, nil
		}
		r.releases.track(rc.client, v)
		return v, true, nil

	case AsyncValueProvider:
		v, err := r.awaitUser(rc, defining, UseProviderAsync, func(ctx context.Context) (any, error) {
			return p.GetFor(ctx, rc.client)
		})
		if err != nil {
			return nil, false, err
		}
		r.releases.track(rc.client, v)
		return v, true, nil
	}

	return nil, false, nil
}

// awaitUser runs a user-supplied asynchronous production step. The step
// is attached to the runtime's shutdown signal; the awaiting resolution
// additionally observes its own context. A value completed after the
// caller gave up is not leaked: it is handed to the disposal path.
func (r *resolver) awaitUser(rc *resolutionContext, serviceType reflect.Type, strategy Strategy, run func(ctx context.Context) (any, error)) (any, error) {
	fut := newFuture()

	prodCtx, cancel := context.WithCancel(r.shutdown)

	go func() {
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				fut.complete(nil, ConstructionPanicError{ServiceType: serviceType, Panic: rec, Stack: debug.Stack()})
			}
		}()

		value, err := run(prodCtx)
		if err != nil {
			fut.complete(nil, ConstructionError{ServiceType: serviceType, Strategy: strategy, Cause: err})
			return
		}

		fut.complete(value, nil)
	}()

	value, err := fut.await(rc.ctx)
	if err != nil && rc.ctx.Err() != nil {
		cancel()
		go r.disposeOrphan(fut)
		return nil, err
	}

	return value, err
}

// disposeOrphan waits for an abandoned production to finish and tears
// its value down if one was produced.
func (r *resolver) disposeOrphan(fut *future) {
	<-fut.done

	value, err, _ := fut.peek()
	if err != nil || value == nil {
		return
	}

	if d, ok := value.(Disposable); ok {
		if cerr := d.Close(); cerr != nil {
			r.log.Warn("orphaned construction teardown failed", zap.Error(cerr))
		}
	}
}

// cacheKeys returns the closed concrete type plus every defining type,
// deduplicated, with the requested defining type guaranteed present.
func cacheKeys(desc *Descriptor, closed, defining reflect.Type) []reflect.Type {
	keys := make([]reflect.Type, 0, len(desc.DefiningTypes)+2)
	seen := make(map[reflect.Type]struct{})

	add := func(t reflect.Type) {
		if t == nil {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		keys = append(keys, t)
	}

	add(closed)
	add(defining)
	for _, dt := range desc.DefiningTypes {
		add(dt)
	}

	return keys
}

// checkDefiningTypes rejects a produced value that cannot be handed out
// as every one of its descriptor's defining types. Provider-based
// strategies get this through unwrap; Direct and LocateExisting results
// are checked here before caching.
func checkDefiningTypes(value any, definingTypes []reflect.Type) error {
	for _, dt := range definingTypes {
		if !satisfies(value, dt) {
			return TypeMismatchError{Requested: dt, Got: reflect.TypeOf(value)}
		}
	}
	return nil
}

// satisfiesAll reports whether value can be handed out as every one of
// the defining types.
func satisfiesAll(value any, definingTypes []reflect.Type) bool {
	for _, dt := range definingTypes {
		if !satisfies(value, dt) {
			return false
		}
	}
	return len(definingTypes) > 0
}
