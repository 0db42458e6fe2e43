package locus

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RuntimeOption configures a Runtime.
type RuntimeOption interface {
	apply(*runtimeOptions)
}

type runtimeOptions struct {
	logger    *zap.Logger
	hierarchy Hierarchy
	loader    ResourceLoader
	parent    context.Context

	// OnResolved is called after every successful top-level resolution.
	onResolved func(defining reflect.Type, value any, duration time.Duration)

	// OnError is called when a top-level resolution fails.
	onError func(defining reflect.Type, err error)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) apply(o *runtimeOptions) { f(o) }

// WithLogger sets the logger used for engine diagnostics: registration
// conflicts, scope ambiguities, eager-construction and teardown
// failures. The default is a no-op logger.
func WithLogger(log *zap.Logger) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.logger = log })
}

// WithHierarchy sets the object-graph capability used for scoped
// visibility. Without it, only VisibleToSelf and VisibleEverywhere
// registrations are meaningfully reachable.
func WithHierarchy(h Hierarchy) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.hierarchy = h })
}

// WithResourceLoader sets the loader consulted by the LocateExisting
// strategy.
func WithResourceLoader(l ResourceLoader) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.loader = l })
}

// WithParentContext attaches the runtime's shutdown signal to a parent
// context, typically the host application's lifetime. Cancelling the
// parent aborts every suspended resolution.
func WithParentContext(ctx context.Context) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.parent = ctx })
}

// OnResolved registers a callback invoked after every successful
// top-level resolution.
func OnResolved(fn func(defining reflect.Type, value any, duration time.Duration)) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.onResolved = fn })
}

// OnError registers a callback invoked when a top-level resolution
// fails.
func OnError(fn func(defining reflect.Type, err error)) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) { o.onError = fn })
}

// Runtime is the explicitly owned state of the service-location engine:
// descriptor registry, instance cache, scope ledger, and lifecycle
// coordinator. Construct one at process start, register descriptors,
// Build, and Close at process end. Nothing here is ambient or static;
// consumers hold the Runtime by reference.
type Runtime struct {
	id string

	registry *Registry
	cache    *instanceCache
	ledger   *Ledger
	life     *lifecycle
	resolver *resolver
	releases *releaseTable

	log  *zap.Logger
	opts runtimeOptions

	ctx    context.Context
	cancel context.CancelFunc

	watchMu  sync.Mutex
	watchers map[reflect.Type][]chan any

	built  atomic.Bool
	closed atomic.Bool
}

// New creates a runtime. All state is process-lifetime only and rebuilt
// from registration input each run; nothing is persisted.
func New(opts ...RuntimeOption) *Runtime {
	options := runtimeOptions{
		logger: zap.NewNop(),
		parent: context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&options)
		}
	}

	ctx, cancel := context.WithCancel(options.parent)

	rt := &Runtime{
		id:       uuid.NewString(),
		registry: NewRegistry(options.logger),
		cache:    newInstanceCache(),
		ledger:   NewLedger(options.hierarchy, options.logger),
		life:     newLifecycle(options.logger),
		releases: newReleaseTable(),
		log:      options.logger,
		opts:     options,
		ctx:      ctx,
		cancel:   cancel,
		watchers: make(map[reflect.Type][]chan any),
	}

	rt.resolver = &resolver{
		registry: rt.registry,
		cache:    rt.cache,
		ledger:   rt.ledger,
		life:     rt.life,
		loader:   options.loader,
		releases: rt.releases,
		log:      options.logger,
		shutdown: ctx,
	}

	return rt
}

// ID returns the runtime's unique identity.
func (rt *Runtime) ID() string { return rt.id }

// Registry exposes the descriptor registry for registration-time use.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// Register validates and indexes a descriptor. Registration happens
// once, before any resolution.
func (rt *Runtime) Register(d *Descriptor) error {
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}

	return rt.registry.Register(d)
}

// RegisterScoped adds a locally registered service or provider with the
// given visibility, anchored at the registering node.
func (rt *Runtime) RegisterScoped(value any, visibility Visibility, registerer Node) (*ScopeEntry, error) {
	if rt.closed.Load() {
		return nil, ErrRuntimeClosed
	}

	return rt.ledger.Register(value, visibility, registerer)
}

// UnregisterScoped withdraws a scoped registration.
func (rt *Runtime) UnregisterScoped(entry *ScopeEntry) bool {
	return rt.ledger.Unregister(entry)
}

// Build constructs every eager Singleton descriptor. Each eager service
// is attempted independently: a construction failure is reported
// through the logger and the OnError callback without halting the
// others. Build may be called once.
func (rt *Runtime) Build() error {
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}

	if !rt.built.CompareAndSwap(false, true) {
		return ErrAlreadyBuilt
	}

	for _, desc := range rt.registry.All() {
		if desc.Activation != Eager || desc.Lifetime != Singleton {
			continue
		}

		defining := desc.DefiningTypes[0]
		if _, err := rt.resolver.resolveTop(rt.ctx, defining, nil, false); err != nil {
			rt.log.Warn("eager service construction failed",
				zap.String("definingType", formatType(defining)),
				zap.Error(err),
			)
			if rt.opts.onError != nil {
				rt.opts.onError(defining, err)
			}
		}
	}

	return nil
}

// Resolve resolves the defining type without a requesting client. Only
// VisibleEverywhere scoped registrations are considered.
func (rt *Runtime) Resolve(defining reflect.Type) (any, error) {
	return rt.resolveWith(rt.ctx, defining, nil, false)
}

// ResolveFor resolves the defining type on behalf of a client node in
// the hierarchy.
func (rt *Runtime) ResolveFor(defining reflect.Type, client Node) (any, error) {
	return rt.resolveWith(rt.ctx, defining, client, false)
}

// ResolveContext is the suspending variant of Resolve: it waits for
// in-flight and asynchronous constructions until ctx or the runtime's
// shutdown signal is cancelled.
func (rt *Runtime) ResolveContext(ctx context.Context, defining reflect.Type) (any, error) {
	return rt.resolveWith(rt.joinShutdown(ctx), defining, nil, false)
}

// ResolveForContext is the suspending variant of ResolveFor.
func (rt *Runtime) ResolveForContext(ctx context.Context, defining reflect.Type, client Node) (any, error) {
	return rt.resolveWith(rt.joinShutdown(ctx), defining, client, false)
}

// ResolveManagedFor resolves for a client and, when the service is
// Transient, enrolls the produced value in lifecycle hooks and
// teardown. Singletons are always lifecycle-managed; this call exists
// for callers who want the same treatment for transient values.
func (rt *Runtime) ResolveManagedFor(defining reflect.Type, client Node) (any, error) {
	return rt.resolveWith(rt.ctx, defining, client, true)
}

func (rt *Runtime) resolveWith(ctx context.Context, defining reflect.Type, client Node, managed bool) (any, error) {
	if rt.closed.Load() {
		return nil, ErrRuntimeClosed
	}

	start := time.Now()

	value, err := rt.resolver.resolveTop(ctx, defining, client, managed)
	if err != nil {
		if rt.opts.onError != nil {
			rt.opts.onError(defining, err)
		}
		return nil, err
	}

	if rt.opts.onResolved != nil {
		rt.opts.onResolved(defining, value, time.Since(start))
	}

	return value, nil
}

// joinShutdown derives a context cancelled by either the caller or the
// runtime's shutdown signal.
func (rt *Runtime) joinShutdown(ctx context.Context) context.Context {
	if ctx == nil {
		return rt.ctx
	}

	joined, cancel := context.WithCancel(ctx)
	context.AfterFunc(rt.ctx, cancel)

	return joined
}

// Update drives one cycle of the lifecycle coordinator: every
// subscribed Updatable, then the end-of-cycle queue. The host framework
// calls this once per frame or tick.
func (rt *Runtime) Update() {
	if rt.closed.Load() {
		return
	}

	rt.life.update()
}

// Replace swaps the registration for the descriptor's defining types,
// evicts any cached Singleton instance (disposing it), and notifies
// Watch subscribers with the freshly resolved replacement on their next
// request. The replacement is resolved lazily; subscribers are notified
// immediately with the new registration's first realized value.
func (rt *Runtime) Replace(d *Descriptor) error {
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}

	if err := rt.registry.Register(d); err != nil {
		return err
	}

	// Evict stale instances so the next request rebuilds.
	for _, defining := range d.DefiningTypes {
		if entry, ok := rt.cache.get(defining); ok {
			value, _, realized := rt.cache.snapshot(entry)
			rt.cache.remove(entry)
			if realized {
				if disp, ok := value.(Disposable); ok {
					if err := disp.Close(); err != nil {
						rt.log.Warn("replaced service teardown failed",
							zap.String("definingType", formatType(defining)),
							zap.Error(err),
						)
					}
				}
			}
		}
	}

	for _, defining := range d.DefiningTypes {
		rt.notifyWatchers(defining)
	}

	return nil
}

// Watch returns a channel that receives the new Singleton instance each
// time the registration for the defining type is replaced. The channel
// is buffered; slow consumers drop notifications rather than block the
// engine.
func (rt *Runtime) Watch(defining reflect.Type) <-chan any {
	ch := make(chan any, 1)

	rt.watchMu.Lock()
	rt.watchers[defining] = append(rt.watchers[defining], ch)
	rt.watchMu.Unlock()

	return ch
}

func (rt *Runtime) notifyWatchers(defining reflect.Type) {
	rt.watchMu.Lock()
	watchers := append([]chan any(nil), rt.watchers[defining]...)
	rt.watchMu.Unlock()

	if len(watchers) == 0 {
		return
	}

	value, err := rt.resolver.resolveTop(rt.ctx, defining, nil, false)
	if err != nil {
		rt.log.Warn("replacement service could not be resolved for watchers",
			zap.String("definingType", formatType(defining)),
			zap.Error(err),
		)
		return
	}

	for _, ch := range watchers {
		select {
		case ch <- value:
		default:
		}
	}
}

// TearDownClient runs the deterministic release callbacks for every
// value handed to the client and withdraws the client's scoped
// registrations. The hierarchy model calls this when the client node is
// disabled or destroyed.
func (rt *Runtime) TearDownClient(client Node) {
	if client == nil {
		return
	}

	rt.releases.release(client)
	rt.ledger.UnregisterAllFor(client)
}

// Closed reports whether the runtime has been shut down.
func (rt *Runtime) Closed() bool {
	return rt.closed.Load()
}

// Close cancels every suspended resolution and runs the recorded
// teardown actions in reverse order of registration. Close is
// idempotent; only the first call tears down.
func (rt *Runtime) Close() error {
	if !rt.closed.CompareAndSwap(false, true) {
		return nil
	}

	rt.cancel()

	err := rt.life.shutdown()

	rt.cache.clear()
	rt.releases.clear()

	rt.watchMu.Lock()
	for _, chans := range rt.watchers {
		for _, ch := range chans {
			close(ch)
		}
	}
	rt.watchers = make(map[reflect.Type][]chan any)
	rt.watchMu.Unlock()

	return err
}
