package locus

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Updatable services are subscribed to the runtime's periodic update
// pump when they are realized. Update is called once per cycle.
type Updatable interface {
	Update()
}

// Readier services get a one-time Ready hook after realization, before
// activation.
type Readier interface {
	Ready()
}

// Activatable services get a one-time Activated hook after Ready.
type Activatable interface {
	Activated()
}

// CycleEnder services get a one-time hook at the end of the cycle in
// which they were realized.
type CycleEnder interface {
	CycleEnd()
}

// lifecycle coordinates post-construction hooks and shutdown teardown.
// The hook order after a value is realized is fixed: subscribe to the
// update pump, Ready, Activated, then schedule the end-of-cycle hook.
type lifecycle struct {
	mu         sync.Mutex
	updatables []Updatable
	endOfCycle []func()
	teardowns  []func() error

	log *zap.Logger
}

func newLifecycle(log *zap.Logger) *lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return &lifecycle{log: log}
}

// admit runs the fixed hook sequence for a freshly realized value and
// records its teardown action.
func (l *lifecycle) admit(value any) {
	if value == nil {
		return
	}

	if u, ok := value.(Updatable); ok {
		l.mu.Lock()
		l.updatables = append(l.updatables, u)
		l.mu.Unlock()
	}

	if r, ok := value.(Readier); ok {
		r.Ready()
	}

	if a, ok := value.(Activatable); ok {
		a.Activated()
	}

	if c, ok := value.(CycleEnder); ok {
		l.mu.Lock()
		l.endOfCycle = append(l.endOfCycle, c.CycleEnd)
		l.mu.Unlock()
	}

	l.recordTeardown(value)
}

// recordTeardown registers the disposal action for a value, if it has
// one. Teardowns run at shutdown in reverse order of registration.
func (l *lifecycle) recordTeardown(value any) {
	var fn func() error

	switch v := value.(type) {
	case Disposable:
		fn = v.Close
	default:
		return
	}

	l.mu.Lock()
	l.teardowns = append(l.teardowns, fn)
	l.mu.Unlock()
}

// update drives one cycle: every subscribed Updatable, then the drained
// end-of-cycle queue. Hooks scheduled during the cycle run in the same
// drain.
func (l *lifecycle) update() {
	l.mu.Lock()
	updatables := make([]Updatable, len(l.updatables))
	copy(updatables, l.updatables)
	l.mu.Unlock()

	for _, u := range updatables {
		u.Update()
	}

	l.drainEndOfCycle()
}

func (l *lifecycle) drainEndOfCycle() {
	for {
		l.mu.Lock()
		hooks := l.endOfCycle
		l.endOfCycle = nil
		l.mu.Unlock()

		if len(hooks) == 0 {
			return
		}

		for _, hook := range hooks {
			hook()
		}
	}
}

// shutdown runs the recorded teardown actions in strict reverse order
// of registration. A teardown failing or panicking is reported and does
// not prevent subsequent teardowns from running.
func (l *lifecycle) shutdown() error {
	l.mu.Lock()
	teardowns := l.teardowns
	l.teardowns = nil
	l.updatables = nil
	l.endOfCycle = nil
	l.mu.Unlock()

	var errs []error

	for i := len(teardowns) - 1; i >= 0; i-- {
		if err := l.runTeardown(teardowns[i]); err != nil {
			l.log.Warn("teardown action failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return DisposalError{Errors: errs}
	}

	return nil
}

func (l *lifecycle) runTeardown(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown panicked: %v", r)
		}
	}()

	return fn()
}
