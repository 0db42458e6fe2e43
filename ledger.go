package locus

import (
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mryildirim91/locus/internal/hier"
)

// ScopeEntry is a locally registered service or provider together with
// its visibility rule and the hierarchy node that registered it. Scope
// entries never own descriptors; they are independent, narrower-lifetime
// registrations consulted before the descriptor-based global cache.
type ScopeEntry struct {
	id         string
	value      any
	visibility Visibility
	registerer Node
}

// ID returns the entry's unique identity.
func (e *ScopeEntry) ID() string { return e.id }

// Value returns the registered service or provider.
func (e *ScopeEntry) Value() any { return e.value }

// Visibility returns the entry's visibility rule.
func (e *ScopeEntry) Visibility() Visibility { return e.visibility }

// Registerer returns the hierarchy node that registered the entry.
func (e *ScopeEntry) Registerer() Node { return e.registerer }

// Ledger tracks scoped registrations and answers nearest-match queries
// for a requesting node. It is consulted before the global instance
// cache on every resolution.
type Ledger struct {
	mu      sync.RWMutex
	entries []*ScopeEntry

	hierarchy Hierarchy
	log       *zap.Logger
}

// NewLedger creates an empty ledger over the given hierarchy. A nil
// logger disables diagnostics.
func NewLedger(h Hierarchy, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}

	return &Ledger{hierarchy: h, log: log}
}

// Register adds a scoped service or provider. The registerer node is
// required for every rule except VisibleEverywhere, which has no
// hierarchy anchor.
func (l *Ledger) Register(value any, visibility Visibility, registerer Node) (*ScopeEntry, error) {
	if value == nil {
		return nil, ValidationError{Cause: ErrNilScopedValue}
	}

	if !visibility.IsValid() {
		return nil, VisibilityError{Value: visibility}
	}

	if registerer == nil && visibility != VisibleEverywhere {
		return nil, ValidationError{
			Cause: fmt.Errorf("visibility %s requires a registerer node", visibility),
		}
	}

	entry := &ScopeEntry{
		id:         uuid.NewString(),
		value:      value,
		visibility: visibility,
		registerer: registerer,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	return entry, nil
}

// Unregister withdraws an entry. It reports whether the entry was
// present.
func (l *Ledger) Unregister(entry *ScopeEntry) bool {
	if entry == nil {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e == entry {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}

	return false
}

// UnregisterAllFor withdraws every entry registered by the given node,
// returning how many were removed. Called when a scoping component is
// disabled or destroyed.
func (l *Ledger) UnregisterAllFor(registerer Node) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.registerer == registerer {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept

	return removed
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// entryRank orders qualifying entries by hierarchy nearness. Lower is
// nearer. The tie-break order is: the entry registered on the client's
// own node wins over all others, then an entry in the client's container
// wins over one in a different container, then the entry closer along
// the client's ancestor chain wins.
type entryRank struct {
	self          bool
	sameContainer bool
	ancestorSteps int
}

func (r entryRank) less(o entryRank) bool {
	if r.self != o.self {
		return r.self
	}
	if r.sameContainer != o.sameContainer {
		return r.sameContainer
	}
	return r.ancestorSteps < o.ancestorSteps
}

func (r entryRank) equal(o entryRank) bool {
	return r.self == o.self && r.sameContainer == o.sameContainer && r.ancestorSteps == o.ancestorSteps
}

func (l *Ledger) rank(e *ScopeEntry, client Node) entryRank {
	rank := entryRank{ancestorSteps: math.MaxInt32}

	if client == nil || e.registerer == nil {
		return rank
	}

	if e.registerer == client {
		rank.self = true
		rank.ancestorSteps = 0
		return rank
	}

	if l.hierarchy == nil {
		return rank
	}

	rank.sameContainer = hier.SameContainer(l.hierarchy, e.registerer, client)
	if steps := hier.Distance(l.hierarchy, client, e.registerer); steps >= 0 {
		rank.ancestorSteps = steps
	}

	return rank
}

// Select returns the nearest entry that can satisfy the defining type
// for the client. An entry qualifies when its visibility rule reaches
// the client and its value either satisfies the defining type directly
// or is a provider. If two or more equally ranked, distinct entries
// remain after the tie-break, the ambiguity is logged as a warning and
// one of them is returned; callers must not depend on which.
func (l *Ledger) Select(defining reflect.Type, client Node) (*ScopeEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var (
		best     *ScopeEntry
		bestRank entryRank
		tied     int
	)

	for _, e := range l.entries {
		if !l.qualifies(e, defining, client) {
			continue
		}

		r := l.rank(e, client)
		switch {
		case best == nil || r.less(bestRank):
			best = e
			bestRank = r
			tied = 0
		case r.equal(bestRank) && !sameScopedValue(e, best):
			tied++
		}
	}

	if best == nil {
		return nil, false
	}

	if tied > 0 {
		l.log.Warn("ambiguous scoped service match, returning an arbitrary candidate",
			zap.String("definingType", formatType(defining)),
			zap.Int("equallyRanked", tied+1),
		)
	}

	return best, true
}

// VisibleEntries returns every entry reachable from the client whose
// value satisfies the defining type or is a provider, ordered nearest
// first.
func (l *Ledger) VisibleEntries(defining reflect.Type, client Node) []*ScopeEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*ScopeEntry
	for _, e := range l.entries {
		if l.qualifies(e, defining, client) {
			out = append(out, e)
		}
	}

	// Insertion sort by rank; entry counts are small.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && l.rank(out[j], client).less(l.rank(out[j-1], client)); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}

	return out
}

func (l *Ledger) qualifies(e *ScopeEntry, defining reflect.Type, client Node) bool {
	if !e.visibility.reaches(l.hierarchy, e.registerer, client) {
		return false
	}

	if satisfies(e.value, defining) {
		return true
	}

	switch e.value.(type) {
	case ValueProvider, AsyncValueProvider:
		return true
	}

	return false
}

// sameScopedValue reports whether two entries hold the same value.
// Values of non-comparable dynamic types are never the same unless the
// entries are one and the same registration.
func sameScopedValue(a, b *ScopeEntry) bool {
	if a == b {
		return true
	}

	vt := reflect.TypeOf(a.value)
	if vt == nil || vt != reflect.TypeOf(b.value) || !vt.Comparable() {
		return false
	}

	return a.value == b.value
}

// satisfies reports whether value can be handed out as the defining type.
func satisfies(value any, defining reflect.Type) bool {
	if value == nil || defining == nil {
		return false
	}

	vt := reflect.TypeOf(value)
	if vt == defining {
		return true
	}

	if defining.Kind() == reflect.Interface && vt.Implements(defining) {
		return true
	}

	return false
}
