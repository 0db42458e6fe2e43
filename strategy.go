package locus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Strategy selects how the engine materializes a descriptor into a value.
type Strategy int

const (
	// Direct invokes the candidate constructor with the most parameters
	// that can all be resolved. If no candidate is fully resolvable, the
	// zero-parameter constructor (if any) is used and dependencies are
	// injected afterwards through tagged fields.
	Direct Strategy = iota

	// UseInitializer delegates to a companion object whose sole job is to
	// produce the service. The initializer itself is built via Direct when
	// it has its own dependencies. A zero-argument initializer returning
	// nil means "fall through to Direct construction".
	UseInitializer

	// UseInitializerAsync is UseInitializer with an asynchronous produce
	// step awaited by the engine.
	UseInitializerAsync

	// UseProvider delegates to a provider object that supplies a value
	// for the requesting client.
	UseProvider

	// UseProviderAsync is UseProvider with an asynchronous lookup awaited
	// by the engine.
	UseProviderAsync

	// LocateExisting searches a designated external resource (a named or
	// indexed container, or the already-active portion of the hierarchy)
	// for a pre-existing compatible instance, optionally loading the
	// container first.
	LocateExisting
)

// String returns the string representation of the Strategy.
func (s Strategy) String() string {
	switch s {
	case Direct:
		return "Direct"
	case UseInitializer:
		return "Initializer"
	case UseInitializerAsync:
		return "InitializerAsync"
	case UseProvider:
		return "ValueProvider"
	case UseProviderAsync:
		return "ValueProviderAsync"
	case LocateExisting:
		return "LocateExisting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsValid checks if the strategy is valid.
func (s Strategy) IsValid() bool {
	return s >= Direct && s <= LocateExisting
}

// IsProviderBased reports whether the strategy produces values through a
// provider or initializer rather than direct construction. Transient
// descriptors must use a provider-based strategy.
func (s Strategy) IsProviderBased() bool {
	switch s {
	case UseInitializer, UseInitializerAsync, UseProvider, UseProviderAsync:
		return true
	default:
		return false
	}
}

// IsAsync reports whether the strategy has an asynchronous production
// step the engine must await.
func (s Strategy) IsAsync() bool {
	return s == UseInitializerAsync || s == UseProviderAsync
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Direct":
		*s = Direct
	case "Initializer":
		*s = UseInitializer
	case "InitializerAsync":
		*s = UseInitializerAsync
	case "ValueProvider":
		*s = UseProvider
	case "ValueProviderAsync":
		*s = UseProviderAsync
	case "LocateExisting":
		*s = LocateExisting
	default:
		return StrategyError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Strategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	return s.UnmarshalText([]byte(str))
}

// Initializer is the companion-object contract for the UseInitializer
// strategy. Produce returns the service value, or (nil, nil) to fall
// through to Direct construction.
type Initializer interface {
	Produce() (any, error)
}

// AsyncInitializer is the companion-object contract for the
// UseInitializerAsync strategy. ProduceAsync may block; it must respect
// ctx cancellation.
type AsyncInitializer interface {
	ProduceAsync(ctx context.Context) (any, error)
}

// ValueProvider supplies a value for the requesting client context.
type ValueProvider interface {
	TryGetFor(client Node) (any, bool)
}

// AsyncValueProvider supplies a value for the requesting client context
// asynchronously. GetFor may block; it must respect ctx cancellation.
type AsyncValueProvider interface {
	GetFor(ctx context.Context, client Node) (any, error)
}

// Releasable values (or providers) get a deterministic release callback
// when the produced value's owning client is torn down. This is how
// transient values stay correct: the provider learns exactly when the
// client is done with what it handed out.
type Releasable interface {
	Release(client Node)
}
