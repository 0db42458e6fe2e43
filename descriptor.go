package locus

import (
	"fmt"
	"reflect"
)

// Descriptor identifies a service definition. Descriptors are produced
// from metadata discovery at startup and registered once; they are
// immutable afterwards. The only derived state is generic-family
// specialization, which produces a separate closed descriptor cached by
// the registry.
type Descriptor struct {
	// DeclaringSource is the type (or metadata carrier) that produced
	// this descriptor. Used for diagnostics only.
	DeclaringSource reflect.Type

	// ConcreteType is the implementation type. It may be nil when the
	// concrete type is unknown until the first request, in which case
	// Specialize must be set.
	ConcreteType reflect.Type

	// DefiningTypes is the non-empty set of abstraction types clients may
	// request this service under.
	DefiningTypes []reflect.Type

	// Strategy selects how the descriptor is materialized into a value.
	Strategy Strategy

	// Lifetime determines caching: Singleton values are cached in the
	// runtime, Transient values are produced per request.
	Lifetime Lifetime

	// Activation determines when the first construction happens.
	Activation Activation

	// Load describes how to obtain any backing resource. Only consulted
	// by the LocateExisting strategy.
	Load LoadSpec

	// Constructors are the candidate constructor functions for Direct
	// construction, in any order. The engine tries them by descending
	// parameter count and accepts the first whose every parameter
	// resolves to a service.
	Constructors []any

	// Initializer is the companion object (or a constructor function
	// producing one) for the UseInitializer strategies.
	Initializer any

	// Provider is the provider object for the UseProvider strategies.
	Provider any

	// Specialize derives a closed concrete type for a requested defining
	// type when ConcreteType is open. Returning false means the request
	// cannot be served by this family.
	Specialize func(requested reflect.Type) (reflect.Type, bool)

	// openSource points back at the open family descriptor this closed
	// descriptor was derived from. Nil for descriptors registered
	// directly.
	openSource *Descriptor
}

// ServesType reports whether t is one of the descriptor's defining types.
func (d *Descriptor) ServesType(t reflect.Type) bool {
	for _, dt := range d.DefiningTypes {
		if dt == t {
			return true
		}
	}
	return false
}

// IsOpen reports whether the concrete type is not yet determined and
// must be specialized per request.
func (d *Descriptor) IsOpen() bool {
	return d.ConcreteType == nil && d.Specialize != nil
}

// derive produces the closed descriptor for a specialization of an open
// family. The derived descriptor serves exactly the requested defining
// type and shares the family's strategy payloads.
func (d *Descriptor) derive(concrete, requested reflect.Type) *Descriptor {
	closed := *d
	closed.ConcreteType = concrete
	closed.DefiningTypes = []reflect.Type{requested}
	closed.Specialize = nil
	closed.openSource = d
	return &closed
}

// Validate validates the descriptor's configuration. It is called by
// the registry on registration; callers constructing descriptors by
// hand can use it directly.
func (d *Descriptor) Validate() error {
	if d == nil {
		return ValidationError{Cause: ErrDescriptorNil}
	}

	if len(d.DefiningTypes) == 0 {
		return ValidationError{ServiceType: d.ConcreteType, Cause: ErrNoDefiningTypes}
	}

	for i, dt := range d.DefiningTypes {
		if dt == nil {
			return ValidationError{
				ServiceType: d.ConcreteType,
				Cause:       fmt.Errorf("defining type at index %d is nil", i),
			}
		}
	}

	if !d.Strategy.IsValid() {
		return StrategyError{Value: d.Strategy}
	}

	if !d.Lifetime.IsValid() {
		return LifetimeError{Value: d.Lifetime}
	}

	if !d.Activation.IsValid() {
		return ActivationError{Value: d.Activation}
	}

	// Transient services are always "ask again": without a provider
	// there is nothing to ask.
	if d.Lifetime == Transient && !d.Strategy.IsProviderBased() {
		return ValidationError{ServiceType: d.ConcreteType, Cause: ErrTransientStrategy}
	}

	if d.Activation == Eager && d.IsOpen() {
		return ValidationError{
			ServiceType: d.DefiningTypes[0],
			Cause:       fmt.Errorf("eager construction requires a closed concrete type"),
		}
	}

	switch d.Strategy {
	case Direct:
		if len(d.Constructors) == 0 {
			return ValidationError{ServiceType: d.ConcreteType, Cause: ErrNoConstructor}
		}
		for _, ctor := range d.Constructors {
			if err := validateConstructor(ctor); err != nil {
				return ValidationError{ServiceType: d.ConcreteType, Cause: err}
			}
		}
	case UseInitializer, UseInitializerAsync:
		if d.Initializer == nil {
			return ValidationError{
				ServiceType: d.ConcreteType,
				Cause:       fmt.Errorf("strategy %s requires an initializer", d.Strategy),
			}
		}
	case UseProvider, UseProviderAsync:
		if d.Provider == nil {
			return ValidationError{
				ServiceType: d.ConcreteType,
				Cause:       fmt.Errorf("strategy %s requires a provider", d.Strategy),
			}
		}
	case LocateExisting:
		if d.Load.Kind == LoadNone {
			return ValidationError{
				ServiceType: d.ConcreteType,
				Cause:       fmt.Errorf("LocateExisting requires a load spec"),
			}
		}
	}

	return nil
}

// validateConstructor checks that ctor is a function returning a value,
// optionally followed by an error.
func validateConstructor(ctor any) error {
	if ctor == nil {
		return fmt.Errorf("constructor cannot be nil")
	}

	t := reflect.TypeOf(ctor)
	if t.Kind() != reflect.Func {
		return fmt.Errorf("constructor must be a function, got %s", t.Kind())
	}

	switch t.NumOut() {
	case 1:
		if isErrorType(t.Out(0)) {
			return fmt.Errorf("constructor must return a value, not only an error")
		}
	case 2:
		if !isErrorType(t.Out(1)) {
			return fmt.Errorf("constructor's second return value must be an error")
		}
	default:
		return fmt.Errorf("constructor must return (value) or (value, error), got %d return values", t.NumOut())
	}

	return nil
}

// ValidationError indicates a descriptor failed validation.
type ValidationError struct {
	ServiceType reflect.Type
	Cause       error
}

func (e ValidationError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("%s: %v", formatType(e.ServiceType), e.Cause)
	}
	return e.Cause.Error()
}

func (e ValidationError) Unwrap() error {
	return e.Cause
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorType(t reflect.Type) bool {
	return t.Implements(errType)
}
