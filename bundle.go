package locus

import "fmt"

// BundleOption represents a registration action within a bundle.
type BundleOption func(*Runtime) error

// NewBundle groups related registrations under a name so subsystems can
// ship their wiring as one unit. Bundles nest.
//
// Example:
//
//	var AudioBundle = locus.NewBundle("audio",
//	    locus.Provide(&locus.Descriptor{
//	        ConcreteType:  reflect.TypeFor[*Mixer](),
//	        DefiningTypes: []reflect.Type{reflect.TypeFor[AudioService]()},
//	        Strategy:      Direct,
//	        Lifetime:      Singleton,
//	        Activation:    Eager,
//	        Constructors:  []any{NewMixer},
//	    }),
//	)
func NewBundle(name string, options ...BundleOption) BundleOption {
	return func(rt *Runtime) error {
		for _, opt := range options {
			if opt == nil {
				continue
			}

			if err := opt(rt); err != nil {
				return BundleError{Bundle: name, Cause: err}
			}
		}

		return nil
	}
}

// Provide registers a descriptor when the bundle is applied.
func Provide(d *Descriptor) BundleOption {
	return func(rt *Runtime) error {
		return rt.Register(d)
	}
}

// ProvideScoped registers a scoped value or provider when the bundle is
// applied.
func ProvideScoped(value any, visibility Visibility, registerer Node) BundleOption {
	return func(rt *Runtime) error {
		_, err := rt.RegisterScoped(value, visibility, registerer)
		return err
	}
}

// Apply runs the bundle options against the runtime, stopping at the
// first failure.
func (rt *Runtime) Apply(options ...BundleOption) error {
	for _, opt := range options {
		if opt == nil {
			continue
		}

		if err := opt(rt); err != nil {
			return err
		}
	}

	return nil
}

// BundleError wraps a registration failure with the bundle it came
// from. Nested bundles produce nested BundleErrors, so the full path to
// the failing registration is visible in the message.
type BundleError struct {
	Bundle string
	Cause  error
}

func (e BundleError) Error() string {
	return fmt.Sprintf("bundle %q: %v", e.Bundle, e.Cause)
}

func (e BundleError) Unwrap() error { return e.Cause }
