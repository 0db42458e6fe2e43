package locus

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that should be wrapped in typed errors when
// returned. Never return these directly to users - always wrap them
// with context.

var (
	// Resolution errors.
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceTypeNil  = errors.New("service type cannot be nil")

	// Lifecycle errors.
	ErrRuntimeClosed  = errors.New("runtime has been closed")
	ErrRuntimeNil     = errors.New("runtime cannot be nil")
	ErrAlreadyBuilt   = errors.New("runtime has already been built")
	ErrEntryWithdrawn = errors.New("scope entry has been withdrawn")

	// Registration errors.
	ErrDescriptorNil     = errors.New("descriptor cannot be nil")
	ErrNoDefiningTypes   = errors.New("descriptor must declare at least one defining type")
	ErrNoConstructor     = errors.New("descriptor has no constructor for direct construction")
	ErrNilScopedValue    = errors.New("scoped registration value cannot be nil")
	ErrTransientStrategy = errors.New("transient services require a provider-based construction strategy")
)

var (
	_ error = LifetimeError{}
	_ error = ActivationError{}
	_ error = VisibilityError{}
	_ error = StrategyError{}
	_ error = RegistrationError{}
	_ error = ResolutionError{}
	_ error = UnresolvableTypeError{}
	_ error = TypeMismatchError{}
	_ error = CircularDependencyError{}
	_ error = MissingDependencyError{}
	_ error = ConstructionError{}
	_ error = ConstructionPanicError{}
	_ error = ProviderExhaustedError{}
	_ error = DisposalError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================
// Always use these typed errors instead of fmt.Errorf() or errors.New()
// for domain-specific errors. Wrap sentinel errors with these types.

// LifetimeError indicates an invalid service lifetime value.
type LifetimeError struct {
	Value any
}

func (e LifetimeError) Error() string {
	return fmt.Sprintf("invalid service lifetime: %v", e.Value)
}

// ActivationError indicates an invalid activation value.
type ActivationError struct {
	Value any
}

func (e ActivationError) Error() string {
	return fmt.Sprintf("invalid activation: %v", e.Value)
}

// VisibilityError indicates an invalid visibility rule value.
type VisibilityError struct {
	Value any
}

func (e VisibilityError) Error() string {
	return fmt.Sprintf("invalid visibility rule: %v", e.Value)
}

// StrategyError indicates an invalid construction strategy value.
type StrategyError struct {
	Value any
}

func (e StrategyError) Error() string {
	return fmt.Sprintf("invalid construction strategy: %v", e.Value)
}

// RegistrationError wraps errors during descriptor registration.
type RegistrationError struct {
	ServiceType reflect.Type
	Operation   string // "register", "validate", "specialize", etc.
	Cause       error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, formatType(e.ServiceType), e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ResolutionError is the structured failure handed to top-level callers.
// Failures raised while resolving sub-dependencies during another
// service's construction are attributed to the outermost service being
// constructed, so a single root cause produces one diagnostic.
type ResolutionError struct {
	// DefiningType is the abstraction the caller asked for.
	DefiningType reflect.Type

	// Cause is the underlying typed failure.
	Cause error
}

func (e ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s: %v", formatType(e.DefiningType), e.Cause)
}

func (e ResolutionError) Unwrap() error {
	return e.Cause
}

// UnresolvableTypeError indicates the engine could not determine a
// closed concrete type to build for the request.
type UnresolvableTypeError struct {
	DefiningType reflect.Type
	Source       reflect.Type // the descriptor's declaring source, if known
}

func (e UnresolvableTypeError) Error() string {
	if e.Source != nil {
		return fmt.Sprintf("cannot determine concrete type for %s (declared by %s)",
			formatType(e.DefiningType), formatType(e.Source))
	}
	return fmt.Sprintf("cannot determine concrete type for %s", formatType(e.DefiningType))
}

// TypeMismatchError indicates a resolved value cannot be handed out as
// the requested type.
type TypeMismatchError struct {
	Requested reflect.Type
	Got       reflect.Type
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("resolved value of type %s does not satisfy %s",
		formatType(e.Got), formatType(e.Requested))
}

// CircularDependencyError indicates a service was requested while it was
// already being constructed in the same resolution call.
type CircularDependencyError struct {
	ServiceType reflect.Type
	Chain       []reflect.Type
}

func (e CircularDependencyError) Error() string {
	if len(e.Chain) == 0 {
		return fmt.Sprintf("circular dependency detected for %s", formatType(e.ServiceType))
	}

	parts := make([]string, 0, len(e.Chain)+1)
	for _, t := range e.Chain {
		parts = append(parts, formatType(t))
	}
	parts = append(parts, formatType(e.ServiceType))

	return fmt.Sprintf("circular dependency detected: %s", strings.Join(parts, " -> "))
}

// MissingDependencyError indicates a required dependency could not be
// resolved. ServiceType is the service whose construction needed the
// dependency; it is nil when the missing type was requested directly.
type MissingDependencyError struct {
	ServiceType    reflect.Type
	DependencyType reflect.Type
}

func (e MissingDependencyError) Error() string {
	if e.ServiceType != nil {
		return fmt.Sprintf("%s requires %s, which is not registered",
			formatType(e.ServiceType), formatType(e.DependencyType))
	}
	return fmt.Sprintf("%s is not registered", formatType(e.DependencyType))
}

func (e MissingDependencyError) Is(target error) bool {
	return target == ErrServiceNotFound
}

// ConstructionError wraps a failure raised by user construction code:
// a constructor, initializer, or provider returned an error.
type ConstructionError struct {
	ServiceType reflect.Type
	Strategy    Strategy
	Cause       error
}

func (e ConstructionError) Error() string {
	return fmt.Sprintf("construction of %s failed (%s): %v",
		formatType(e.ServiceType), e.Strategy, e.Cause)
}

func (e ConstructionError) Unwrap() error {
	return e.Cause
}

// ConstructionPanicError indicates user construction code panicked.
// It captures the panic value and stack trace for debugging.
type ConstructionPanicError struct {
	ServiceType reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructionPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("construction of %s panicked: %v", formatType(e.ServiceType), e.Panic))

	if len(e.Stack) > 0 {
		b.WriteString("\n\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// ProviderExhaustedError indicates provider unwrapping bottomed out
// without producing a value that satisfies the descriptor's defining
// types.
type ProviderExhaustedError struct {
	ServiceType  reflect.Type
	DefiningType reflect.Type
}

func (e ProviderExhaustedError) Error() string {
	return fmt.Sprintf("provider chain for %s produced no value satisfying %s",
		formatType(e.ServiceType), formatType(e.DefiningType))
}

// DisposalError aggregates teardown errors. Every teardown action runs
// even when earlier ones fail; the failures are collected here.
type DisposalError struct {
	Errors []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("teardown failed: %v", e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("teardown failed with %d errors:", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Interface, reflect.Struct:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
