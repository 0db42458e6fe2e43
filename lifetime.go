package locus

import (
	"encoding/json"
	"fmt"
)

// Lifetime specifies how long a resolved service value lives.
// The lifetime determines whether the engine caches the produced value.
type Lifetime int

const (
	// Singleton specifies that a single instance of the service is created.
	// The instance is created on first request (or at Build for eager
	// descriptors) and cached for the lifetime of the runtime.
	Singleton Lifetime = iota

	// Transient specifies that a fresh value is produced per request.
	// Transient services are never cached and must use a provider-based
	// construction strategy: asking again is the whole point.
	Transient
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid checks if the lifetime is valid.
func (l Lifetime) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Singleton", "singleton":
		*l = Singleton
	case "Transient", "transient":
		*l = Transient
	default:
		return LifetimeError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}

// Activation specifies when a descriptor is first constructed.
type Activation int

const (
	// Lazy defers construction until the service is first requested.
	Lazy Activation = iota

	// Eager constructs the service when the runtime is built. Eager
	// construction failures are reported individually; one failing
	// descriptor does not halt the others.
	Eager
)

// String returns the string representation of the Activation.
func (a Activation) String() string {
	switch a {
	case Lazy:
		return "Lazy"
	case Eager:
		return "Eager"
	default:
		return fmt.Sprintf("Unknown(%d)", int(a))
	}
}

// IsValid checks if the activation is valid.
func (a Activation) IsValid() bool {
	return a >= Lazy && a <= Eager
}

// MarshalText implements encoding.TextMarshaler.
func (a Activation) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Activation) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Lazy", "lazy":
		*a = Lazy
	case "Eager", "eager":
		*a = Eager
	default:
		return ActivationError{Value: string(text)}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Activation) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Activation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return a.UnmarshalText([]byte(s))
}
