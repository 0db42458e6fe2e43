package locus

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type registryServiceA struct{}
type registryServiceB struct{}

func newRegistryServiceA() *registryServiceA { return &registryServiceA{} }
func newRegistryServiceB() *registryServiceB { return &registryServiceB{} }

type registryAbstraction interface {
	registryMarker()
}

func (r *registryServiceA) registryMarker() {}
func (r *registryServiceB) registryMarker() {}

func directDescriptor(concrete reflect.Type, defining []reflect.Type, ctor any) *Descriptor {
	return &Descriptor{
		ConcreteType:  concrete,
		DefiningTypes: defining,
		Strategy:      Direct,
		Lifetime:      Singleton,
		Activation:    Lazy,
		Constructors:  []any{ctor},
	}
}

func TestRegistry_RegisterAndFind(t *testing.T) {
	r := NewRegistry(nil)

	concrete := reflect.TypeFor[*registryServiceA]()
	abstraction := reflect.TypeFor[registryAbstraction]()

	d := directDescriptor(concrete, []reflect.Type{concrete, abstraction}, newRegistryServiceA)
	require.NoError(t, r.Register(d))

	found, ok := r.FindByConcreteType(concrete)
	assert.True(t, ok)
	assert.Same(t, d, found)

	found, ok = r.FindByDefiningType(abstraction)
	assert.True(t, ok)
	assert.Same(t, d, found)

	_, ok = r.FindByDefiningType(reflect.TypeFor[*registryServiceB]())
	assert.False(t, ok)

	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Contains(abstraction))
	assert.False(t, r.Contains(reflect.TypeFor[string]()))
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	r := NewRegistry(nil)

	err := r.Register(&Descriptor{})

	var regErr RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "register", regErr.Operation)
	assert.ErrorIs(t, err, ErrNoDefiningTypes)
}

func TestRegistry_ConflictLastWins(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(zap.New(core))

	concrete := reflect.TypeFor[*registryServiceA]()
	first := directDescriptor(concrete, []reflect.Type{concrete}, newRegistryServiceA)
	second := directDescriptor(concrete, []reflect.Type{concrete}, newRegistryServiceA)

	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	found, ok := r.FindByDefiningType(concrete)
	require.True(t, ok)
	assert.Same(t, second, found, "most recent registration should win")

	entries := logs.FilterMessage("conflicting service registration, most recent wins").All()
	require.Len(t, entries, 1)
}

func TestRegistry_InterfaceConflictIsSilent(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(zap.New(core))

	abstraction := reflect.TypeFor[registryAbstraction]()

	a := directDescriptor(reflect.TypeFor[*registryServiceA](), []reflect.Type{abstraction}, newRegistryServiceA)
	b := directDescriptor(reflect.TypeFor[*registryServiceB](), []reflect.Type{abstraction}, newRegistryServiceB)

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	// Interfaces are expected to be re-bound; no conflict diagnostic.
	assert.Zero(t, logs.Len())

	found, ok := r.FindByDefiningType(abstraction)
	require.True(t, ok)
	assert.Same(t, b, found)
}

func TestRegistry_OpenFamilySpecialization(t *testing.T) {
	r := NewRegistry(nil)

	concrete := reflect.TypeFor[*registryServiceA]()
	family := &Descriptor{
		DefiningTypes: []reflect.Type{reflect.TypeFor[registryAbstraction]()},
		Strategy:      Direct,
		Lifetime:      Singleton,
		Activation:    Lazy,
		Constructors:  []any{newRegistryServiceA},
		Specialize: func(requested reflect.Type) (reflect.Type, bool) {
			if requested == reflect.TypeFor[registryAbstraction]() {
				return concrete, true
			}
			return nil, false
		},
	}
	require.NoError(t, r.Register(family))

	// The family itself is not directly indexed.
	assert.False(t, r.Contains(reflect.TypeFor[registryAbstraction]()))

	derived, ok := r.FindByDefiningType(reflect.TypeFor[registryAbstraction]())
	require.True(t, ok)
	assert.Equal(t, concrete, derived.ConcreteType)
	assert.False(t, derived.IsOpen())

	// Subsequent requests get the same cached closed descriptor.
	again, ok := r.FindByDefiningType(reflect.TypeFor[registryAbstraction]())
	require.True(t, ok)
	assert.Same(t, derived, again)

	// Requests the family declines stay unresolved.
	_, ok = r.FindByDefiningType(reflect.TypeFor[*registryServiceB]())
	assert.False(t, ok)
}

func TestRegistry_AllServing(t *testing.T) {
	r := NewRegistry(nil)

	abstraction := reflect.TypeFor[registryAbstraction]()
	concreteA := reflect.TypeFor[*registryServiceA]()
	concreteB := reflect.TypeFor[*registryServiceB]()

	a := directDescriptor(concreteA, []reflect.Type{concreteA, abstraction}, newRegistryServiceA)
	b := directDescriptor(concreteB, []reflect.Type{concreteB}, newRegistryServiceB)

	require.NoError(t, r.Register(a))
	require.NoError(t, r.Register(b))

	serving := r.AllServing(abstraction)
	require.Len(t, serving, 1)
	assert.Same(t, a, serving[0])

	assert.Len(t, r.All(), 2)
}

func TestRegistry_NilDescriptor(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Register(nil)
	assert.True(t, errors.Is(err, ErrDescriptorNil))
}
