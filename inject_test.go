package locus

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInjectDirective(t *testing.T) {
	tests := []struct {
		directive string
		inject    bool
		optional  bool
		wantErr   bool
	}{
		{"inject", true, false, false},
		{"inject,optional", true, true, false},
		{"inject, optional", true, true, false},
		{"", false, false, false},
		{"optional", false, false, true},
		{"inject,bogus", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.directive, func(t *testing.T) {
			inject, optional, err := parseInjectDirective(tt.directive)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.inject, inject)
			assert.Equal(t, tt.optional, optional)
		})
	}
}

type unexportedTagTarget struct {
	clock *engineClock `locus:"inject"`
}

func TestInjectFields_UnexportedTaggedField(t *testing.T) {
	r := newTestResolver(nil, nil)
	mustRegister(t, r, singletonOf(newEngineClock))

	rc := newResolutionContext(context.Background(), nil)
	err := r.injectFields(rc, &unexportedTagTarget{})

	var validation ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, reflect.TypeFor[unexportedTagTarget](), validation.ServiceType)
}

func TestInjectFields_NonStructValuesIgnored(t *testing.T) {
	r := newTestResolver(nil, nil)
	rc := newResolutionContext(context.Background(), nil)

	assert.NoError(t, r.injectFields(rc, nil))
	assert.NoError(t, r.injectFields(rc, 42))
	n := 42
	assert.NoError(t, r.injectFields(rc, &n))
}

func TestPlanFor_Caches(t *testing.T) {
	structType := reflect.TypeFor[taggedClient]()

	first, err := planFor(structType)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := planFor(structType)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
