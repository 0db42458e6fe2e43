package locus

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// injectTag marks struct fields that receive services after zero-
// argument construction. The same path serves ordinary clients that
// declare capability needs through their fields.
//
//	type Player struct {
//	    Audio AudioService `locus:"inject"`
//	    Debug DebugOverlay `locus:"inject,optional"`
//	}
const injectTag = "locus"

// injectField is one resolved-at-analysis-time injection target.
type injectField struct {
	index    int
	name     string
	fieldTyp reflect.Type
	optional bool
}

// injectPlans caches the per-struct analysis so tag parsing and field
// walking happen once per type, not once per construction.
var injectPlans sync.Map // reflect.Type -> []injectField, or error

func planFor(structType reflect.Type) ([]injectField, error) {
	if cached, ok := injectPlans.Load(structType); ok {
		switch v := cached.(type) {
		case []injectField:
			return v, nil
		case error:
			return nil, v
		}
	}

	plan, err := analyzeStruct(structType)
	if err != nil {
		injectPlans.Store(structType, err)
		return nil, err
	}

	injectPlans.Store(structType, plan)
	return plan, nil
}

func analyzeStruct(structType reflect.Type) ([]injectField, error) {
	var plan []injectField

	for i := range structType.NumField() {
		field := structType.Field(i)

		directive, ok := field.Tag.Lookup(injectTag)
		if !ok {
			continue
		}

		want, optional, err := parseInjectDirective(directive)
		if err != nil {
			return nil, ValidationError{ServiceType: structType, Cause: err}
		}
		if !want {
			continue
		}

		if !field.IsExported() {
			return nil, ValidationError{
				ServiceType: structType,
				Cause:       fmt.Errorf("field %s is tagged for injection but not exported", field.Name),
			}
		}

		plan = append(plan, injectField{
			index:    i,
			name:     field.Name,
			fieldTyp: field.Type,
			optional: optional,
		})
	}

	return plan, nil
}

// injectFields resolves and sets every tagged field of a struct value.
// The value must be a pointer to a struct for any injection to happen;
// anything else is left untouched.
func (r *resolver) injectFields(rc *resolutionContext, value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		return nil
	}

	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return nil
	}

	structType := elem.Type()

	plan, err := planFor(structType)
	if err != nil {
		return err
	}

	for _, field := range plan {
		resolved, err := r.resolve(rc, field.fieldTyp)
		if err != nil {
			if field.optional {
				continue
			}
			return MissingDependencyError{ServiceType: structType, DependencyType: field.fieldTyp}
		}

		elem.Field(field.index).Set(reflect.ValueOf(resolved))
	}

	return nil
}

func parseInjectDirective(directive string) (inject, optional bool, err error) {
	for part := range strings.SplitSeq(directive, ",") {
		switch strings.TrimSpace(part) {
		case "inject":
			inject = true
		case "optional":
			optional = true
		case "":
		default:
			return false, false, fmt.Errorf("unknown %s tag directive %q", injectTag, part)
		}
	}

	if optional && !inject {
		return false, false, fmt.Errorf("%s tag %q: optional requires inject", injectTag, directive)
	}

	return inject, optional, nil
}
