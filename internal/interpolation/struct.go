package interpolation

import (
	"errors"
	"fmt"
	"reflect"
)

// TagName marks the fields InterpolateStruct expands: `env_interpolation:"yes"`.
const TagName = "env_interpolation"

// InterpolateStruct expands environment references in the tagged fields of
// the struct v points to. Tagged string and []string fields are expanded in
// place; tagged struct, *struct and []*struct fields are walked recursively.
// All failures are collected and returned joined.
func InterpolateStruct(v any) error {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Pointer {
		return fmt.Errorf("expected pointer to struct, got %T", v)
	}
	if val.IsNil() {
		return nil
	}
	val = val.Elem()
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("expected pointer to struct, got %T", v)
	}

	typ := val.Type()
	var errs []error
	for i := range val.NumField() {
		field, sf := val.Field(i), typ.Field(i)
		if !field.CanSet() || sf.Tag.Get(TagName) != "yes" {
			continue
		}
		if err := expandValue(field); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", sf.Name, err))
		}
	}
	return errors.Join(errs...)
}

func expandValue(field reflect.Value) error {
	switch field.Kind() {
	case reflect.String:
		if field.String() == "" {
			return nil
		}
		s, err := ExpandEnvVars(field.String())
		if err != nil {
			return err
		}
		field.SetString(s)
		return nil

	case reflect.Struct:
		return InterpolateStruct(field.Addr().Interface())

	case reflect.Pointer:
		if field.IsNil() || field.Elem().Kind() != reflect.Struct {
			return nil
		}
		return InterpolateStruct(field.Interface())

	case reflect.Slice:
		var errs []error
		for j := range field.Len() {
			if err := expandValue(field.Index(j)); err != nil {
				errs = append(errs, fmt.Errorf("[%d]: %w", j, err))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}
