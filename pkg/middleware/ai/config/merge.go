// Package config merges provider configuration structs.
package config

import (
	"reflect"
)

// Merge copies every non-zero field of source into the same-named field of
// target. Empty slices and maps count as zero. Both arguments must be
// structs or pointers to structs; anything else is ignored.
//
// Example:
//
//	cfg := openai.DefaultConfig()
//	config.Merge(cfg, &openai.Config{BaseURL: "http://localhost:8000/v1"})
func Merge(target, source any) {
	if source == nil {
		return
	}

	targetVal := reflect.Indirect(reflect.ValueOf(target))
	sourceVal := reflect.Indirect(reflect.ValueOf(source))
	if targetVal.Kind() != reflect.Struct || sourceVal.Kind() != reflect.Struct {
		return
	}

	for i := 0; i < sourceVal.NumField(); i++ {
		sourceField := sourceVal.Field(i)
		targetField := targetVal.FieldByName(sourceVal.Type().Field(i).Name)
		if !targetField.IsValid() || !targetField.CanSet() || targetField.Type() != sourceField.Type() {
			continue
		}

		switch sourceField.Kind() {
		case reflect.Slice, reflect.Map:
			if !sourceField.IsNil() && sourceField.Len() > 0 {
				targetField.Set(sourceField)
			}
		default:
			if !sourceField.IsZero() {
				targetField.Set(sourceField)
			}
		}
	}
}
