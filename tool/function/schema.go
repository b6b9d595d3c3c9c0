//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"reflect"
	"strings"

	"trpc.group/trpc-go/trpc-workflow-go/tool"
)

// generateJSONSchema derives a basic JSON schema from t. Struct fields follow
// their json tags; a `description` tag is copied onto the property. Fields
// that are neither pointers nor omitempty are required.
func generateJSONSchema(t reflect.Type) *tool.Schema {
	return schemaFor(t, map[reflect.Type]bool{})
}

func schemaFor(t reflect.Type, seen map[reflect.Type]bool) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: schemaFor(t.Elem(), seen)}
	case reflect.Map:
		return &tool.Schema{Type: "object", AdditionalProperties: schemaFor(t.Elem(), seen)}
	case reflect.Struct:
		if seen[t] {
			// Recursive types collapse to a free-form object.
			return &tool.Schema{Type: "object"}
		}
		seen[t] = true
		defer delete(seen, t)
		schema := &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{}}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			name, omitEmpty, skip := jsonFieldName(field)
			if skip {
				continue
			}
			prop := schemaFor(field.Type, seen)
			if desc := field.Tag.Get("description"); desc != "" {
				prop.Description = desc
			}
			schema.Properties[name] = prop
			if field.Type.Kind() != reflect.Ptr && !omitEmpty {
				schema.Required = append(schema.Required, name)
			}
		}
		return schema
	default:
		return &tool.Schema{Type: "object"}
	}
}

func jsonFieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
