package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// BuildSchema returns a draft 2020-12 JSON Schema for the YAML config file.
// Property names follow the mapstructure tags and DefaultConfig values are
// attached as defaults. Every property is optional.
func BuildSchema() (*jsonschema.Schema, error) {
	t := reflect.TypeOf(Config{})
	schema, err := jsonschema.ForType(t, &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeOf(time.Duration(0)): {Type: "string", Description: "Go duration, e.g. 500ms or 5s"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build config schema: %w", err)
	}
	annotate(schema, reflect.ValueOf(*DefaultConfig()))

	if storage := schema.Properties["storage"]; storage != nil {
		if typ := storage.Properties["type"]; typ != nil {
			typ.Enum = toAny(StorageTypes)
		}
	}
	if ev := schema.Properties["events"]; ev != nil {
		if typ := ev.Properties["type"]; typ != nil {
			typ.Enum = toAny(EventsTypes)
		}
		if format := ev.Properties["format"]; format != nil {
			format.Enum = toAny([]string{"json", "protobuf"})
		}
	}
	if obs := schema.Properties["observability"]; obs != nil {
		if level := obs.Properties["log_level"]; level != nil {
			level.Enum = toAny([]string{"debug", "info", "warn", "error"})
		}
		if format := obs.Properties["log_format"]; format != nil {
			format.Enum = toAny([]string{"json", "text"})
		}
	}

	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "injurystore configuration"
	return schema, nil
}

// annotate renames struct properties to their mapstructure keys, drops the
// required lists and sets defaults from v.
func annotate(schema *jsonschema.Schema, v reflect.Value) {
	if schema == nil || v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	props := make(map[string]*jsonschema.Schema, len(schema.Properties))
	order := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		prop, ok := schema.Properties[field.Name]
		if !ok {
			continue
		}
		// shared TypeSchemas entries must not receive each other's defaults
		cp := *prop
		prop = &cp

		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			annotate(prop, fv)
		} else if !fv.IsZero() {
			if raw, ok := defaultValue(fv); ok {
				prop.Default = raw
			}
		}
		key := keyName(field)
		props[key] = prop
		order = append(order, key)
	}
	schema.Properties = props
	schema.PropertyOrder = order
	schema.Required = nil
}

func defaultValue(v reflect.Value) (json.RawMessage, bool) {
	var value any = v.Interface()
	if d, ok := value.(time.Duration); ok {
		value = d.String()
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func keyName(field reflect.StructField) string {
	if tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ","); tag != "" && tag != "-" {
		return tag
	}
	return strings.ToLower(field.Name)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
