package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildSchema(t *testing.T) {
	schema, err := BuildSchema()
	if err != nil {
		t.Fatalf("BuildSchema: %v", err)
	}
	if len(schema.Required) != 0 {
		t.Fatalf("root properties should be optional, got required %v", schema.Required)
	}

	storage := schema.Properties["storage"]
	if storage == nil {
		t.Fatalf("missing storage section, have %v", keys(schema.Properties))
	}
	for _, key := range []string{"type", "key", "operation_timeout", "circuit_breaker", "search", "sql"} {
		if storage.Properties[key] == nil {
			t.Errorf("missing storage.%s", key)
		}
	}
	if got := string(storage.Properties["key"].Default); got != `"injuries"` {
		t.Errorf("storage.key default = %s", got)
	}
	if got := string(storage.Properties["operation_timeout"].Default); got != `"5s"` {
		t.Errorf("operation_timeout default = %s", got)
	}
	if len(storage.Properties["type"].Enum) != len(StorageTypes) {
		t.Errorf("storage.type enum = %v", storage.Properties["type"].Enum)
	}

	// durations share one type schema; defaults must stay per field
	httpSection := schema.Properties["http"]
	if got := string(httpSection.Properties["idle_timeout"].Default); got != `"2m0s"` {
		t.Errorf("http.idle_timeout default = %s", got)
	}
	if got := string(httpSection.Properties["read_timeout"].Default); got != `"30s"` {
		t.Errorf("http.read_timeout default = %s", got)
	}

	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"ServiceConfig"`) || strings.Contains(string(data), `"Storage"`) {
		t.Errorf("Go field names leaked into schema: %s", data)
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
