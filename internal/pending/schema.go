package pending

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchema returns the JSON-Schema a pending record file must satisfy.
func recordSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status":      map[string]any{"type": "string", "enum": []string{"pending"}},
			"request_id":  map[string]any{"type": "string", "minLength": 1},
			"dispatch_id": map[string]any{"type": "string"},
			"sent_file":   map[string]any{"type": "string", "minLength": 1},
			"page_numbers": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "integer", "minimum": 1},
			},
			"created_at": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"status", "request_id", "sent_file", "page_numbers", "created_at"},
	}
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compileRecordSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(recordSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("pending-record.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("pending-record.json")
	})
	return compiledSchema, schemaErr
}

// ValidateRecordJSON checks raw record bytes against the pending-record schema.
func ValidateRecordJSON(data []byte) error {
	schema, err := compileRecordSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
