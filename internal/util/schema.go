package util

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// ValidationError reports the first payload field that failed validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// SchemaValidator checks struct payloads against the JSON schema reflected
// from their type. Fields without omitempty are required; a required string
// or array must also be non-empty. Schemas are reflected once per type.
type SchemaValidator struct {
	reflector *jsonschema.Reflector

	mu      sync.Mutex
	schemas map[reflect.Type]*jsonschema.Schema
}

// NewSchemaValidator returns a validator with an empty schema cache.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{
		reflector: &jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
		},
		schemas: make(map[reflect.Type]*jsonschema.Schema),
	}
}

// Schema returns the JSON schema for payload's struct type, or nil when
// payload is not a struct or pointer to struct.
func (v *SchemaValidator) Schema(payload any) *jsonschema.Schema {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.schemas[t]; ok {
		return s
	}

	s := v.reflector.ReflectFromType(t)
	v.schemas[t] = s

	return s
}

// Validate returns a *ValidationError for the first required field that is
// missing or empty. Non-struct payloads always pass.
func (v *SchemaValidator) Validate(payload any) error {
	s := v.Schema(payload)
	if s == nil || len(s.Required) == 0 {
		return nil
	}

	if rv := reflect.ValueOf(payload); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return &ValidationError{Field: "$", Message: "payload is nil"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return &ValidationError{Field: "$", Message: err.Error()}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	for _, name := range s.Required {
		value, ok := fields[name]
		if !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}

		prop, _ := s.Properties.Get(name)
		if prop == nil {
			continue
		}

		switch prop.Type {
		case "string":
			if value == "" {
				return &ValidationError{Field: name, Value: value, Message: "required field is empty"}
			}
		case "array":
			if items, _ := value.([]any); len(items) == 0 {
				return &ValidationError{Field: name, Message: "required field is empty"}
			}
		}
	}

	return nil
}
