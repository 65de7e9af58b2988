package config

import (
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowlens/pkg/schema"
)

// settingsSchemaJSON is the JSON Schema for the user settings file.
// Embedded as a constant to avoid filesystem dependencies.
const settingsSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowlens.dev/schemas/settings.json",
  "type": "object",
  "properties": {
    "db_path": { "type": "string", "minLength": 1 },
    "log_level": {
      "type": "string",
      "enum": ["debug", "info", "warn", "error"]
    },
    "modules": {
      "type": "array",
      "minItems": 1,
      "items": { "type": "string", "minLength": 1 }
    },
    "include_spans": { "type": "boolean" },
    "assume_imported": { "type": "boolean" },
    "engine": {
      "type": "string",
      "enum": ["cel", "expr", "jq"]
    },
    "watch_schedule": { "type": "string", "minLength": 1 },
    "history_limit": { "type": "integer", "minimum": 0 }
  },
  "additionalProperties": false
}`

var (
	settingsSchemaOnce sync.Once
	settingsSchema     *jsonschema.Schema
	settingsSchemaErr  error
)

func compiledSettingsSchema() (*jsonschema.Schema, error) {
	settingsSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.AssertFormat()

		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(settingsSchemaJSON))
		if err != nil {
			settingsSchemaErr = fmt.Errorf("unmarshal settings schema: %w", err)
			return
		}
		if err := c.AddResource("https://flowlens.dev/schemas/settings.json", doc); err != nil {
			settingsSchemaErr = fmt.Errorf("add settings schema resource: %w", err)
			return
		}
		settingsSchema, settingsSchemaErr = c.Compile("https://flowlens.dev/schemas/settings.json")
	})
	return settingsSchema, settingsSchemaErr
}

// validateSettings checks raw settings JSON against the settings schema.
func validateSettings(data []byte) error {
	compiled, err := compiledSettingsSchema()
	if err != nil {
		return schema.NewError(schema.ErrCodeConfig, "settings schema unavailable").WithCause(err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeConfig, "settings file is not valid JSON").WithCause(err)
	}

	if err := compiled.Validate(doc); err != nil {
		return toConfigError(err)
	}
	return nil
}

// toConfigError converts a jsonschema.ValidationError into a FlowlensError
// with per-field violation messages.
func toConfigError(err error) *schema.FlowlensError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeConfig, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeConfig, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeConfig, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("settings validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeConfig, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
