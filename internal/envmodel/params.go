package envmodel

import (
	"encoding/json"
	"fmt"

	"github.com/cuenv/cuenv/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// BuildParamSchema compiles a task's declared ParamSchema into a JSON Schema
// document and compiles it, the same AddResource-then-Compile pattern used
// for frontmatter validation elsewhere in this toolchain.
func BuildParamSchema(schema model.ParamSchema) (*jsonschema.Schema, error) {
	properties := map[string]any{}
	required := []string{}

	for name, p := range schema.Named {
		properties[name] = paramSchemaFragment(p)
		if p.Required {
			required = append(required, name)
		}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	compiler := jsonschema.NewCompiler()
	url := "mem://cuenv/task-params.json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("envmodel: add param schema resource: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("envmodel: compile param schema: %w", err)
	}
	return compiled, nil
}

func paramSchemaFragment(p model.Param) map[string]any {
	frag := map[string]any{"type": jsonSchemaType(p.Type)}
	if p.Default != "" {
		frag["default"] = p.Default
	}
	return frag
}

func jsonSchemaType(t string) string {
	switch t {
	case "int":
		return "integer"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

// ValidateParams validates a resolved set of named parameter values against
// a task's declared ParamSchema. No CLI command calls it; `cuenv task` does
// not validate named arguments against the schema.
func ValidateParams(schema model.ParamSchema, values map[string]any) error {
	compiled, err := BuildParamSchema(schema)
	if err != nil {
		return err
	}

	// Round-trip through JSON to normalize Go types (int64 vs float64, etc.)
	// the same way the compiler's own frontmatter validation does.
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("envmodel: marshal params: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("envmodel: unmarshal params: %w", err)
	}

	if err := compiled.Validate(normalized); err != nil {
		return fmt.Errorf("envmodel: parameter validation failed: %w", err)
	}
	return nil
}
