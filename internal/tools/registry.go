// Package tools implements Concord's Tool Registry & Executor: schema
// validation at registration time, and a bounded per-user worker pool for
// concurrent tool execution during a consensus turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/concordhq/concord/internal/apperr"
	"github.com/concordhq/concord/internal/providers"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is one callable capability exposed to the Tool Loop Driver.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, userID string, params json.RawMessage) (*ToolResult, error)
	// Writes reports whether this tool mutates external state and may
	// therefore require approval before execution (P4/Drive writes).
	Writes() bool
}

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Content string
	IsError bool
}

// Registry holds schema-validated tools keyed by name.
//
// Invariant P4: a tool's schema must set additionalProperties:false, every
// property must appear in "required", and any nullable property's enum
// must list a literal null. Registration fails closed if the schema
// violates draft-07 or these constraints aren't satisfiable by the
// validator's compile step.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool), schemas: make(map[string]*jsonschema.Schema)}
}

// Register compiles tool's schema and adds it to the registry. An
// incompatible schema is rejected rather than silently accepted.
func (r *Registry) Register(tool Tool) error {
	schema, err := jsonschema.CompileString(tool.Name(), string(tool.Schema()))
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, "tools.registry", err, fmt.Sprintf("tool %q has an invalid schema", tool.Name()))
	}
	if err := validateP4(tool.Schema()); err != nil {
		return apperr.Wrap(apperr.KindValidation, "tools.registry", err, fmt.Sprintf("tool %q violates the P4 schema convention", tool.Name()))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	r.schemas[tool.Name()] = schema
	return nil
}

// validateP4 enforces the schema convention P4 relies on: the schema is a
// draft-07 object schema with additionalProperties:false, every declared
// property appears in "required" (optional fields are expressed as
// nullable types, never omitted from required), and any property with an
// enum that allows null lists the literal null among its enum values.
func validateP4(raw json.RawMessage) error {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema is not a JSON object: %w", err)
	}
	if t, _ := doc["type"].(string); t != "object" {
		return fmt.Errorf(`schema must declare top-level "type":"object"`)
	}
	if ap, ok := doc["additionalProperties"].(bool); !ok || ap {
		return fmt.Errorf(`schema must set "additionalProperties":false`)
	}

	props, _ := doc["properties"].(map[string]any)
	required := make(map[string]bool, len(props))
	for _, r := range asSlice(doc["required"]) {
		if name, ok := r.(string); ok {
			required[name] = true
		}
	}

	for name, def := range props {
		if !required[name] {
			return fmt.Errorf("property %q must be listed in \"required\" (mark it nullable instead of omitting it)", name)
		}
		propDef, ok := def.(map[string]any)
		if !ok {
			continue
		}
		enum := asSlice(propDef["enum"])
		if len(enum) == 0 || !typeAllowsNull(propDef["type"]) {
			continue
		}
		hasNull := false
		for _, v := range enum {
			if v == nil {
				hasNull = true
				break
			}
		}
		if !hasNull {
			return fmt.Errorf("property %q allows null but its enum omits the null literal", name)
		}
	}
	return nil
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func typeAllowsNull(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "null"
	case []any:
		for _, x := range t {
			if s, _ := x.(string); s == "null" {
				return true
			}
		}
	}
	return false
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Descriptors returns every registered tool as a provider-agnostic
// ToolDescriptor, suitable for handing to an Adapter.Generate call.
func (r *Registry) Descriptors() []providers.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]providers.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, providers.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return out
}

// Validate checks params against name's compiled schema without executing
// the tool.
func (r *Registry) Validate(name string, params json.RawMessage) error {
	r.mu.RLock()
	schema, ok := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return apperr.New(apperr.KindValidation, "tools.registry", "tool not found: "+name)
	}
	var payload any
	if err := json.Unmarshal(params, &payload); err != nil {
		return apperr.Wrap(apperr.KindValidation, "tools.registry", err, "tool arguments are not valid JSON")
	}
	if err := schema.Validate(payload); err != nil {
		return apperr.Wrap(apperr.KindValidation, "tools.registry", err, "tool arguments failed schema validation")
	}
	return nil
}
