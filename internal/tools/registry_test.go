package tools

import (
	"context"
	"encoding/json"
	"testing"
)

type p4Tool struct {
	name   string
	schema string
}

func (p *p4Tool) Name() string                { return p.name }
func (p *p4Tool) Description() string         { return "p4 test tool" }
func (p *p4Tool) Schema() json.RawMessage     { return json.RawMessage(p.schema) }
func (p *p4Tool) Writes() bool                { return false }
func (p *p4Tool) Execute(context.Context, string, json.RawMessage) (*ToolResult, error) {
	return &ToolResult{Content: "ok"}, nil
}

func TestRegisterRejectsOptionalPropertyOmittedFromRequired(t *testing.T) {
	r := NewRegistry()
	tool := &p4Tool{name: "bad", schema: `{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": "integer"}
		},
		"required": ["query"],
		"additionalProperties": false
	}`}
	if err := r.Register(tool); err == nil {
		t.Fatal("expected registration to fail: limit is not in required")
	}
}

func TestRegisterRejectsMissingAdditionalPropertiesFalse(t *testing.T) {
	r := NewRegistry()
	tool := &p4Tool{name: "bad", schema: `{
		"type": "object",
		"properties": {"query": {"type": "string"}},
		"required": ["query"]
	}`}
	if err := r.Register(tool); err == nil {
		t.Fatal("expected registration to fail: additionalProperties:false missing")
	}
}

func TestRegisterRejectsNullableEnumMissingNullLiteral(t *testing.T) {
	r := NewRegistry()
	tool := &p4Tool{name: "bad", schema: `{
		"type": "object",
		"properties": {
			"mode": {"type": ["string", "null"], "enum": ["fast", "slow"]}
		},
		"required": ["mode"],
		"additionalProperties": false
	}`}
	if err := r.Register(tool); err == nil {
		t.Fatal("expected registration to fail: nullable enum omits null")
	}
}

func TestRegisterAcceptsFullyConformantSchema(t *testing.T) {
	r := NewRegistry()
	tool := &p4Tool{name: "good", schema: `{
		"type": "object",
		"properties": {
			"query": {"type": "string"},
			"limit": {"type": ["integer", "null"]},
			"mode": {"type": ["string", "null"], "enum": ["fast", "slow", null]}
		},
		"required": ["query", "limit", "mode"],
		"additionalProperties": false
	}`}
	if err := r.Register(tool); err != nil {
		t.Fatalf("expected a P4-conformant schema to register, got: %v", err)
	}
}
