package httpapi

import (
	"encoding/json"
	"testing"
)

func TestRawWireValueToStringAcceptsStringOrNumber(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"42"`, "42"},
		{"number", `42`, "42"},
		{"float-formatted-integer", `42.0`, "42.0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rawWireValueToString(json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("rawWireValueToString(%s) error = %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("rawWireValueToString(%s) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestRawWireValueToStringRejectsOtherTypes(t *testing.T) {
	for _, raw := range []string{``, `null`, `true`, `{}`, `[]`} {
		if _, err := rawWireValueToString(json.RawMessage(raw)); err == nil {
			t.Fatalf("rawWireValueToString(%s) expected error, got none", raw)
		}
	}
}

func TestValidateWSParamsRejectsMissingRequiredFields(t *testing.T) {
	if err := compileWSSchemas(); err != nil {
		t.Fatalf("compileWSSchemas() error = %v", err)
	}

	if err := validateWSParams(wsSchemas.join, nil); err == nil {
		t.Fatal("expected error for join params missing session_id")
	}
	if err := validateWSParams(wsSchemas.join, json.RawMessage(`{"session_id":"7"}`)); err != nil {
		t.Fatalf("valid join params rejected: %v", err)
	}

	if err := validateWSParams(wsSchemas.send, json.RawMessage(`{"message":"hi"}`)); err == nil {
		t.Fatal("expected error for send_message params missing token")
	}
	if err := validateWSParams(wsSchemas.send, json.RawMessage(`{"message":"hi","token":"t"}`)); err != nil {
		t.Fatalf("valid send_message params rejected: %v", err)
	}
}

func TestValidateWSParamsRejectsUnknownFields(t *testing.T) {
	if err := compileWSSchemas(); err != nil {
		t.Fatalf("compileWSSchemas() error = %v", err)
	}
	if err := validateWSParams(wsSchemas.join, json.RawMessage(`{"session_id":"7","extra":true}`)); err == nil {
		t.Fatal("expected error for unknown field in join params")
	}
}
