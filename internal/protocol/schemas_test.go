package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"creepair.dev/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := jsonschema.Compile(filepath.Join("schemas", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}
	check := func(s *jsonschema.Schema, raw string, valid bool) {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("sample %s: %v", raw, err)
		}
		err := s.Validate(v)
		if valid && err != nil {
			t.Fatalf("validate %s: %v", raw, err)
		}
		if !valid && err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}

	cmd := compile("cmd.schema.json")
	check(cmd, `{"type":"CMD","cmd":"period","value":20}`, true)
	check(cmd, `{"type":"CMD","protocol_version":"1.0","req_id":"r1","cmd":"test"}`, true)
	check(cmd, `{"type":"CMD","cmd":"state","value":-3}`, true)
	check(cmd, `{"type":"CMD","cmd":"process","value":0}`, false)
	check(cmd, `{"type":"CMD","cmd":"period"}`, false)
	check(cmd, `{"type":"CMD","cmd":"period","value":2,"extra":true}`, false)

	result := compile("result.schema.json")
	check(result, `{"type":"RESULT","ok":true,"state":{"live_records":0}}`, true)
	check(result, `{"type":"RESULT","ok":false,"code":"E_BAD_REQUEST","message":"value must be positive"}`, true)
	check(result, `{"type":"RESULT","ok":false}`, false)
	check(result, `{"type":"RESULT","ok":false,"code":"E_NOPE"}`, false)
}

func TestDecodeCmd(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"period", `{"type":"CMD","cmd":"period","value":20}`, ""},
		{"test", `{"type":"CMD","cmd":"test"}`, ""},
		{"bad json", `{"type":`, protocol.ErrProtoBadRequest},
		{"wrong type", `{"type":"HELLO"}`, protocol.ErrProtoBadRequest},
		{"unknown", `{"type":"CMD","cmd":"explode"}`, protocol.ErrUnknownCommand},
		{"zero period", `{"type":"CMD","cmd":"period","value":0}`, protocol.ErrBadRequest},
		{"negative batch", `{"type":"CMD","cmd":"process","value":-1}`, protocol.ErrBadRequest},
		{"missing value", `{"type":"CMD","cmd":"process"}`, protocol.ErrBadRequest},
		{"fractional", `{"type":"CMD","cmd":"process","value":1.5}`, protocol.ErrBadRequest},
	}
	for _, tc := range cases {
		msg, perr := protocol.DecodeCmd([]byte(tc.raw))
		if tc.code == "" {
			if perr != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, perr)
			}
			continue
		}
		if perr == nil || perr.Code != tc.code {
			t.Fatalf("%s: expected %s, got %v (msg=%+v)", tc.name, tc.code, perr, msg)
		}
	}

	msg, perr := protocol.DecodeCmd([]byte(`{"type":"CMD","req_id":"r7","cmd":"process","value":8}`))
	if perr != nil || msg.ReqID != "r7" || msg.Value == nil || *msg.Value != 8 {
		t.Fatalf("unexpected decode %+v err=%v", msg, perr)
	}
}

func TestValidateResult(t *testing.T) {
	if err := protocol.ValidateResult(protocol.OK("r1", "done", map[string]int{"live_records": 1})); err != nil {
		t.Fatalf("ok result: %v", err)
	}
	if err := protocol.ValidateResult(protocol.Fail("r1", protocol.ErrUnknownCommand, "nope")); err != nil {
		t.Fatalf("fail result: %v", err)
	}
	if err := protocol.ValidateResult(protocol.Fail("r1", "", "missing code")); err == nil {
		t.Fatalf("expected failure without code to be rejected")
	}
}
