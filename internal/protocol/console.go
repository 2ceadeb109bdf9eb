package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Console commands.
const (
	CmdPeriod  = "period"
	CmdProcess = "process"
	CmdTest    = "test"
	CmdState   = "state"
	CmdSave    = "save"
	CmdDrain   = "drain"
)

var knownCmds = map[string]struct{}{
	CmdPeriod:  {},
	CmdProcess: {},
	CmdTest:    {},
	CmdState:   {},
	CmdSave:    {},
	CmdDrain:   {},
}

// CMD (admin -> server)
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
	Cmd             string `json:"cmd"`
	Value           *int   `json:"value,omitempty"`
}

// RESULT (server -> admin)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	State           any    `json:"state,omitempty"`
}

func NewCmd(cmd string, value *int) CmdMsg {
	return CmdMsg{Type: TypeCmd, ProtocolVersion: Version, Cmd: cmd, Value: value}
}

func OK(reqID, message string, state any) ResultMsg {
	return ResultMsg{Type: TypeResult, ProtocolVersion: Version, ReqID: reqID, OK: true, Message: message, State: state}
}

func Fail(reqID, code, message string) ResultMsg {
	return ResultMsg{Type: TypeResult, ProtocolVersion: Version, ReqID: reqID, Code: code, Message: message}
}

//go:embed schemas/cmd.schema.json
var cmdSchemaJSON string

//go:embed schemas/result.schema.json
var resultSchemaJSON string

var (
	schemaOnce   sync.Once
	cmdSchema    *jsonschema.Schema
	resultSchema *jsonschema.Schema
	schemaErr    error
)

func schemas() (*jsonschema.Schema, *jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		cmdSchema, schemaErr = jsonschema.CompileString("cmd.schema.json", cmdSchemaJSON)
		if schemaErr != nil {
			return
		}
		resultSchema, schemaErr = jsonschema.CompileString("result.schema.json", resultSchemaJSON)
	})
	return cmdSchema, resultSchema, schemaErr
}

// DecodeCmd parses and validates a console command. The returned *Error
// carries E_PROTO_BAD_REQUEST for anything that is not a command,
// E_UNKNOWN_COMMAND for an unrecognised cmd and E_BAD_REQUEST when the
// command's arguments fail validation.
func DecodeCmd(b []byte) (CmdMsg, *Error) {
	var msg CmdMsg
	var doc any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return msg, Errorf(ErrProtoBadRequest, "bad json: %v", err)
	}
	base, err := DecodeBase(b)
	if err != nil || base.Type != TypeCmd {
		return msg, Errorf(ErrProtoBadRequest, "expected %s message", TypeCmd)
	}
	if err := json.Unmarshal(b, &msg); err != nil {
		return msg, Errorf(ErrBadRequest, "%v", err)
	}
	if _, ok := knownCmds[msg.Cmd]; !ok {
		return msg, Errorf(ErrUnknownCommand, "unknown command %q", msg.Cmd)
	}
	cs, _, err := schemas()
	if err != nil {
		return msg, Errorf(ErrInternal, "%v", err)
	}
	if err := cs.Validate(doc); err != nil {
		return msg, Errorf(ErrBadRequest, "%s", validationMessage(err))
	}
	return msg, nil
}

// ValidateResult checks an outgoing result against its schema.
func ValidateResult(r ResultMsg) error {
	_, rs, err := schemas()
	if err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	return rs.Validate(doc)
}

func validationMessage(err error) string {
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		for len(ve.Causes) > 0 {
			ve = ve.Causes[0]
		}
		return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
	}
	return err.Error()
}
