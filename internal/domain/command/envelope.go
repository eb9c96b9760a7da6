package command

import (
	"bytes"
	"encoding/json"
)

// Envelope is the {success, data, error, code} wrapper some backend commands respond with
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// ParseEnvelope reports whether body is an envelope and decodes it.
// A body is an envelope only when it is a JSON object with a boolean "success" key;
// any other body is a bare value and is returned to the caller untouched.
func ParseEnvelope(body json.RawMessage) (Envelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return Envelope{}, false
	}

	raw, ok := fields["success"]
	if !ok {
		return Envelope{}, false
	}

	var success bool
	if err := json.Unmarshal(raw, &success); err != nil {
		return Envelope{}, false
	}

	env := Envelope{Success: success, Data: fields["data"]}
	if v, ok := fields["error"]; ok {
		_ = json.Unmarshal(v, &env.Error)
	}
	if v, ok := fields["code"]; ok {
		_ = json.Unmarshal(v, &env.Code)
	}

	return env, true
}
