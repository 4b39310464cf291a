package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Message is a parsed inbound frame: [command, ...args].
type Message []json.RawMessage

// Parse decodes a raw inbound frame.
// It returns ErrMalformed for invalid JSON and ErrNotArray for non-array values.
func Parse(data []byte) (Message, error) {
	if !json.Valid(data) {
		return nil, ErrMalformed
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ErrNotArray
	}

	var msg Message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, ErrMalformed
	}
	return msg, nil
}

// Command returns the command name, or false if the first element is missing
// or not a string.
func (m Message) Command() (string, bool) {
	if len(m) == 0 {
		return "", false
	}

	var name string
	if err := json.Unmarshal(m[0], &name); err != nil {
		return "", false
	}
	return name, true
}

// NumArgs returns the number of arguments after the command name.
func (m Message) NumArgs() int {
	if len(m) == 0 {
		return 0
	}
	return len(m) - 1
}

// Arg decodes argument i (0-based, after the command name) into v.
func (m Message) Arg(i int, v any) error {
	if i < 0 || i+1 >= len(m) {
		return BadRequest("missing argument %d", i+1)
	}
	if err := json.Unmarshal(m[i+1], v); err != nil {
		return BadRequest("invalid argument %d: %s", i+1, describe(err))
	}
	return nil
}

// OptArg decodes argument i into v if present and not null.
// It reports whether a value was decoded.
func (m Message) OptArg(i int, v any) (bool, error) {
	if i < 0 || i+1 >= len(m) {
		return false, nil
	}
	if bytes.Equal(bytes.TrimSpace(m[i+1]), []byte("null")) {
		return false, nil
	}
	if err := m.Arg(i, v); err != nil {
		return false, err
	}
	return true, nil
}

// RawArg returns argument i as raw JSON, or nil if absent.
func (m Message) RawArg(i int) json.RawMessage {
	if i < 0 || i+1 >= len(m) {
		return nil
	}
	return m[i+1]
}

func describe(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
	}
	return "invalid value"
}
