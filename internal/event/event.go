package event

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
)

const (
	// SchemaID names the event type independent of version.
	SchemaID = "hub.jupyter.org/server-action"
	// SchemaVersion is bumped on any backward-incompatible field change.
	SchemaVersion = 1
	// SchemaTitle is the human-readable schema name.
	SchemaTitle = "JupyterHub server events"
)

// Action is the server action JupyterHub performed.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// Actions lists every valid Action in declaration order.
var Actions = []Action{ActionStart, ActionStop}

// ParseAction returns the Action named by s.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionStart, ActionStop:
		return a, nil
	}
	return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("%q is not one of [start stop]", s)}
}

func (a Action) String() string { return string(a) }

// ServerAction records a successful start or stop of a user's server.
// Instances are immutable once constructed.
type ServerAction struct {
	action     Action
	username   string
	servername string
}

// wireServerAction is the serialized field layout shared by every codec.
type wireServerAction struct {
	Action     string `json:"action" cbor:"action"`
	Username   string `json:"username" cbor:"username"`
	Servername string `json:"servername" cbor:"servername"`
}

// NewServerAction validates its inputs and builds a record.
// servername may be empty (the user's default server); username may not.
func NewServerAction(action, username, servername string) (*ServerAction, error) {
	a, err := ParseAction(action)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if !utf8.ValidString(username) {
		return nil, &ValidationError{Field: "username", Reason: "must be valid UTF-8"}
	}
	if !utf8.ValidString(servername) {
		return nil, &ValidationError{Field: "servername", Reason: "must be valid UTF-8"}
	}
	return &ServerAction{action: a, username: username, servername: servername}, nil
}

// DecodeServerAction builds a record from a JSON object. Every field is
// required and must be a JSON string.
func DecodeServerAction(data []byte) (*ServerAction, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("expected a JSON object: %s", err)}
	}
	var vals [3]string
	for i, name := range []string{"action", "username", "servername"} {
		v, err := requiredString(raw, name)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return NewServerAction(vals[0], vals[1], vals[2])
}

func requiredString(raw map[string]json.RawMessage, field string) (string, error) {
	msg, ok := raw[field]
	if !ok {
		return "", &ValidationError{Field: field, Reason: "field required"}
	}
	if string(msg) == "null" {
		return "", &ValidationError{Field: field, Reason: "must not be null"}
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", &ValidationError{Field: field, Reason: "must be a string"}
	}
	return s, nil
}

// Action returns the action JupyterHub performed.
func (e *ServerAction) Action() Action { return e.action }

// Username returns the normalized name of the server's owner.
func (e *ServerAction) Username() string { return e.username }

// Servername returns the named server; "" is the default server.
func (e *ServerAction) Servername() string { return e.servername }

// SchemaID returns SchemaID for every instance.
func (e *ServerAction) SchemaID() string { return SchemaID }

// SchemaVersion returns SchemaVersion for every instance.
func (e *ServerAction) SchemaVersion() int { return SchemaVersion }

// Fields returns the record's data as a fresh map.
func (e *ServerAction) Fields() map[string]any {
	return map[string]any{
		"action":     string(e.action),
		"username":   e.username,
		"servername": e.servername,
	}
}

func (e *ServerAction) wire() wireServerAction {
	return wireServerAction{Action: string(e.action), Username: e.username, Servername: e.servername}
}

// MarshalJSON encodes the three fields as a JSON object.
func (e *ServerAction) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// MarshalCBOR encodes the three fields as a CBOR map.
func (e *ServerAction) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(e.wire())
}
