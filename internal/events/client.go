package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Client message types
const (
	ClientAuthenticate = "Authenticate"
	ClientBeginTyping  = "BeginTyping"
	ClientEndTyping    = "EndTyping"
	ClientPing         = "Ping"
)

// ClientMessage is a message sent by a client over the socket
type ClientMessage struct {
	Type string `json:"type"`

	// Authenticate
	Token string `json:"token,omitempty"`

	// BeginTyping, EndTyping
	Channel string `json:"channel,omitempty"`

	// Ping
	Data      *Ping           `json:"data,omitempty"`
	Responded json.RawMessage `json:"responded,omitempty"`
}

// HasResponded reports whether a ping was already answered by an edge proxy
func (m *ClientMessage) HasResponded() bool {
	r := strings.TrimSpace(string(m.Responded))
	return r != "" && r != "null"
}

// Validate checks that the fields required by the message type are present
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case ClientAuthenticate:
		if m.Token == "" {
			return fmt.Errorf("missing field `token`")
		}
	case ClientBeginTyping, ClientEndTyping:
		if m.Channel == "" {
			return fmt.Errorf("missing field `channel`")
		}
	case ClientPing:
		if m.Data == nil {
			return fmt.Errorf("missing field `data`")
		}
	case "":
		return fmt.Errorf("missing field `type`")
	default:
		return fmt.Errorf("unknown variant `%s`", m.Type)
	}
	return nil
}

// DecodeClientMessage parses and validates a JSON client message
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// WebSocketError kinds
const (
	ErrorLabelMe               = "LabelMe"
	ErrorInternal              = "InternalError"
	ErrorInvalidSession        = "InvalidSession"
	ErrorOnboardingNotFinished = "OnboardingNotFinished"
	ErrorAlreadyAuthenticated  = "AlreadyAuthenticated"
	ErrorMalformedData         = "MalformedData"
)

// WebSocketError is sent to a client when its session or input is rejected.
// It is encoded untagged, as {"error": kind, ...}.
type WebSocketError struct {
	Kind string `json:"error"`
	At   string `json:"at,omitempty"`
	Msg  string `json:"msg,omitempty"`
}

func (WebSocketError) EventType() string { return "Error" }

func (e WebSocketError) Error() string {
	switch {
	case e.At != "":
		return fmt.Sprintf("%s at %s", e.Kind, e.At)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return e.Kind
}

// InternalError reports a server fault at the named stage
func InternalError(at string) WebSocketError {
	return WebSocketError{Kind: ErrorInternal, At: at}
}

// MalformedData reports an undecodable client message
func MalformedData(msg string) WebSocketError {
	return WebSocketError{Kind: ErrorMalformedData, Msg: msg}
}

var (
	InvalidSession        = WebSocketError{Kind: ErrorInvalidSession}
	OnboardingNotFinished = WebSocketError{Kind: ErrorOnboardingNotFinished}
	AlreadyAuthenticated  = WebSocketError{Kind: ErrorAlreadyAuthenticated}
)
