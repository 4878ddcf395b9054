// Package events defines the domain events carried on the bus and
// delivered to clients, encoded as JSON objects tagged by "type".
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event is a single domain event variant
type Event interface {
	EventType() string
}

var (
	// ErrUnknownEvent indicates the payload's type tag is not a known variant
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrMalformedEvent indicates the payload is not a tagged JSON object
	ErrMalformedEvent = errors.New("malformed event")
)

var registry = map[string]func() Event{
	"Bulk":                  func() Event { return &Bulk{} },
	"Authenticated":         func() Event { return &Authenticated{} },
	"Ready":                 func() Event { return &Ready{} },
	"Pong":                  func() Event { return &Pong{} },
	"Message":               func() Event { return &Message{} },
	"MessageUpdate":         func() Event { return &MessageUpdate{} },
	"MessageAppend":         func() Event { return &MessageAppend{} },
	"MessageDelete":         func() Event { return &MessageDelete{} },
	"MessageReact":          func() Event { return &MessageReact{} },
	"MessageUnreact":        func() Event { return &MessageUnreact{} },
	"MessageRemoveReaction": func() Event { return &MessageRemoveReaction{} },
	"BulkMessageDelete":     func() Event { return &BulkMessageDelete{} },
	"ChannelCreate":         func() Event { return &ChannelCreate{} },
	"ChannelUpdate":         func() Event { return &ChannelUpdate{} },
	"ChannelDelete":         func() Event { return &ChannelDelete{} },
	"ChannelGroupJoin":      func() Event { return &ChannelGroupJoin{} },
	"ChannelGroupLeave":     func() Event { return &ChannelGroupLeave{} },
	"ChannelStartTyping":    func() Event { return &ChannelStartTyping{} },
	"ChannelStopTyping":     func() Event { return &ChannelStopTyping{} },
	"ChannelAck":            func() Event { return &ChannelAck{} },
	"ServerCreate":          func() Event { return &ServerCreate{} },
	"ServerUpdate":          func() Event { return &ServerUpdate{} },
	"ServerDelete":          func() Event { return &ServerDelete{} },
	"ServerMemberUpdate":    func() Event { return &ServerMemberUpdate{} },
	"ServerMemberJoin":      func() Event { return &ServerMemberJoin{} },
	"ServerMemberLeave":     func() Event { return &ServerMemberLeave{} },
	"ServerRoleUpdate":      func() Event { return &ServerRoleUpdate{} },
	"ServerRoleDelete":      func() Event { return &ServerRoleDelete{} },
	"UserUpdate":            func() Event { return &UserUpdate{} },
	"UserRelationship":      func() Event { return &UserRelationship{} },
	"UserSettingsUpdate":    func() Event { return &UserSettingsUpdate{} },
	"UserPlatformWipe":      func() Event { return &UserPlatformWipe{} },
	"EmojiCreate":           func() Event { return &EmojiCreate{} },
	"EmojiDelete":           func() Event { return &EmojiDelete{} },
	"ReportCreate":          func() Event { return &ReportCreate{} },
	"WebhookCreate":         func() Event { return &WebhookCreate{} },
	"WebhookUpdate":         func() Event { return &WebhookUpdate{} },
	"WebhookDelete":         func() Event { return &WebhookDelete{} },
	"Auth":                  func() Event { return &Auth{} },
}

// Encode serialises ev as a JSON object with a leading "type" tag
func Encode(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ev.EventType(), err)
	}

	body = bytes.TrimSpace(body)
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("%w: %s body is not an object", ErrMalformedEvent, ev.EventType())
	}

	tag, err := json.Marshal(ev.EventType())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(tag) + 9)
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// Decode parses a tagged JSON object into its event variant. Variants are
// returned as pointers, e.g. *ChannelUpdate.
func Decode(data []byte) (Event, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var typ string
	if raw, ok := fields["type"]; !ok {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	} else if err := json.Unmarshal(raw, &typ); err != nil {
		return nil, fmt.Errorf("%w: type is not a string", ErrMalformedEvent)
	}

	factory, ok := registry[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, typ)
	}

	delete(fields, "type")
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	ev := factory()
	if err := json.Unmarshal(body, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEvent, typ, err)
	}
	return ev, nil
}

// Bulk groups several events so a client applies them together
type Bulk struct {
	V []Event
}

func (Bulk) EventType() string { return "Bulk" }

func (b Bulk) MarshalJSON() ([]byte, error) {
	items := make([]json.RawMessage, 0, len(b.V))
	for _, ev := range b.V {
		data, err := Encode(ev)
		if err != nil {
			return nil, err
		}
		items = append(items, data)
	}
	return json.Marshal(struct {
		V []json.RawMessage `json:"v"`
	}{items})
}

func (b *Bulk) UnmarshalJSON(data []byte) error {
	var raw struct {
		V []json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	b.V = make([]Event, 0, len(raw.V))
	for _, item := range raw.V {
		ev, err := Decode(item)
		if err != nil {
			return err
		}
		b.V = append(b.V, ev)
	}
	return nil
}
