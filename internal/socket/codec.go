package socket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"go.ember.chat/internal/events"
)

// Format is the wire encoding negotiated at connect time
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

var errFrameType = errors.New("unexpected frame type")

// ParseFormat returns the named format, falling back to JSON
func ParseFormat(s string) Format {
	if Format(s) == FormatMsgpack {
		return FormatMsgpack
	}
	return FormatJSON
}

// codec converts events to frames and frames to client messages. JSON
// travels in text frames, msgpack in binary frames with named fields.
type codec struct {
	format Format
}

func (c codec) encode(ev events.Event) (int, []byte, error) {
	data, err := events.Encode(ev)
	if err != nil {
		return 0, nil, err
	}
	if c.format == FormatJSON {
		return websocket.TextMessage, data, nil
	}

	value, err := decodeNumbers(data)
	if err != nil {
		return 0, nil, err
	}
	packed, err := msgpack.Marshal(value)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode %s as msgpack: %w", ev.EventType(), err)
	}
	return websocket.BinaryMessage, packed, nil
}

func (c codec) decode(frameType int, data []byte) (*events.ClientMessage, error) {
	switch c.format {
	case FormatJSON:
		if frameType != websocket.TextMessage {
			return nil, errFrameType
		}
		return events.DecodeClientMessage(data)

	default:
		if frameType != websocket.BinaryMessage {
			return nil, errFrameType
		}
		var value interface{}
		if err := msgpack.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		asJSON, err := json.Marshal(jsonCompatible(value))
		if err != nil {
			return nil, err
		}
		return events.DecodeClientMessage(asJSON)
	}
}

// decodeNumbers parses JSON keeping integers exact, so 64-bit permission
// masks survive the trip to msgpack
func decodeNumbers(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return convertNumbers(value), nil
}

func convertNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = convertNumbers(inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = convertNumbers(inner)
		}
		return t
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(t), 10, 64); err == nil {
			return u
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

// jsonCompatible rewrites msgpack values that encoding/json cannot
// represent. Binary blobs become arrays of numbers and map keys strings.
func jsonCompatible(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = jsonCompatible(inner)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, inner := range t {
			out[fmt.Sprint(k)] = jsonCompatible(inner)
		}
		return out
	case []interface{}:
		for i, inner := range t {
			t[i] = jsonCompatible(inner)
		}
		return t
	case []byte:
		out := make([]uint16, len(t))
		for i, b := range t {
			out[i] = uint16(b)
		}
		return out
	}
	return v
}
