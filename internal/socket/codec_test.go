package socket

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"go.ember.chat/internal/events"
)

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":        FormatJSON,
		"json":    FormatJSON,
		"msgpack": FormatMsgpack,
		"xml":     FormatJSON,
	}
	for in, want := range tests {
		if got := ParseFormat(in); got != want {
			t.Errorf("ParseFormat(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestCodec_JSON(t *testing.T) {
	c := codec{format: FormatJSON}

	frameType, data, err := c.encode(events.Authenticated{})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if frameType != websocket.TextMessage {
		t.Errorf("Expected text frame, got %d", frameType)
	}
	if string(data) != `{"type":"Authenticated"}` {
		t.Errorf("Unexpected payload: %s", data)
	}

	msg, err := c.decode(websocket.TextMessage, []byte(`{"type":"BeginTyping","channel":"C1"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != events.ClientBeginTyping || msg.Channel != "C1" {
		t.Errorf("Unexpected message: %+v", msg)
	}

	if _, err := c.decode(websocket.BinaryMessage, []byte(`{"type":"Ping","data":1}`)); err == nil {
		t.Error("Expected binary frame to be rejected in json mode")
	}
}

func TestCodec_ErrorFrame(t *testing.T) {
	c := codec{format: FormatJSON}

	_, data, err := c.encode(events.InvalidSession)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data) != `{"type":"Error","error":"InvalidSession"}` {
		t.Errorf("Unexpected payload: %s", data)
	}
}

func TestCodec_MsgpackKeepsLargeIntegers(t *testing.T) {
	c := codec{format: FormatMsgpack}
	const big = uint64(1<<63 + 5)

	frameType, data, err := c.encode(&events.Pong{Data: events.Ping{Number: big}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if frameType != websocket.BinaryMessage {
		t.Errorf("Expected binary frame, got %d", frameType)
	}

	var decoded map[string]interface{}
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("msgpack decode failed: %v", err)
	}
	if decoded["type"] != "Pong" {
		t.Errorf("Expected Pong, got %v", decoded["type"])
	}
	if got, ok := decoded["data"].(uint64); !ok || got != big {
		t.Errorf("Expected %d, got %#v", big, decoded["data"])
	}
}

func TestCodec_MsgpackClientMessages(t *testing.T) {
	c := codec{format: FormatMsgpack}

	tests := []struct {
		name  string
		input map[string]interface{}
		check func(t *testing.T, msg *events.ClientMessage)
	}{
		{
			name:  "binary ping",
			input: map[string]interface{}{"type": "Ping", "data": []byte{1, 2, 255}},
			check: func(t *testing.T, msg *events.ClientMessage) {
				if !msg.Data.IsBinary() || string(msg.Data.Binary) != "\x01\x02\xff" {
					t.Errorf("Unexpected ping data: %+v", msg.Data)
				}
			},
		},
		{
			name:  "numeric ping",
			input: map[string]interface{}{"type": "Ping", "data": 7},
			check: func(t *testing.T, msg *events.ClientMessage) {
				if msg.Data.IsBinary() || msg.Data.Number != 7 {
					t.Errorf("Unexpected ping data: %+v", msg.Data)
				}
			},
		},
		{
			name:  "authenticate",
			input: map[string]interface{}{"type": "Authenticate", "token": "abc"},
			check: func(t *testing.T, msg *events.ClientMessage) {
				if msg.Token != "abc" {
					t.Errorf("Expected token abc, got %q", msg.Token)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := msgpack.Marshal(tt.input)
			if err != nil {
				t.Fatalf("msgpack encode failed: %v", err)
			}
			msg, err := c.decode(websocket.BinaryMessage, data)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			tt.check(t, msg)
		})
	}

	if _, err := c.decode(websocket.TextMessage, []byte("{}")); err == nil {
		t.Error("Expected text frame to be rejected in msgpack mode")
	}
	if _, err := c.decode(websocket.BinaryMessage, []byte{0xc1}); err == nil {
		t.Error("Expected invalid msgpack to be rejected")
	}
}
