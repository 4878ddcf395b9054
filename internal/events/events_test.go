package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.ember.chat/internal/models"
)

func TestEncode_TypeTagFirst(t *testing.T) {
	data, err := Encode(ChannelDelete{ID: "C1"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if string(data) != `{"type":"ChannelDelete","id":"C1"}` {
		t.Errorf("Unexpected encoding: %s", data)
	}
}

func TestEncode_EmptyVariant(t *testing.T) {
	data, err := Encode(Authenticated{})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"type":"Authenticated"}` {
		t.Errorf("Unexpected encoding: %s", data)
	}
}

func TestEncode_ChannelCreateIsFlat(t *testing.T) {
	ev := ChannelCreate{Channel: models.Channel{
		ChannelType: models.ChannelTypeText,
		ID:          "C1",
		Server:      "S1",
		Name:        "general",
	}}

	data, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if fields["type"] != "ChannelCreate" {
		t.Errorf("Expected type ChannelCreate, got %v", fields["type"])
	}
	if fields["channel_type"] != "TextChannel" || fields["_id"] != "C1" || fields["server"] != "S1" {
		t.Errorf("Expected channel fields at top level, got %v", fields)
	}
}

func TestDecode_ReturnsPointerVariant(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"ChannelUpdate","id":"C1","data":{"name":"renamed"},"clear":["Description"]}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	update, ok := ev.(*ChannelUpdate)
	if !ok {
		t.Fatalf("Expected *ChannelUpdate, got %T", ev)
	}
	if update.ID != "C1" || update.Data.Name == nil || *update.Data.Name != "renamed" {
		t.Errorf("Unexpected update: %+v", update)
	}
	if len(update.Clear) != 1 || update.Clear[0] != models.FieldsChannelDescription {
		t.Errorf("Expected Description clear, got %v", update.Clear)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"not json", `nope`, ErrMalformedEvent},
		{"missing type", `{"id":"x"}`, ErrMalformedEvent},
		{"unknown type", `{"type":"Nope"}`, ErrUnknownEvent},
		{"wrong shape", `{"type":"ChannelDelete","id":5}`, ErrMalformedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBulk_NestedRoundTrip(t *testing.T) {
	bulk := Bulk{V: []Event{
		ChannelDelete{ID: "C1"},
		ServerUpdate{ID: "S1", Clear: []models.FieldsServer{}},
	}}

	data, err := Encode(bulk)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.HasPrefix(string(data), `{"type":"Bulk","v":[{"type":"ChannelDelete","id":"C1"}`) {
		t.Errorf("Unexpected encoding: %s", data)
	}

	ev, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	decoded := ev.(*Bulk)
	if len(decoded.V) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(decoded.V))
	}
	if _, ok := decoded.V[0].(*ChannelDelete); !ok {
		t.Errorf("Expected *ChannelDelete, got %T", decoded.V[0])
	}
	if _, ok := decoded.V[1].(*ServerUpdate); !ok {
		t.Errorf("Expected *ServerUpdate, got %T", decoded.V[1])
	}
}

func TestMessage_PassthroughKeepsSingleTypeTag(t *testing.T) {
	input := `{"type":"Message","_id":"M1","channel":"C1","content":"hi"}`

	ev, err := Decode([]byte(input))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	data, err := Encode(ev)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if strings.Count(string(data), `"type"`) != 1 {
		t.Errorf("Expected a single type tag, got %s", data)
	}

	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if fields["content"] != "hi" || fields["_id"] != "M1" {
		t.Errorf("Expected message body to survive, got %v", fields)
	}
}

func TestPing_Encoding(t *testing.T) {
	data, err := Encode(Pong{Data: Ping{Number: 42}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"type":"Pong","data":42}` {
		t.Errorf("Unexpected number ping: %s", data)
	}

	data, err = Encode(Pong{Data: Ping{Binary: []byte{1, 2, 255}}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(data) != `{"type":"Pong","data":[1,2,255]}` {
		t.Errorf("Unexpected binary ping: %s", data)
	}

	var p Ping
	if err := json.Unmarshal([]byte(`[7,8]`), &p); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !p.IsBinary() || len(p.Binary) != 2 || p.Binary[1] != 8 {
		t.Errorf("Unexpected binary ping: %+v", p)
	}

	if err := json.Unmarshal([]byte(`[256]`), &p); err == nil {
		t.Error("Expected out of range byte to be rejected")
	}
}

func TestDecodeClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"authenticate", `{"type":"Authenticate","token":"abc"}`, false},
		{"authenticate without token", `{"type":"Authenticate"}`, true},
		{"begin typing", `{"type":"BeginTyping","channel":"C1"}`, false},
		{"end typing without channel", `{"type":"EndTyping"}`, true},
		{"ping", `{"type":"Ping","data":0}`, false},
		{"ping without data", `{"type":"Ping"}`, true},
		{"unknown", `{"type":"Dance"}`, true},
		{"untyped", `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClientMessage_HasResponded(t *testing.T) {
	m, err := DecodeClientMessage([]byte(`{"type":"Ping","data":1,"responded":true}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !m.HasResponded() {
		t.Error("Expected responded to be set")
	}

	m, _ = DecodeClientMessage([]byte(`{"type":"Ping","data":1,"responded":null}`))
	if m.HasResponded() {
		t.Error("Expected null responded to be ignored")
	}
}

func TestWebSocketError_Encoding(t *testing.T) {
	tests := []struct {
		err  WebSocketError
		want string
	}{
		{InvalidSession, `{"error":"InvalidSession"}`},
		{InternalError("ready"), `{"error":"InternalError","at":"ready"}`},
		{MalformedData("bad"), `{"error":"MalformedData","msg":"bad"}`},
	}

	for _, tt := range tests {
		data, err := json.Marshal(tt.err)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(data) != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, data)
		}
	}
}

type recordingPublisher struct {
	topics []string
}

func (r *recordingPublisher) Publish(_ context.Context, topic string, _ []byte) error {
	r.topics = append(r.topics, topic)
	return nil
}

type staticMemberships []models.Member

func (s staticMemberships) FetchAllMemberships(context.Context, string) ([]models.Member, error) {
	return s, nil
}

func TestPublishUser_FansOutToServers(t *testing.T) {
	pub := &recordingPublisher{}
	members := staticMemberships{
		{ID: models.MemberCompositeKey{Server: "S1", User: "U"}},
		{ID: models.MemberCompositeKey{Server: "S2", User: "U"}},
	}

	if err := PublishUser(context.Background(), pub, members, "U", UserUpdate{ID: "U"}); err != nil {
		t.Fatalf("PublishUser failed: %v", err)
	}

	want := []string{"U", "S1", "S2"}
	if strings.Join(pub.topics, ",") != strings.Join(want, ",") {
		t.Errorf("Expected topics %v, got %v", want, pub.topics)
	}
}

func TestTopics(t *testing.T) {
	if PrivateTopic("U1") != "U1!" {
		t.Errorf("Expected U1!, got %s", PrivateTopic("U1"))
	}

	pub := &recordingPublisher{}
	if err := PublishGlobal(context.Background(), pub, Auth{}); err == nil {
		t.Error("Expected empty passthrough body to be rejected")
	}
	if err := PublishPrivate(context.Background(), pub, "U1", ChannelDelete{ID: "C"}); err != nil {
		t.Fatalf("PublishPrivate failed: %v", err)
	}
	if pub.topics[0] != "U1!" {
		t.Errorf("Expected U1!, got %v", pub.topics)
	}
}
