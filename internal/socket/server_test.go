package socket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"go.ember.chat/internal/auth"
	"go.ember.chat/internal/bus"
	"go.ember.chat/internal/events"
	"go.ember.chat/internal/models"
	"go.ember.chat/internal/permissions"
	"go.ember.chat/internal/presence"
	"go.ember.chat/internal/storage"
)

type harness struct {
	srv    *Server
	ts     *httptest.Server
	bus    *bus.MemoryBus
	store  *storage.MemoryStorage
	online *presence.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := storage.NewMemoryStorage()
	store.PutUser(models.User{ID: "U", Username: "u", Relations: []models.Relationship{{ID: "V", Status: models.RelationshipFriend}}})
	store.PutUser(models.User{ID: "V", Username: "v"})
	store.PutUser(models.User{ID: "N"})
	store.PutSession(models.Session{ID: "s1", UserID: "U", TokenHash: auth.HashToken("tok")})
	store.PutSession(models.Session{ID: "s2", UserID: "N", TokenHash: auth.HashToken("new")})
	store.PutServer(models.Server{ID: "S", Owner: "V", DefaultPermissions: int64(permissions.ViewChannel), Channels: []string{"T1"}})
	store.PutMember(models.Member{ID: models.MemberCompositeKey{Server: "S", User: "U"}})
	store.PutChannel(models.Channel{ChannelType: models.ChannelTypeText, ID: "T1", Server: "S", Name: "general"})

	h := &harness{
		bus:    bus.NewMemoryBus(64),
		store:  store,
		online: presence.NewMemoryStore("test"),
	}

	cfg := DefaultConfig()
	cfg.MessageRate = 0
	h.srv = NewServer(cfg, Deps{
		Auth:     auth.NewSessionAuthenticator(store),
		Bus:      h.bus,
		Store:    store,
		Presence: h.online,
	})
	h.ts = httptest.NewServer(h.srv.Routes())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.srv.Shutdown(ctx)
		h.ts.Close()
		h.bus.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func (h *harness) watch(t *testing.T, topics ...string) bus.Subscriber {
	t.Helper()
	sub, err := h.bus.NewSubscriber(context.Background())
	if err != nil {
		t.Fatalf("NewSubscriber failed: %v", err)
	}
	if err := sub.Subscribe(context.Background(), topics...); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	t.Cleanup(func() { sub.Close() })
	return sub
}

func nextFromBus(t *testing.T, sub bus.Subscriber) events.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := sub.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	ev, err := events.Decode(msg.Payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return ev
}

func read(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("Invalid frame %s: %v", data, err)
	}
	return frame
}

func expect(t *testing.T, ws *websocket.Conn, typ string) map[string]interface{} {
	t.Helper()
	frame := read(t, ws)
	if frame["type"] != typ {
		t.Fatalf("Expected %s, got %v", typ, frame)
	}
	return frame
}

func send(t *testing.T, ws *websocket.Conn, msg string) {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
}

// handshake consumes the frames every successful session for U starts with
func handshake(t *testing.T, ws *websocket.Conn) map[string]interface{} {
	t.Helper()
	expect(t, ws, "Authenticated")
	ready := expect(t, ws, "Ready")

	// First session: U hears its own online broadcast on S and U
	expect(t, ws, "UserUpdate")
	expect(t, ws, "UserUpdate")
	return ready
}

func TestSocket_Session(t *testing.T) {
	h := newHarness(t)
	server := h.watch(t, "S")
	channel := h.watch(t, "T1")

	ws := h.dial(t, "version=1&format=json&token=tok")
	ready := handshake(t, ws)

	users := ready["users"].([]interface{})
	if len(users) != 2 {
		t.Errorf("Expected 2 users in ready, got %d", len(users))
	}
	channels := ready["channels"].([]interface{})
	if len(channels) != 1 || channels[0].(map[string]interface{})["_id"] != "T1" {
		t.Errorf("Expected channel T1 in ready, got %v", channels)
	}

	if update, ok := nextFromBus(t, server).(*events.UserUpdate); !ok || update.ID != "U" || !*update.Data.Online {
		t.Fatalf("Expected online broadcast for U, got %#v", update)
	}

	// Events on subscribed topics reach the client
	if err := events.Publish(context.Background(), h.bus, "T1", &events.ChannelStartTyping{ID: "T1", User: "V"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if typing := expect(t, ws, "ChannelStartTyping"); typing["user"] != "V" {
		t.Errorf("Expected typing from V, got %v", typing)
	}
	nextFromBus(t, channel)

	send(t, ws, `{"type":"Ping","data":42}`)
	if pong := expect(t, ws, "Pong"); pong["data"] != float64(42) {
		t.Errorf("Expected pong data 42, got %v", pong["data"])
	}

	send(t, ws, `{"type":"Ping","data":1,"responded":true}`)
	send(t, ws, `not json`)
	if e := expect(t, ws, "Error"); e["error"] != events.ErrorMalformedData {
		t.Errorf("Expected MalformedData, got %v", e)
	}

	send(t, ws, `{"type":"Authenticate","token":"tok"}`)
	if e := expect(t, ws, "Error"); e["error"] != events.ErrorAlreadyAuthenticated {
		t.Errorf("Expected AlreadyAuthenticated, got %v", e)
	}

	send(t, ws, `{"type":"BeginTyping","channel":"T1"}`)
	if typing, ok := nextFromBus(t, channel).(*events.ChannelStartTyping); !ok || typing.User != "U" {
		t.Errorf("Expected typing from U, got %#v", typing)
	}
	expect(t, ws, "ChannelStartTyping")

	ws.Close()
	if update, ok := nextFromBus(t, server).(*events.UserUpdate); !ok || *update.Data.Online {
		t.Errorf("Expected offline broadcast for U, got %#v", update)
	}
}

func TestSocket_VisibilityChange(t *testing.T) {
	h := newHarness(t)
	ws := h.dial(t, "token=tok")
	handshake(t, ws)

	none := int64(0)
	err := events.Publish(context.Background(), h.bus, "S", &events.ServerUpdate{
		ID:   "S",
		Data: models.PartialServer{DefaultPermissions: &none},
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	bulk := expect(t, ws, "Bulk")
	inner := bulk["v"].([]interface{})
	if len(inner) != 2 {
		t.Fatalf("Expected 2 bulk events, got %v", inner)
	}
	if first := inner[0].(map[string]interface{}); first["type"] != "ChannelDelete" || first["id"] != "T1" {
		t.Errorf("Expected ChannelDelete T1, got %v", first)
	}

	// The listener applies pending changes before each receive, so once a
	// later event arrives the removal of T1 has reached the bus
	marker := func(id string) {
		t.Helper()
		events.Publish(context.Background(), h.bus, "U", &events.ChannelStartTyping{ID: id, User: "V"})
		if got := expect(t, ws, "ChannelStartTyping"); got["id"] != id {
			t.Fatalf("Expected marker %s, got %v", id, got)
		}
	}
	marker("first")

	events.Publish(context.Background(), h.bus, "T1", &events.ChannelStartTyping{ID: "T1", User: "V"})
	marker("second")
}

func TestSocket_AuthenticateMessage(t *testing.T) {
	h := newHarness(t)
	ws := h.dial(t, "")

	// Ignored until authenticated
	send(t, ws, `{"type":"Ping","data":1}`)
	send(t, ws, `{"type":"Authenticate","token":"tok"}`)
	handshake(t, ws)
}

func TestSocket_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		token string
		kind  string
	}{
		{"unknown token", "bad", events.ErrorInvalidSession},
		{"onboarding", "new", events.ErrorOnboardingNotFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ws := h.dial(t, "token="+tt.token)

			if e := expect(t, ws, "Error"); e["error"] != tt.kind {
				t.Errorf("Expected %s, got %v", tt.kind, e)
			}

			ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := ws.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				t.Errorf("Expected policy violation close, got %v", err)
			}
		})
	}
}

func TestSocket_Msgpack(t *testing.T) {
	h := newHarness(t)
	ws := h.dial(t, "format=msgpack&token=tok")

	readPacked := func() map[string]interface{} {
		t.Helper()
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		frameType, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage failed: %v", err)
		}
		if frameType != websocket.BinaryMessage {
			t.Fatalf("Expected binary frame, got %d", frameType)
		}
		var frame map[string]interface{}
		if err := msgpack.Unmarshal(data, &frame); err != nil {
			t.Fatalf("msgpack decode failed: %v", err)
		}
		return frame
	}

	if frame := readPacked(); frame["type"] != "Authenticated" {
		t.Fatalf("Expected Authenticated, got %v", frame)
	}

	ping, _ := msgpack.Marshal(map[string]interface{}{"type": "Ping", "data": []byte{9, 8}})
	if err := ws.WriteMessage(websocket.BinaryMessage, ping); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		frame := readPacked()
		if frame["type"] != "Pong" {
			continue
		}
		data, ok := frame["data"].([]interface{})
		if !ok || len(data) != 2 {
			t.Fatalf("Expected two byte pong, got %#v", frame["data"])
		}
		return
	}
	t.Fatal("Expected a Pong frame")
}

func TestServer_Shutdown(t *testing.T) {
	h := newHarness(t)
	ws := h.dial(t, "token=tok")
	handshake(t, ws)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if n := h.srv.Connections(); n != 0 {
		t.Errorf("Expected no open connections, got %d", n)
	}

	online, _ := h.online.IsOnline(context.Background(), "U")
	if online {
		t.Error("Expected U to be offline after shutdown")
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
