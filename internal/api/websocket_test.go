package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/config"
	"github.com/nerrad567/irclimate/internal/infrastructure/logging"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func mockClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return WSMessage{}, false
	}
}

func TestHub_StateChangedRouting(t *testing.T) {
	hub := testHub(t)
	all := mockClient(hub, ChannelClimateState)
	living := mockClient(hub, ChannelClimateState+":living")
	other := mockClient(hub, "something.else")

	hub.StateChanged(context.Background(), climate.State{DeviceID: "living"})
	hub.StateChanged(context.Background(), climate.State{DeviceID: "bedroom"})

	for i := 0; i < 2; i++ {
		msg, ok := receive(t, all)
		if !ok || msg.EventType != ChannelClimateState {
			t.Fatalf("all-devices client message %d = %+v, %v", i, msg, ok)
		}
	}

	msg, ok := receive(t, living)
	if !ok {
		t.Fatal("device-scoped client got nothing")
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["device_id"] != "living" {
		t.Errorf("payload = %v", msg.Payload)
	}
	if _, ok := receive(t, living); ok {
		t.Error("device-scoped client received another device")
	}
	if _, ok := receive(t, other); ok {
		t.Error("unsubscribed client received a state")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := testHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("initial count = %d", hub.ClientCount())
	}

	c := mockClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register = %d", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister = %d", hub.ClientCount())
	}

	// send on the closed channel must not panic
	c.trySend([]byte("late"))
}

func TestCovers(t *testing.T) {
	tests := []struct {
		channels []string
		device   string
		want     bool
	}{
		{[]string{ChannelClimateState}, "living", true},
		{[]string{ChannelClimateState + ":living"}, "living", true},
		{[]string{ChannelClimateState + ":bedroom"}, "living", false},
		{[]string{"other"}, "living", false},
		{nil, "living", false},
	}
	for _, tt := range tests {
		if got := covers(tt.channels, ChannelClimateState, tt.device); got != tt.want {
			t.Errorf("covers(%v, %q) = %v, want %v", tt.channels, tt.device, got, tt.want)
		}
	}
}

func TestWebSocket_SubscribeReplaysAndStreams(t *testing.T) {
	ctrl := newFakeController("living", "bedroom")
	srv := testServer(t, ctrl, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readMsg := func() WSMessage {
		t.Helper()
		//nolint:errcheck // test deadline
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelClimateState + ":living"}},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	if msg := readMsg(); msg.Type != WSTypeResponse || msg.ID != "1" {
		t.Fatalf("subscribe response = %+v", msg)
	}

	replay := readMsg()
	if replay.Type != WSTypeEvent {
		t.Fatalf("replay = %+v", replay)
	}
	if p, _ := replay.Payload.(map[string]any); p["device_id"] != "living" {
		t.Errorf("replayed payload = %v", replay.Payload)
	}

	srv.hub.StateChanged(context.Background(), climate.State{DeviceID: "bedroom"})
	srv.hub.StateChanged(context.Background(), climate.State{DeviceID: "living", TargetTemperature: 21})

	live := readMsg()
	p, _ := live.Payload.(map[string]any)
	if p["device_id"] != "living" || p["target_temperature"] != float64(21) {
		t.Errorf("live event payload = %v", live.Payload)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "2"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(); msg.Type != WSTypePong || msg.ID != "2" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "shout", ID: "3"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "4",
		Payload: WSSubscribePayload{Channels: []string{"system.health"}},
	}); err != nil {
		t.Fatal(err)
	}
	if msg := readMsg(); msg.Type != WSTypeError || msg.ID != "4" {
		t.Errorf("unknown channel reply = %+v", msg)
	}
}

func TestValidChannel(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{ChannelClimateState, true},
		{ChannelClimateState + ":living", true},
		{ChannelClimateState + ":", false},
		{"climate.state", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validChannel(tt.channel); got != tt.want {
			t.Errorf("validChannel(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}
