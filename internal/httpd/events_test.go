package httpd

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/wifiportal/internal/radio"
)

func TestStateEvent(t *testing.T) {
	tests := []struct {
		name  string
		state radio.State
		apUp  bool
		want  Event
	}{
		{
			name:  "ap only",
			state: radio.State{Kind: radio.ApOnly},
			apUp:  true,
			want:  Event{State: "ap_only", APActive: true},
		},
		{
			name:  "joining",
			state: radio.State{Kind: radio.ApWithPendingJoin, Target: "HomeNet"},
			apUp:  true,
			want:  Event{State: "joining", SSID: "HomeNet", APActive: true},
		},
		{
			name:  "connected with ap torn down",
			state: radio.State{Kind: radio.StationConnected, Network: "HomeNet"},
			apUp:  false,
			want:  Event{State: "connected", SSID: "HomeNet", APActive: false},
		},
		{
			name:  "failed",
			state: radio.State{Kind: radio.StationFailed, Target: "HomeNet", Reason: "authentication rejected"},
			apUp:  true,
			want:  Event{State: "join_failed", SSID: "HomeNet", Reason: "authentication rejected", APActive: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StateEvent(tt.state, tt.apUp); got != tt.want {
				t.Errorf("StateEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func dialEvents(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestEventHubBroadcast(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dialEvents(t, ts)

	// Registration happens in the upgrade handler before it returns, but
	// give the dial a moment to settle.
	deadline := time.Now().Add(2 * time.Second)
	for s.Events().Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Events().Subscribers() != 1 {
		t.Fatal("subscriber was not registered")
	}

	want := Event{State: "joining", SSID: "HomeNet", APActive: true}
	s.Events().Broadcast(want)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got != want {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}

func TestEventHubCloseDropsSubscribers(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	conn := dialEvents(t, ts)

	deadline := time.Now().Add(2 * time.Second)
	for s.Events().Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	s.Events().Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after hub close should fail")
	}
	if s.Events().Subscribers() != 0 {
		t.Errorf("subscribers = %d after close, want 0", s.Events().Subscribers())
	}
}
