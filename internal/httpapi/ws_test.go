package httpapi

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *websocket.Conn, frame any) outFrame {
	t.Helper()
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if s, ok := frame.(string); ok {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	} else if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var out outFrame
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestWebSocketCommand(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := dialWS(t, f)

	out := exchange(t, conn, inFrame{Type: frameCommand, Command: "invade Normandy"})
	if out.Type != frameTurnResult || out.Result == nil {
		t.Fatalf("expected turn_result, got %+v", out)
	}
	if out.Result.Message != "Normandy falls to Burgundy." || len(out.Result.Applied) != 2 {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
	if owner := f.coord.World().Provinces()[0].Owner(); owner != "player" {
		t.Fatalf("expected the session world to change, got owner %q", owner)
	}
}

func TestWebSocketErrors(t *testing.T) {
	f := newFixture(t, nil, nil)
	conn := dialWS(t, f)

	tests := []struct {
		name  string
		frame any
	}{
		{name: "malformed", frame: "{oops"},
		{name: "unknown type", frame: inFrame{Type: "hello"}},
		{name: "empty command", frame: inFrame{Type: frameCommand}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := exchange(t, conn, tt.frame)
			if out.Type != frameError || out.Message == "" {
				t.Fatalf("expected error frame, got %+v", out)
			}
		})
	}

	// The connection survives bad frames.
	out := exchange(t, conn, inFrame{Type: frameCommand, Command: "invade Normandy"})
	if out.Type != frameTurnResult {
		t.Fatalf("expected turn_result after errors, got %+v", out)
	}
}
