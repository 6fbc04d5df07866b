package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"openhistoria/internal/turn"
)

const (
	frameCommand    = "command"
	frameTurnResult = "turn_result"
	frameError      = "error"

	wsIdleTimeout  = 10 * time.Minute
	wsWriteTimeout = 5 * time.Second
)

type inFrame struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type outFrame struct {
	Type    string       `json:"type"`
	Result  *turn.Result `json:"result,omitempty"`
	Message string       `json:"message,omitempty"`
}

// handleWS runs one client's commands in order on the shared session.
// Replies go only to the sender.
func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var in inFrame
		if err := json.Unmarshal(msg, &in); err != nil {
			if !s.send(conn, outFrame{Type: frameError, Message: "malformed frame"}) {
				return
			}
			continue
		}
		if in.Type != frameCommand {
			if !s.send(conn, outFrame{Type: frameError, Message: "unknown frame type " + in.Type}) {
				return
			}
			continue
		}

		res, err := s.session.Submit(context.WithoutCancel(r.Context()), in.Command)
		out := outFrame{Type: frameTurnResult, Result: &res}
		if err != nil {
			out = outFrame{Type: frameError, Message: errorMessage(err)}
		}
		if !s.send(conn, out) {
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, frame outFrame) bool {
	b, err := json.Marshal(frame)
	if err != nil {
		s.log.Printf("ws: marshal frame: %v", err)
		return false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return false
	}
	return true
}
