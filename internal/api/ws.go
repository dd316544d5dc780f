package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gyaneshwarpardhi/bandtree/internal/command"
	"github.com/gyaneshwarpardhi/bandtree/internal/editor"
)

const streamWriteTimeout = 10 * time.Second

// streamMessage is one server-to-client frame on the tree stream.
type streamMessage struct {
	Type      string           `json:"type"` // "snapshot" or "error"
	CommandID string           `json:"command_id,omitempty"`
	Error     string           `json:"error,omitempty"`
	Snapshot  *editor.Snapshot `json:"snapshot,omitempty"`
}

// GET /v1/trees/{id}/stream — websocket. The server pushes the current
// snapshot and then one after every change. Clients may send commands as
// JSON text frames; failures come back as error frames.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "tree", s.ID(), "err", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.Subscribe()
	defer cancel()

	replies := make(chan streamMessage, 8)
	readerDone := make(chan struct{})
	writerDone := make(chan struct{})
	defer close(writerDone)

	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, failed := h.streamCommand(r, s, data)
			if !failed {
				continue
			}
			select {
			case replies <- msg:
			case <-writerDone:
				return
			}
		}
	}()

	write := func(m streamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(m)
	}
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "tree closed"),
					time.Now().Add(streamWriteTimeout))
				return
			}
			if err := write(streamMessage{Type: "snapshot", Snapshot: snap}); err != nil {
				return
			}
		case m := <-replies:
			if err := write(m); err != nil {
				return
			}
		case <-readerDone:
			return
		}
	}
}

// streamCommand applies one frame. It returns an error frame and true when
// the command failed.
func (h *Handler) streamCommand(r *http.Request, s *editor.Session, data []byte) (streamMessage, bool) {
	var cmd command.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return streamMessage{Type: "error", Error: fmt.Sprintf("invalid JSON: %s", err)}, true
	}
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	if _, err := s.Apply(r.Context(), cmd); err != nil {
		return streamMessage{Type: "error", CommandID: cmd.ID, Error: err.Error()}, true
	}
	return streamMessage{}, false
}
