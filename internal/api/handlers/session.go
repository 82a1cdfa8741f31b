// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/lattice/internal/events"
	"github.com/wingedpig/lattice/internal/trigger"
)

// SessionHandler handles session requests.
type SessionHandler struct {
	sess SessionRunner
	bus  events.EventBus
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sess SessionRunner, bus events.EventBus) *SessionHandler {
	return &SessionHandler{sess: sess, bus: bus}
}

// Stats returns the session counters.
func (h *SessionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.sess.Stats())
}

type linesRequest struct {
	Line  string   `json:"line"`
	Lines []string `json:"lines"`
}

// Lines queues lines for matching as if the connection had produced them.
func (h *SessionHandler) Lines(w http.ResponseWriter, r *http.Request) {
	var req linesRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	lines := req.Lines
	if req.Line != "" {
		lines = append([]string{req.Line}, lines...)
	}
	if len(lines) == 0 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "line is required")
		return
	}

	for i, line := range lines {
		if err := h.sess.Feed(r.Context(), line); err != nil {
			WriteErrorWithDetails(w, http.StatusServiceUnavailable, ErrUnavailable, err.Error(),
				map[string]interface{}{"queued": i})
			return
		}
	}
	WriteJSON(w, http.StatusAccepted, map[string]interface{}{"queued": len(lines)})
}

type sendRequest struct {
	Command string `json:"command"`
}

// Send writes a command to the connection.
func (h *SessionHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "command is required")
		return
	}

	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		conn := u.Env().Conn
		if conn == nil {
			conn = trigger.NopSender{}
		}
		return conn.Send(req.Command)
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}

	if h.bus != nil {
		h.bus.Publish(r.Context(), events.Event{
			Type:    events.EventCommandSent,
			Payload: map[string]interface{}{"command": req.Command, "source": "api"},
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"sent": true})
}
