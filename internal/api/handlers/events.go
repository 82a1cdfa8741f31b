// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/lattice/internal/events"
)

const (
	streamQueue  = 100
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves event history and the live event stream.
type EventHandler struct {
	bus     events.EventBus
	matcher *events.PatternMatcher
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus, matcher: events.NewPatternMatcher()}
}

// parseFilter reads type (repeatable), session, limit, since and until.
// Times are RFC 3339.
func (h *EventHandler) parseFilter(q url.Values) (events.EventFilter, error) {
	filter := events.EventFilter{
		Types:   q["type"],
		Session: q.Get("session"),
	}
	for _, t := range filter.Types {
		if _, err := h.matcher.Compile(t); err != nil {
			return filter, fmt.Errorf("type %q: %w", t, err)
		}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("limit %q is not a non-negative integer", s)
		}
		filter.Limit = n
	}
	for name, dst := range map[string]*time.Time{"since": &filter.Since, "until": &filter.Until} {
		s := q.Get(name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return filter, fmt.Errorf("%s: %w", name, err)
		}
		*dst = t
	}
	return filter, nil
}

// History returns past events, oldest first.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r.URL.Query())
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	list, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if list == nil {
		list = []events.Event{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// WebSocket streams events matching the pattern query parameter (default
// "*") as JSON text messages until the client goes away.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	if _, err := h.matcher.Compile(pattern); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	queue := make(chan events.Event, streamQueue)
	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, e events.Event) error {
		select {
		case queue <- e:
		default:
		}
		return nil
	}, streamQueue)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	gone := watchPeer(conn)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case e := <-queue:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

// watchPeer reads (and discards) client frames so pongs and close frames
// are processed. The returned channel closes when the connection fails.
func watchPeer(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}
