// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wingedpig/lattice/internal/config"
	"github.com/wingedpig/lattice/internal/events"
	"github.com/wingedpig/lattice/internal/session"
	"github.com/wingedpig/lattice/internal/trigger"
)

// SessionRunner is the part of a session the API drives. Every access to
// the trigger unit goes through Do.
type SessionRunner interface {
	Do(ctx context.Context, fn func(*trigger.Unit) error) error
	Feed(ctx context.Context, line string) error
	Stats() session.Stats
}

// TriggerHandler handles trigger tree requests.
type TriggerHandler struct {
	sess SessionRunner
	bus  events.EventBus
}

// NewTriggerHandler creates a new trigger handler.
func NewTriggerHandler(sess SessionRunner, bus events.EventBus) *TriggerHandler {
	return &TriggerHandler{sess: sess, bus: bus}
}

// List returns the whole trigger tree.
func (h *TriggerHandler) List(w http.ResponseWriter, r *http.Request) {
	var infos []trigger.Info
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		infos = u.Info()
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if infos == nil {
		infos = []trigger.Info{}
	}
	WriteJSON(w, http.StatusOK, infos)
}

// Get returns one trigger and its subtree.
func (h *TriggerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := triggerID(w, r)
	if !ok {
		return
	}

	var info trigger.Info
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		n, found := u.Get(id)
		if !found {
			return trigger.ErrNotFound
		}
		info = n.Info()
		return nil
	})
	if errors.Is(err, trigger.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "trigger not found")
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// Delete removes a trigger and its subtree.
func (h *TriggerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := triggerID(w, r)
	if !ok {
		return
	}

	var name string
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		if n, found := u.Get(id); found {
			name = n.Name()
		}
		return u.Remove(id)
	})
	if errors.Is(err, trigger.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "trigger not found")
		return
	}
	if err != nil {
		writeSessionError(w, err)
		return
	}

	h.publish(r.Context(), events.EventTriggerRemoved, map[string]interface{}{
		"id":   id,
		"name": name,
	})
	WriteJSON(w, http.StatusOK, map[string]interface{}{"id": id, "removed": true})
}

type nameRequest struct {
	Name string `json:"name"`
}

// Enable activates every trigger with the requested name.
func (h *TriggerHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.byName(w, r, (*trigger.Unit).EnableByName)
}

// Disable deactivates every trigger with the requested name.
func (h *TriggerHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.byName(w, r, (*trigger.Unit).DisableByName)
}

// Kill kills every trigger with the requested name.
func (h *TriggerHandler) Kill(w http.ResponseWriter, r *http.Request) {
	h.byName(w, r, (*trigger.Unit).KillByName)
}

func (h *TriggerHandler) byName(w http.ResponseWriter, r *http.Request, op func(*trigger.Unit, string)) {
	var req nameRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "name is required")
		return
	}

	var matched int
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		matched = len(u.FindByName(req.Name))
		op(u, req.Name)
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"name": req.Name, "matched": matched})
}

// Compile compiles every stale callback and reports how many still fail.
func (h *TriggerHandler) Compile(w http.ResponseWriter, r *http.Request) {
	var failed []int64
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		u.Compile()
		for _, root := range u.Roots() {
			root.Walk(func(n *trigger.Node) {
				if n.NeedsCompile() {
					failed = append(failed, n.ID())
				}
			})
		}
		return nil
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if failed == nil {
		failed = []int64{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"failed": failed})
}

// Import appends triggers built from definitions.
func (h *TriggerHandler) Import(w http.ResponseWriter, r *http.Request) {
	var defs []trigger.Definition
	if err := decodeBody(r, &defs); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if len(defs) == 0 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "no definitions")
		return
	}
	if err := config.ValidateTriggers(defs); err != nil {
		WriteError(w, http.StatusBadRequest, ErrTriggerError, err.Error())
		return
	}

	var total int
	err := h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		if err := u.Import(defs); err != nil {
			return err
		}
		total = u.Len()
		return nil
	})
	if err != nil {
		if isSessionFailure(err) {
			writeSessionError(w, err)
			return
		}
		WriteError(w, http.StatusBadRequest, ErrTriggerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"imported": len(defs), "triggers": total})
}

type tempRequest struct {
	Pattern    string `json:"pattern"`
	Kind       string `json:"kind"`
	Script     string `json:"script"`
	StartDelay int    `json:"start_delay"`
	FireAfter  int    `json:"fire_after"`
}

// Temp registers a temporary trigger. Without a pattern, a positive
// fire_after makes a line-delta trigger instead.
func (h *TriggerHandler) Temp(w http.ResponseWriter, r *http.Request) {
	var req tempRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	lineDelta := req.Pattern == "" && req.FireAfter > 0
	if req.Pattern == "" && !lineDelta {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "pattern or fire_after is required")
		return
	}
	if req.StartDelay < 0 || req.FireAfter < 0 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "start_delay and fire_after must not be negative")
		return
	}
	kind, err := trigger.ParseKind(req.Kind)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	var id int64
	err = h.sess.Do(r.Context(), func(u *trigger.Unit) error {
		if lineDelta {
			id = u.TempLineTrigger(req.StartDelay, req.FireAfter, req.Script)
			return nil
		}
		var err error
		id, err = u.TempTrigger(req.Pattern, kind, req.Script)
		return err
	})
	if err != nil {
		if isSessionFailure(err) {
			writeSessionError(w, err)
			return
		}
		WriteError(w, http.StatusBadRequest, ErrTriggerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (h *TriggerHandler) publish(ctx context.Context, typ string, payload map[string]interface{}) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(ctx, events.Event{Type: typ, Payload: payload})
}

func triggerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid trigger id")
		return 0, false
	}
	return id, true
}

func isSessionFailure(err error) bool {
	return errors.Is(err, session.ErrSessionClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func writeSessionError(w http.ResponseWriter, err error) {
	if isSessionFailure(err) {
		WriteError(w, http.StatusServiceUnavailable, ErrUnavailable, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, ErrSessionError, err.Error())
}
