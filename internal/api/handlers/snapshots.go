// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/lattice/internal/store"
)

// SnapshotService saves and restores the trigger tree of the running
// profile.
type SnapshotService interface {
	List(ctx context.Context) ([]store.Snapshot, error)
	Save(ctx context.Context) (store.Snapshot, error)
	Restore(ctx context.Context, id string) (store.Snapshot, error)
}

// SnapshotHandler handles snapshot requests.
type SnapshotHandler struct {
	snaps SnapshotService
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(snaps SnapshotService) *SnapshotHandler {
	return &SnapshotHandler{snaps: snaps}
}

// List returns the profile's snapshots, newest first.
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.snaps.List(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrStoreError, err.Error())
		return
	}
	if list == nil {
		list = []store.Snapshot{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// Create saves the current tree.
func (h *SnapshotHandler) Create(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snaps.Save(r.Context())
	if err != nil {
		if isSessionFailure(err) {
			writeSessionError(w, err)
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrStoreError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, snap)
}

// Restore replaces the current tree with a saved one.
func (h *SnapshotHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := h.snaps.Restore(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "snapshot not found")
		return
	}
	if err != nil {
		if isSessionFailure(err) {
			writeSessionError(w, err)
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrStoreError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}
