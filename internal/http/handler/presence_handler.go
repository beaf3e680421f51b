package handler

import (
	"net/http"

	"github.com/sandeepkv93/realtime-hub/internal/http/response"
	"github.com/sandeepkv93/realtime-hub/internal/service"
)

// ConnectionCounter reports identities with at least one live socket.
type ConnectionCounter interface {
	OnlineIdentities() []uint
}

type PresenceHandler struct {
	presence    *service.PresenceService
	connections ConnectionCounter
}

func NewPresenceHandler(presence *service.PresenceService, connections ConnectionCounter) *PresenceHandler {
	return &PresenceHandler{presence: presence, connections: connections}
}

type presenceStats struct {
	service.PresenceSnapshot
	ConnectedIdentities int `json:"connected_identities"`
}

func (h *PresenceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.presence.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := presenceStats{PresenceSnapshot: snap}
	if h.connections != nil {
		out.ConnectedIdentities = len(h.connections.OnlineIdentities())
	}
	response.JSON(w, r, http.StatusOK, out)
}
