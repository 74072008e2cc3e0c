package handler

import (
	"net/http"
)

type identityBody struct {
	SyncID string `json:"syncId"`
}

// getSyncStatus handles GET /sync/status.
func (s *Server) getSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sync.State())
}

// syncNow handles POST /sync/now. Remote failures are reported to the caller
// as 502; the local document is unaffected either way.
func (s *Server) syncNow(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.SyncNow(r.Context()); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.sync.State())
}

// getIdentity handles GET /sync/identity.
func (s *Server) getIdentity(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, identityBody{SyncID: s.sync.SyncID()})
}

// linkIdentity handles PUT /sync/identity: pairs this install with the
// identity shown on another device.
func (s *Server) linkIdentity(w http.ResponseWriter, r *http.Request) {
	var body identityBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := s.sync.LinkIdentity(r.Context(), body.SyncID); err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identityBody{SyncID: s.sync.SyncID()})
}
