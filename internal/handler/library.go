package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type libraryEntryRequest struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// listLibrary handles GET /library.
func (s *Server) listLibrary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.List(r.Context()))
}

// saveLibraryEntry handles POST /library. Saving a label that already exists
// replaces the older entry.
func (s *Server) saveLibraryEntry(w http.ResponseWriter, r *http.Request) {
	var body libraryEntryRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	entry, err := s.library.Save(r.Context(), body.Label, body.Color)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// deleteLibraryEntry handles DELETE /library/{entryID}.
func (s *Server) deleteLibraryEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Delete(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
