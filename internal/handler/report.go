package handler

import (
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/pkordes/missionmap/internal/places"
)

const (
	defaultPlaceLimit = 20
	maxPlaceLimit     = 100
)

// getReport handles GET /report.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reports.Build(r.Context()))
}

// searchPlaces handles GET /places?q=&limit=.
func (s *Server) searchPlaces(w http.ResponseWriter, r *http.Request) {
	var (
		query string
		limit *int
	)
	if err := runtime.BindQueryParameter("form", true, false, "q", r.URL.Query(), &query); err != nil {
		requestError(w, "q must be a string")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		requestError(w, "limit must be an integer")
		return
	}

	n := defaultPlaceLimit
	if limit != nil {
		n = min(max(*limit, 1), maxPlaceLimit)
	}
	if s.places == nil {
		writeJSON(w, http.StatusOK, []places.Place{})
		return
	}
	writeJSON(w, http.StatusOK, s.places.Search(query, n))
}
