package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/missionmap/internal/domain"
)

type missionRequest struct {
	Title     string              `json:"title"`
	StartDate *openapi_types.Date `json:"startDate"`
	EndDate   *openapi_types.Date `json:"endDate"`
	Category  string              `json:"purpose"`
	Attendees int                 `json:"attendanceCount"`
	Notes     string              `json:"observations"`
}

func (m missionRequest) toDomain() domain.Mission {
	return domain.Mission{
		Title:     m.Title,
		StartDate: dateString(m.StartDate),
		EndDate:   dateString(m.EndDate),
		// Parsed and validated by the service.
		Category:  domain.Category(m.Category),
		Attendees: m.Attendees,
		Notes:     m.Notes,
	}
}

type tripRequest struct {
	Title          string              `json:"title"`
	StartDate      *openapi_types.Date `json:"startDate"`
	EndDate        *openapi_types.Date `json:"endDate"`
	Notes          string              `json:"observations"`
	CalendarSynced bool                `json:"calendarSynced"`
}

func (p tripRequest) toDomain() domain.PlannedTrip {
	return domain.PlannedTrip{
		Title:          p.Title,
		StartDate:      dateString(p.StartDate),
		EndDate:        dateString(p.EndDate),
		Notes:          p.Notes,
		CalendarSynced: p.CalendarSynced,
	}
}

type markerRequest struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// regionResult writes the region record returned by an edit, or the error.
func (s *Server) regionResult(w http.ResponseWriter, r *http.Request, status int, rec domain.RegionRecord, err error) {
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, status, rec)
}

// getRegion handles GET /regions/{regionID}.
func (s *Server) getRegion(w http.ResponseWriter, r *http.Request) {
	rec, err := s.regions.Region(r.Context(), chi.URLParam(r, "regionID"))
	s.regionResult(w, r, http.StatusOK, rec, err)
}

// ---- missions --------------------------------------------------------------

// addMission handles POST /regions/{regionID}/missions.
func (s *Server) addMission(w http.ResponseWriter, r *http.Request) {
	var body missionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	rec, err := s.regions.AddMission(r.Context(), chi.URLParam(r, "regionID"), body.toDomain())
	s.regionResult(w, r, http.StatusCreated, rec, err)
}

// updateMission handles PUT /regions/{regionID}/missions/{index}.
func (s *Server) updateMission(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var body missionRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	rec, err := s.regions.UpdateMission(r.Context(), chi.URLParam(r, "regionID"), index, body.toDomain())
	s.regionResult(w, r, http.StatusOK, rec, err)
}

// deleteMission handles DELETE /regions/{regionID}/missions/{index}.
// The region record is returned, even when its last mission was removed.
func (s *Server) deleteMission(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	rec, err := s.regions.DeleteMission(r.Context(), chi.URLParam(r, "regionID"), index)
	s.regionResult(w, r, http.StatusOK, rec, err)
}

// ---- planned trips ---------------------------------------------------------

func (s *Server) addTrip(w http.ResponseWriter, r *http.Request) {
	var body tripRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	rec, err := s.regions.AddTrip(r.Context(), chi.URLParam(r, "regionID"), body.toDomain())
	s.regionResult(w, r, http.StatusCreated, rec, err)
}

func (s *Server) updateTrip(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	var body tripRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	rec, err := s.regions.UpdateTrip(r.Context(), chi.URLParam(r, "regionID"), index, body.toDomain())
	s.regionResult(w, r, http.StatusOK, rec, err)
}

func (s *Server) deleteTrip(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	rec, err := s.regions.DeleteTrip(r.Context(), chi.URLParam(r, "regionID"), index)
	s.regionResult(w, r, http.StatusOK, rec, err)
}

// ---- markers ---------------------------------------------------------------

// addMarker handles POST /regions/{regionID}/markers.
func (s *Server) addMarker(w http.ResponseWriter, r *http.Request) {
	var body markerRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	rec, err := s.regions.AddMarker(r.Context(), chi.URLParam(r, "regionID"), body.Label, body.Color)
	s.regionResult(w, r, http.StatusCreated, rec, err)
}

func (s *Server) deleteMarker(w http.ResponseWriter, r *http.Request) {
	rec, err := s.regions.DeleteMarker(r.Context(), chi.URLParam(r, "regionID"), chi.URLParam(r, "markerID"))
	s.regionResult(w, r, http.StatusOK, rec, err)
}

// applyLibraryEntry handles POST /regions/{regionID}/markers/from-library/{libraryID}.
func (s *Server) applyLibraryEntry(w http.ResponseWriter, r *http.Request) {
	rec, err := s.regions.ApplyLibraryEntry(r.Context(), chi.URLParam(r, "regionID"), chi.URLParam(r, "libraryID"))
	s.regionResult(w, r, http.StatusCreated, rec, err)
}
