package handler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/handler"
	"github.com/pkordes/missionmap/internal/places"
	"github.com/pkordes/missionmap/internal/service"
)

func TestListLibrary(t *testing.T) {
	entries := []domain.LibraryEntry{{ID: "lib-1", Label: "Escola", Color: "#2563eb"}}
	h := newHTTPHandler(handler.Deps{Library: &mockLibrary{
		list: func(context.Context) []domain.LibraryEntry { return entries },
	}})

	rec := do(t, h, http.MethodGet, "/library", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []domain.LibraryEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, entries, got)
}

func TestSaveLibraryEntry(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Library: &mockLibrary{
		save: func(_ context.Context, label, color string) (domain.LibraryEntry, error) {
			return domain.LibraryEntry{ID: "lib-2", Label: label, Color: color}, nil
		},
	}})

	rec := do(t, h, http.MethodPost, "/library", `{"label":"Posto de saúde","color":"#16a34a"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"lib-2","label":"Posto de saúde","color":"#16a34a"}`, rec.Body.String())
}

func TestSaveLibraryEntry_blankLabel(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Library: &mockLibrary{
		save: func(context.Context, string, string) (domain.LibraryEntry, error) {
			return domain.LibraryEntry{}, fmt.Errorf("service.LibraryService.Save: %w: label is required", domain.ErrValidation)
		},
	}})

	rec := do(t, h, http.MethodPost, "/library", `{"label":"  "}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "label is required", decodeError(t, rec).Message)
}

func TestDeleteLibraryEntry(t *testing.T) {
	var deleted string
	h := newHTTPHandler(handler.Deps{Library: &mockLibrary{
		delete: func(_ context.Context, id string) error {
			if id != "lib-1" {
				return fmt.Errorf("service.LibraryService.Delete: library entry %q: %w", id, domain.ErrNotFound)
			}
			deleted = id
			return nil
		},
	}})

	rec := do(t, h, http.MethodDelete, "/library/lib-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "lib-1", deleted)

	rec = do(t, h, http.MethodDelete, "/library/lib-9", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `library entry "lib-9" not found`, decodeError(t, rec).Message)
}

func TestGetReport(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Reports: &mockReports{
		build: func(context.Context) service.Report {
			return service.Report{TotalMissions: 3, RegionsVisited: 2, Regions: []service.RegionSummary{{ID: "1302603", Missions: 2}}}
		},
	}})

	rec := do(t, h, http.MethodGet, "/report", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var got service.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 3, got.TotalMissions)
	assert.Equal(t, 2, got.RegionsVisited)
}

func TestSearchPlaces(t *testing.T) {
	var gotQuery string
	var gotLimit int
	h := newHTTPHandler(handler.Deps{Places: &mockPlaces{
		search: func(q string, limit int) []places.Place {
			gotQuery, gotLimit = q, limit
			return []places.Place{{ID: "1300144", Name: "Apuí"}}
		},
	}})

	rec := do(t, h, http.MethodGet, "/places?q=apui", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"1300144","name":"Apuí"}]`, rec.Body.String())
	assert.Equal(t, "apui", gotQuery)
	assert.Equal(t, 20, gotLimit)

	rec = do(t, h, http.MethodGet, "/places?q=a&limit=500", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, gotLimit)
}

func TestSearchPlaces_badLimit(t *testing.T) {
	h := newHTTPHandler(handler.Deps{Places: &mockPlaces{}})

	rec := do(t, h, http.MethodGet, "/places?q=a&limit=many", nil)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSearchPlaces_noCatalog(t *testing.T) {
	h := newHTTPHandler(handler.Deps{})

	rec := do(t, h, http.MethodGet, "/places?q=manaus", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
