// Package domain contains the core data types for the mission tracker.
// The Document is the single unit of local persistence and remote replication;
// every other type in this package is a part of it or a helper over it.
// This package has no dependencies on any other internal package.
package domain

import (
	"encoding/json"
	"sort"
)

// Mission is a completed field mission logged against a region.
// Dates are ISO 8601 calendar dates ("2006-01-02"). EndDate is expected to be
// on or after StartDate but this is not enforced.
type Mission struct {
	Title     string   `json:"title"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Category  Category `json:"purpose"`
	Attendees int      `json:"attendanceCount,omitempty"`
	Notes     string   `json:"observations,omitempty"`
}

// PlannedTrip is a forward-looking trip. Unlike Mission it has no attendee count
// and its list keeps insertion order (most recent addition first).
type PlannedTrip struct {
	Title          string `json:"title"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Notes          string `json:"observations,omitempty"`
	CalendarSynced bool   `json:"calendarSynced,omitempty"`
}

// Marker is a label placed on a single region.
// ID exists only for list identity and deletion; nothing references it.
type Marker struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// LibraryEntry is a reusable (label, color) template. Deleting one never
// touches markers already placed from it.
type LibraryEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// RegionRecord aggregates everything recorded for one municipality.
// ID comes from the geographic reference dataset and is never generated locally.
// Name is a display copy resolved from the places catalog; it is not authoritative.
//
// Missions are kept ordered by StartDate descending. PlannedTrips and Markers
// keep insertion order with the newest first.
type RegionRecord struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Missions     []Mission     `json:"visits"`
	PlannedTrips []PlannedTrip `json:"scheduledTrips"`
	Markers      []Marker      `json:"customMarkers"`
}

// Document is the whole application dataset.
// There is no per-region granularity at the sync boundary: the Document is
// always persisted and replicated in full.
type Document struct {
	Regions       map[string]RegionRecord `json:"regionRecords"`
	MarkerLibrary []LibraryEntry          `json:"markerLibrary"`
}

// Empty returns a Document with no regions and an empty library.
func Empty() Document {
	return Document{
		Regions:       map[string]RegionRecord{},
		MarkerLibrary: []LibraryEntry{},
	}
}

// UnmarshalJSON decodes a Document, also accepting the "userStats" key written
// by the first releases of the dashboard. Missing collections decode as empty.
func (d *Document) UnmarshalJSON(b []byte) error {
	var raw struct {
		Regions       map[string]RegionRecord `json:"regionRecords"`
		UserStats     map[string]RegionRecord `json:"userStats"`
		MarkerLibrary []LibraryEntry          `json:"markerLibrary"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	regions := raw.Regions
	if regions == nil {
		regions = raw.UserStats
	}
	out := Empty()
	for id, r := range regions {
		out.Regions[id] = r.normalized(id)
	}
	if raw.MarkerLibrary != nil {
		out.MarkerLibrary = raw.MarkerLibrary
	}
	*d = out
	return nil
}

// normalized fills nil lists and a missing ID so that decoded records look
// exactly like records created through GetOrCreateRegion.
func (r RegionRecord) normalized(id string) RegionRecord {
	if r.ID == "" {
		r.ID = id
	}
	if r.Missions == nil {
		r.Missions = []Mission{}
	}
	if r.PlannedTrips == nil {
		r.PlannedTrips = []PlannedTrip{}
	}
	if r.Markers == nil {
		r.Markers = []Marker{}
	}
	return r
}

// Clone returns a deep copy of d. Readers outside the sync controller only
// ever receive clones, so they can never alter the controller's state.
func (d Document) Clone() Document {
	out := Document{
		Regions:       make(map[string]RegionRecord, len(d.Regions)),
		MarkerLibrary: append([]LibraryEntry{}, d.MarkerLibrary...),
	}
	for id, r := range d.Regions {
		out.Regions[id] = r.clone()
	}
	return out
}

func (r RegionRecord) clone() RegionRecord {
	r.Missions = append([]Mission{}, r.Missions...)
	r.PlannedTrips = append([]PlannedTrip{}, r.PlannedTrips...)
	r.Markers = append([]Marker{}, r.Markers...)
	return r
}

// RegionPatch carries a partial update for a RegionRecord.
// Nil fields are left untouched by ApplyRegionUpdate.
type RegionPatch struct {
	Name         *string
	Missions     *[]Mission
	PlannedTrips *[]PlannedTrip
	Markers      *[]Marker
}

// GetOrCreateRegion returns the record for id, or a fresh empty record seeded
// with name when the document has none. The fresh record is not inserted.
func GetOrCreateRegion(doc Document, id, name string) RegionRecord {
	if r, ok := doc.Regions[id]; ok {
		return r
	}
	return RegionRecord{
		ID:           id,
		Name:         name,
		Missions:     []Mission{},
		PlannedTrips: []PlannedTrip{},
		Markers:      []Marker{},
	}
}

// ApplyRegionUpdate returns a new Document in which the region id has the
// supplied patch fields shallow-merged in. The input document is not modified;
// records for other regions are shared with it and must be treated as read-only.
//
// Supplying Missions re-establishes the descending StartDate order.
func ApplyRegionUpdate(doc Document, id, name string, patch RegionPatch) Document {
	current := GetOrCreateRegion(doc, id, name)
	if patch.Name != nil {
		current.Name = *patch.Name
	}
	if patch.Missions != nil {
		current.Missions = append([]Mission{}, (*patch.Missions)...)
		SortMissions(current.Missions)
	}
	if patch.PlannedTrips != nil {
		current.PlannedTrips = append([]PlannedTrip{}, (*patch.PlannedTrips)...)
	}
	if patch.Markers != nil {
		current.Markers = append([]Marker{}, (*patch.Markers)...)
	}

	out := Document{
		Regions:       make(map[string]RegionRecord, len(doc.Regions)+1),
		MarkerLibrary: doc.MarkerLibrary,
	}
	for k, v := range doc.Regions {
		out.Regions[k] = v
	}
	out.Regions[id] = current
	if out.MarkerLibrary == nil {
		out.MarkerLibrary = []LibraryEntry{}
	}
	return out
}

// WithLibrary returns a new Document whose marker library is lib.
// Regions are shared with doc.
func WithLibrary(doc Document, lib []LibraryEntry) Document {
	out := Document{
		Regions:       doc.Regions,
		MarkerLibrary: append([]LibraryEntry{}, lib...),
	}
	if out.Regions == nil {
		out.Regions = map[string]RegionRecord{}
	}
	return out
}

// SortMissions orders missions by StartDate descending (most recent first).
// ISO dates compare correctly as strings. The sort is stable so missions that
// share a start date keep their relative order.
func SortMissions(m []Mission) {
	sort.SliceStable(m, func(i, j int) bool {
		return m[i].StartDate > m[j].StartDate
	})
}

// IsEmpty reports whether d holds no regions and no library entries.
func (d Document) IsEmpty() bool {
	return len(d.Regions) == 0 && len(d.MarkerLibrary) == 0
}
