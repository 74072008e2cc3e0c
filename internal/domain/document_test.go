package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/missionmap/internal/domain"
)

func missionOn(start string) domain.Mission {
	return domain.Mission{Title: "m " + start, StartDate: start, EndDate: start, Category: domain.CategoryWork}
}

// TestApplyRegionUpdate_unknownRegionIsSeeded verifies that updating an id the
// document has never seen creates a record with empty lists plus the supplied fields.
func TestApplyRegionUpdate_unknownRegionIsSeeded(t *testing.T) {
	markers := []domain.Marker{{ID: "1", Label: "Polo", Color: "#2563eb"}}

	doc := domain.ApplyRegionUpdate(domain.Empty(), "1302603", "Manaus", domain.RegionPatch{Markers: &markers})

	r, ok := doc.Regions["1302603"]
	require.True(t, ok)
	assert.Equal(t, "1302603", r.ID)
	assert.Equal(t, "Manaus", r.Name)
	assert.Equal(t, []domain.Mission{}, r.Missions)
	assert.Equal(t, []domain.PlannedTrip{}, r.PlannedTrips)
	assert.Equal(t, markers, r.Markers)
}

// TestApplyRegionUpdate_mergesOnlySuppliedFields verifies the shallow merge:
// fields absent from the patch keep their previous values.
func TestApplyRegionUpdate_mergesOnlySuppliedFields(t *testing.T) {
	missions := []domain.Mission{missionOn("2024-01-01")}
	doc := domain.ApplyRegionUpdate(domain.Empty(), "1302603", "Manaus", domain.RegionPatch{Missions: &missions})

	trips := []domain.PlannedTrip{{Title: "Planejada", StartDate: "2024-09-01", EndDate: "2024-09-02"}}
	doc = domain.ApplyRegionUpdate(doc, "1302603", "ignored", domain.RegionPatch{PlannedTrips: &trips})

	r := doc.Regions["1302603"]
	assert.Equal(t, "Manaus", r.Name, "name of an existing record is not re-seeded")
	assert.Equal(t, missions, r.Missions)
	assert.Equal(t, trips, r.PlannedTrips)
}

// TestApplyRegionUpdate_doesNotMutateInput verifies that the input document is
// left exactly as it was.
func TestApplyRegionUpdate_doesNotMutateInput(t *testing.T) {
	first := []domain.Mission{missionOn("2024-01-01")}
	before := domain.ApplyRegionUpdate(domain.Empty(), "a", "A", domain.RegionPatch{Missions: &first})

	second := []domain.Mission{missionOn("2024-02-01")}
	after := domain.ApplyRegionUpdate(before, "b", "B", domain.RegionPatch{Missions: &second})

	assert.Len(t, before.Regions, 1)
	assert.Len(t, after.Regions, 2)

	// Mutating the patch slice afterwards must not leak into the document.
	second[0].Title = "changed"
	assert.Equal(t, "m 2024-02-01", after.Regions["b"].Missions[0].Title)
}

// TestApplyRegionUpdate_keepsMissionsSorted checks the ordering invariant from
// the dashboard: a mission dated 2024-03-10 lands between 2024-05-01 and 2024-01-01.
func TestApplyRegionUpdate_keepsMissionsSorted(t *testing.T) {
	missions := []domain.Mission{missionOn("2024-05-01"), missionOn("2024-01-01")}
	doc := domain.ApplyRegionUpdate(domain.Empty(), "r", "R", domain.RegionPatch{Missions: &missions})

	next := append([]domain.Mission{missionOn("2024-03-10")}, doc.Regions["r"].Missions...)
	doc = domain.ApplyRegionUpdate(doc, "r", "R", domain.RegionPatch{Missions: &next})

	var got []string
	for _, m := range doc.Regions["r"].Missions {
		got = append(got, m.StartDate)
	}
	assert.Equal(t, []string{"2024-05-01", "2024-03-10", "2024-01-01"}, got)
}

func TestGetOrCreateRegion_doesNotInsert(t *testing.T) {
	doc := domain.Empty()

	r := domain.GetOrCreateRegion(doc, "1300029", "Alvarães")

	assert.Equal(t, "Alvarães", r.Name)
	assert.Empty(t, doc.Regions)
}

func TestClone_isDeep(t *testing.T) {
	markers := []domain.Marker{{ID: "1", Label: "Polo", Color: "#2563eb"}}
	doc := domain.ApplyRegionUpdate(domain.Empty(), "r", "R", domain.RegionPatch{Markers: &markers})

	c := doc.Clone()
	c.Regions["r"].Markers[0].Label = "changed"
	c.Regions["x"] = domain.RegionRecord{ID: "x"}

	assert.Equal(t, "Polo", doc.Regions["r"].Markers[0].Label)
	assert.NotContains(t, doc.Regions, "x")
}

// TestDocument_UnmarshalLegacy verifies that blobs written by the first
// dashboard releases (userStats key, Portuguese purposes, missing lists) load.
func TestDocument_UnmarshalLegacy(t *testing.T) {
	raw := `{
		"userStats": {
			"1302603": {"name": "Manaus", "visits": [
				{"title": "Visita", "startDate": "2024-06-01", "endDate": "2024-06-03", "purpose": "trabalho", "attendanceCount": 42}
			]}
		}
	}`

	var doc domain.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	r := doc.Regions["1302603"]
	assert.Equal(t, "1302603", r.ID)
	assert.Equal(t, domain.CategoryWork, r.Missions[0].Category)
	assert.Equal(t, 42, r.Missions[0].Attendees)
	assert.NotNil(t, r.PlannedTrips)
	assert.NotNil(t, r.Markers)
	assert.NotNil(t, doc.MarkerLibrary)
}

func TestDecodeEnvelope_bareDocument(t *testing.T) {
	env, err := domain.DecodeEnvelope([]byte(`{"regionRecords": {}, "markerLibrary": [{"id": "1", "label": "Polo", "color": "#fff"}]}`))

	require.NoError(t, err)
	assert.True(t, env.Stamp.IsZero())
	assert.Len(t, env.Document.MarkerLibrary, 1)
}

func TestDecodeEnvelope_roundTrip(t *testing.T) {
	in := domain.Envelope{Stamp: domain.Stamp{Revision: 7, Writer: "dev-a"}, Document: domain.Empty()}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	out, err := domain.DecodeEnvelope(b)

	require.NoError(t, err)
	assert.Equal(t, in.Stamp, out.Stamp)
}

func TestDecodeEnvelope_garbage(t *testing.T) {
	_, err := domain.DecodeEnvelope([]byte("{not json"))
	assert.Error(t, err)
}
