package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pkordes/missionmap/internal/domain"
)

// RegionService edits the per-region lists: missions, planned trips and
// placed markers. Every method returns the region record as it stands after
// the edit.
type RegionService struct {
	docs  Documents
	names Names
}

// NewRegionService constructs a RegionService. names may be nil.
func NewRegionService(docs Documents, names Names) *RegionService {
	return &RegionService{docs: docs, names: names}
}

// Region returns the record for id. A region with no entries yet comes back
// empty rather than as ErrNotFound.
func (s *RegionService) Region(_ context.Context, id string) (domain.RegionRecord, error) {
	name, err := resolveRegion(s.names, id)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.Region: %w", err)
	}
	return domain.GetOrCreateRegion(s.docs.Snapshot(), id, name), nil
}

// edit runs change against the current record for id and stores the result.
func (s *RegionService) edit(ctx context.Context, id string, change func(r domain.RegionRecord) (domain.RegionPatch, error)) (domain.RegionRecord, error) {
	name, err := resolveRegion(s.names, id)
	if err != nil {
		return domain.RegionRecord{}, err
	}
	doc, err := s.docs.Mutate(ctx, func(doc domain.Document) (domain.Document, error) {
		patch, err := change(domain.GetOrCreateRegion(doc, id, name))
		if err != nil {
			return domain.Document{}, err
		}
		return domain.ApplyRegionUpdate(doc, id, name, patch), nil
	})
	if err != nil {
		return domain.RegionRecord{}, err
	}
	return doc.Regions[id], nil
}

// ---- missions --------------------------------------------------------------

// AddMission validates m and inserts it, keeping missions newest first.
func (s *RegionService) AddMission(ctx context.Context, regionID string, m domain.Mission) (domain.RegionRecord, error) {
	m, err := validateMission(m)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddMission: %w", err)
	}
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		missions := prepend(m, r.Missions)
		return domain.RegionPatch{Missions: &missions}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddMission: %w", err)
	}
	return r, nil
}

// UpdateMission replaces the mission at index and re-sorts.
func (s *RegionService) UpdateMission(ctx context.Context, regionID string, index int, m domain.Mission) (domain.RegionRecord, error) {
	m, err := validateMission(m)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.UpdateMission: %w", err)
	}
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		if err := checkIndex("mission", index, len(r.Missions)); err != nil {
			return domain.RegionPatch{}, err
		}
		missions := append([]domain.Mission{}, r.Missions...)
		missions[index] = m
		return domain.RegionPatch{Missions: &missions}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.UpdateMission: %w", err)
	}
	return r, nil
}

// DeleteMission removes the mission at index. The region record stays even
// when its last entry is removed.
func (s *RegionService) DeleteMission(ctx context.Context, regionID string, index int) (domain.RegionRecord, error) {
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		if err := checkIndex("mission", index, len(r.Missions)); err != nil {
			return domain.RegionPatch{}, err
		}
		missions := removeAt(r.Missions, index)
		return domain.RegionPatch{Missions: &missions}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.DeleteMission: %w", err)
	}
	return r, nil
}

func validateMission(m domain.Mission) (domain.Mission, error) {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		return m, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if err := validateDates(m.StartDate, m.EndDate); err != nil {
		return m, err
	}
	c, err := domain.ParseCategory(string(m.Category))
	if err != nil {
		return m, err
	}
	m.Category = c
	if m.Attendees < 0 {
		return m, fmt.Errorf("%w: attendee count must not be negative", domain.ErrValidation)
	}
	return m, nil
}

// validateDates checks both dates are ISO calendar dates. End before start
// is tolerated.
func validateDates(start, end string) error {
	if _, err := domain.ParseDate("startDate", start); err != nil {
		return err
	}
	if _, err := domain.ParseDate("endDate", end); err != nil {
		return err
	}
	return nil
}

// ---- planned trips ---------------------------------------------------------

// AddTrip puts a planned trip at the front of the list.
func (s *RegionService) AddTrip(ctx context.Context, regionID string, p domain.PlannedTrip) (domain.RegionRecord, error) {
	p, err := validateTrip(p)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddTrip: %w", err)
	}
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		trips := prepend(p, r.PlannedTrips)
		return domain.RegionPatch{PlannedTrips: &trips}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddTrip: %w", err)
	}
	return r, nil
}

// UpdateTrip replaces the planned trip at index in place.
func (s *RegionService) UpdateTrip(ctx context.Context, regionID string, index int, p domain.PlannedTrip) (domain.RegionRecord, error) {
	p, err := validateTrip(p)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.UpdateTrip: %w", err)
	}
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		if err := checkIndex("trip", index, len(r.PlannedTrips)); err != nil {
			return domain.RegionPatch{}, err
		}
		trips := append([]domain.PlannedTrip{}, r.PlannedTrips...)
		trips[index] = p
		return domain.RegionPatch{PlannedTrips: &trips}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.UpdateTrip: %w", err)
	}
	return r, nil
}

// DeleteTrip removes the planned trip at index.
func (s *RegionService) DeleteTrip(ctx context.Context, regionID string, index int) (domain.RegionRecord, error) {
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		if err := checkIndex("trip", index, len(r.PlannedTrips)); err != nil {
			return domain.RegionPatch{}, err
		}
		trips := removeAt(r.PlannedTrips, index)
		return domain.RegionPatch{PlannedTrips: &trips}, nil
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.DeleteTrip: %w", err)
	}
	return r, nil
}

func validateTrip(p domain.PlannedTrip) (domain.PlannedTrip, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return p, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	return p, validateDates(p.StartDate, p.EndDate)
}

// ---- markers ---------------------------------------------------------------

// AddMarker places a new marker at the front of the region's list.
// An empty color picks the first preset.
func (s *RegionService) AddMarker(ctx context.Context, regionID, label, color string) (domain.RegionRecord, error) {
	m, err := newMarker(label, color)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddMarker: %w", err)
	}
	r, err := s.placeMarker(ctx, regionID, m)
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.AddMarker: %w", err)
	}
	return r, nil
}

// ApplyLibraryEntry places a copy of a library template on a region. The
// placed marker gets its own ID and does not track later library changes.
func (s *RegionService) ApplyLibraryEntry(ctx context.Context, regionID, libraryID string) (domain.RegionRecord, error) {
	var entry *domain.LibraryEntry
	for _, e := range s.docs.Snapshot().MarkerLibrary {
		if e.ID == libraryID {
			entry = &e
			break
		}
	}
	if entry == nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.ApplyLibraryEntry: library entry %q: %w", libraryID, domain.ErrNotFound)
	}
	r, err := s.placeMarker(ctx, regionID, domain.Marker{ID: uuid.NewString(), Label: entry.Label, Color: entry.Color})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.ApplyLibraryEntry: %w", err)
	}
	return r, nil
}

func (s *RegionService) placeMarker(ctx context.Context, regionID string, m domain.Marker) (domain.RegionRecord, error) {
	return s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		markers := prepend(m, r.Markers)
		return domain.RegionPatch{Markers: &markers}, nil
	})
}

// DeleteMarker removes the placed marker with markerID.
func (s *RegionService) DeleteMarker(ctx context.Context, regionID, markerID string) (domain.RegionRecord, error) {
	r, err := s.edit(ctx, regionID, func(r domain.RegionRecord) (domain.RegionPatch, error) {
		for i, m := range r.Markers {
			if m.ID == markerID {
				markers := removeAt(r.Markers, i)
				return domain.RegionPatch{Markers: &markers}, nil
			}
		}
		return domain.RegionPatch{}, fmt.Errorf("marker %q: %w", markerID, domain.ErrNotFound)
	})
	if err != nil {
		return domain.RegionRecord{}, fmt.Errorf("service.RegionService.DeleteMarker: %w", err)
	}
	return r, nil
}

func newMarker(label, color string) (domain.Marker, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.Marker{}, fmt.Errorf("%w: label is required", domain.ErrValidation)
	}
	c, err := domain.NormalizeColor(color)
	if err != nil {
		return domain.Marker{}, err
	}
	return domain.Marker{ID: uuid.NewString(), Label: label, Color: c}, nil
}
