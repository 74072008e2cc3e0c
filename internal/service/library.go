package service

import (
	"context"
	"fmt"

	"github.com/pkordes/missionmap/internal/domain"
)

// LibraryService manages reusable marker templates.
type LibraryService struct {
	docs Documents
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(docs Documents) *LibraryService {
	return &LibraryService{docs: docs}
}

// List returns the library, most recently saved first.
func (s *LibraryService) List(_ context.Context) []domain.LibraryEntry {
	return s.docs.Snapshot().MarkerLibrary
}

// Save adds a template at the front of the library. An existing template
// with the same label is replaced.
func (s *LibraryService) Save(ctx context.Context, label, color string) (domain.LibraryEntry, error) {
	m, err := newMarker(label, color)
	if err != nil {
		return domain.LibraryEntry{}, fmt.Errorf("service.LibraryService.Save: %w", err)
	}
	entry := domain.LibraryEntry{ID: m.ID, Label: m.Label, Color: m.Color}

	_, err = s.docs.Mutate(ctx, func(doc domain.Document) (domain.Document, error) {
		lib := []domain.LibraryEntry{entry}
		for _, e := range doc.MarkerLibrary {
			if e.Label != entry.Label {
				lib = append(lib, e)
			}
		}
		return domain.WithLibrary(doc, lib), nil
	})
	if err != nil {
		return domain.LibraryEntry{}, fmt.Errorf("service.LibraryService.Save: %w", err)
	}
	return entry, nil
}

// Delete removes a template. Markers already placed from it are untouched.
func (s *LibraryService) Delete(ctx context.Context, id string) error {
	_, err := s.docs.Mutate(ctx, func(doc domain.Document) (domain.Document, error) {
		for i, e := range doc.MarkerLibrary {
			if e.ID == id {
				return domain.WithLibrary(doc, removeAt(doc.MarkerLibrary, i)), nil
			}
		}
		return domain.Document{}, fmt.Errorf("library entry %q: %w", id, domain.ErrNotFound)
	})
	if err != nil {
		return fmt.Errorf("service.LibraryService.Delete: %w", err)
	}
	return nil
}
