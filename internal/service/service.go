// Package service contains the mission dashboard's business operations.
// Services validate inputs and express every edit as a pure document
// transformation handed to the sync controller; they never touch storage.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkordes/missionmap/internal/domain"
)

// Documents is the slice of the sync controller the services depend on.
// *syncer.Controller satisfies it.
type Documents interface {
	Snapshot() domain.Document
	Mutate(ctx context.Context, fn func(domain.Document) (domain.Document, error)) (domain.Document, error)
}

// Names resolves a region ID to its display name. ok is false for IDs the
// reference table does not know.
type Names interface {
	Name(id string) (name string, ok bool)
}

// resolveRegion validates id and returns its display name. With no Names
// table every non-blank ID is accepted.
func resolveRegion(names Names, id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: region id is required", domain.ErrValidation)
	}
	if names == nil {
		return "", nil
	}
	name, ok := names.Name(id)
	if !ok {
		return "", fmt.Errorf("region %q: %w", id, domain.ErrNotFound)
	}
	return name, nil
}

// checkIndex reports ErrNotFound for an index outside a list of length n.
func checkIndex(what string, index, n int) error {
	if index < 0 || index >= n {
		return fmt.Errorf("%s %d: %w", what, index, domain.ErrNotFound)
	}
	return nil
}

// removeAt returns a copy of list without element i.
func removeAt[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

// prepend returns a copy of list with v in front.
func prepend[T any](v T, list []T) []T {
	return append([]T{v}, list...)
}
