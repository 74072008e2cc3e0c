package service_test

import (
	"context"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/service"
)

// memDocs is a hand-written Documents double that applies mutations to an
// in-memory document synchronously.
type memDocs struct {
	doc     domain.Document
	mutates int
	err     error
}

func newMemDocs() *memDocs { return &memDocs{doc: domain.Empty()} }

func (m *memDocs) Snapshot() domain.Document { return m.doc.Clone() }

func (m *memDocs) Mutate(_ context.Context, fn func(domain.Document) (domain.Document, error)) (domain.Document, error) {
	if m.err != nil {
		return domain.Document{}, m.err
	}
	next, err := fn(m.doc.Clone())
	if err != nil {
		return domain.Document{}, err
	}
	m.mutates++
	m.doc = next
	return next.Clone(), nil
}

// compile-time check: memDocs must satisfy service.Documents.
var _ service.Documents = (*memDocs)(nil)

// mapNames is a Names table backed by a map.
type mapNames map[string]string

func (n mapNames) Name(id string) (string, bool) {
	name, ok := n[id]
	return name, ok
}

var amazonas = mapNames{"1302603": "Manaus", "1300144": "Apuí", "1301209": "Coari"}
