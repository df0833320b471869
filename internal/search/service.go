package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexNote indexes a research note (fire-and-forget to Meilisearch).
func (s *Service) IndexNote(n NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexNote(n); err != nil {
			log.Printf("search: index note %s: %v", n.ID, err)
		}
	}()
}

// DeleteNote removes a note from the search index (fire-and-forget).
func (s *Service) DeleteNote(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteNote(id); err != nil {
			log.Printf("search: delete note %s: %v", id, err)
		}
	}()
}

// DeleteTree removes every indexed record for a tree (fire-and-forget).
func (s *Service) DeleteTree(treeID string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTree(treeID); err != nil {
			log.Printf("search: delete tree %s: %v", treeID, err)
		}
	}()
}

// IndexTree bulk-indexes the given records, typically right after an
// import or a filter rewrote a tree's contents.
func (s *Service) IndexTree(persons []PersonRecord, places []PlaceRecord, notes []NoteRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}

	if err := s.meili.IndexPersons(persons); err != nil {
		log.Printf("search: bulk index persons: %v", err)
	}
	if err := s.meili.IndexPlaces(places); err != nil {
		log.Printf("search: bulk index places: %v", err)
	}
	if err := s.meili.IndexNotes(notes); err != nil {
		log.Printf("search: bulk index notes: %v", err)
	}
}

// ReindexTreeFromPG reloads one tree's rows from PostgreSQL and pushes
// them to Meilisearch. Used after Meilisearch recovers or when an index
// drifts out of sync.
func (s *Service) ReindexTreeFromPG(ctx context.Context, treeID string) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	persons, notes, err := s.pgfts.LoadTreeRecords(ctx, treeID)
	if err != nil {
		log.Printf("search: reindex load for tree %s failed: %v", treeID, err)
		return
	}
	s.IndexTree(persons, nil, notes)
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
