package gedcom

import "arbor/api/internal/place"

// DefaultReferenceYear anchors the seed window when a caller does not
// supply one.
const DefaultReferenceYear = 2025

// seedWindowYears is how far back from the reference year a birth can
// fall while still counting as a starting-generation person.
const seedWindowYears = 50

type filterRun struct {
	source   *Graph
	maxGen   int
	people   map[string]bool
	families map[string]bool
}

// FilterGenerations returns a new graph restricted to the ancestor
// subgraph reachable from "recent" people (birth year within
// seedWindowYears of referenceYear) in at most maxGenerations upward
// steps. The input graph is not mutated; person and family records are
// shared where unchanged and families are copied where their member
// lists need trimming. A maxGenerations of zero or less yields the
// seeds alone.
func (g *Graph) FilterGenerations(maxGenerations, referenceYear int) *Graph {
	if referenceYear <= 0 {
		referenceYear = DefaultReferenceYear
	}
	run := &filterRun{
		source:   g,
		maxGen:   maxGenerations,
		people:   make(map[string]bool),
		families: make(map[string]bool),
	}

	cutoff := referenceYear - seedWindowYears
	for _, id := range g.SortedPersonIDs() {
		year := place.ExtractYear(g.People[id].BirthDate)
		if year >= cutoff && year > 0 {
			run.visitPerson(id, 0)
		}
	}

	return run.build()
}

// visitPerson includes a person and walks upward. Already-included
// people are not reprocessed, which both terminates cyclic references
// and matches the idempotent-visitation contract.
func (r *filterRun) visitPerson(id string, generation int) {
	if r.people[id] {
		return
	}
	person, ok := r.source.People[id]
	if !ok {
		return
	}
	r.people[id] = true

	if generation < r.maxGen {
		if person.FamC != "" {
			r.families[person.FamC] = true
		}
		for _, parent := range r.source.ChildToParents[id] {
			r.visitPerson(parent, generation+1)
		}
	}

	// Spouse families are retained for marriage context without
	// spending a generation step; their members are trimmed later to
	// whoever made it in on their own.
	for _, famID := range person.FamS {
		if _, ok := r.source.Families[famID]; ok {
			r.families[famID] = true
		}
	}
}

func (r *filterRun) build() *Graph {
	out := NewGraph()
	for id := range r.people {
		out.People[id] = r.source.People[id]
	}
	for id := range r.families {
		src := r.source.Families[id]
		family := &Family{
			ID:            src.ID,
			MarriageDate:  src.MarriageDate,
			MarriagePlace: src.MarriagePlace,
		}
		if r.people[src.Husband] {
			family.Husband = src.Husband
		}
		if r.people[src.Wife] {
			family.Wife = src.Wife
		}
		for _, child := range src.Children {
			if r.people[child] {
				family.Children = append(family.Children, child)
			}
		}
		out.Families[id] = family
	}
	out.buildIndices()
	return out
}
