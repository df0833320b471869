// Package gedcom parses line-oriented GEDCOM text into an in-memory
// genealogical graph and serializes graphs back to GEDCOM 5.5.1 text.
package gedcom

import "sort"

// Person is one INDI record. Every field except ID is optional because
// source data is incomplete by nature.
type Person struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Surname    string   `json:"surname,omitempty"`
	Nickname   string   `json:"nickname,omitempty"`
	MaidenName string   `json:"maidenName,omitempty"`
	Sex        string   `json:"sex,omitempty"`
	BirthDate  string   `json:"birthDate,omitempty"`
	BirthPlace string   `json:"birthPlace,omitempty"`
	DeathDate  string   `json:"deathDate,omitempty"`
	DeathPlace string   `json:"deathPlace,omitempty"`
	Occupation string   `json:"occupation,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Events     []Event  `json:"events,omitempty"`
	// FamC is the family this person is a child of; last FAMC tag wins.
	FamC string `json:"famc,omitempty"`
	// FamS lists the families this person is a spouse in; FAMS tags accumulate.
	FamS []string `json:"fams,omitempty"`
}

// Event is a dated, placed occurrence attached to a person beyond
// birth and death (residence, immigration, UI-entered events).
type Event struct {
	Type  string `json:"type,omitempty"`
	Date  string `json:"date,omitempty"`
	Place string `json:"place,omitempty"`
	Year  int    `json:"year,omitempty"`
}

// Family is one FAM record. HUSB and WIFE overwrite on repeat; CHIL
// entries accumulate and are deliberately not deduplicated.
type Family struct {
	ID            string   `json:"id"`
	Husband       string   `json:"husband,omitempty"`
	Wife          string   `json:"wife,omitempty"`
	Children      []string `json:"children,omitempty"`
	MarriageDate  string   `json:"marriageDate,omitempty"`
	MarriagePlace string   `json:"marriagePlace,omitempty"`
}

// Graph is the parse result: the record maps plus the derived
// child-to-parents index and root set. It is built once per import and
// treated as an immutable snapshot by callers.
type Graph struct {
	People         map[string]*Person
	Families       map[string]*Family
	ChildToParents map[string][]string
	Roots          []string
}

// NewGraph returns an empty graph with all maps allocated.
func NewGraph() *Graph {
	return &Graph{
		People:         make(map[string]*Person),
		Families:       make(map[string]*Family),
		ChildToParents: make(map[string][]string),
		Roots:          []string{},
	}
}

// buildIndices derives ChildToParents and Roots from the family records.
// Families are visited in sorted-ID order so the index is deterministic;
// within a family parents append husband first, then wife.
func (g *Graph) buildIndices() {
	g.ChildToParents = make(map[string][]string)
	familyIDs := make([]string, 0, len(g.Families))
	for id := range g.Families {
		familyIDs = append(familyIDs, id)
	}
	sort.Strings(familyIDs)

	for _, id := range familyIDs {
		family := g.Families[id]
		for _, child := range family.Children {
			if family.Husband != "" {
				g.ChildToParents[child] = append(g.ChildToParents[child], family.Husband)
			}
			if family.Wife != "" {
				g.ChildToParents[child] = append(g.ChildToParents[child], family.Wife)
			}
		}
	}

	g.Roots = g.Roots[:0]
	for id := range g.People {
		if _, isChild := g.ChildToParents[id]; !isChild {
			g.Roots = append(g.Roots, id)
		}
	}
	sort.Strings(g.Roots)
}

// Parents returns the parent IDs recorded for a person, husband first.
func (g *Graph) Parents(personID string) []string {
	return g.ChildToParents[personID]
}

// SortedPersonIDs returns every person ID in sorted order.
func (g *Graph) SortedPersonIDs() []string {
	ids := make([]string, 0, len(g.People))
	for id := range g.People {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedFamilyIDs returns every family ID in sorted order.
func (g *Graph) SortedFamilyIDs() []string {
	ids := make([]string, 0, len(g.Families))
	for id := range g.Families {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
