package gedcom

import (
	"reflect"
	"testing"
)

// threeGenerations: I1 (b. 2000) is the child of I2/I3 (b. ~1970), who
// are children of I4/I5 and I6/I7 (b. ~1940).
const threeGenerations = `0 @I1@ INDI
1 NAME Child /One/
1 BIRT
2 DATE 2000
1 FAMC @F1@
0 @I2@ INDI
1 NAME Father /One/
1 BIRT
2 DATE 1970
1 FAMC @F2@
1 FAMS @F1@
0 @I3@ INDI
1 NAME Mother /One/
1 BIRT
2 DATE 1972
1 FAMC @F3@
1 FAMS @F1@
0 @I4@ INDI
1 NAME Grandfather /Paternal/
1 BIRT
2 DATE 1940
1 FAMS @F2@
0 @I5@ INDI
1 NAME Grandmother /Paternal/
1 BIRT
2 DATE 1942
1 FAMS @F2@
0 @I6@ INDI
1 NAME Grandfather /Maternal/
1 BIRT
2 DATE 1944
1 FAMS @F3@
0 @I7@ INDI
1 NAME Grandmother /Maternal/
1 BIRT
2 DATE 1946
1 FAMS @F3@
0 @F1@ FAM
1 HUSB @I2@
1 WIFE @I3@
1 CHIL @I1@
0 @F2@ FAM
1 HUSB @I4@
1 WIFE @I5@
1 CHIL @I2@
0 @F3@ FAM
1 HUSB @I6@
1 WIFE @I7@
1 CHIL @I3@
0 TRLR
`

func TestFilterOneGenerationStopsAtParents(t *testing.T) {
	graph := Parse(threeGenerations)
	filtered := graph.FilterGenerations(1, 2025)

	// Only I1 (b. 2000) is inside the seed window; its parents come in
	// as generation one, grandparents must not.
	for _, id := range []string{"I1", "I2", "I3"} {
		if _, ok := filtered.People[id]; !ok {
			t.Errorf("expected %s in filtered graph", id)
		}
	}
	for _, id := range []string{"I4", "I5", "I6", "I7"} {
		if _, ok := filtered.People[id]; ok {
			t.Errorf("grandparent %s should not be in a 1-generation filter", id)
		}
	}
}

func TestFilterTwoGenerationsReachesGrandparents(t *testing.T) {
	graph := Parse(threeGenerations)
	filtered := graph.FilterGenerations(2, 2025)
	if len(filtered.People) != 7 {
		t.Fatalf("expected all 7 people, got %d", len(filtered.People))
	}
}

func TestFilterRebuildsIndices(t *testing.T) {
	graph := Parse(threeGenerations)
	filtered := graph.FilterGenerations(1, 2025)

	if !reflect.DeepEqual(filtered.ChildToParents["I1"], []string{"I2", "I3"}) {
		t.Errorf("unexpected parents for I1: %v", filtered.ChildToParents["I1"])
	}
	// I2/I3's parents did not survive, so they become the new roots.
	if !reflect.DeepEqual(filtered.Roots, []string{"I2", "I3"}) {
		t.Errorf("unexpected roots: %v", filtered.Roots)
	}
}

func TestFilterTrimsFamilyMembers(t *testing.T) {
	graph := Parse(threeGenerations)
	filtered := graph.FilterGenerations(1, 2025)

	// F2 comes in through I2's spouse-family membership? It does not:
	// I2 is a spouse only in F1. F2 is I2's FAMC and is only pulled in
	// when the walk ascends from I2, which a 1-generation filter
	// forbids.
	if _, ok := filtered.Families["F2"]; ok {
		family := filtered.Families["F2"]
		if family.Husband != "" || family.Wife != "" {
			t.Errorf("excluded grandparents still referenced: %+v", family)
		}
	}
	f1 := filtered.Families["F1"]
	if f1 == nil {
		t.Fatal("expected F1 in filtered graph")
	}
	if f1.Husband != "I2" || f1.Wife != "I3" {
		t.Errorf("unexpected F1 spouses %q/%q", f1.Husband, f1.Wife)
	}
	if !reflect.DeepEqual(f1.Children, []string{"I1"}) {
		t.Errorf("unexpected F1 children %v", f1.Children)
	}
}

func TestFilterZeroGenerationsYieldsSeedsOnly(t *testing.T) {
	graph := Parse(threeGenerations)
	filtered := graph.FilterGenerations(0, 2025)
	if len(filtered.People) != 1 {
		t.Fatalf("expected seeds only, got %v", filtered.SortedPersonIDs())
	}
	if _, ok := filtered.People["I1"]; !ok {
		t.Fatal("expected I1 to be the only seed")
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	graph := Parse(threeGenerations)
	before := len(graph.People)
	_ = graph.FilterGenerations(1, 2025)
	if len(graph.People) != before {
		t.Fatalf("input graph mutated: %d people now", len(graph.People))
	}
	if !reflect.DeepEqual(graph.Families["F1"].Children, []string{"I1"}) {
		t.Fatalf("input family mutated: %v", graph.Families["F1"].Children)
	}
}

func TestFilterTerminatesOnCyclicReferences(t *testing.T) {
	// I1 and I2 are each other's parents through mutually-referencing
	// families; the visited set must stop the walk.
	text := `0 @I1@ INDI
1 BIRT
2 DATE 2010
1 FAMC @F1@
0 @I2@ INDI
1 BIRT
2 DATE 2012
1 FAMC @F2@
0 @F1@ FAM
1 HUSB @I2@
1 CHIL @I1@
0 @F2@ FAM
1 HUSB @I1@
1 CHIL @I2@
`
	graph := Parse(text)
	filtered := graph.FilterGenerations(10, 2025)
	if len(filtered.People) != 2 {
		t.Fatalf("expected 2 people, got %d", len(filtered.People))
	}
}

func TestFilterSeedDatesUseSharedYearExtraction(t *testing.T) {
	// Free-text qualifiers around the year must not hide a seed.
	text := `0 @I1@ INDI
1 BIRT
2 DATE abt. 1999 (baptism)
0 TRLR
`
	graph := Parse(text)
	filtered := graph.FilterGenerations(1, 2025)
	if _, ok := filtered.People["I1"]; !ok {
		t.Fatalf("expected qualified birth date to seed the filter, got %v", filtered.SortedPersonIDs())
	}
}
