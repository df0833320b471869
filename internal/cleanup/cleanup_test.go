package cleanup

import (
	"testing"

	"arbor/api/internal/gedcom"
)

func personAt(id, birthPlace string) *gedcom.Person {
	return &gedcom.Person{ID: id, BirthPlace: birthPlace}
}

func hasIssue(s *Summary, kind IssueType) bool {
	for _, issue := range s.Issues {
		if issue.Type == kind {
			return true
		}
	}
	return false
}

func TestAnalyzeEmptyInput(t *testing.T) {
	summaries, report := Analyze(map[string]*gedcom.Person{})
	if len(summaries) != 0 {
		t.Fatalf("expected empty summary map, got %d entries", len(summaries))
	}
	if report.TotalLocations != 0 || report.TotalIssues != 0 {
		t.Fatalf("expected zeroed report, got %+v", report)
	}
	if len(report.Clusters) != 0 || len(report.TopFlagged) != 0 {
		t.Fatalf("expected no clusters or flagged entries, got %+v", report)
	}
}

func TestTooGenericSingleSegment(t *testing.T) {
	summaries, _ := Analyze(map[string]*gedcom.Person{
		"I1": personAt("I1", "Texas"),
	})
	s := summaries["Texas"]
	if s == nil {
		t.Fatal("expected summary for Texas")
	}
	var found *Issue
	for i := range s.Issues {
		if s.Issues[i].Type == IssueTooGeneric {
			found = &s.Issues[i]
		}
	}
	if found == nil {
		t.Fatal("expected a too_generic issue")
	}
	if found.Severity != SeverityInfo {
		t.Errorf("too_generic severity = %q, want info", found.Severity)
	}
}

func TestDuplicatePartsWarning(t *testing.T) {
	summaries, _ := Analyze(map[string]*gedcom.Person{
		"I1": personAt("I1", "Ulster, Ulster, New York"),
	})
	s := summaries["Ulster, Ulster, New York"]
	var found *Issue
	for i := range s.Issues {
		if s.Issues[i].Type == IssueDuplicateParts {
			found = &s.Issues[i]
		}
	}
	if found == nil {
		t.Fatal("expected a duplicate_parts issue")
	}
	if found.Severity != SeverityWarning {
		t.Errorf("duplicate_parts severity = %q, want warning", found.Severity)
	}
}

func TestMissingCountyInfo(t *testing.T) {
	summaries, _ := Analyze(map[string]*gedcom.Person{
		"I1": personAt("I1", "Philadelphia, Pennsylvania"),
	})
	if !hasIssue(summaries["Philadelphia, Pennsylvania"], IssueMissingCounty) {
		t.Error("expected missing_county for a state without county")
	}
}

func TestPossibleDuplicateCarriesRelated(t *testing.T) {
	summaries, _ := Analyze(map[string]*gedcom.Person{
		"I1": personAt("I1", "Boston, MA"),
		"I2": personAt("I2", "boston, Massachusetts"),
	})
	s := summaries["Boston, MA"]
	var found *Issue
	for i := range s.Issues {
		if s.Issues[i].Type == IssuePossibleDuplicate {
			found = &s.Issues[i]
		}
	}
	if found == nil {
		t.Fatal("expected possible_duplicate issue")
	}
	if len(found.Related) != 1 || found.Related[0] != "boston, Massachusetts" {
		t.Errorf("unexpected related list %v", found.Related)
	}
}

func TestClusteringDeterminism(t *testing.T) {
	people := map[string]*gedcom.Person{
		"I1": personAt("I1", "Boston, MA"),
		"I2": personAt("I2", "boston, Massachusetts"),
		"I3": personAt("I3", "Cambridge, MA"),
	}

	_, first := Analyze(people)
	_, second := Analyze(people)

	if len(first.Clusters) != 1 {
		t.Fatalf("expected exactly one cluster, got %d", len(first.Clusters))
	}
	cluster := first.Clusters[0]
	if cluster.Canonical == "Cambridge, MA" {
		t.Error("Cambridge must stay unclustered")
	}
	for _, v := range cluster.Variants {
		if v == "Cambridge, MA" {
			t.Error("Cambridge must not be a variant")
		}
	}
	if cluster.TotalCount != 2 {
		t.Errorf("cluster total = %d, want 2", cluster.TotalCount)
	}

	if len(second.Clusters) != 1 || second.Clusters[0].Canonical != cluster.Canonical {
		t.Error("clustering is not deterministic across runs")
	}
}

func TestCountDedupesPerPerson(t *testing.T) {
	people := map[string]*gedcom.Person{
		"I1": {ID: "I1", BirthPlace: "Salem, MA", DeathPlace: "Salem, MA",
			BirthDate: "1690", DeathDate: "1750"},
	}
	summaries, _ := Analyze(people)
	s := summaries["Salem, MA"]
	if s.Count != 1 {
		t.Errorf("count = %d, want 1 (same person twice)", s.Count)
	}
	if s.BirthCount != 1 || s.DeathCount != 1 {
		t.Errorf("sub-counts = %d/%d, want 1/1", s.BirthCount, s.DeathCount)
	}
	if s.MinYear != 1690 || s.MaxYear != 1750 {
		t.Errorf("year window = %d-%d, want 1690-1750", s.MinYear, s.MaxYear)
	}
}

func TestEventPlacesCountAsOther(t *testing.T) {
	people := map[string]*gedcom.Person{
		"I1": {ID: "I1", Events: []gedcom.Event{
			{Type: "RESI", Place: "Providence, RI", Year: 1820},
		}},
	}
	summaries, _ := Analyze(people)
	s := summaries["Providence, RI"]
	if s == nil || s.OtherCount != 1 {
		t.Fatalf("expected one other-event at Providence, got %+v", s)
	}
	if s.MinYear != 1820 {
		t.Errorf("expected explicit event year 1820, got %d", s.MinYear)
	}
}

func TestReportCountsAndTopFlagged(t *testing.T) {
	people := map[string]*gedcom.Person{
		"I1": personAt("I1", "Texas"),
		"I2": personAt("I2", "Texas"),
		"I3": personAt("I3", "Chester County, Pennsylvania"),
	}
	_, report := Analyze(people)
	if report.TotalLocations != 2 {
		t.Fatalf("total locations = %d, want 2", report.TotalLocations)
	}
	if report.IssuesByType[IssueTooGeneric] != 1 {
		t.Errorf("too_generic count = %d, want 1", report.IssuesByType[IssueTooGeneric])
	}
	if len(report.TopFlagged) == 0 {
		t.Fatal("expected flagged locations")
	}
	// Texas has two people and an issue, so it ranks first.
	if report.TopFlagged[0].Raw != "Texas" {
		t.Errorf("top flagged = %q, want Texas", report.TopFlagged[0].Raw)
	}
}
