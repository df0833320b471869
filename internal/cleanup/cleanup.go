// Package cleanup analyzes every place string appearing in a tree and
// proposes hygiene fixes: per-location usage summaries, flagged data
// issues, and clusters of spelling variants that likely name the same
// place. The output is advisory; merges are confirmed by a person.
package cleanup

import (
	"sort"

	"arbor/api/internal/gedcom"
	"arbor/api/internal/place"
)

// Severity grades an issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IssueType tags a detected location issue.
type IssueType string

const (
	IssueDuplicateParts    IssueType = "duplicate_parts"
	IssueTooGeneric        IssueType = "too_generic"
	IssuePossibleDuplicate IssueType = "possible_duplicate"
	IssueMissingCounty     IssueType = "missing_county"
	IssueMissingState      IssueType = "missing_state"
)

// Issue is one detected problem with a location string.
type Issue struct {
	Type       IssueType `json:"type"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Related    []string  `json:"related,omitempty"`
}

// Summary aggregates everything observed about one raw place string.
type Summary struct {
	Raw        string          `json:"raw"`
	Hierarchy  place.Hierarchy `json:"hierarchy"`
	Region     string          `json:"region,omitempty"`
	Count      int             `json:"count"`
	BirthCount int             `json:"birthCount"`
	DeathCount int             `json:"deathCount"`
	OtherCount int             `json:"otherCount"`
	MinYear    int             `json:"minYear,omitempty"`
	MaxYear    int             `json:"maxYear,omitempty"`
	Issues     []Issue         `json:"issues,omitempty"`

	people map[string]bool
}

// Cluster groups a canonical location with its detected variants.
type Cluster struct {
	Canonical  string   `json:"canonical"`
	Variants   []string `json:"variants"`
	TotalCount int      `json:"totalCount"`
	Confidence string   `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Report is the tree-wide cleanup result.
type Report struct {
	TotalLocations int               `json:"totalLocations"`
	TotalIssues    int               `json:"totalIssues"`
	IssuesByType   map[IssueType]int `json:"issuesByType"`
	Clusters       []Cluster         `json:"clusters"`
	TopFlagged     []*Summary        `json:"topFlagged"`
}

// Analyze runs the full cleanup pass over a set of people. It returns
// the per-location summary map keyed by raw place string, and the
// aggregate report. Recomputed from scratch on every call.
func Analyze(people map[string]*gedcom.Person) (map[string]*Summary, *Report) {
	summaries := map[string]*Summary{}

	for _, id := range sortedIDs(people) {
		p := people[id]
		if p.BirthPlace != "" {
			register(summaries, p.BirthPlace, id, "birth", yearOf(0, p.BirthDate))
		}
		if p.DeathPlace != "" {
			register(summaries, p.DeathPlace, id, "death", yearOf(0, p.DeathDate))
		}
		for _, ev := range p.Events {
			if ev.Place != "" {
				register(summaries, ev.Place, id, "other", yearOf(ev.Year, ev.Date))
			}
		}
	}

	locations := sortedLocations(summaries)
	for _, loc := range locations {
		s := summaries[loc]
		s.Hierarchy = place.Normalize(loc)
		s.Region = s.Hierarchy.RegionName()
		s.Issues = detectIssues(loc, s, summaries, locations)
	}

	return summaries, buildReport(summaries, locations)
}

func register(summaries map[string]*Summary, loc, personID, kind string, year int) {
	s := summaries[loc]
	if s == nil {
		s = &Summary{Raw: loc, people: map[string]bool{}}
		summaries[loc] = s
	}
	// Count is per-person: someone born and buried in the same town
	// still counts once toward it.
	if !s.people[personID] {
		s.people[personID] = true
		s.Count++
	}
	switch kind {
	case "birth":
		s.BirthCount++
	case "death":
		s.DeathCount++
	default:
		s.OtherCount++
	}
	if year > 0 {
		if s.MinYear == 0 || year < s.MinYear {
			s.MinYear = year
		}
		if year > s.MaxYear {
			s.MaxYear = year
		}
	}
}

func yearOf(explicit int, date string) int {
	if explicit > 0 {
		return explicit
	}
	return place.ExtractYear(date)
}

func buildReport(summaries map[string]*Summary, locations []string) *Report {
	report := &Report{
		TotalLocations: len(locations),
		IssuesByType:   map[IssueType]int{},
	}
	var flagged []*Summary
	for _, loc := range locations {
		s := summaries[loc]
		for _, issue := range s.Issues {
			report.TotalIssues++
			report.IssuesByType[issue.Type]++
		}
		if len(s.Issues) > 0 {
			flagged = append(flagged, s)
		}
	}
	sort.SliceStable(flagged, func(i, j int) bool {
		return flagged[i].Count > flagged[j].Count
	})
	if len(flagged) > 20 {
		flagged = flagged[:20]
	}
	report.TopFlagged = flagged
	report.Clusters = clusterLocations(summaries, locations)
	return report
}

func sortedIDs(people map[string]*gedcom.Person) []string {
	ids := make([]string, 0, len(people))
	for id := range people {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedLocations(summaries map[string]*Summary) []string {
	locs := make([]string, 0, len(summaries))
	for loc := range summaries {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}
