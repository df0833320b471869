package cleanup

import (
	"fmt"
	"strings"
)

// detectIssues inspects one location against the rest of the dataset.
// Everything here is heuristic: false positives are acceptable because
// the issues only feed an advisory review list.
func detectIssues(loc string, s *Summary, summaries map[string]*Summary, locations []string) []Issue {
	var issues []Issue

	segments := splitSegments(loc)

	if dup := duplicateSegment(segments); dup != "" {
		issues = append(issues, Issue{
			Type:       IssueDuplicateParts,
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("%q repeats the segment %q", loc, dup),
			Suggestion: "remove the repeated segment",
		})
	}

	if tooGeneric(segments) {
		issues = append(issues, Issue{
			Type:     IssueTooGeneric,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%q names only a broad area", loc),
		})
	}

	if s.Hierarchy.State != "" && s.Hierarchy.County == "" {
		issues = append(issues, Issue{
			Type:       IssueMissingCounty,
			Severity:   SeverityInfo,
			Message:    fmt.Sprintf("%q has a state but no county", loc),
			Suggestion: "add the county for easier record matching",
		})
	}

	if s.Hierarchy.City != "" && s.Hierarchy.State == "" {
		issues = append(issues, Issue{
			Type:     IssueMissingState,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%q has a city but no state or province", loc),
		})
	}

	if similar := findSimilar(loc, summaries, locations, nil); len(similar) > 0 {
		issues = append(issues, Issue{
			Type:     IssuePossibleDuplicate,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%q may duplicate %d other location(s)", loc, len(similar)),
			Related:  similar,
		})
	}

	return issues
}

// findSimilar returns every other location judged similar to loc, in
// sorted order. The exclude set skips already-clustered entries.
func findSimilar(loc string, summaries map[string]*Summary, locations []string, exclude map[string]bool) []string {
	var similar []string
	for _, other := range locations {
		if other == loc || exclude[other] {
			continue
		}
		if isSimilar(loc, other, summaries) {
			similar = append(similar, other)
		}
	}
	return similar
}

// isSimilar applies three independent heuristics; any one match makes
// the pair similar.
func isSimilar(a, b string, summaries map[string]*Summary) bool {
	ha, hb := summaries[a].Hierarchy, summaries[b].Hierarchy

	// Same county within the same state.
	if ha.County != "" && strings.EqualFold(ha.County, hb.County) &&
		strings.EqualFold(ha.State, hb.State) {
		return true
	}

	// One string contains the other.
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return true
	}

	// Substantial word overlap: at least two shared words longer than
	// three characters, covering half of the smaller word set.
	wa, wb := significantWords(la), significantWords(lb)
	shared := 0
	for w := range wa {
		if wb[w] {
			shared++
		}
	}
	smaller := len(wa)
	if len(wb) < smaller {
		smaller = len(wb)
	}
	return shared >= 2 && smaller > 0 && shared*2 >= smaller
}

func significantWords(s string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	}) {
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}

func splitSegments(loc string) []string {
	parts := strings.Split(loc, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func duplicateSegment(segments []string) string {
	seen := map[string]bool{}
	for _, seg := range segments {
		key := strings.ToLower(seg)
		if seen[key] {
			return seg
		}
		seen[key] = true
	}
	return ""
}

func tooGeneric(segments []string) bool {
	if len(segments) == 1 {
		return true
	}
	return len(segments) == 2 && strings.EqualFold(segments[1], "united states")
}
