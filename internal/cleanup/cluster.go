package cleanup

import (
	"sort"
	"strings"
)

// clusterLocations greedily groups similar location strings. The walk
// order over locations is sorted, so repeated runs over the same data
// produce the same clusters. Pairwise comparison makes this O(L²) in
// distinct locations, fine at the hundreds-to-thousands scale real
// trees have.
func clusterLocations(summaries map[string]*Summary, locations []string) []Cluster {
	processed := map[string]bool{}
	var clusters []Cluster

	for _, loc := range locations {
		if processed[loc] {
			continue
		}
		similar := findSimilar(loc, summaries, locations, processed)
		if len(similar) == 0 {
			continue
		}

		members := append([]string{loc}, similar...)
		canonical := pickCanonical(members, summaries)

		cluster := Cluster{
			Canonical:  canonical,
			Confidence: clusterConfidence(members, summaries),
			Reason:     "spelling variants of one place",
		}
		for _, m := range members {
			processed[m] = true
			cluster.TotalCount += summaries[m].Count
			if m != canonical {
				cluster.Variants = append(cluster.Variants, m)
			}
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].TotalCount > clusters[j].TotalCount
	})
	return clusters
}

// pickCanonical scores each member and keeps the highest, favoring
// specific, well-referenced, clean strings. Ties keep the earliest
// member in walk order.
func pickCanonical(members []string, summaries map[string]*Summary) string {
	best := members[0]
	bestScore := -1
	for _, m := range members {
		score := canonicalScore(m, summaries[m])
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best
}

func canonicalScore(loc string, s *Summary) int {
	segments := splitSegments(loc)
	score := 10 * len(segments)
	if s.Hierarchy.County != "" {
		score += 20
	}
	if s.Hierarchy.City != "" {
		score += 15
	}
	if s.Count < 10 {
		score += s.Count
	} else {
		score += 10
	}
	if duplicateSegment(segments) == "" {
		score += 25
	}
	return score
}

func clusterConfidence(members []string, summaries map[string]*Summary) string {
	county := summaries[members[0]].Hierarchy.County
	sameCounty := county != ""
	minTokens, maxTokens := -1, 0
	for _, m := range members {
		h := summaries[m].Hierarchy
		if h.County == "" || !strings.EqualFold(h.County, county) {
			sameCounty = false
		}
		n := len(splitSegments(m))
		if minTokens < 0 || n < minTokens {
			minTokens = n
		}
		if n > maxTokens {
			maxTokens = n
		}
	}
	if sameCounty {
		return "high"
	}
	if maxTokens-minTokens > 3 {
		return "low"
	}
	return "medium"
}
