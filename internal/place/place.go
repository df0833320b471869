// Package place normalizes free-text place names from genealogical
// records into a structured hierarchy. Input strings are whatever the
// record keeper typed: "Boston, Mass", "Chester County, Penna",
// "Bavaria" all resolve to comparable hierarchies.
package place

import (
	"regexp"
	"strconv"
	"strings"
)

// Hierarchy is a normalized place, most-general to most-specific.
// Unresolved components stay empty.
type Hierarchy struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	Region  string `json:"region,omitempty"`
	County  string `json:"county,omitempty"`
	City    string `json:"city,omitempty"`
	Site    string `json:"site,omitempty"`
}

// Level selects how deep a hierarchy comparison or formatting goes.
type Level int

const (
	LevelCountry Level = iota
	LevelRegion
	LevelState
	LevelCounty
	LevelCity
)

// Normalize parses a comma-separated place string into a Hierarchy.
// Segments are consumed right to left, most general first: countries
// and their historical variants, then US states (full names, postal
// codes, and old abbreviations like "Penna"), then anything naming a
// county, parish, or borough, and finally cities. When two segments
// both land in the city slot the earlier, broader one is demoted to
// the site slot, so "Old North Church, Boston, MA" keeps the church.
func Normalize(raw string) Hierarchy {
	var h Hierarchy
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h
	}

	segments := splitSegments(raw)
	last := len(segments) - 1

	// The rightmost segment is always the most general: a country
	// variant, a US state, or failing both, an unrecognized country
	// name kept verbatim.
	if country, ok := lookupCountry(segments[last]); ok {
		h.Country = country
	} else if state, ok := lookupState(segments[last]); ok {
		h.setState(state)
	} else {
		h.Country = segments[last]
	}

	for i := last - 1; i >= 0; i-- {
		seg := segments[i]
		if h.State == "" {
			if state, ok := lookupState(seg); ok {
				h.setState(state)
				continue
			}
		}
		if h.County == "" && looksLikeCounty(seg) {
			h.County = seg
			continue
		}
		// Moving leftward means moving toward the specific end, so a
		// second city-like token supersedes the first and pushes it
		// down into the site slot.
		if h.City != "" {
			h.Site = h.City
		}
		h.City = seg
	}
	return h
}

func (h *Hierarchy) setState(state string) {
	h.State = state
	h.Region = stateRegion(state)
	if h.Country == "" {
		h.Country = "United States"
	}
}

func splitSegments(raw string) []string {
	parts := strings.Split(raw, ",")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

func looksLikeCounty(segment string) bool {
	lower := strings.ToLower(segment)
	return strings.Contains(lower, "county") ||
		strings.Contains(lower, "parish") ||
		strings.Contains(lower, "borough")
}

// Format renders the hierarchy back into a comma-separated string,
// specific to general, cut off at the requested level.
func (h Hierarchy) Format(level Level) string {
	var parts []string
	if level >= LevelCity {
		if h.Site != "" {
			parts = append(parts, h.Site)
		}
		if h.City != "" {
			parts = append(parts, h.City)
		}
	}
	if level >= LevelCounty && h.County != "" {
		parts = append(parts, h.County)
	}
	if level >= LevelState && h.State != "" {
		parts = append(parts, h.State)
	}
	if level == LevelRegion && h.Region != "" {
		parts = append(parts, h.Region)
	}
	if h.Country != "" {
		parts = append(parts, h.Country)
	}
	return strings.Join(parts, ", ")
}

// RegionName returns the broad region a hierarchy belongs to: the US
// region for resolved states, otherwise the country itself.
func (h Hierarchy) RegionName() string {
	if h.Region != "" {
		return h.Region
	}
	if h.Country != "" && h.Country != "United States" {
		return h.Country
	}
	return ""
}

// SameLocation reports whether two hierarchies agree on every
// component from the country down to the requested level. Comparison
// is case-insensitive; two empty components agree.
func SameLocation(a, b Hierarchy, level Level) bool {
	if !strings.EqualFold(a.Country, b.Country) {
		return false
	}
	if level >= LevelRegion && !strings.EqualFold(a.RegionName(), b.RegionName()) {
		return false
	}
	if level >= LevelState && !strings.EqualFold(a.State, b.State) {
		return false
	}
	if level >= LevelCounty && !strings.EqualFold(a.County, b.County) {
		return false
	}
	if level >= LevelCity && !strings.EqualFold(a.City, b.City) {
		return false
	}
	return true
}

var yearRe = regexp.MustCompile(`\b(1[0-9]{3}|20[0-2][0-9])\b`)

// ExtractYear pulls a plausible four-digit year (1000-2029) out of a
// free-text genealogical date. Returns 0 when none is found.
func ExtractYear(date string) int {
	m := yearRe.FindString(date)
	if m == "" {
		return 0
	}
	year, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return year
}

// MotherAge computes the mother's age at a child's birth from the two
// birth years. Ages outside the plausible 12-60 childbearing window
// are rejected; they almost always mean a bad record link.
func MotherAge(childYear, motherYear int) (int, bool) {
	if childYear == 0 || motherYear == 0 {
		return 0, false
	}
	age := childYear - motherYear
	if age < 12 || age > 60 {
		return 0, false
	}
	return age, true
}
