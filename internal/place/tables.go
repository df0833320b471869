package place

import "strings"

// Region names used for US states.
const (
	RegionNewEngland   = "New England"
	RegionMidAtlantic  = "Mid-Atlantic"
	RegionUpperSouth   = "Upper South"
	RegionDeepSouth    = "Deep South"
	RegionMidwest      = "Midwest"
	RegionSouthwest    = "Southwest"
	RegionMountainWest = "Mountain West"
	RegionPacific      = "Pacific"
)

// stateAbbrevs maps postal codes and common historical short forms to
// canonical state names. Lookups are lowercased.
var stateAbbrevs = map[string]string{
	"al": "Alabama", "ak": "Alaska", "az": "Arizona", "ar": "Arkansas",
	"ca": "California", "co": "Colorado", "ct": "Connecticut",
	"de": "Delaware", "fl": "Florida", "ga": "Georgia", "hi": "Hawaii",
	"id": "Idaho", "il": "Illinois", "in": "Indiana", "ia": "Iowa",
	"ks": "Kansas", "ky": "Kentucky", "la": "Louisiana", "me": "Maine",
	"md": "Maryland", "ma": "Massachusetts", "mi": "Michigan",
	"mn": "Minnesota", "ms": "Mississippi", "mo": "Missouri",
	"mt": "Montana", "ne": "Nebraska", "nv": "Nevada",
	"nh": "New Hampshire", "nj": "New Jersey", "nm": "New Mexico",
	"ny": "New York", "nc": "North Carolina", "nd": "North Dakota",
	"oh": "Ohio", "ok": "Oklahoma", "or": "Oregon", "pa": "Pennsylvania",
	"ri": "Rhode Island", "sc": "South Carolina", "sd": "South Dakota",
	"tn": "Tennessee", "tx": "Texas", "ut": "Utah", "vt": "Vermont",
	"va": "Virginia", "wa": "Washington", "wv": "West Virginia",
	"wi": "Wisconsin", "wy": "Wyoming",
	// Historical short forms seen in older records.
	"penna":           "Pennsylvania",
	"penn":            "Pennsylvania",
	"mass":            "Massachusetts",
	"mass bay colony": "Massachusetts",
	"conn":            "Connecticut",
	"va colony":       "Virginia",
}

// stateNames maps lowercased full state names to canonical spelling.
var stateNames = map[string]string{}

// stateRegions maps canonical state names to their region.
var stateRegions = map[string]string{
	"Connecticut": RegionNewEngland, "Maine": RegionNewEngland,
	"Massachusetts": RegionNewEngland, "New Hampshire": RegionNewEngland,
	"Rhode Island": RegionNewEngland, "Vermont": RegionNewEngland,

	"Delaware": RegionMidAtlantic, "Maryland": RegionMidAtlantic,
	"New Jersey": RegionMidAtlantic, "New York": RegionMidAtlantic,
	"Pennsylvania": RegionMidAtlantic,

	"Kentucky": RegionUpperSouth, "North Carolina": RegionUpperSouth,
	"Tennessee": RegionUpperSouth, "Virginia": RegionUpperSouth,
	"West Virginia": RegionUpperSouth,

	"Alabama": RegionDeepSouth, "Arkansas": RegionDeepSouth,
	"Florida": RegionDeepSouth, "Georgia": RegionDeepSouth,
	"Louisiana": RegionDeepSouth, "Mississippi": RegionDeepSouth,
	"South Carolina": RegionDeepSouth,

	"Illinois": RegionMidwest, "Indiana": RegionMidwest,
	"Iowa": RegionMidwest, "Kansas": RegionMidwest,
	"Michigan": RegionMidwest, "Minnesota": RegionMidwest,
	"Missouri": RegionMidwest, "Nebraska": RegionMidwest,
	"North Dakota": RegionMidwest, "Ohio": RegionMidwest,
	"South Dakota": RegionMidwest, "Wisconsin": RegionMidwest,

	"Arizona": RegionSouthwest, "New Mexico": RegionSouthwest,
	"Oklahoma": RegionSouthwest, "Texas": RegionSouthwest,

	"Colorado": RegionMountainWest, "Idaho": RegionMountainWest,
	"Montana": RegionMountainWest, "Nevada": RegionMountainWest,
	"Utah": RegionMountainWest, "Wyoming": RegionMountainWest,

	"Alaska": RegionPacific, "California": RegionPacific,
	"Hawaii": RegionPacific, "Oregon": RegionPacific,
	"Washington": RegionPacific,
}

// countryVariants maps lowercased country spellings, including the
// historical regional names that show up in genealogical records, to a
// canonical country name. Keys must not carry a trailing dot: lookups
// strip it before consulting the map, so dotted forms are keyed as
// "u.s.a" rather than "u.s.a.".
var countryVariants = map[string]string{
	"usa": "United States", "u.s.a": "United States",
	"us": "United States", "u.s": "United States",
	"united states": "United States",
	"united states of america": "United States",
	"america":                  "United States",

	"uk": "United Kingdom", "u.k": "United Kingdom",
	"united kingdom": "United Kingdom",
	"great britain":  "United Kingdom",
	"britain":        "United Kingdom",
	"england":        "United Kingdom",
	"scotland":       "United Kingdom",
	"wales":          "United Kingdom",
	"ireland":        "Ireland",
	"northern ireland": "United Kingdom",

	"germany": "Germany", "deutschland": "Germany",
	"prussia": "Germany", "preussen": "Germany",
	"palatinate": "Germany", "pfalz": "Germany",
	"bavaria": "Germany", "bayern": "Germany",
	"saxony": "Germany", "sachsen": "Germany",
	"wurttemberg": "Germany", "württemberg": "Germany",
	"hesse": "Germany", "hessen": "Germany",
	"baden": "Germany",

	"france": "France",
	"alsace": "France", "lorraine": "France", "normandy": "France",

	"canada": "Canada", "upper canada": "Canada", "lower canada": "Canada",
	"new france": "Canada",

	"mexico": "Mexico", "méxico": "Mexico", "new spain": "Mexico",
}

func init() {
	for _, full := range stateAbbrevs {
		stateNames[strings.ToLower(full)] = full
	}
}

// lookupState resolves a segment to a canonical state name, accepting
// full names, postal codes, and historical abbreviations. The boolean
// reports whether the segment named a state at all.
func lookupState(segment string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(segment))
	key = strings.TrimSuffix(key, ".")
	if full, ok := stateNames[key]; ok {
		return full, true
	}
	if full, ok := stateAbbrevs[key]; ok {
		return full, true
	}
	return "", false
}

// lookupCountry resolves a segment to a canonical country name.
func lookupCountry(segment string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(segment))
	key = strings.TrimSuffix(key, ".")
	if country, ok := countryVariants[key]; ok {
		return country, true
	}
	return "", false
}

// stateRegion returns the region for a canonical state name.
func stateRegion(state string) string {
	return stateRegions[state]
}
