package place

import "testing"

func TestNormalizeCityStateCountry(t *testing.T) {
	h := Normalize("Boston, Massachusetts, USA")
	if h.City != "Boston" {
		t.Errorf("city = %q", h.City)
	}
	if h.State != "Massachusetts" {
		t.Errorf("state = %q", h.State)
	}
	if h.Country != "United States" {
		t.Errorf("country = %q", h.Country)
	}
	if h.Region != RegionNewEngland {
		t.Errorf("region = %q", h.Region)
	}
}

func TestNormalizeCountyState(t *testing.T) {
	h := Normalize("Chester County, Pennsylvania")
	if h.County != "Chester County" {
		t.Errorf("county = %q", h.County)
	}
	if h.State != "Pennsylvania" {
		t.Errorf("state = %q", h.State)
	}
	if h.Country != "United States" {
		t.Errorf("country = %q", h.Country)
	}
	if h.Region != RegionMidAtlantic {
		t.Errorf("region = %q", h.Region)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\t"} {
		if h := Normalize(in); h != (Hierarchy{}) {
			t.Errorf("Normalize(%q) = %+v, want empty", in, h)
		}
	}
}

func TestNormalizeHistoricalAbbreviations(t *testing.T) {
	h := Normalize("Lancaster County, Penna")
	if h.State != "Pennsylvania" {
		t.Errorf("Penna did not resolve: %+v", h)
	}
	h = Normalize("Boston, Mass Bay Colony")
	if h.State != "Massachusetts" || h.City != "Boston" {
		t.Errorf("Mass Bay Colony did not resolve: %+v", h)
	}
}

func TestNormalizeDottedCountryAbbreviations(t *testing.T) {
	cases := map[string]string{
		"Springfield, U.S.A.":  "United States",
		"Springfield, U.S.A":   "United States",
		"Boston, MA, U.S.":     "United States",
		"London, U.K.":         "United Kingdom",
		"Springfield, IL, USA": "United States",
	}
	for in, country := range cases {
		if h := Normalize(in); h.Country != country {
			t.Errorf("Normalize(%q).Country = %q, want %q", in, h.Country, country)
		}
	}
}

func TestNormalizeHistoricalCountryVariants(t *testing.T) {
	cases := map[string]string{
		"Palatinate, Germany": "Germany",
		"Heidelberg, Prussia": "Germany",
		"Quebec, New France":  "Canada",
		"London, England":     "United Kingdom",
	}
	for in, country := range cases {
		if h := Normalize(in); h.Country != country {
			t.Errorf("Normalize(%q).Country = %q, want %q", in, h.Country, country)
		}
	}
}

func TestNormalizeUnrecognizedCountryKeptVerbatim(t *testing.T) {
	h := Normalize("Vienna, Austria")
	if h.Country != "Austria" {
		t.Errorf("country = %q, want verbatim Austria", h.Country)
	}
	if h.City != "Vienna" {
		t.Errorf("city = %q", h.City)
	}
}

func TestNormalizeDemotesCityToSite(t *testing.T) {
	h := Normalize("Old North Church, Boston, Massachusetts, USA")
	if h.City != "Old North Church" {
		t.Errorf("city = %q", h.City)
	}
	if h.Site != "Boston" {
		t.Errorf("site = %q", h.Site)
	}
}

func TestNormalizeSingleState(t *testing.T) {
	h := Normalize("Texas")
	if h.State != "Texas" || h.Country != "United States" || h.Region != RegionSouthwest {
		t.Errorf("unexpected hierarchy %+v", h)
	}
}

func TestNormalizeIsIdempotentAndPure(t *testing.T) {
	inputs := []string{
		"Boston, Massachusetts, USA",
		"Chester County, Pennsylvania",
		"weird,, ,input, PA",
	}
	for _, in := range inputs {
		if Normalize(in) != Normalize(in) {
			t.Errorf("Normalize(%q) is not deterministic", in)
		}
	}
}

func TestFormatGranularity(t *testing.T) {
	h := Normalize("Boston, Massachusetts, USA")
	if got := h.Format(LevelCity); got != "Boston, Massachusetts, United States" {
		t.Errorf("full format = %q", got)
	}
	if got := h.Format(LevelState); got != "Massachusetts, United States" {
		t.Errorf("state format = %q", got)
	}
	if got := h.Format(LevelRegion); got != "New England, United States" {
		t.Errorf("region format = %q", got)
	}
}

func TestRegionName(t *testing.T) {
	if got := Normalize("Portland, Maine").RegionName(); got != RegionNewEngland {
		t.Errorf("RegionName = %q", got)
	}
	// Non-US countries act as their own pseudo-region.
	if got := Normalize("Palatinate, Germany").RegionName(); got != "Germany" {
		t.Errorf("RegionName = %q", got)
	}
	if got := Normalize("").RegionName(); got != "" {
		t.Errorf("RegionName of empty = %q", got)
	}
}

func TestSameLocation(t *testing.T) {
	a := Normalize("Boston, MA")
	b := Normalize("boston, Massachusetts")
	c := Normalize("Cambridge, MA")

	if !SameLocation(a, b, LevelCity) {
		t.Error("expected Boston variants to match at city level")
	}
	if SameLocation(a, c, LevelCity) {
		t.Error("Boston and Cambridge must differ at city level")
	}
	if !SameLocation(a, c, LevelState) {
		t.Error("expected Boston and Cambridge to match at state level")
	}
}

func TestExtractYearRange(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"12 MAR 1845", 1845},
		{"abt 1692", 1692},
		{"2029", 2029},
		{"2030", 0},
		{"999", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ExtractYear(tc.in); got != tc.want {
			t.Errorf("ExtractYear(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMotherAge(t *testing.T) {
	if age, ok := MotherAge(1950, 1920); !ok || age != 30 {
		t.Errorf("MotherAge(1950, 1920) = %d, %v", age, ok)
	}
	if _, ok := MotherAge(1950, 1945); ok {
		t.Error("age 5 should be rejected")
	}
	if _, ok := MotherAge(1990, 1920); ok {
		t.Error("age 70 should be rejected")
	}
	if _, ok := MotherAge(0, 1920); ok {
		t.Error("missing child year should be rejected")
	}
}
