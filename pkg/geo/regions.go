package geo

import (
	"regexp"
	"sort"
	"strings"
)

// stateCodes maps full state names to USPS two-letter codes. All regional
// keys in pipeline output use USPS codes; full names never leak past intake.
var stateCodes = map[string]string{
	"alabama":              "AL",
	"alaska":               "AK",
	"arizona":              "AZ",
	"arkansas":             "AR",
	"california":           "CA",
	"colorado":             "CO",
	"connecticut":          "CT",
	"delaware":             "DE",
	"florida":              "FL",
	"georgia":              "GA",
	"hawaii":               "HI",
	"idaho":                "ID",
	"illinois":             "IL",
	"indiana":              "IN",
	"iowa":                 "IA",
	"kansas":               "KS",
	"kentucky":             "KY",
	"louisiana":            "LA",
	"maine":                "ME",
	"maryland":             "MD",
	"massachusetts":        "MA",
	"michigan":             "MI",
	"minnesota":            "MN",
	"mississippi":          "MS",
	"missouri":             "MO",
	"montana":              "MT",
	"nebraska":             "NE",
	"nevada":               "NV",
	"new hampshire":        "NH",
	"new jersey":           "NJ",
	"new mexico":           "NM",
	"new york":             "NY",
	"north carolina":       "NC",
	"north dakota":         "ND",
	"ohio":                 "OH",
	"oklahoma":             "OK",
	"oregon":               "OR",
	"pennsylvania":         "PA",
	"rhode island":         "RI",
	"south carolina":       "SC",
	"south dakota":         "SD",
	"tennessee":            "TN",
	"texas":                "TX",
	"utah":                 "UT",
	"vermont":              "VT",
	"virginia":             "VA",
	"washington":           "WA",
	"west virginia":        "WV",
	"wisconsin":            "WI",
	"wyoming":              "WY",
	"district of columbia": "DC",
}

// regionGroups expands named macro-regions into their member states.
var regionGroups = map[string][]string{
	"midwest":   {"OH", "IN", "IL", "MI", "WI", "MN", "IA", "MO", "ND", "SD", "NE", "KS"},
	"northeast": {"ME", "NH", "VT", "MA", "RI", "CT", "NY", "PA", "NJ"},
	"southeast": {"VA", "WV", "NC", "SC", "GA", "FL", "KY", "TN", "AL", "MS", "AR", "LA"},
	"southwest": {"TX", "OK", "NM", "AZ"},
	"pacific":   {"WA", "OR", "CA", "AK", "HI"},
	"west":      {"WA", "OR", "CA", "NV", "ID", "MT", "WY", "UT", "CO", "AZ", "NM"},
	"south":     {"TX", "OK", "AR", "LA", "MS", "AL", "TN", "KY", "WV", "VA", "NC", "SC", "GA", "FL"},
}

var validCodes = buildValidCodes()

func buildValidCodes() map[string]struct{} {
	codes := make(map[string]struct{}, len(stateCodes))
	for _, code := range stateCodes {
		codes[code] = struct{}{}
	}
	return codes
}

// NormalizeState resolves a raw state reference (full name or code, any
// case) to a USPS code. Returns ("", false) when the value is unrecognized.
func NormalizeState(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	upper := strings.ToUpper(trimmed)
	if _, ok := validCodes[upper]; ok {
		return upper, true
	}

	if code, ok := stateCodes[strings.ToLower(trimmed)]; ok {
		return code, true
	}

	return "", false
}

// IsStateCode reports whether code is a recognized USPS state code.
func IsStateCode(code string) bool {
	_, ok := validCodes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// ExpandRegion resolves a macro-region name ("midwest", "pacific") to its
// member state codes. Returns nil when the name is unknown.
func ExpandRegion(name string) []string {
	states, ok := regionGroups[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil
	}
	out := make([]string, len(states))
	copy(out, states)
	return out
}

var codeTokenPattern = regexp.MustCompile(`\b[A-Z]{2}\b`)

// ExtractStates pulls state references out of free text, resolving full
// names, macro-regions, and bare USPS codes. Longer names are matched first
// so "west virginia" never resolves as "virginia". Output is sorted and
// deduplicated.
func ExtractStates(text string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]struct{})

	names := make([]string, 0, len(stateCodes))
	for name := range stateCodes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		if strings.Contains(lower, name) {
			found[stateCodes[name]] = struct{}{}
			lower = strings.ReplaceAll(lower, name, " ")
		}
	}

	regions := make([]string, 0, len(regionGroups))
	for region := range regionGroups {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		if len(regions[i]) != len(regions[j]) {
			return len(regions[i]) > len(regions[j])
		}
		return regions[i] < regions[j]
	})

	for _, region := range regions {
		if strings.Contains(lower, region) {
			for _, code := range regionGroups[region] {
				found[code] = struct{}{}
			}
			lower = strings.ReplaceAll(lower, region, " ")
		}
	}

	for _, token := range codeTokenPattern.FindAllString(text, -1) {
		if _, ok := validCodes[token]; ok {
			found[token] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for code := range found {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
