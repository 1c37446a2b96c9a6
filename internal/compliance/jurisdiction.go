package compliance

import "strings"

// usStates maps lowercase US state names and postal abbreviations. Names are
// matched as substrings of the location, abbreviations as whole tokens.
var usStates = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
}

var usAbbrevs = buildAbbrevSet()

func buildAbbrevSet() map[string]struct{} {
	s := make(map[string]struct{}, len(usStates)+3)
	for _, ab := range usStates {
		s[strings.ToLower(ab)] = struct{}{}
	}
	s["us"] = struct{}{}
	s["usa"] = struct{}{}
	return s
}

// isUSJurisdiction reports whether a free-text location names a US state,
// a postal abbreviation, or the country itself.
func isUSJurisdiction(location string) bool {
	loc := strings.ToLower(strings.TrimSpace(location))
	if loc == "" {
		return false
	}
	if strings.Contains(loc, "united states") {
		return true
	}
	for name := range usStates {
		if strings.Contains(loc, name) {
			return true
		}
	}
	for _, tok := range strings.FieldsFunc(loc, func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if _, ok := usAbbrevs[tok]; ok {
			return true
		}
	}
	return false
}
