package geo

import "strings"

// statePopulations holds rounded census estimates used for desert impact
// reporting. Best-effort figures; unknown regions report zero.
var statePopulations = map[string]int{
	"AL": 5000000,
	"AK": 730000,
	"AZ": 7200000,
	"AR": 3000000,
	"CA": 39500000,
	"CO": 5800000,
	"CT": 3600000,
	"DE": 1000000,
	"FL": 21500000,
	"GA": 10700000,
	"HI": 1500000,
	"ID": 1800000,
	"IL": 12800000,
	"IN": 6800000,
	"IA": 3200000,
	"KS": 2900000,
	"KY": 4500000,
	"LA": 4700000,
	"ME": 1400000,
	"MD": 6200000,
	"MA": 7000000,
	"MI": 10100000,
	"MN": 5700000,
	"MS": 3000000,
	"MO": 6200000,
	"MT": 1100000,
	"NE": 2000000,
	"NV": 3100000,
	"NH": 1400000,
	"NJ": 9300000,
	"NM": 2100000,
	"NY": 20200000,
	"NC": 10400000,
	"ND": 780000,
	"OH": 11800000,
	"OK": 4000000,
	"OR": 4200000,
	"PA": 13000000,
	"RI": 1100000,
	"SC": 5100000,
	"SD": 890000,
	"TN": 6900000,
	"TX": 29100000,
	"UT": 3300000,
	"VT": 640000,
	"VA": 8600000,
	"WA": 7700000,
	"WV": 1800000,
	"WI": 5900000,
	"WY": 580000,
	"DC": 690000,
}

// PopulationEstimate returns the rounded population for a region key, or 0
// when the region is not a recognized state code.
func PopulationEstimate(region string) int {
	return statePopulations[strings.ToUpper(strings.TrimSpace(region))]
}
