package routing

import "strings"

// countryGroups maps ISO country codes to the region group that serves them
// by default. A region belongs to a group when its ID starts with the group
// prefix, e.g. us-east-1 is in the "us" group.
var countryGroups = map[string]string{
	// Americas
	"US": "us", "CA": "us", "MX": "us", "BR": "us", "AR": "us", "CL": "us", "CO": "us",
	// Europe, Middle East, Africa
	"GB": "eu", "DE": "eu", "FR": "eu", "IE": "eu", "IT": "eu", "ES": "eu",
	"NL": "eu", "BE": "eu", "PT": "eu", "AT": "eu", "CH": "eu", "PL": "eu",
	"SE": "eu", "NO": "eu", "DK": "eu", "FI": "eu", "ZA": "eu", "AE": "eu", "IL": "eu",
	// Asia Pacific
	"SG": "ap", "JP": "ap", "AU": "ap", "KR": "ap", "IN": "ap", "HK": "ap",
	"TW": "ap", "NZ": "ap", "ID": "ap", "TH": "ap", "MY": "ap", "PH": "ap", "VN": "ap",
}

// groupForCountry returns the region group for an ISO country code.
func groupForCountry(code string) (string, bool) {
	group, ok := countryGroups[strings.ToUpper(strings.TrimSpace(code))]
	return group, ok
}
