package utils

// countryAlpha3 maps ISO 3166-1 alpha-2 citizenship codes to alpha-3, which
// the national registry requires. Covers the citizenships present in the
// member registry; unknown codes pass through unchanged.
var countryAlpha3 = map[string]string{
	"AT": "AUT", "AU": "AUS", "BE": "BEL", "BG": "BGR", "BR": "BRA",
	"BY": "BLR", "CA": "CAN", "CH": "CHE", "CZ": "CZE", "DE": "DEU",
	"DK": "DNK", "EE": "EST", "ES": "ESP", "FI": "FIN", "FR": "FRA",
	"GB": "GBR", "GR": "GRC", "HR": "HRV", "HU": "HUN", "IE": "IRL",
	"IT": "ITA", "JP": "JPN", "LT": "LTU", "LV": "LVA", "NL": "NLD",
	"NO": "NOR", "NZ": "NZL", "PL": "POL", "PT": "PRT", "RO": "ROU",
	"RS": "SRB", "RU": "RUS", "SE": "SWE", "SI": "SVN", "SK": "SVK",
	"UA": "UKR", "US": "USA",
}

func CountryAlpha3(alpha2 string) string {
	if alpha3, ok := countryAlpha3[alpha2]; ok {
		return alpha3
	}
	return alpha2
}
