package domain

import "strings"

// Location is a geocoded UK postcode. Immutable once returned by a Geocoder.
type Location struct {
	Postcode  string  // normalized form, e.g. "SW1A 1AA"
	Latitude  float64 // WGS84
	Longitude float64
	Easting   float64 // EPSG:27700 metres
	Northing  float64
	District  string // administrative district, e.g. "Westminster"
}

// NormalizePostcode converts raw user input to the canonical postcode form:
// upper case with a single space before the final three characters.
// Inputs of four characters or fewer are returned compacted as-is.
func NormalizePostcode(raw string) string {
	compact := CompactPostcode(raw)
	if len(compact) > 4 {
		return compact[:len(compact)-3] + " " + compact[len(compact)-3:]
	}
	return compact
}

// CompactPostcode strips whitespace and upper-cases a postcode, producing the
// form used in job and file names.
func CompactPostcode(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
}
