// Package geometry builds search regions and clips feature collections to
// them. All clipping happens in EPSG:27700 (British National Grid); EPSG:4326
// appears only at the edges, for the remote query polygon and result
// reporting.
package geometry

import "github.com/wroge/wgs84"

// Cached transform functions between British National Grid (EPSG:27700) and
// WGS84 longitude/latitude (EPSG:4326). Constructed once at package load and
// safe for concurrent use; every caller in the process shares them.
var (
	toGeographic = wgs84.Transform(wgs84.OSGB36NationalGrid(), wgs84.LonLat())
	toProjected  = wgs84.Transform(wgs84.LonLat(), wgs84.OSGB36NationalGrid())
)

// ToGeographic converts an EPSG:27700 easting/northing to WGS84
// longitude/latitude.
func ToGeographic(easting, northing float64) (lng, lat float64) {
	lng, lat, _ = toGeographic(easting, northing, 0)
	return lng, lat
}

// ToProjected converts a WGS84 longitude/latitude to EPSG:27700
// easting/northing.
func ToProjected(lng, lat float64) (easting, northing float64) {
	easting, northing, _ = toProjected(lng, lat, 0)
	return easting, northing
}
