package domain

import "github.com/paulmach/orb"

// Cell is one elementary polygon record from a fetched layer, in EPSG:27700.
// Geometry is always an orb.Polygon or orb.MultiPolygon; multi-part source
// geometries are exploded before cells are constructed.
type Cell struct {
	Geometry orb.Geometry
	RiskBand string // e.g. "High", "Medium", "Low"; empty when the source layer has no band attribute
}

// FeatureCollection is an ordered set of cells sharing one reference system.
type FeatureCollection []Cell

// Filter returns the cells matching f, preserving order. An inactive filter
// returns the collection unchanged.
func (fc FeatureCollection) Filter(f Filter) FeatureCollection {
	if !f.Active() {
		return fc
	}
	out := make(FeatureCollection, 0, len(fc))
	for _, c := range fc {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	return out
}
