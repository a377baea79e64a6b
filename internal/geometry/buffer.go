package geometry

import (
	"math"

	"github.com/paulmach/orb"
)

// circleSegments is the number of segments approximating the circular buffer.
const circleSegments = 64

// SearchRegion holds everything derived from a centre point and radius: the
// square bounding rectangle in both reference systems (used to constrain the
// remote query, which accepts rectangles) and the exact circle polygon (used
// for clipping). Built once per job; purely computational, no I/O.
type SearchRegion struct {
	Easting  float64
	Northing float64
	RadiusM  float64

	// BBoxProjected is [minE, minN, maxE, maxN] in EPSG:27700.
	BBoxProjected [4]float64
	// BBoxGeographic is [minLng, minLat, maxLng, maxLat] in EPSG:4326,
	// obtained by transforming the projected corners.
	BBoxGeographic [4]float64
	// Circle is the closed counterclockwise buffer polygon in EPSG:27700.
	Circle orb.Polygon
}

// NewSearchRegion builds the search region around a projected centre point.
// The radius must be positive and finite; that is the caller's contract.
func NewSearchRegion(easting, northing, radiusM float64) *SearchRegion {
	bboxBNG := [4]float64{
		easting - radiusM,
		northing - radiusM,
		easting + radiusM,
		northing + radiusM,
	}
	minLng, minLat := ToGeographic(bboxBNG[0], bboxBNG[1])
	maxLng, maxLat := ToGeographic(bboxBNG[2], bboxBNG[3])

	return &SearchRegion{
		Easting:        easting,
		Northing:       northing,
		RadiusM:        radiusM,
		BBoxProjected:  bboxBNG,
		BBoxGeographic: [4]float64{minLng, minLat, maxLng, maxLat},
		Circle:         circle(easting, northing, radiusM),
	}
}

// QueryPolygon returns the geographic bounding rectangle as a closed
// five-point polygon in the vertex order the remote query API expects.
func (r *SearchRegion) QueryPolygon() orb.Polygon {
	minLng, minLat := r.BBoxGeographic[0], r.BBoxGeographic[1]
	maxLng, maxLat := r.BBoxGeographic[2], r.BBoxGeographic[3]
	return orb.Polygon{{
		{minLng, minLat},
		{minLng, maxLat},
		{maxLng, maxLat},
		{maxLng, minLat},
		{minLng, minLat},
	}}
}

// circle approximates a circle as a closed counterclockwise ring.
func circle(cx, cy, radius float64) orb.Polygon {
	ring := make(orb.Ring, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		ring = append(ring, orb.Point{
			cx + radius*math.Cos(angle),
			cy + radius*math.Sin(angle),
		})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}
