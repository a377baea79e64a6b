package geometry

import (
	"fmt"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Boundary is the prepared form of the circular search buffer, built once per
// job and shared read-only by every clip call in that job. It caches the
// bound for cheap rejection and the boolean-ops operand for exact clipping.
type Boundary struct {
	circle  orb.Polygon
	bound   orb.Bound
	operand polygol.Geom
}

// NewBoundary prepares a buffer polygon for repeated clipping.
func NewBoundary(circle orb.Polygon) *Boundary {
	return &Boundary{
		circle:  circle,
		bound:   circle.Bound(),
		operand: polygolGeom(circle),
	}
}

// Contains reports whether the point lies inside the buffer.
func (b *Boundary) Contains(p orb.Point) bool {
	return planar.PolygonContains(b.circle, p)
}

// Polygon returns the underlying buffer polygon.
func (b *Boundary) Polygon() orb.Polygon {
	return b.circle
}

// ClipStats counts how cells were classified during one clip call.
type ClipStats struct {
	FullyInside int // every vertex inside, kept unmodified
	Clipped     int // boundary-crossing cells clipped exactly
	Dropped     int // outside, or nothing polygonal survived the clip
}

// Clip restricts a collection of cells to the buffer. Cells entirely inside
// pass through unmodified; the buffer ring is convex, so vertex containment
// is an exact full-containment test. Cells whose bound does not even touch
// the buffer's bound are rejected outright; the rest cross the boundary and
// take the expensive exact clip. Each cell is tested independently against
// the prepared boundary, never against other cells.
//
// Boundary-crossing cells are validity-repaired if self-intersecting, then
// clipped; only polygonal pieces of the clip output are kept, merged into
// one geometry when there are several. Cells reduced to nothing are dropped.
// Output preserves input order: fully-inside cells first, then clipped edge
// cells. No output vertex lies outside the buffer.
func (b *Boundary) Clip(fc domain.FeatureCollection) (domain.FeatureCollection, ClipStats, error) {
	var stats ClipStats
	if len(fc) == 0 {
		return nil, stats, nil
	}

	inside := make(domain.FeatureCollection, 0, len(fc))
	var edges domain.FeatureCollection

	for _, cell := range fc {
		if !cell.Geometry.Bound().Intersects(b.bound) {
			stats.Dropped++
			continue
		}
		if b.fullyInside(cell.Geometry) {
			inside = append(inside, cell)
			stats.FullyInside++
			continue
		}
		edges = append(edges, cell)
	}

	for _, cell := range edges {
		clipped, err := b.clipCell(cell.Geometry)
		if err != nil {
			return nil, stats, fmt.Errorf("clip cell: %w", err)
		}
		if clipped == nil {
			stats.Dropped++
			continue
		}
		inside = append(inside, domain.Cell{Geometry: clipped, RiskBand: cell.RiskBand})
		stats.Clipped++
	}

	return inside, stats, nil
}

// fullyInside reports whether every vertex of the cell lies inside the
// buffer. The cell is within the convex hull of its vertices and the buffer
// ring is convex, so vertex containment implies whole-cell containment.
func (b *Boundary) fullyInside(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return b.polygonInside(geom)
	case orb.MultiPolygon:
		for _, poly := range geom {
			if !b.polygonInside(poly) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (b *Boundary) polygonInside(poly orb.Polygon) bool {
	for _, ring := range poly {
		for _, p := range ring {
			if !b.Contains(p) {
				return false
			}
		}
	}
	return true
}

// clipCell intersects one cell with the buffer. Returns nil when nothing
// polygonal survives.
func (b *Boundary) clipCell(g orb.Geometry) (orb.Geometry, error) {
	subject := polygolGeom(g)
	if !isValid(g) {
		// A self-union resolves self-intersections without moving any
		// boundary that was already valid.
		repaired, err := polygol.Union(subject)
		if err != nil {
			return nil, fmt.Errorf("repair invalid geometry: %w", err)
		}
		subject = repaired
	}

	out, err := polygol.Intersection(subject, b.operand)
	if err != nil {
		return nil, fmt.Errorf("intersection: %w", err)
	}
	return geomFromPolygol(out), nil
}

// isValid reports whether a polygon's rings are free of self-intersections.
// Cells have a handful of vertices, so the quadratic ring scan is cheaper
// than maintaining an index.
func isValid(g orb.Geometry) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		for _, ring := range geom {
			if ringSelfIntersects(ring) {
				return false
			}
		}
		return true
	case orb.MultiPolygon:
		for _, poly := range geom {
			for _, ring := range poly {
				if ringSelfIntersects(ring) {
					return false
				}
			}
		}
		return true
	default:
		return false
	}
}

// ringSelfIntersects reports whether any two non-adjacent segments of a
// closed ring cross.
func ringSelfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1 // closed ring: last point repeats the first
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			// Skip the adjacent pair that shares the ring's closing vertex.
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsCross(ring[i], ring[i+1], ring[j], ring[j+1]) {
				return true
			}
		}
	}
	return false
}

// segmentsCross reports whether segments pq and rs properly intersect or
// overlap collinearly.
func segmentsCross(p, q, r, s orb.Point) bool {
	d1 := cross(r, s, p)
	d2 := cross(r, s, q)
	d3 := cross(p, q, r)
	d4 := cross(p, q, s)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(r, s, p):
		return true
	case d2 == 0 && onSegment(r, s, q):
		return true
	case d3 == 0 && onSegment(p, q, r):
		return true
	case d4 == 0 && onSegment(p, q, s):
		return true
	}
	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

// polygolGeom converts an orb polygon or multipolygon into the boolean-ops
// operand format.
func polygolGeom(g orb.Geometry) polygol.Geom {
	switch geom := g.(type) {
	case orb.Polygon:
		return polygol.Geom{polygolPoly(geom)}
	case orb.MultiPolygon:
		out := make(polygol.Geom, 0, len(geom))
		for _, poly := range geom {
			out = append(out, polygolPoly(poly))
		}
		return out
	default:
		return nil
	}
}

func polygolPoly(poly orb.Polygon) [][][]float64 {
	rings := make([][][]float64, 0, len(poly))
	for _, ring := range poly {
		points := make([][]float64, 0, len(ring))
		for _, p := range ring {
			points = append(points, []float64{p[0], p[1]})
		}
		rings = append(rings, points)
	}
	return rings
}

// geomFromPolygol converts a boolean-ops result back to orb geometry: one
// polygon stays a polygon, several merge into a multipolygon, none is nil.
func geomFromPolygol(g polygol.Geom) orb.Geometry {
	polys := make([]orb.Polygon, 0, len(g))
	for _, rawPoly := range g {
		poly := make(orb.Polygon, 0, len(rawPoly))
		for _, rawRing := range rawPoly {
			if len(rawRing) < 3 {
				continue
			}
			ring := make(orb.Ring, 0, len(rawRing)+1)
			for _, pt := range rawRing {
				ring = append(ring, orb.Point{pt[0], pt[1]})
			}
			if ring[0] != ring[len(ring)-1] {
				ring = append(ring, ring[0])
			}
			poly = append(poly, ring)
		}
		if len(poly) > 0 {
			polys = append(polys, poly)
		}
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	default:
		return orb.MultiPolygon(polys)
	}
}
