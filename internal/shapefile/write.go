package shapefile

import (
	"fmt"
	"os"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// bngWKT is the ESRI well-known text for British National Grid, written as
// the .prj sidecar so GIS tools pick up the reference system.
const bngWKT = `PROJCS["British_National_Grid",GEOGCS["GCS_OSGB_1936",DATUM["D_OSGB_1936",SPHEROID["Airy_1830",6377563.396,299.3249646]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",400000.0],PARAMETER["False_Northing",-100000.0],PARAMETER["Central_Meridian",-2.0],PARAMETER["Scale_Factor",0.9996012717],PARAMETER["Latitude_Of_Origin",49.0],UNIT["Meter",1.0]]`

// WriteLayer writes cells as an ESRI shapefile with a risk_band attribute
// column. pathNoExt is the output path without extension; the .shp, .shx,
// .dbf and .prj sidecars are created next to each other.
func WriteLayer(pathNoExt string, fc domain.FeatureCollection) error {
	w, err := shp.Create(pathNoExt+".shp", shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{shp.StringField(riskBandField, 10)}); err != nil {
		return fmt.Errorf("set fields: %w", err)
	}
	for _, cell := range fc {
		poly, err := shpPolygon(cell.Geometry)
		if err != nil {
			return err
		}
		row := w.Write(poly)
		if err := w.WriteAttribute(int(row), 0, cell.RiskBand); err != nil {
			return fmt.Errorf("write attribute: %w", err)
		}
	}
	return writePrj(pathNoExt)
}

// WriteBoundaryLayer writes the circular search buffer as a single-feature
// shapefile carrying the query postcode and radius as attributes.
func WriteBoundaryLayer(pathNoExt, postcode string, radiusM float64, boundary orb.Polygon) error {
	w, err := shp.Create(pathNoExt+".shp", shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("postcode", 10),
		shp.FloatField("radius_m", 12, 2),
	}
	if err := w.SetFields(fields); err != nil {
		return fmt.Errorf("set fields: %w", err)
	}

	poly, err := shpPolygon(boundary)
	if err != nil {
		return err
	}
	row := int(w.Write(poly))
	if err := w.WriteAttribute(row, 0, postcode); err != nil {
		return fmt.Errorf("write postcode attribute: %w", err)
	}
	if err := w.WriteAttribute(row, 1, radiusM); err != nil {
		return fmt.Errorf("write radius attribute: %w", err)
	}
	return writePrj(pathNoExt)
}

func writePrj(pathNoExt string) error {
	if err := os.WriteFile(pathNoExt+".prj", []byte(bngWKT), 0o644); err != nil {
		return fmt.Errorf("write prj sidecar: %w", err)
	}
	return nil
}

// shpPolygon converts a polygonal geometry to a shapefile record. Shapefile
// winding is the reverse of the math convention used in memory: outer rings
// are written clockwise and holes counterclockwise.
func shpPolygon(g orb.Geometry) (*shp.Polygon, error) {
	var polys []orb.Polygon
	switch geom := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{geom}
	case orb.MultiPolygon:
		polys = geom
	default:
		return nil, fmt.Errorf("unsupported geometry type %T", g)
	}

	var parts [][]shp.Point
	for _, poly := range polys {
		for i, ring := range poly {
			clockwise := i == 0
			parts = append(parts, ringPoints(ring, clockwise))
		}
	}
	return (*shp.Polygon)(shp.NewPolyLine(parts)), nil
}

// ringPoints emits a ring's vertices with the requested winding without
// mutating the ring.
func ringPoints(ring orb.Ring, clockwise bool) []shp.Point {
	orientation := ring.Orientation()
	reverse := (clockwise && orientation == orb.CCW) || (!clockwise && orientation == orb.CW)

	points := make([]shp.Point, 0, len(ring))
	if reverse {
		for i := len(ring) - 1; i >= 0; i-- {
			points = append(points, shp.Point{X: ring[i][0], Y: ring[i][1]})
		}
		return points
	}
	for _, p := range ring {
		points = append(points, shp.Point{X: p[0], Y: p[1]})
	}
	return points
}
