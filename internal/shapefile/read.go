// Package shapefile reads and writes ESRI shapefile datasets of flood risk
// grid cells. Datasets arrive as zipped shapefiles from the remote query API
// and leave as per-layer shapefiles inside a job's output directory.
package shapefile

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
)

// riskBandField is the attribute column carrying the risk band category in
// the categorical flood risk dataset.
const riskBandField = "risk_band"

// ErrNoShapefile is returned when a zip payload contains no .shp member.
var ErrNoShapefile = errors.New("archive contains no .shp member")

// ReadZippedDataset parses a zipped ESRI shapefile payload into grid cells.
// The archive is extracted to a scratch directory because the format spreads
// one dataset over several sidecar files; the directory is removed before
// returning. Multipolygon records are exploded into one cell per polygon,
// and datasets delivered in geographic coordinates are reprojected to
// British National Grid. Cells keep the risk_band attribute when the
// dataset has one and carry an empty band otherwise.
func ReadZippedDataset(data []byte) (domain.FeatureCollection, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip archive: %w", err)
	}

	scratch, err := os.MkdirTemp("", "rofsw-dataset-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	shpName := ""
	for _, member := range zr.File {
		if member.FileInfo().IsDir() {
			continue
		}
		// Flatten member paths; sidecar files must land next to the .shp.
		name := filepath.Base(member.Name)
		if err := extractMember(member, filepath.Join(scratch, name)); err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
		if shpName == "" && strings.HasSuffix(name, ".shp") {
			shpName = name
		}
	}
	if shpName == "" {
		return nil, ErrNoShapefile
	}

	return readDataset(filepath.Join(scratch, shpName))
}

func extractMember(member *zip.File, path string) error {
	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func readDataset(path string) (domain.FeatureCollection, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	bandIdx := -1
	for i, field := range r.Fields() {
		if strings.EqualFold(field.String(), riskBandField) {
			bandIdx = i
			break
		}
	}

	reproject := isGeographic(strings.TrimSuffix(path, ".shp") + ".prj")

	var fc domain.FeatureCollection
	for r.Next() {
		row, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		band := ""
		if bandIdx >= 0 {
			band = r.ReadAttribute(row, bandIdx)
		}
		for _, geom := range assemblePolygons(poly, reproject) {
			fc = append(fc, domain.Cell{Geometry: geom, RiskBand: band})
		}
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("read shapefile: %w", err)
	}
	return fc, nil
}

// isGeographic sniffs a .prj sidecar for a bare geographic reference system.
// A missing or unreadable sidecar is treated as already projected.
func isGeographic(prjPath string) bool {
	wkt, err := os.ReadFile(prjPath)
	if err != nil {
		return false
	}
	upper := strings.ToUpper(string(wkt))
	return strings.Contains(upper, "GEOGCS") && !strings.Contains(upper, "PROJCS")
}

// assemblePolygons rebuilds polygons from a shapefile record's flat part
// list. Shapefile winding identifies ring roles: clockwise rings open a new
// polygon, counterclockwise rings are holes in the preceding one. Each
// rebuilt polygon becomes its own cell, so multipolygon records are exploded
// here rather than carried through the pipeline.
func assemblePolygons(poly *shp.Polygon, reproject bool) []orb.Geometry {
	var out []orb.Geometry
	var current orb.Polygon

	for k, start := range poly.Parts {
		end := len(poly.Points)
		if k+1 < len(poly.Parts) {
			end = int(poly.Parts[k+1])
		}
		ring := buildRing(poly.Points[start:end], reproject)
		if len(ring) < 4 {
			continue
		}

		if current == nil || ring.Orientation() == orb.CW {
			if current != nil {
				out = append(out, current)
			}
			current = orb.Polygon{ring}
			continue
		}
		current = append(current, ring)
	}
	if current != nil {
		out = append(out, current)
	}
	return out
}

func buildRing(points []shp.Point, reproject bool) orb.Ring {
	ring := make(orb.Ring, 0, len(points)+1)
	for _, p := range points {
		x, y := p.X, p.Y
		if reproject {
			x, y = geometry.ToProjected(p.X, p.Y)
		}
		ring = append(ring, orb.Point{x, y})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}
