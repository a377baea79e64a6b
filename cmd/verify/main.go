// Command verify performs integrity checks on a packaged extraction archive:
// the member layout, the metadata record, and the geometry of every layer
// against the buffer recorded in the metadata. It exits non-zero when any
// check fails, so it can gate automated deliveries.
//
// Usage:
//
//	go run ./cmd/verify -output ./output RoFSW_SW1A1AA_20250601_093000.zip
package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/packaging"
	"github.com/floodhapi/rofsw-extract/internal/shapefile"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	outputDir := flag.String("output", "./output", "output directory holding packaged archives")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: verify [-output DIR] ARCHIVE.zip")
		os.Exit(2)
	}

	if err := run(*outputDir, flag.Arg(0)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(outputDir, name string) error {
	archivePath, err := packaging.NewStore(outputDir).Resolve(name)
	if err != nil {
		return err
	}

	members, err := readMembers(archivePath)
	if err != nil {
		return err
	}

	var md packaging.Metadata
	phases := []*phase{
		checkLayout(members),
		checkMetadata(members, &md),
		checkLayers(members, &md),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d phases failed", failed, len(phases))
	}
	fmt.Printf("archive %s OK\n", name)
	return nil
}

func readMembers(archivePath string) (map[string][]byte, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	members := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read member %s: %w", f.Name, err)
		}
		members[f.Name] = data
	}
	return members, nil
}

// checkLayout verifies the archive carries metadata.json, a search buffer
// layer, and a complete sidecar set for every shapefile.
func checkLayout(members map[string][]byte) *phase {
	p := &phase{name: "archive layout"}
	if _, ok := members["metadata.json"]; !ok {
		p.errorf("metadata.json missing")
	}

	bufferFound := false
	for name := range members {
		if name == "metadata.json" {
			continue
		}
		if !strings.HasPrefix(name, "shapefiles/") {
			p.errorf("unexpected member %s", name)
			continue
		}
		if !strings.HasSuffix(name, ".shp") {
			continue
		}
		base := strings.TrimSuffix(name, ".shp")
		for _, ext := range []string{".shx", ".dbf", ".prj"} {
			if _, ok := members[base+ext]; !ok {
				p.errorf("%s missing sidecar %s", path.Base(name), ext)
			}
		}
		if strings.HasPrefix(path.Base(name), "search_buffer_") {
			bufferFound = true
		}
	}
	if !bufferFound {
		p.errorf("search buffer layer missing")
	}
	return p
}

// checkMetadata decodes metadata.json into md and verifies its fields.
func checkMetadata(members map[string][]byte, md *packaging.Metadata) *phase {
	p := &phase{name: "metadata"}
	data, ok := members["metadata.json"]
	if !ok {
		p.errorf("metadata.json missing")
		return p
	}
	if err := json.Unmarshal(data, md); err != nil {
		p.errorf("decode metadata.json: %v", err)
		return p
	}
	if md.Postcode == "" {
		p.errorf("postcode is empty")
	}
	if md.CRS != "EPSG:27700" {
		p.errorf("crs is %q, want EPSG:27700", md.CRS)
	}
	if md.RadiusM <= 0 {
		p.errorf("radius_m is %v", md.RadiusM)
	}
	if _, err := time.Parse(time.RFC3339, md.Generated); err != nil {
		p.errorf("generated %q is not RFC 3339", md.Generated)
	}
	if md.Easting < 0 || md.Easting > 800000 || md.Northing < 0 || md.Northing > 1400000 {
		p.errorf("centre E %.0f N %.0f is outside the national grid", md.Easting, md.Northing)
	}
	if md.Source == "" || md.Licence == "" {
		p.errorf("source or licence attribution is empty")
	}
	return p
}

// checkLayers reads every layer back and verifies each vertex lies within
// the buffer radius of the metadata centre, and that risk band layers carry
// only their own band.
func checkLayers(members map[string][]byte, md *packaging.Metadata) *phase {
	p := &phase{name: "layer contents"}
	if md.RadiusM <= 0 {
		p.errorf("skipped: no usable radius in metadata")
		return p
	}
	for name := range members {
		if !strings.HasSuffix(name, ".shp") {
			continue
		}
		base := strings.TrimSuffix(path.Base(name), ".shp")
		fc, err := readLayer(members, name)
		if err != nil {
			p.errorf("%s: %v", base, err)
			continue
		}
		if len(fc) == 0 {
			p.errorf("%s: dataset is empty", base)
			continue
		}
		checkGeometry(p, base, fc, md)
		checkBands(p, base, fc)
	}
	return p
}

// readLayer repacks one layer's sidecar files into an in-memory zip and
// reads it back through the dataset reader.
func readLayer(members map[string][]byte, shpName string) (domain.FeatureCollection, error) {
	prefix := strings.TrimSuffix(shpName, ".shp") + "."
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		w, err := zw.Create(path.Base(name))
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return shapefile.ReadZippedDataset(buf.Bytes())
}

func checkGeometry(p *phase, base string, fc domain.FeatureCollection, md *packaging.Metadata) {
	// Clipped vertices sit exactly on the buffer ring; allow a hair of slack.
	limit := md.RadiusM + 0.01
	for i, cell := range fc {
		for _, pt := range cellVertices(cell) {
			dist := math.Hypot(pt[0]-md.Easting, pt[1]-md.Northing)
			if dist > limit {
				p.errorf("%s: feature %d has a vertex %.1fm from centre, beyond the %.0fm buffer",
					base, i, dist, md.RadiusM)
				return
			}
		}
	}
}

func checkBands(p *phase, base string, fc domain.FeatureCollection) {
	if !strings.HasPrefix(base, "risk_band_") {
		return
	}
	want := strings.TrimPrefix(base, "risk_band_")
	for i, cell := range fc {
		if !strings.EqualFold(cell.RiskBand, want) {
			p.errorf("%s: feature %d carries band %q", base, i, cell.RiskBand)
			return
		}
	}
}

func cellVertices(cell domain.Cell) []orb.Point {
	var points []orb.Point
	switch geom := cell.Geometry.(type) {
	case orb.Polygon:
		for _, ring := range geom {
			points = append(points, ring...)
		}
	case orb.MultiPolygon:
		for _, poly := range geom {
			for _, ring := range poly {
				points = append(points, ring...)
			}
		}
	}
	return points
}
