package shapefile

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
)

func TestWriteLayerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fc := domain.FeatureCollection{
		{
			Geometry: orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}},
			RiskBand: "High",
		},
		{
			Geometry: orb.Polygon{
				{{10, 10}, {20, 10}, {20, 20}, {10, 20}, {10, 10}},
				{{14, 14}, {14, 16}, {16, 16}, {16, 14}, {14, 14}},
			},
			RiskBand: "Medium",
		},
		{
			Geometry: orb.MultiPolygon{
				{{{30, 30}, {32, 30}, {32, 32}, {30, 32}, {30, 30}}},
				{{{40, 40}, {42, 40}, {42, 42}, {40, 42}, {40, 40}}},
			},
			RiskBand: "Very Low",
		},
	}

	require.NoError(t, WriteLayer(filepath.Join(dir, "cells"), fc))

	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj"} {
		assert.FileExists(t, filepath.Join(dir, "cells"+ext))
	}

	out, err := ReadZippedDataset(zipDir(t, dir))
	require.NoError(t, err)

	// The multipolygon record explodes into two cells.
	require.Len(t, out, 4)
	assert.Equal(t, "High", out[0].RiskBand)
	assert.Equal(t, "Medium", out[1].RiskBand)
	assert.Equal(t, "Very Low", out[2].RiskBand)
	assert.Equal(t, "Very Low", out[3].RiskBand)

	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{2, 2}}, out[0].Geometry.Bound())

	holed, ok := out[1].Geometry.(orb.Polygon)
	require.True(t, ok)
	assert.Len(t, holed, 2)

	assert.Equal(t, orb.Bound{Min: orb.Point{30, 30}, Max: orb.Point{32, 32}}, out[2].Geometry.Bound())
	assert.Equal(t, orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{42, 42}}, out[3].Geometry.Bound())
}

func TestWriteBoundaryLayer(t *testing.T) {
	dir := t.TempDir()
	boundary := orb.Polygon{{
		{529500, 179500}, {530500, 179500}, {530500, 180500}, {529500, 180500}, {529500, 179500},
	}}

	require.NoError(t, WriteBoundaryLayer(filepath.Join(dir, "search_buffer_500m"), "SW1A 1AA", 500, boundary))

	t.Run("attributes", func(t *testing.T) {
		r, err := shp.Open(filepath.Join(dir, "search_buffer_500m.shp"))
		require.NoError(t, err)
		defer r.Close()

		fields := r.Fields()
		require.Len(t, fields, 2)
		assert.Equal(t, "postcode", fields[0].String())
		assert.Equal(t, "radius_m", fields[1].String())

		require.True(t, r.Next())
		row, _ := r.Shape()
		assert.Equal(t, "SW1A 1AA", r.ReadAttribute(row, 0))
		assert.Contains(t, r.ReadAttribute(row, 1), "500")
	})

	t.Run("reads back without a risk band", func(t *testing.T) {
		out, err := ReadZippedDataset(zipDir(t, dir))
		require.NoError(t, err)

		require.Len(t, out, 1)
		assert.Empty(t, out[0].RiskBand)
		assert.Equal(t, orb.Bound{Min: orb.Point{529500, 179500}, Max: orb.Point{530500, 180500}}, out[0].Geometry.Bound())
	})
}

func TestReadZippedDataset_GeographicInputReprojected(t *testing.T) {
	dir := t.TempDir()

	lng, lat := geometry.ToGeographic(530000, 180000)
	d := 0.00001
	fc := domain.FeatureCollection{{
		Geometry: orb.Polygon{{
			{lng - d, lat - d}, {lng + d, lat - d}, {lng + d, lat + d}, {lng - d, lat + d}, {lng - d, lat - d},
		}},
		RiskBand: "High",
	}}
	require.NoError(t, WriteLayer(filepath.Join(dir, "geo"), fc))

	wgs84WKT := `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geo.prj"), []byte(wgs84WKT), 0o644))

	out, err := ReadZippedDataset(zipDir(t, dir))
	require.NoError(t, err)

	require.Len(t, out, 1)
	centroid, _ := planar.CentroidArea(out[0].Geometry)
	assert.InDelta(t, 530000.0, centroid[0], 5)
	assert.InDelta(t, 180000.0, centroid[1], 5)
}

func TestReadZippedDataset_Errors(t *testing.T) {
	t.Run("not a zip archive", func(t *testing.T) {
		_, err := ReadZippedDataset([]byte("definitely not a zip"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "zip")
	})

	t.Run("no shapefile member", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		f, err := zw.Create("readme.txt")
		require.NoError(t, err)
		_, err = f.Write([]byte("nothing spatial here"))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		_, err = ReadZippedDataset(buf.Bytes())

		require.ErrorIs(t, err, ErrNoShapefile)
	})
}

// zipDir packages every file in dir into an in-memory zip under its base
// name, mirroring how the remote query API delivers datasets.
func zipDir(t *testing.T, dir string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		f, err := zw.Create(entry.Name())
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
