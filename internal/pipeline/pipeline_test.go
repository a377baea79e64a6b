package pipeline_test

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
	"github.com/floodhapi/rofsw-extract/internal/observability"
	"github.com/floodhapi/rofsw-extract/internal/packaging"
	"github.com/floodhapi/rofsw-extract/internal/pipeline"
)

// --- mocks ---

type mockGeocoder struct {
	loc domain.Location
	err error
}

func (m *mockGeocoder) Geocode(_ context.Context, _ string) (domain.Location, error) {
	if m.err != nil {
		return domain.Location{}, m.err
	}
	return m.loc, nil
}

type mockFetcher struct {
	mu    sync.Mutex
	data  map[string]domain.FeatureCollection
	errs  map[string]error
	calls []string
}

func (m *mockFetcher) FetchLayer(_ context.Context, source string, _ *geometry.SearchRegion) (domain.FeatureCollection, error) {
	m.mu.Lock()
	m.calls = append(m.calls, source)
	m.mu.Unlock()
	if err := m.errs[source]; err != nil {
		return nil, err
	}
	return m.data[source], nil
}

func (m *mockFetcher) called() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.calls...)
	sort.Strings(out)
	return out
}

// --- tests ---

func TestPipeline_Process_HappyPath(t *testing.T) {
	freezeClock(t)
	fetcher := &mockFetcher{data: fullData()}
	p, out := newTestPipeline(t, fetcher, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "sw1a 1aa", 500)
	require.NoError(t, err)

	assert.Equal(t, "SW1A 1AA", result.Postcode)
	assert.Equal(t, "Westminster", result.District)
	assert.Equal(t, "RoFSW_SW1A1AA_20250601_093000", result.JobName)
	assert.Equal(t, [4]float64{528590, 179145, 529590, 180145}, result.BBoxProjected)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.Layers, len(domain.Layers)+1)

	expected := domain.LayerResult{
		Features:    3,
		Status:      domain.StatusOK,
		Description: "High risk - >=3.3% (1 in 30) chance per year",
		Filename:    "risk_band_High.shp",
	}
	if diff := cmp.Diff(expected, result.Layers["risk_band_High"]); diff != "" {
		t.Fatalf("risk_band_High mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, result.Layers["risk_band_Medium"].Features)
	assert.Equal(t, 1, result.Layers["risk_band_Low"].Features)
	for _, key := range []string{"depth_0.2m", "depth_0.3m", "depth_0.6m", "depth_0.9m", "depth_1.2m"} {
		assert.Equal(t, domain.StatusOK, result.Layers[key].Status, key)
		assert.Equal(t, 1, result.Layers[key].Features, key)
	}
	assert.Equal(t, 11, result.TotalFeatures)

	boundary := result.Layers[domain.BoundaryLayerKey]
	assert.Equal(t, 1, boundary.Features)
	assert.Equal(t, "search_buffer_500m.shp", boundary.Filename)
	assert.Equal(t, "500m buffer around SW1A 1AA", boundary.Description)

	assert.Equal(t, "RoFSW_SW1A1AA_20250601_093000.zip", result.ZipFilename)
	assert.Equal(t, filepath.Join(out, result.ZipFilename), result.ZipPath)

	members := zipMembers(t, result.ZipPath)
	for _, want := range []string{
		"metadata.json",
		"shapefiles/risk_band_High.shp",
		"shapefiles/risk_band_Medium.shp",
		"shapefiles/risk_band_Low.shp",
		"shapefiles/depth_0_2m.shp",
		"shapefiles/depth_1_2m.shp",
		"shapefiles/search_buffer_500m.shp",
	} {
		assert.Contains(t, members, want)
	}

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1, "working directory must be removed after packaging")
	assert.Equal(t, result.ZipFilename, entries[0].Name())

	assert.ElementsMatch(t, domain.DistinctSources(), fetcher.called(),
		"every source fetched exactly once")
}

func TestPipeline_Process_AllSourcesEmpty(t *testing.T) {
	freezeClock(t)
	p, _ := newTestPipeline(t, &mockFetcher{}, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "SW1A 1AA", 500)
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.Zero(t, result.TotalFeatures)
	for _, spec := range domain.Layers {
		layer := result.Layers[spec.Key]
		assert.Equal(t, domain.StatusNoData, layer.Status, spec.Key)
		assert.Empty(t, layer.Filename, spec.Key)
	}

	members := zipMembers(t, result.ZipPath)
	sort.Strings(members)
	assert.Equal(t, []string{
		"metadata.json",
		"shapefiles/search_buffer_500m.dbf",
		"shapefiles/search_buffer_500m.prj",
		"shapefiles/search_buffer_500m.shp",
		"shapefiles/search_buffer_500m.shx",
	}, members, "archive carries only the buffer layer and metadata")
}

func TestPipeline_Process_OneSourceFails(t *testing.T) {
	freezeClock(t)
	fetcher := &mockFetcher{
		data: fullData(),
		errs: map[string]error{"rofsw_0_6m_depth": errors.New("fetch rofsw_0_6m_depth failed after 3 attempts")},
	}
	p, _ := newTestPipeline(t, fetcher, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "SW1A 1AA", 500)
	require.NoError(t, err, "a single source failure must not abort the job")

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "rofsw_0_6m_depth: fetch rofsw_0_6m_depth failed after 3 attempts", result.Errors[0])

	assert.Equal(t, domain.StatusNoData, result.Layers["depth_0.6m"].Status)
	assert.Equal(t, domain.StatusOK, result.Layers["depth_0.3m"].Status)
	assert.Equal(t, domain.StatusOK, result.Layers["risk_band_High"].Status)
	assert.Equal(t, 10, result.TotalFeatures)
}

func TestPipeline_Process_CategoricalSourceFails(t *testing.T) {
	freezeClock(t)
	fetcher := &mockFetcher{
		data: fullData(),
		errs: map[string]error{domain.CategoricalSource: errors.New("boom")},
	}
	p, _ := newTestPipeline(t, fetcher, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "SW1A 1AA", 500)
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "rofsw: boom", result.Errors[0])
	for _, key := range []string{"risk_band_High", "risk_band_Medium", "risk_band_Low"} {
		assert.Equal(t, domain.StatusNoData, result.Layers[key].Status, key)
	}
	assert.Equal(t, 5, result.TotalFeatures, "depth layers unaffected")
}

func TestPipeline_Process_BandsPartitionClippedCells(t *testing.T) {
	freezeClock(t)
	data := map[string]domain.FeatureCollection{
		domain.CategoricalSource: {
			cellNear(0, 0, "High"),
			cellNear(60, 0, "Medium"),
			cellNear(0, 60, "Medium"),
			cellNear(-60, 0, "Low"),
			cellNear(0, -60, "Very Low"),
		},
	}
	p, _ := newTestPipeline(t, &mockFetcher{data: data}, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "SW1A 1AA", 500)
	require.NoError(t, err)

	high := result.Layers["risk_band_High"].Features
	medium := result.Layers["risk_band_Medium"].Features
	low := result.Layers["risk_band_Low"].Features
	assert.Equal(t, 1, high)
	assert.Equal(t, 2, medium)
	assert.Equal(t, 1, low)
	assert.Equal(t, 4, high+medium+low,
		"cells outside the three bands appear in no output layer")
}

func TestPipeline_Process_EmptyAfterClip(t *testing.T) {
	freezeClock(t)
	data := map[string]domain.FeatureCollection{
		// Real data, all of it kilometres outside the buffer.
		"rofsw_0_2m_depth": {cellNear(5000, 5000, "")},
	}
	p, _ := newTestPipeline(t, &mockFetcher{data: data}, &mockGeocoder{loc: testLocation()})

	result, err := p.Process(context.Background(), "SW1A 1AA", 500)
	require.NoError(t, err)

	layer := result.Layers["depth_0.2m"]
	assert.Equal(t, domain.StatusEmptyAfterClip, layer.Status)
	assert.Empty(t, layer.Filename)
	assert.Zero(t, layer.Features)
	assert.NotContains(t, zipMembers(t, result.ZipPath), "shapefiles/depth_0_2m.shp")
}

func TestPipeline_Process_GeocodeNotFound(t *testing.T) {
	geocoder := &mockGeocoder{
		err: domain.NewError(domain.KindInputNotFound, "Postcode 'ZZ99 9ZZ' not found. Please check and try again."),
	}
	p, out := newTestPipeline(t, &mockFetcher{}, geocoder)

	result, err := p.Process(context.Background(), "ZZ99 9ZZ", 500)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, domain.IsKind(err, domain.KindInputNotFound))

	entries, readErr := os.ReadDir(out)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no job directory is created for an unknown postcode")
}

func TestPipeline_Process_InvalidRadius(t *testing.T) {
	p, _ := newTestPipeline(t, &mockFetcher{}, &mockGeocoder{loc: testLocation()})

	for _, radius := range []float64{0, -100} {
		_, err := p.Process(context.Background(), "SW1A 1AA", radius)
		assert.Error(t, err)
	}
}

// --- helpers ---

func freezeClock(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newTestPipeline(t *testing.T, fetcher pipeline.LayerFetcher, geocoder domain.Geocoder) (*pipeline.Pipeline, string) {
	t.Helper()
	out := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	packager := packaging.NewPackager(out, logger)
	p := pipeline.New(geocoder, fetcher, packager, logger, observability.NewMetricsForTesting(), 4)
	return p, out
}

func testLocation() domain.Location {
	return domain.Location{
		Postcode:  "SW1A 1AA",
		Latitude:  51.501009,
		Longitude: -0.141588,
		Easting:   529090,
		Northing:  179645,
		District:  "Westminster",
	}
}

// cellNear builds a 40m square cell offset from the geocoded centre point.
func cellNear(dx, dy float64, band string) domain.Cell {
	cx, cy := 529090+dx, 179645+dy
	return domain.Cell{
		Geometry: orb.Polygon{{
			{cx - 20, cy - 20},
			{cx + 20, cy - 20},
			{cx + 20, cy + 20},
			{cx - 20, cy + 20},
			{cx - 20, cy - 20},
		}},
		RiskBand: band,
	}
}

// fullData returns cells for every source: eleven features in total, all
// well inside a 500m buffer.
func fullData() map[string]domain.FeatureCollection {
	data := map[string]domain.FeatureCollection{
		domain.CategoricalSource: {
			cellNear(0, 0, "High"),
			cellNear(60, 0, "High"),
			cellNear(0, 60, "High"),
			cellNear(-60, 0, "Medium"),
			cellNear(0, -60, "Medium"),
			cellNear(60, 60, "Low"),
		},
	}
	offset := 100.0
	for _, source := range domain.DistinctSources() {
		if source == domain.CategoricalSource {
			continue
		}
		data[source] = domain.FeatureCollection{cellNear(offset, -offset, "")}
		offset += 20
	}
	return data
}

func zipMembers(t *testing.T, zipPath string) []string {
	t.Helper()
	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
