// Package pipeline orchestrates one extraction job end to end: geocode the
// postcode, fetch every source layer for the search region, clip to the
// buffer circle, derive the output layers, and package the archive.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/geometry"
	"github.com/floodhapi/rofsw-extract/internal/observability"
	"github.com/floodhapi/rofsw-extract/internal/packaging"
)

// LayerFetcher retrieves one source layer's cells for a search region.
type LayerFetcher interface {
	FetchLayer(ctx context.Context, source string, region *geometry.SearchRegion) (domain.FeatureCollection, error)
}

// Pipeline runs extraction jobs. One Process call is one job; the pipeline
// itself holds no per-job state.
type Pipeline struct {
	geocoder    domain.Geocoder
	fetcher     LayerFetcher
	packager    *packaging.Packager
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
}

// New creates a Pipeline with the given stages and observability.
func New(g domain.Geocoder, f LayerFetcher, p *packaging.Packager, logger *slog.Logger, metrics *observability.Metrics, concurrency int) *Pipeline {
	return &Pipeline{
		geocoder:    g,
		fetcher:     f,
		packager:    p,
		logger:      logger,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// Process runs one extraction job. Geocoding and packaging failures abort the
// job; fetch and layer failures are contained, recorded in the result, and
// leave the remaining layers untouched.
func (p *Pipeline) Process(ctx context.Context, postcode string, radiusM float64) (*domain.JobResult, error) {
	if radiusM <= 0 || math.IsNaN(radiusM) || math.IsInf(radiusM, 0) {
		return nil, fmt.Errorf("invalid search radius %v", radiusM)
	}

	start := time.Now()
	p.metrics.ExtractionRunning.Set(1)
	defer p.metrics.ExtractionRunning.Set(0)

	loc, err := p.geocoder.Geocode(ctx, postcode)
	if err != nil {
		p.logger.Error("geocoding failed", "postcode", postcode, "error", err)
		p.metrics.JobsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	p.logger.Info("geocoded postcode",
		"postcode", loc.Postcode,
		"easting", loc.Easting,
		"northing", loc.Northing,
		"district", loc.District,
	)

	region := geometry.NewSearchRegion(loc.Easting, loc.Northing, radiusM)
	boundary := geometry.NewBoundary(region.Circle)

	job, err := p.packager.NewJob(postcode)
	if err != nil {
		p.metrics.JobsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &domain.JobResult{
		Postcode:       loc.Postcode,
		Easting:        loc.Easting,
		Northing:       loc.Northing,
		Lat:            loc.Latitude,
		Lng:            loc.Longitude,
		District:       loc.District,
		RadiusM:        radiusM,
		BBoxProjected:  region.BBoxProjected,
		BBoxGeographic: region.BBoxGeographic,
		Layers:         make(map[string]domain.LayerResult, len(domain.Layers)+1),
		JobName:        job.Name(),
	}

	fetched := p.fetchAll(ctx, region, result)

	p.deriveRiskBands(job, boundary, fetched[domain.CategoricalSource], result)
	p.deriveDepthLayers(job, boundary, fetched, result)

	if err := p.packageJob(job, loc, radiusM, boundary, result); err != nil {
		job.Discard()
		p.metrics.JobsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result.SumFeatures()
	p.metrics.JobsTotal.WithLabelValues("success").Inc()
	p.metrics.JobDuration.Observe(time.Since(start).Seconds())
	p.logger.Info("job complete",
		"job", result.JobName,
		"total_features", result.TotalFeatures,
		"errors", len(result.Errors),
		"duration", time.Since(start),
	)
	return result, nil
}

// deriveRiskBands clips the categorical source once and splits the clipped
// cells into the three risk band layers. An empty source marks every band
// no_data; a clip failure marks every band failed.
func (p *Pipeline) deriveRiskBands(job *packaging.Job, boundary *geometry.Boundary, cells domain.FeatureCollection, result *domain.JobResult) {
	if len(cells) == 0 {
		for _, spec := range bandSpecs() {
			p.markNoData(result, spec)
		}
		return
	}

	clipped, stats, err := boundary.Clip(cells)
	if err != nil {
		for _, spec := range bandSpecs() {
			p.failLayer(result, spec, err)
		}
		return
	}
	p.recordClipStats(stats)

	for _, spec := range bandSpecs() {
		p.saveLayer(job, spec, clipped.Filter(spec.Filter), result)
	}
}

// deriveDepthLayers clips and writes each depth layer in declaration order.
// Layers are isolated from each other: one failure never spoils the rest.
func (p *Pipeline) deriveDepthLayers(job *packaging.Job, boundary *geometry.Boundary, fetched map[string]domain.FeatureCollection, result *domain.JobResult) {
	for _, spec := range domain.Layers {
		if spec.Source == domain.CategoricalSource {
			continue
		}
		cells := fetched[spec.Source]
		if len(cells) == 0 {
			p.markNoData(result, spec)
			continue
		}
		clipped, stats, err := boundary.Clip(cells.Filter(spec.Filter))
		if err != nil {
			p.failLayer(result, spec, err)
			continue
		}
		p.recordClipStats(stats)
		p.saveLayer(job, spec, clipped, result)
	}
}

// saveLayer writes a derived collection and records the layer outcome. An
// empty collection means the source had data but none survived the clip, so
// no file is written.
func (p *Pipeline) saveLayer(job *packaging.Job, spec domain.LayerSpec, cells domain.FeatureCollection, result *domain.JobResult) {
	if len(cells) == 0 {
		result.Layers[spec.Key] = domain.LayerResult{
			Status:      domain.StatusEmptyAfterClip,
			Description: spec.Description,
		}
		p.metrics.LayersDerived.WithLabelValues(string(domain.StatusEmptyAfterClip)).Inc()
		return
	}
	filename, err := job.WriteLayer(spec.Filename, cells)
	if err != nil {
		p.failLayer(result, spec, err)
		return
	}
	result.Layers[spec.Key] = domain.LayerResult{
		Features:    len(cells),
		Status:      domain.StatusOK,
		Description: spec.Description,
		Filename:    filename,
	}
	p.metrics.LayersDerived.WithLabelValues(string(domain.StatusOK)).Inc()
}

// packageJob writes the search buffer layer and metadata, then condenses the
// job directory into the archive and records it on the result.
func (p *Pipeline) packageJob(job *packaging.Job, loc domain.Location, radiusM float64, boundary *geometry.Boundary, result *domain.JobResult) error {
	basename := fmt.Sprintf("search_buffer_%dm", int(radiusM))
	filename, err := job.WriteBoundary(basename, loc.Postcode, radiusM, boundary.Polygon())
	if err != nil {
		return err
	}
	result.Layers[domain.BoundaryLayerKey] = domain.LayerResult{
		Features:    1,
		Status:      domain.StatusOK,
		Description: fmt.Sprintf("%dm buffer around %s", int(radiusM), loc.Postcode),
		Filename:    filename,
	}

	if err := job.WriteMetadata(packaging.NewMetadata(loc, radiusM)); err != nil {
		return err
	}

	zipPath, err := job.Finalize()
	if err != nil {
		return err
	}
	result.ZipPath = zipPath
	result.ZipFilename = job.Name() + ".zip"
	return nil
}

func (p *Pipeline) markNoData(result *domain.JobResult, spec domain.LayerSpec) {
	result.Layers[spec.Key] = domain.LayerResult{
		Status:      domain.StatusNoData,
		Description: spec.Description,
	}
	p.metrics.LayersDerived.WithLabelValues(string(domain.StatusNoData)).Inc()
}

// failLayer records an error outcome for one layer and mirrors it into the
// job-level error list.
func (p *Pipeline) failLayer(result *domain.JobResult, spec domain.LayerSpec, err error) {
	p.logger.Error("layer processing failed", "layer", spec.Key, "error", err)
	result.Layers[spec.Key] = domain.LayerResult{
		Status:      domain.StatusError,
		Description: spec.Description,
		Err:         err.Error(),
	}
	result.AddError(spec.Key, err)
	p.metrics.LayersDerived.WithLabelValues(string(domain.StatusError)).Inc()
}

func (p *Pipeline) recordClipStats(stats geometry.ClipStats) {
	p.metrics.CellsProcessed.WithLabelValues("fully_inside").Add(float64(stats.FullyInside))
	p.metrics.CellsProcessed.WithLabelValues("clipped").Add(float64(stats.Clipped))
	p.metrics.CellsProcessed.WithLabelValues("dropped").Add(float64(stats.Dropped))
}

// bandSpecs returns the layer specs fed by the categorical source, in
// declaration order.
func bandSpecs() []domain.LayerSpec {
	var specs []domain.LayerSpec
	for _, spec := range domain.Layers {
		if spec.Source == domain.CategoricalSource {
			specs = append(specs, spec)
		}
	}
	return specs
}
