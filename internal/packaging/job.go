// Package packaging lays out job working directories, writes layer files and
// provenance metadata into them, and condenses each finished job into a
// single zip archive. Working directories never outlive their job: Finalize
// removes the tree once the archive is written.
package packaging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/floodhapi/rofsw-extract/internal/domain"
	"github.com/floodhapi/rofsw-extract/internal/shapefile"
)

// Packager creates job working directories under a fixed output directory.
type Packager struct {
	outputDir string
	logger    *slog.Logger
}

// NewPackager creates a Packager rooted at outputDir.
func NewPackager(outputDir string, logger *slog.Logger) *Packager {
	return &Packager{outputDir: outputDir, logger: logger}
}

// NewJob creates the working directory tree for one extraction job. The job
// name combines the compacted postcode with the current clock time, so two
// jobs for the same postcode never collide.
func (p *Packager) NewJob(postcode string) (*Job, error) {
	name := domain.NewJobName(postcode)
	dir := filepath.Join(p.outputDir, name)
	shpDir := filepath.Join(dir, "shapefiles")
	if err := os.MkdirAll(shpDir, 0o755); err != nil {
		return nil, domain.WrapError(domain.KindPackaging, "create job directory", err)
	}
	p.logger.Debug("created job directory", "job", name, "dir", dir)
	return &Job{
		name:      name,
		dir:       dir,
		shpDir:    shpDir,
		outputDir: p.outputDir,
		logger:    p.logger,
	}, nil
}

// Job is the on-disk working state of one extraction.
type Job struct {
	name      string
	dir       string
	shpDir    string
	outputDir string
	logger    *slog.Logger
}

// Name returns the job name, which is also the archive basename.
func (j *Job) Name() string {
	return j.name
}

// WriteLayer writes one output layer into the job's shapefiles directory and
// returns the filename to record in the layer result. A failure here spoils
// only the layer, not the job.
func (j *Job) WriteLayer(basename string, fc domain.FeatureCollection) (string, error) {
	if err := shapefile.WriteLayer(filepath.Join(j.shpDir, basename), fc); err != nil {
		return "", domain.WrapError(domain.KindLayerProcessing,
			fmt.Sprintf("write layer %s", basename), err)
	}
	return basename + ".shp", nil
}

// WriteBoundary writes the search buffer polygon as its own layer. The
// buffer is the one layer every archive must carry, so a failure here is
// job-fatal.
func (j *Job) WriteBoundary(basename, postcode string, radiusM float64, boundary orb.Polygon) (string, error) {
	if err := shapefile.WriteBoundaryLayer(filepath.Join(j.shpDir, basename), postcode, radiusM, boundary); err != nil {
		return "", domain.WrapError(domain.KindPackaging,
			fmt.Sprintf("write boundary layer %s", basename), err)
	}
	return basename + ".shp", nil
}

// Discard removes the working directory after a failed job. Best effort; a
// leftover directory is logged, never fatal.
func (j *Job) Discard() {
	if err := os.RemoveAll(j.dir); err != nil {
		j.logger.Warn("discard job directory", "dir", j.dir, "error", err)
	}
}
