package domain

import "fmt"

// LayerStatus describes the outcome of processing one output layer.
type LayerStatus string

const (
	// StatusOK means features were clipped and written to a geometry file.
	StatusOK LayerStatus = "ok"
	// StatusEmptyAfterClip means the source had data but nothing survived
	// the filter and clip; no file is written.
	StatusEmptyAfterClip LayerStatus = "empty_after_clip"
	// StatusNoData means the remote source returned nothing for the region.
	StatusNoData LayerStatus = "no_data"
	// StatusError means processing this layer failed; Err carries the detail.
	StatusError LayerStatus = "error"
)

// LayerResult is the outcome of processing one LayerSpec.
type LayerResult struct {
	Features    int         `json:"features"`
	Status      LayerStatus `json:"status"`
	Description string      `json:"description"`
	Filename    string      `json:"filename,omitempty"`
	Err         string      `json:"error,omitempty"`
}

// BoundaryLayerKey names the JobResult entry for the search buffer layer.
const BoundaryLayerKey = "search_buffer"

// JobResult aggregates everything produced by one extraction job. It is
// assembled once and never mutated after packaging completes; only the
// archive and this summary outlive the job.
type JobResult struct {
	Postcode       string                 `json:"postcode"`
	Easting        float64                `json:"easting"`
	Northing       float64                `json:"northing"`
	Lat            float64                `json:"lat"`
	Lng            float64                `json:"lng"`
	District       string                 `json:"admin_district"`
	RadiusM        float64                `json:"radius_m"`
	BBoxProjected  [4]float64             `json:"bbox_bng"`
	BBoxGeographic [4]float64             `json:"bbox_wgs84"`
	Layers         map[string]LayerResult `json:"layers"`
	JobName        string                 `json:"job_name"`
	Errors         []string               `json:"errors"`
	ZipPath        string                 `json:"zip_file"`
	ZipFilename    string                 `json:"zip_filename"`
	TotalFeatures  int                    `json:"total_features"`
}

// AddError appends a job-level error entry for one layer or source.
func (r *JobResult) AddError(key string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", key, err))
}

// SumFeatures recomputes TotalFeatures from the data layers. The search
// buffer entry is excluded: it is packaging output, not extracted data.
func (r *JobResult) SumFeatures() {
	total := 0
	for _, spec := range Layers {
		total += r.Layers[spec.Key].Features
	}
	r.TotalFeatures = total
}

// NewJobName builds the unique working directory and archive name for a job
// from the postcode and the current clock time.
func NewJobName(postcode string) string {
	stamp := clock.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("RoFSW_%s_%s", CompactPostcode(postcode), stamp)
}
