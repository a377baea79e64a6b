package packaging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/floodhapi/rofsw-extract/internal/domain"
)

// Provenance constants recorded in every archive's metadata.json. The licence
// and attribution wording follow the Environment Agency's open data terms.
const (
	metadataCRS         = "EPSG:27700"
	metadataSource      = "Environment Agency - NaFRA2 Risk of Flooding from Surface Water (RoFSW)"
	metadataLicence     = "Open Government Licence v3.0"
	metadataAttribution = "Contains Environment Agency information (c) Environment Agency and/or database right"
)

// Metadata is the provenance record packaged alongside the shapefiles.
type Metadata struct {
	Postcode    string  `json:"postcode"`
	Easting     float64 `json:"easting"`
	Northing    float64 `json:"northing"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	RadiusM     float64 `json:"radius_m"`
	CRS         string  `json:"crs"`
	Generated   string  `json:"generated"`
	Source      string  `json:"source"`
	Licence     string  `json:"licence"`
	Attribution string  `json:"attribution"`
}

// NewMetadata fills the provenance record for a job centred on loc.
func NewMetadata(loc domain.Location, radiusM float64) Metadata {
	return Metadata{
		Postcode:    loc.Postcode,
		Easting:     loc.Easting,
		Northing:    loc.Northing,
		Lat:         loc.Latitude,
		Lng:         loc.Longitude,
		RadiusM:     radiusM,
		CRS:         metadataCRS,
		Generated:   domain.Now().UTC().Format(time.RFC3339),
		Source:      metadataSource,
		Licence:     metadataLicence,
		Attribution: metadataAttribution,
	}
}

// WriteMetadata writes metadata.json at the root of the job directory.
func (j *Job) WriteMetadata(md Metadata) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return domain.WrapError(domain.KindPackaging, "marshal metadata", err)
	}
	path := filepath.Join(j.dir, "metadata.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.WrapError(domain.KindPackaging, "write metadata", err)
	}
	return nil
}
