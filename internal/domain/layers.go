package domain

import "strings"

// SourceLayerIDs maps internal source keys to Defra DSP dataset identifiers
// for the NaFRA2 RoFSW product.
var SourceLayerIDs = map[string]string{
	"rofsw":            "7a7d1570-dd33-4edc-9a19-fde1b9fcaadb",
	"rofsw_0_2m_depth": "8aa5d9cb-2a54-4480-b7d6-0aaef9efa576",
	"rofsw_0_3m_depth": "c36f87b8-100f-4162-bab1-7b3d0fb20c62",
	"rofsw_0_6m_depth": "212ee02f-9a47-4c55-a4e0-2c7c6e8d35d2",
	"rofsw_0_9m_depth": "5b3f81a3-f6c7-4637-8b1e-4cf5ef83259e",
	"rofsw_1_2m_depth": "52819ecb-130c-4a4d-a406-6f003af69988",
}

// CategoricalSource is the one source layer carrying the risk band attribute.
// It is clipped once per job and split into the three risk band output layers.
const CategoricalSource = "rofsw"

// FilterField identifies the cell attribute a layer filter matches against.
type FilterField int

const (
	// FilterNone disables attribute filtering.
	FilterNone FilterField = iota
	// FilterRiskBand matches the categorical risk band attribute.
	FilterRiskBand
)

// Filter is an attribute-equality filter on cells.
type Filter struct {
	Field FilterField
	Value string
}

// Active reports whether the filter selects on an attribute at all.
func (f Filter) Active() bool {
	return f.Field != FilterNone
}

// Matches reports whether the cell passes the filter. Comparison is
// case-insensitive.
func (f Filter) Matches(c Cell) bool {
	switch f.Field {
	case FilterRiskBand:
		return strings.EqualFold(c.RiskBand, f.Value)
	default:
		return true
	}
}

// LayerSpec is the static definition of one output layer: which remote source
// feeds it, the optional attribute filter, and how to name and describe it.
type LayerSpec struct {
	Key         string // result map key
	Source      string // key into SourceLayerIDs
	Filter      Filter
	Description string
	Filename    string // output basename, without extension
}

// Layers defines every output layer in processing order. The risk band
// layers share the rofsw source; the depth layers follow in declaration
// order so output enumeration is reproducible.
var Layers = []LayerSpec{
	{
		Key:         "risk_band_High",
		Source:      CategoricalSource,
		Filter:      Filter{Field: FilterRiskBand, Value: "High"},
		Description: "High risk - >=3.3% (1 in 30) chance per year",
		Filename:    "risk_band_High",
	},
	{
		Key:         "risk_band_Medium",
		Source:      CategoricalSource,
		Filter:      Filter{Field: FilterRiskBand, Value: "Medium"},
		Description: "Medium risk - <3.3% but >=1% (1 in 100) chance per year",
		Filename:    "risk_band_Medium",
	},
	{
		Key:         "risk_band_Low",
		Source:      CategoricalSource,
		Filter:      Filter{Field: FilterRiskBand, Value: "Low"},
		Description: "Low risk - <1% but >=0.1% (1 in 1000) chance per year",
		Filename:    "risk_band_Low",
	},
	{
		Key:         "depth_0.2m",
		Source:      "rofsw_0_2m_depth",
		Description: "Flooding depth >= 0.2m",
		Filename:    "depth_0_2m",
	},
	{
		Key:         "depth_0.3m",
		Source:      "rofsw_0_3m_depth",
		Description: "Flooding depth >= 0.3m",
		Filename:    "depth_0_3m",
	},
	{
		Key:         "depth_0.6m",
		Source:      "rofsw_0_6m_depth",
		Description: "Flooding depth >= 0.6m",
		Filename:    "depth_0_6m",
	},
	{
		Key:         "depth_0.9m",
		Source:      "rofsw_0_9m_depth",
		Description: "Flooding depth >= 0.9m",
		Filename:    "depth_0_9m",
	},
	{
		Key:         "depth_1.2m",
		Source:      "rofsw_1_2m_depth",
		Description: "Flooding depth >= 1.2m",
		Filename:    "depth_1_2m",
	},
}

// DistinctSources returns the unique source keys referenced by Layers, in
// first-use order. Each is fetched exactly once per job.
func DistinctSources() []string {
	seen := make(map[string]bool, len(Layers))
	var sources []string
	for _, spec := range Layers {
		if seen[spec.Source] {
			continue
		}
		seen[spec.Source] = true
		sources = append(sources, spec.Source)
	}
	return sources
}
